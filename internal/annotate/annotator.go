package annotate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tetools/tequant/internal/genome"
	"github.com/tetools/tequant/internal/gtf"
)

// DefaultPromoterWindow is the upstream distance scanned for repeat
// elements, in base pairs.
const DefaultPromoterWindow = 2000

// FeatureLookup finds stored intervals overlapping a genomic range.
// Queries on unknown contigs return empty results.
type FeatureLookup interface {
	Query(contig string, start, end int64) []genome.Interval
	QueryStranded(contig string, start, end int64, strand string) []genome.Interval
}

// Annotator classifies transcripts by TE occupancy of their promoters.
// Stateless across transcripts, so Annotate is safe to call concurrently
// once the underlying indexes are built.
type Annotator struct {
	repeats  FeatureLookup
	genes    FeatureLookup // optional gene-boundary index
	window   int64
	stranded bool
	logger   *zap.Logger
}

// NewAnnotator creates an annotator over a repeat-element index.
func NewAnnotator(repeats FeatureLookup) *Annotator {
	return &Annotator{
		repeats: repeats,
		window:  DefaultPromoterWindow,
		logger:  zap.NewNop(),
	}
}

// SetGeneIndex enables neighboring-gene conflict detection against a
// gene-boundary index.
func (a *Annotator) SetGeneIndex(genes FeatureLookup) {
	a.genes = genes
}

// SetWindow configures the upstream promoter window in base pairs.
func (a *Annotator) SetWindow(window int64) error {
	if window < 0 {
		return fmt.Errorf("promoter window must be non-negative, got %d", window)
	}
	a.window = window
	return nil
}

// SetStranded restricts promoter queries to strand-compatible repeats.
func (a *Annotator) SetStranded(stranded bool) {
	a.stranded = stranded
}

// SetLogger sets the logger for warning messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// PromoterWindow returns the promoter region for a transcript in
// half-open coordinates, clipped at zero. A transcript starting at the
// contig edge yields an empty region.
func PromoterWindow(t *gtf.TranscriptRecord, window int64) (start, end int64) {
	tss := t.TSS()
	if t.Strand == genome.StrandMinus {
		return tss, tss + window
	}
	start = tss - window
	if start < 0 {
		start = 0
	}
	return start, tss
}

// Annotate classifies a single transcript. Transcripts on contigs absent
// from the repeat index simply yield HasTEPromoter=false; no lookup in
// this path ever fails.
func (a *Annotator) Annotate(t *gtf.TranscriptRecord) *Result {
	res := &Result{
		TranscriptID:   t.ID,
		GeneID:         t.GeneID,
		Contig:         t.Contig,
		Start:          t.Start,
		End:            t.End,
		Strand:         t.Strand,
		PromoterWindow: a.window,
	}

	promStart, promEnd := PromoterWindow(t, a.window)
	if promEnd > promStart {
		var hits []genome.Interval
		if a.stranded {
			hits = a.repeats.QueryStranded(t.Contig, promStart, promEnd, t.Strand)
		} else {
			hits = a.repeats.Query(t.Contig, promStart, promEnd)
		}

		res.NTEOverlaps = len(hits)
		res.HasTEPromoter = len(hits) > 0
		res.TENames = dedupNames(hits)

		if a.genes != nil {
			for _, g := range a.genes.Query(t.Contig, promStart, promEnd) {
				if g.Name != "" && g.Name != t.GeneID {
					res.PromoterConflictsGene = true
					break
				}
			}
		}
	}

	res.NBodyOverlaps = len(a.repeats.Query(t.Contig, t.Start, t.End))
	return res
}

// dedupNames returns interval names deduplicated, preserving first
// occurrence order. Unnamed intervals are ignored.
func dedupNames(hits []genome.Interval) []string {
	if len(hits) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(hits))
	var names []string
	for _, iv := range hits {
		if iv.Name == "" || seen[iv.Name] {
			continue
		}
		seen[iv.Name] = true
		names = append(names, iv.Name)
	}
	return names
}

// TranscriptSource produces transcript records one at a time; (nil, nil)
// marks the end of the stream.
type TranscriptSource interface {
	Next() (*gtf.TranscriptRecord, error)
}

// ResultWriter receives annotation results.
type ResultWriter interface {
	WriteHeader() error
	Write(*Result) error
	Flush() error
}

// AnnotateAll annotates every transcript from the source, one result per
// record, input order preserved. Malformed records are dropped by the
// source itself; read failures abort the batch.
func (a *Annotator) AnnotateAll(src TranscriptSource, writer ResultWriter) error {
	if err := writer.WriteHeader(); err != nil {
		return err
	}

	items := make(chan WorkItem, workChanDepth())
	var readErr error

	go func() {
		defer close(items)
		seq := 0
		for {
			t, err := src.Next()
			if err != nil {
				readErr = fmt.Errorf("read transcript: %w", err)
				return
			}
			if t == nil {
				return
			}
			items <- WorkItem{Seq: seq, Transcript: t}
			seq++
		}
	}()

	results := a.ParallelAnnotate(items, 0)

	if err := OrderedCollect(results, func(r WorkResult) error {
		if err := writer.Write(r.Result); err != nil {
			return fmt.Errorf("write annotation: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	if readErr != nil {
		return readErr
	}
	return writer.Flush()
}
