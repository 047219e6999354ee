package quant

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tetools/tequant/internal/align"
	"github.com/tetools/tequant/internal/genome"
	"github.com/tetools/tequant/internal/gtf"
)

// Mapping-quality conventions for unique alignments. STAR marks unique
// mappers with 255, HISAT2 with 60.
const (
	MapQUniqueSTAR   = 255
	MapQUniqueHISAT2 = 60
)

// MapQPreset resolves an aligner name to its unique-mapping threshold.
func MapQPreset(name string) (int, error) {
	switch name {
	case "star":
		return MapQUniqueSTAR, nil
	case "hisat2":
		return MapQUniqueHISAT2, nil
	default:
		return 0, fmt.Errorf("unknown aligner preset %q (want star or hisat2)", name)
	}
}

// Quantifier counts alignments over transcript exon blocks and computes
// normalized abundance. The alignment source is owned by the caller; the
// quantifier only reads from it.
type Quantifier struct {
	src      align.Source
	minMapQ  int
	stranded bool
	workers  int
	logger   *zap.Logger
	skipped  int
}

// NewQuantifier creates a quantifier over an alignment source.
func NewQuantifier(src align.Source) *Quantifier {
	return &Quantifier{
		src:     src,
		minMapQ: MapQUniqueSTAR,
		logger:  zap.NewNop(),
	}
}

// SetMinMapQ configures the minimum mapping quality for counted reads.
func (q *Quantifier) SetMinMapQ(minMapQ int) error {
	if minMapQ < 0 || minMapQ > 255 {
		return fmt.Errorf("mapping-quality threshold must be in [0, 255], got %d", minMapQ)
	}
	q.minMapQ = minMapQ
	return nil
}

// SetStranded restricts counting to reads matching the transcript strand.
func (q *Quantifier) SetStranded(stranded bool) {
	q.stranded = stranded
}

// SetWorkers configures phase-1 parallelism. Zero means NumCPU.
func (q *Quantifier) SetWorkers(workers int) {
	q.workers = workers
}

// SetLogger sets the logger for warning and diagnostic messages.
func (q *Quantifier) SetLogger(l *zap.Logger) {
	q.logger = l
}

// Skipped returns the number of records dropped during the last
// QuantifyAll.
func (q *Quantifier) Skipped() int {
	return q.skipped
}

// mergedExons coalesces a transcript's exon blocks into disjoint spans so
// overlapping blocks are not counted twice.
func mergedExons(t *gtf.TranscriptRecord) []gtf.ExonBlock {
	if len(t.Exons) <= 1 {
		return t.Exons
	}
	blocks := make([]gtf.ExonBlock, len(t.Exons))
	copy(blocks, t.Exons)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })

	out := blocks[:1]
	for _, b := range blocks[1:] {
		last := &out[len(out)-1]
		if b.Start <= last.End {
			if b.End > last.End {
				last.End = b.End
			}
		} else {
			out = append(out, b)
		}
	}
	return out
}

// EffectiveLength returns the exonic length in bp after merging
// overlapping blocks.
func EffectiveLength(t *gtf.TranscriptRecord) int64 {
	var n int64
	for _, b := range mergedExons(t) {
		n += b.End - b.Start
	}
	return n
}

// CountReads counts alignments overlapping the transcript's exon blocks,
// restricted to exonic bp. A read spanning multiple blocks is counted
// once. An absent contig yields zero with a diagnostic log entry.
func (q *Quantifier) CountReads(t *gtf.TranscriptRecord) (int64, error) {
	seen := make(map[int64]bool)
	contigPresent := true

	for _, b := range mergedExons(t) {
		hits, present, err := q.src.Fetch(t.Contig, b.Start, b.End)
		if err != nil {
			return 0, fmt.Errorf("fetch alignments for %s: %w", t.ID, err)
		}
		if !present {
			contigPresent = false
			break
		}
		for _, a := range hits {
			if a.MapQ < q.minMapQ {
				continue
			}
			if q.stranded && !genome.StrandMatches(a.Strand, t.Strand) {
				continue
			}
			seen[a.ID] = true
		}
	}

	if !contigPresent {
		q.logger.Debug("contig absent from alignment index",
			zap.String("transcript_id", t.ID),
			zap.String("contig", t.Contig))
		return 0, nil
	}
	return int64(len(seen)), nil
}

// QuantifyAll computes expression for a transcript population in two
// phases: per-transcript counts and RPK in parallel, then a global
// reduction for TPM, FPKM and transcript fractions. The reduction is a
// barrier: no result is final until every phase-1 result is in.
func (q *Quantifier) QuantifyAll(transcripts []*gtf.TranscriptRecord) ([]*Result, error) {
	q.skipped = 0

	valid := make([]*gtf.TranscriptRecord, 0, len(transcripts))
	for _, t := range transcripts {
		if err := t.Validate(); err != nil {
			q.skipped++
			q.logger.Warn("skipping invalid transcript",
				zap.String("transcript_id", t.ID),
				zap.Error(err))
			continue
		}
		valid = append(valid, t)
	}

	results := make([]*Result, len(valid))
	errs := make([]error, len(valid))

	workers := q.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Phase 1: independent per-transcript work, no shared mutable state.
	indices := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i], errs[i] = q.quantifyOne(valid[i])
			}
		}()
	}
	for i := range valid {
		indices <- i
	}
	close(indices)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("quantify %s: %w", valid[i].ID, err)
		}
	}

	// Phase 2: global reduction over the complete result set.
	Normalize(results, q.src.TotalMapped(q.minMapQ))
	TranscriptFractions(results)
	return results, nil
}

func (q *Quantifier) quantifyOne(t *gtf.TranscriptRecord) (*Result, error) {
	count, err := q.CountReads(t)
	if err != nil {
		return nil, err
	}

	length := EffectiveLength(t)
	return &Result{
		TranscriptID:    t.ID,
		GeneID:          t.GeneID,
		Contig:          t.Contig,
		Strand:          t.Strand,
		RawCount:        count,
		EffectiveLength: length,
		RPK:             float64(count) / (float64(length) / 1000.0),
	}, nil
}

// Normalize computes TPM and FPKM in place across the whole population.
// A zero RPK sum or zero library size yields all-zero values, not a
// division fault.
func Normalize(results []*Result, totalMapped int64) {
	var rpkSum float64
	for _, r := range results {
		rpkSum += r.RPK
	}

	scale := rpkSum / 1e6
	libSize := float64(totalMapped) / 1e6

	for _, r := range results {
		if scale > 0 {
			r.TPM = r.RPK / scale
		} else {
			r.TPM = 0
		}
		if libSize > 0 {
			r.FPKM = r.RPK / libSize
		} else {
			r.FPKM = 0
		}
	}
}

// TranscriptFractions assigns each transcript its share of its gene's
// total TPM. Genes with all-zero TPM yield zero fractions for every
// member.
func TranscriptFractions(results []*Result) {
	geneTPM := make(map[string]float64)
	for _, r := range results {
		geneTPM[r.GeneID] += r.TPM
	}
	for _, r := range results {
		if total := geneTPM[r.GeneID]; total > 0 {
			r.TranscriptFraction = r.TPM / total
		} else {
			r.TranscriptFraction = 0
		}
	}
}

// GeneExpression aggregates transcript results to gene level: counts,
// TPM and FPKM are summed, the length reported is the longest
// transcript's. Output is sorted by gene ID.
func GeneExpression(results []*Result) []*GeneResult {
	byGene := make(map[string]*GeneResult)
	for _, r := range results {
		g, ok := byGene[r.GeneID]
		if !ok {
			g = &GeneResult{GeneID: r.GeneID}
			byGene[r.GeneID] = g
		}
		g.Transcripts++
		g.RawCount += r.RawCount
		g.TPM += r.TPM
		g.FPKM += r.FPKM
		if r.EffectiveLength > g.MaxLength {
			g.MaxLength = r.EffectiveLength
		}
	}

	out := make([]*GeneResult, 0, len(byGene))
	for _, g := range byGene {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneID < out[j].GeneID })
	return out
}
