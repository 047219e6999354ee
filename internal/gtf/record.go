// Package gtf provides streaming access to transcript records from
// GTF-style annotation files.
package gtf

import (
	"fmt"

	"github.com/tetools/tequant/internal/genome"
)

// Attributes holds the parsed free-form attribute column of a GTF record.
// Lookups never fail: absent keys yield the caller-supplied default.
type Attributes map[string]string

// Get returns the value for key, or def if the key is absent.
func (a Attributes) Get(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// ExonBlock is a single exon span in 0-based half-open coordinates.
type ExonBlock struct {
	Start int64
	End   int64
}

// TranscriptRecord is an assembled transcript with its exon structure.
// Immutable once built from input.
type TranscriptRecord struct {
	ID     string
	GeneID string
	Contig string
	Start  int64 // 0-based
	End    int64 // exclusive
	Strand string
	Exons  []ExonBlock // sorted by start
	Attrs  Attributes
	Line   int // source line of the transcript feature, for diagnostics
}

// Validate checks the invariants required before annotation or
// quantification. Degenerate records (no exons, bad coordinates) are
// rejected here rather than propagated into the pipeline.
func (t *TranscriptRecord) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transcript at %s:%d-%d: missing transcript_id", t.Contig, t.Start, t.End)
	}
	if t.Contig == "" {
		return fmt.Errorf("transcript %s: empty contig", t.ID)
	}
	if t.Start < 0 || t.End <= t.Start {
		return fmt.Errorf("transcript %s: invalid span %d-%d", t.ID, t.Start, t.End)
	}
	if t.Strand != genome.StrandPlus && t.Strand != genome.StrandMinus && t.Strand != genome.StrandNone {
		return fmt.Errorf("transcript %s: invalid strand %q", t.ID, t.Strand)
	}
	if len(t.Exons) == 0 {
		return fmt.Errorf("transcript %s: no exon blocks", t.ID)
	}
	for _, e := range t.Exons {
		if e.Start < 0 || e.End <= e.Start {
			return fmt.Errorf("transcript %s: invalid exon block %d-%d", t.ID, e.Start, e.End)
		}
	}
	return nil
}

// TSS returns the transcription start site: the 5'-most coordinate,
// strand-dependent. For "." strand the plus convention is used.
func (t *TranscriptRecord) TSS() int64 {
	if t.Strand == genome.StrandMinus {
		return t.End
	}
	return t.Start
}

// ExonicLength returns the summed exon block length in base pairs.
func (t *TranscriptRecord) ExonicLength() int64 {
	var n int64
	for _, e := range t.Exons {
		n += e.End - e.Start
	}
	return n
}
