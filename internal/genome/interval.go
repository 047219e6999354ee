// Package genome provides genomic interval types and a per-contig overlap
// index for fragmented assemblies with many thousands of contigs.
package genome

import "fmt"

// Strand values follow BED convention.
const (
	StrandPlus  = "+"
	StrandMinus = "-"
	StrandNone  = "."
)

// Interval is an immutable genomic interval in 0-based half-open
// coordinates [Start, End).
type Interval struct {
	Contig string
	Start  int64
	End    int64
	Strand string
	Name   string
	Score  float64
}

// NewInterval validates and constructs an Interval.
// Malformed coordinates are rejected here, never stored.
func NewInterval(contig string, start, end int64, strand, name string) (Interval, error) {
	if contig == "" {
		return Interval{}, fmt.Errorf("interval: empty contig name")
	}
	if start < 0 {
		return Interval{}, fmt.Errorf("interval %s:%d-%d: negative start", contig, start, end)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("interval %s:%d-%d: end must be greater than start", contig, start, end)
	}
	switch strand {
	case StrandPlus, StrandMinus, StrandNone:
	default:
		return Interval{}, fmt.Errorf("interval %s:%d-%d: invalid strand %q", contig, start, end, strand)
	}
	return Interval{Contig: contig, Start: start, End: end, Strand: strand, Name: name}, nil
}

// Length returns the interval length in base pairs.
func (iv Interval) Length() int64 {
	return iv.End - iv.Start
}

// Overlaps reports whether the interval intersects [start, end) on the
// same contig.
func (iv Interval) Overlaps(contig string, start, end int64) bool {
	return iv.Contig == contig && iv.Start < end && start < iv.End
}

// OverlapLength returns the number of overlapping base pairs with [start, end).
func (iv Interval) OverlapLength(start, end int64) int64 {
	lo := max(iv.Start, start)
	hi := min(iv.End, end)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// StrandMatches reports whether two strand values are compatible.
// "." matches any strand.
func StrandMatches(a, b string) bool {
	return a == StrandNone || b == StrandNone || a == b
}
