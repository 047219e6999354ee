// Package align abstracts read-alignment evidence behind an indexed,
// range-queryable source.
package align

// Alignment is a single mapped read placement.
type Alignment struct {
	ID     int64 // stable identity within the source, for cross-block dedupe
	Start  int64 // 0-based half-open
	End    int64
	MapQ   int
	Strand string
}

// Source provides indexed random access to alignments. It is a scoped,
// single-owner resource: acquire once per quantification run and Close on
// every exit path.
//
// Fetch distinguishes "contig present, zero reads" (empty slice, true)
// from "contig absent from the index" (empty slice, false); both are
// valid, but callers should log the latter.
type Source interface {
	Fetch(contig string, start, end int64) (hits []Alignment, contigPresent bool, err error)
	TotalMapped(minMapQ int) int64
	Close() error
}
