package genome

import "sort"

// contigTree answers overlap queries for a single contig using a
// start-sorted slice with a running max-end array. O(log n + k) per query.
type contigTree struct {
	intervals []Interval
	maxEnd    []int64 // maxEnd[i] = max(End) for intervals[:i+1]
	totalBP   int64
	dirty     bool
}

func (ct *contigTree) add(iv Interval) {
	ct.intervals = append(ct.intervals, iv)
	ct.totalBP += iv.Length()
	ct.dirty = true
}

func (ct *contigTree) build() {
	if !ct.dirty {
		return
	}
	sort.Slice(ct.intervals, func(i, j int) bool {
		if ct.intervals[i].Start != ct.intervals[j].Start {
			return ct.intervals[i].Start < ct.intervals[j].Start
		}
		// Equal starts: longer interval first.
		return ct.intervals[i].End > ct.intervals[j].End
	})

	ct.maxEnd = make([]int64, len(ct.intervals))
	ct.maxEnd[0] = ct.intervals[0].End
	for i := 1; i < len(ct.intervals); i++ {
		ct.maxEnd[i] = ct.intervals[i].End
		if ct.maxEnd[i-1] > ct.maxEnd[i] {
			ct.maxEnd[i] = ct.maxEnd[i-1]
		}
	}
	ct.dirty = false
}

// query appends all intervals intersecting [start, end) to out.
func (ct *contigTree) query(start, end int64, out []Interval) []Interval {
	ct.build()
	if len(ct.intervals) == 0 {
		return out
	}

	// First index with Start >= end; candidates are [0, hi).
	hi := sort.Search(len(ct.intervals), func(i int) bool {
		return ct.intervals[i].Start >= end
	})

	for i := hi - 1; i >= 0; i-- {
		// Prune: maxEnd[i] is the max end over intervals[:i+1].
		// If it does not pass the query start, nothing from 0..i overlaps.
		if ct.maxEnd[i] <= start {
			break
		}
		if ct.intervals[i].End > start {
			out = append(out, ct.intervals[i])
		}
	}
	return out
}

// ContigStats summarizes the intervals stored for one contig.
type ContigStats struct {
	Count   int
	TotalBP int64
}

// Index stores genomic intervals keyed by contig and answers overlap
// queries. Queries on unknown contigs return empty results, never errors.
//
// Insertion is single-writer; once built (first query or explicit Build),
// the index is safe for concurrent read-only use.
type Index struct {
	contigs map[string]*contigTree
}

// NewIndex creates an empty index. Contigs are created lazily on first Add.
func NewIndex() *Index {
	return &Index{contigs: make(map[string]*contigTree)}
}

// Add inserts a validated interval into its contig's tree.
func (x *Index) Add(iv Interval) {
	ct, ok := x.contigs[iv.Contig]
	if !ok {
		ct = &contigTree{}
		x.contigs[iv.Contig] = ct
	}
	ct.add(iv)
}

// AddNew validates coordinates and inserts in one step.
func (x *Index) AddNew(contig string, start, end int64, strand, name string) error {
	iv, err := NewInterval(contig, start, end, strand, name)
	if err != nil {
		return err
	}
	x.Add(iv)
	return nil
}

// Build finalizes all contig trees. Optional: queries build lazily, but
// calling Build before sharing the index across goroutines is required.
func (x *Index) Build() {
	for _, ct := range x.contigs {
		ct.build()
	}
}

// Query returns all intervals on contig intersecting [start, end), sorted
// by descending start. Unknown contigs yield an empty result.
func (x *Index) Query(contig string, start, end int64) []Interval {
	ct, ok := x.contigs[contig]
	if !ok {
		return nil
	}
	return ct.query(start, end, nil)
}

// QueryStranded is Query filtered to strand-compatible intervals.
// Strand "." in either the query or a stored interval matches any.
func (x *Index) QueryStranded(contig string, start, end int64, strand string) []Interval {
	hits := x.Query(contig, start, end)
	out := hits[:0]
	for _, iv := range hits {
		if StrandMatches(iv.Strand, strand) {
			out = append(out, iv)
		}
	}
	return out
}

// Stats returns interval count and total base pairs for a contig.
// Unknown contigs yield zeros.
func (x *Index) Stats(contig string) ContigStats {
	ct, ok := x.contigs[contig]
	if !ok {
		return ContigStats{}
	}
	return ContigStats{Count: len(ct.intervals), TotalBP: ct.totalBP}
}

// Contigs returns all contig names in sorted order.
func (x *Index) Contigs() []string {
	names := make([]string, 0, len(x.contigs))
	for name := range x.contigs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the total number of stored intervals across all contigs.
func (x *Index) Len() int {
	n := 0
	for _, ct := range x.contigs {
		n += len(ct.intervals)
	}
	return n
}

// All returns the intervals stored for a contig in sorted order,
// optionally filtered by strand.
func (x *Index) All(contig, strand string) []Interval {
	ct, ok := x.contigs[contig]
	if !ok {
		return nil
	}
	ct.build()
	var out []Interval
	for _, iv := range ct.intervals {
		if strand == "" || StrandMatches(iv.Strand, strand) {
			out = append(out, iv)
		}
	}
	return out
}
