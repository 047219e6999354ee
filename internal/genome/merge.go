package genome

// MergeOverlapping coalesces intervals on a contig that overlap or lie
// within gap base pairs of each other into single spans, sorted by start.
// An optional strand filter ("" disables it) restricts the input set.
// Names of merged intervals are joined with ",". Idempotent for gap >= 0.
func (x *Index) MergeOverlapping(contig, strand string, gap int64) []Interval {
	intervals := x.All(contig, strand)
	if len(intervals) == 0 {
		return nil
	}

	merged := make([]Interval, 0, len(intervals))
	cur := intervals[0]

	for _, next := range intervals[1:] {
		if next.Start <= cur.End+gap {
			if next.End > cur.End {
				cur.End = next.End
			}
			if next.Name != "" && next.Name != cur.Name {
				if cur.Name != "" {
					cur.Name += "," + next.Name
				} else {
					cur.Name = next.Name
				}
			}
		} else {
			merged = append(merged, cur)
			cur = next
		}
	}
	merged = append(merged, cur)
	return merged
}
