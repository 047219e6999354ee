// Package annotate classifies transcripts by transposable-element
// occupancy of their promoter regions.
package annotate

// Result holds the TE-promoter classification for one transcript.
// Created once per transcript and never mutated afterwards.
type Result struct {
	TranscriptID string
	GeneID       string
	Contig       string
	Start        int64
	End          int64
	Strand       string

	HasTEPromoter  bool
	NTEOverlaps    int      // TE intervals overlapping the promoter window
	TENames        []string // deduplicated, ordered by first occurrence
	PromoterWindow int64    // upstream window size used, in bp

	// PromoterConflictsGene is set when the promoter window falls inside
	// an annotated gene other than the transcript's own. The candidate is
	// flagged, not dropped.
	PromoterConflictsGene bool

	// NBodyOverlaps counts TE intervals overlapping the transcript span
	// itself, kept as supporting evidence alongside the promoter call.
	NBodyOverlaps int
}
