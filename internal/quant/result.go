// Package quant computes normalized transcript expression from alignment
// evidence.
package quant

// Result holds expression metrics for one transcript. RawCount, RPK and
// EffectiveLength are per-transcript quantities (phase 1); TPM, FPKM and
// TranscriptFraction are only meaningful after global normalization
// (phase 2).
type Result struct {
	TranscriptID    string
	GeneID          string
	Contig          string
	Strand          string
	RawCount        int64
	EffectiveLength int64 // exonic bp, the normalization denominator
	RPK             float64
	TPM             float64
	FPKM            float64

	// TranscriptFraction is this transcript's share of its gene's total
	// TPM, in [0, 1]. Zero when the whole gene is unexpressed.
	TranscriptFraction float64
}

// GeneResult aggregates transcript-level expression to gene level.
type GeneResult struct {
	GeneID      string
	Transcripts int
	RawCount    int64
	TPM         float64
	FPKM        float64
	MaxLength   int64 // longest transcript's effective length
}
