package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetools/tequant/internal/annotate"
	"github.com/tetools/tequant/internal/quant"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("") // in-memory
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_WriteAndJoin(t *testing.T) {
	s := openTestStore(t)

	annotations := []*annotate.Result{
		{TranscriptID: "T1", GeneID: "G1", Contig: "c1", Start: 1000, End: 2000, Strand: "+",
			HasTEPromoter: true, NTEOverlaps: 1, TENames: []string{"LTR12C"}, PromoterWindow: 2000},
		{TranscriptID: "T2", GeneID: "G1", Contig: "c1", Start: 3000, End: 4000, Strand: "+",
			PromoterWindow: 2000},
	}
	expression := []*quant.Result{
		{TranscriptID: "T1", GeneID: "G1", Contig: "c1", Strand: "+",
			RawCount: 42, EffectiveLength: 700, RPK: 60, TPM: 900000, FPKM: 12, TranscriptFraction: 0.9},
		{TranscriptID: "T2", GeneID: "G1", Contig: "c1", Strand: "+",
			EffectiveLength: 500},
	}

	require.NoError(t, s.WriteAnnotationResults("sample1", annotations))
	require.NoError(t, s.WriteExpressionResults("sample1", expression))

	report, err := s.TEPromoterReport("sample1")
	require.NoError(t, err)
	require.Len(t, report, 1, "only TE-promoter transcripts in the joined report")

	row := report[0]
	assert.Equal(t, "T1", row.TranscriptID)
	assert.Equal(t, "LTR12C", row.TENames)
	assert.Equal(t, int64(42), row.RawCount)
	assert.InDelta(t, 900000.0, row.TPM, 1e-9)
	assert.InDelta(t, 0.9, row.TranscriptFraction, 1e-9)
}

func TestStore_JoinWithMissingExpression(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.WriteAnnotationResults("s1", []*annotate.Result{
		{TranscriptID: "T9", GeneID: "G9", Contig: "c9", Strand: "-",
			HasTEPromoter: true, NTEOverlaps: 2, TENames: []string{"L1MA4", "AluY"}},
	}))

	report, err := s.TEPromoterReport("s1")
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, int64(0), report[0].RawCount, "missing expression joins as zeros")
}

func TestStore_Deduplicates(t *testing.T) {
	s := openTestStore(t)

	dup := &annotate.Result{TranscriptID: "T1", GeneID: "G1", Contig: "c1", Strand: "+", HasTEPromoter: true}
	require.NoError(t, s.WriteAnnotationResults("s1", []*annotate.Result{dup, dup}))

	report, err := s.TEPromoterReport("s1")
	require.NoError(t, err)
	assert.Len(t, report, 1)
}

func TestStore_PerSampleIsolation(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.WriteAnnotationResults("s1", []*annotate.Result{
		{TranscriptID: "T1", GeneID: "G1", Contig: "c1", Strand: "+", HasTEPromoter: true},
	}))
	require.NoError(t, s.WriteAnnotationResults("s2", []*annotate.Result{
		{TranscriptID: "T1", GeneID: "G1", Contig: "c1", Strand: "+", HasTEPromoter: true},
	}))

	all, err := s.TEPromoterReport("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := s.TEPromoterReport("s2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "s2", one[0].SampleID)
}
