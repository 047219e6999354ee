package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetools/tequant/internal/annotate"
	"github.com/tetools/tequant/internal/quant"
)

func TestAnnotationWriter(t *testing.T) {
	var sb strings.Builder
	w := NewAnnotationWriter(&sb)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(&annotate.Result{
		TranscriptID:   "T1",
		GeneID:         "G1",
		Contig:         "contig_1",
		Start:          1000,
		End:            1800,
		Strand:         "+",
		HasTEPromoter:  true,
		NTEOverlaps:    2,
		TENames:        []string{"LTR12C", "AluY"},
		PromoterWindow: 2000,
	}))
	require.NoError(t, w.Write(&annotate.Result{
		TranscriptID: "T2", GeneID: "G2", Contig: "contig_2", Strand: "-",
		Start: 0, End: 100, PromoterWindow: 2000,
	}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "transcript_id\tgene_id"))

	fields := strings.Split(lines[1], "\t")
	assert.Equal(t, "T1", fields[0])
	assert.Equal(t, "True", fields[6])
	assert.Equal(t, "LTR12C,AluY", fields[8])

	fields = strings.Split(lines[2], "\t")
	assert.Equal(t, "False", fields[6])
	assert.Equal(t, "None", fields[8], "no TE names placeholder")
}

func TestExpressionWriter(t *testing.T) {
	var sb strings.Builder
	w := NewExpressionWriter(&sb)

	require.NoError(t, w.WriteAll([]*quant.Result{
		{
			TranscriptID: "T1", GeneID: "G1", Contig: "c1", Strand: "+",
			RawCount: 10, EffectiveLength: 500, RPK: 20,
			TPM: 750000, FPKM: 12.5, TranscriptFraction: 0.75,
		},
	}))

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 10)
	assert.Equal(t, "10", fields[4])
	assert.Equal(t, "500", fields[5])
	assert.Equal(t, "750000", fields[7])
	assert.Equal(t, "0.75", fields[9])
}

func TestCombinedWriter_RestrictsToTEPromoter(t *testing.T) {
	annotations := []*annotate.Result{
		{TranscriptID: "T1", GeneID: "G1", Contig: "c1", Strand: "+", HasTEPromoter: true, NTEOverlaps: 1, TENames: []string{"LTR7"}},
		{TranscriptID: "T2", GeneID: "G1", Contig: "c1", Strand: "+", HasTEPromoter: false},
		{TranscriptID: "T3", GeneID: "G2", Contig: "c2", Strand: "-", HasTEPromoter: true, NTEOverlaps: 1, TENames: []string{"L1PA2"}},
	}
	expression := []*quant.Result{
		{TranscriptID: "T1", GeneID: "G1", RawCount: 42, EffectiveLength: 700, TPM: 900000, TranscriptFraction: 1},
		{TranscriptID: "T2", GeneID: "G1", RawCount: 5},
	}

	var sb strings.Builder
	require.NoError(t, NewCombinedWriter(&sb).WriteAll(annotations, expression))

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 3, "header plus two TE-promoter rows")
	assert.Contains(t, lines[1], "T1")
	assert.Contains(t, lines[1], "42")
	assert.Contains(t, lines[2], "T3")

	// T3 had no expression row: joined with zeros, not dropped.
	fields := strings.Split(lines[2], "\t")
	assert.Equal(t, "0", fields[9])
}
