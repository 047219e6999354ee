package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetools/tequant/internal/genome"
	"github.com/tetools/tequant/internal/gtf"
)

func repeatIndex(t *testing.T, rows ...genome.Interval) *genome.Index {
	t.Helper()
	idx := genome.NewIndex()
	for _, iv := range rows {
		idx.Add(iv)
	}
	idx.Build()
	return idx
}

func iv(t *testing.T, contig string, start, end int64, strand, name string) genome.Interval {
	t.Helper()
	out, err := genome.NewInterval(contig, start, end, strand, name)
	require.NoError(t, err)
	return out
}

func plusTranscript() *gtf.TranscriptRecord {
	return &gtf.TranscriptRecord{
		ID: "T1", GeneID: "G1", Contig: "contig_1",
		Start: 1000, End: 1800, Strand: "+",
		Exons: []gtf.ExonBlock{{Start: 1000, End: 1200}, {Start: 1500, End: 1800}},
	}
}

func TestPromoterWindow(t *testing.T) {
	plus := plusTranscript()
	start, end := PromoterWindow(plus, 2000)
	assert.Equal(t, int64(0), start, "window clipped at contig origin")
	assert.Equal(t, int64(1000), end)

	minus := &gtf.TranscriptRecord{
		ID: "T2", GeneID: "G2", Contig: "c", Start: 5000, End: 6000, Strand: "-",
		Exons: []gtf.ExonBlock{{Start: 5000, End: 6000}},
	}
	start, end = PromoterWindow(minus, 2000)
	assert.Equal(t, int64(6000), start, "minus strand promoter is downstream of the right edge")
	assert.Equal(t, int64(8000), end)

	edge := &gtf.TranscriptRecord{
		ID: "T3", GeneID: "G3", Contig: "c", Start: 0, End: 100, Strand: "+",
		Exons: []gtf.ExonBlock{{Start: 0, End: 100}},
	}
	start, end = PromoterWindow(edge, 2000)
	assert.Equal(t, start, end, "transcript at contig edge has empty promoter")
}

func TestAnnotate_TEPromoter(t *testing.T) {
	// Repeat at [200,900) overlaps the clipped promoter [0,1000).
	idx := repeatIndex(t, iv(t, "contig_1", 200, 900, "+", "LTR12C"))
	a := NewAnnotator(idx)

	res := a.Annotate(plusTranscript())
	assert.True(t, res.HasTEPromoter)
	assert.Equal(t, 1, res.NTEOverlaps)
	assert.Equal(t, []string{"LTR12C"}, res.TENames)
	assert.Equal(t, int64(2000), res.PromoterWindow)
	assert.Equal(t, 0, res.NBodyOverlaps, "repeat does not reach the transcript body")
}

func TestAnnotate_UnknownContig(t *testing.T) {
	idx := repeatIndex(t, iv(t, "contig_other", 0, 100, "+", "TE"))
	a := NewAnnotator(idx)

	res := a.Annotate(plusTranscript())
	assert.False(t, res.HasTEPromoter)
	assert.Equal(t, 0, res.NTEOverlaps)
	assert.Empty(t, res.TENames)
}

func TestAnnotate_StrandedQuery(t *testing.T) {
	idx := repeatIndex(t,
		iv(t, "contig_1", 100, 900, "-", "MinusTE"),
		iv(t, "contig_1", 100, 900, ".", "AnyTE"),
	)
	a := NewAnnotator(idx)
	a.SetStranded(true)

	res := a.Annotate(plusTranscript())
	assert.True(t, res.HasTEPromoter)
	assert.Equal(t, []string{"AnyTE"}, res.TENames, "strand . matches, - does not")

	a.SetStranded(false)
	res = a.Annotate(plusTranscript())
	assert.Equal(t, 2, res.NTEOverlaps)
}

func TestAnnotate_NameDedup(t *testing.T) {
	idx := repeatIndex(t,
		iv(t, "contig_1", 100, 300, "+", "AluY"),
		iv(t, "contig_1", 400, 600, "+", "AluY"),
		iv(t, "contig_1", 700, 950, "+", "L1MA4"),
	)
	a := NewAnnotator(idx)

	res := a.Annotate(plusTranscript())
	assert.Equal(t, 3, res.NTEOverlaps)
	require.Len(t, res.TENames, 2, "names deduplicated")
	assert.Contains(t, res.TENames, "AluY")
	assert.Contains(t, res.TENames, "L1MA4")
}

func TestAnnotate_GeneConflict(t *testing.T) {
	repeats := repeatIndex(t, iv(t, "contig_1", 200, 900, "+", "TE"))
	a := NewAnnotator(repeats)

	// Own gene overlapping the promoter is not a conflict.
	own := repeatIndex(t, iv(t, "contig_1", 0, 1500, "+", "G1"))
	a.SetGeneIndex(own)
	assert.False(t, a.Annotate(plusTranscript()).PromoterConflictsGene)

	// A neighboring gene body under the promoter window is.
	neighbor := repeatIndex(t,
		iv(t, "contig_1", 0, 1500, "+", "G1"),
		iv(t, "contig_1", 100, 800, "-", "G_OTHER"),
	)
	a.SetGeneIndex(neighbor)
	res := a.Annotate(plusTranscript())
	assert.True(t, res.PromoterConflictsGene)
	assert.True(t, res.HasTEPromoter, "conflict flags, never drops")
}

func TestSetWindow_Validation(t *testing.T) {
	a := NewAnnotator(repeatIndex(t))
	assert.Error(t, a.SetWindow(-1))
	assert.NoError(t, a.SetWindow(500))

	idx := repeatIndex(t, iv(t, "contig_1", 100, 200, "+", "TE"))
	a = NewAnnotator(idx)
	require.NoError(t, a.SetWindow(500))
	res := a.Annotate(plusTranscript())
	assert.False(t, res.HasTEPromoter, "repeat outside the narrower window")
}
