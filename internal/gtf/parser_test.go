package gtf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGTF = `# StringTie output
contig_1	StringTie	transcript	1001	1800	1000	+	.	gene_id "G1"; transcript_id "T1"; cov "12.5";
contig_1	StringTie	exon	1001	1200	1000	+	.	gene_id "G1"; transcript_id "T1"; exon_number "1";
contig_1	StringTie	exon	1501	1800	1000	+	.	gene_id "G1"; transcript_id "T1"; exon_number "2";
contig_2	StringTie	transcript	501	900	1000	-	.	gene_id "G2"; transcript_id "T2";
contig_2	StringTie	exon	501	900	1000	-	.	gene_id "G2"; transcript_id "T2";
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.gtf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParser_Stream(t *testing.T) {
	p, err := NewParser(writeTemp(t, sampleGTF))
	require.NoError(t, err)
	defer p.Close()

	t1, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, t1)
	assert.Equal(t, "T1", t1.ID)
	assert.Equal(t, "G1", t1.GeneID)
	assert.Equal(t, "contig_1", t1.Contig)
	assert.Equal(t, int64(1000), t1.Start, "1-based GTF start converted to 0-based")
	assert.Equal(t, int64(1800), t1.End)
	require.Len(t, t1.Exons, 2)
	assert.Equal(t, ExonBlock{Start: 1000, End: 1200}, t1.Exons[0])
	assert.Equal(t, ExonBlock{Start: 1500, End: 1800}, t1.Exons[1])
	assert.Equal(t, int64(500), t1.ExonicLength())

	t2, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, t2)
	assert.Equal(t, "T2", t2.ID)
	assert.Equal(t, "-", t2.Strand)
	assert.Equal(t, int64(900), t2.TSS(), "minus strand TSS is the right edge")

	end, err := p.Next()
	require.NoError(t, err)
	assert.Nil(t, end)
	assert.Equal(t, 0, p.Skipped())
}

func TestParser_Reset(t *testing.T) {
	p, err := NewParser(writeTemp(t, sampleGTF))
	require.NoError(t, err)
	defer p.Close()

	first, err := p.ReadAll()
	require.NoError(t, err)
	require.Len(t, first, 2)

	require.NoError(t, p.Reset())
	second, err := p.ReadAll()
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestParser_SkipsMalformedRecords(t *testing.T) {
	content := `contig_1	x	transcript	100	50	.	+	.	gene_id "G1"; transcript_id "BAD";
contig_1	x	transcript	101	200	.	+	.	gene_id "G1"; transcript_id "NOEXON";
contig_1	x	transcript	101	200	.	+	.	gene_id "G1"; transcript_id "OK";
contig_1	x	exon	101	200	.	+	.	transcript_id "OK";
contig_1	x	exon	300	400	.	+	.	transcript_id "ORPHAN";
`
	p, err := NewParser(writeTemp(t, content))
	require.NoError(t, err)
	defer p.Close()

	all, err := p.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1, "only the well-formed record survives")
	assert.Equal(t, "OK", all[0].ID)
	// BAD line, NOEXON record, ORPHAN exon all counted.
	assert.Equal(t, 3, p.Skipped())
}

func TestParser_MissingFile(t *testing.T) {
	_, err := NewParser(filepath.Join(t.TempDir(), "absent.gtf"))
	assert.Error(t, err)
}

func TestParseAttributes(t *testing.T) {
	threePairs := ParseAttributes(`gene_id "G1"; transcript_id "T1"; cov "3.5";`)
	sixPairs := ParseAttributes(`b "2"; a "1"; f six; c "3"; e "5"; d "4"`)
	twelve := `k01 "1"; k02 "2"; k03 "3"; k04 "4"; k05 "5"; k06 "6"; k07 "7"; k08 "8"; k09 "9"; k10 "10"; k11 "11"; k12 "12";`
	twelvePairs := ParseAttributes(twelve)

	assert.Equal(t, "G1", threePairs.Get("gene_id", "None"))
	assert.Equal(t, "3.5", threePairs.Get("cov", "0"))
	assert.Equal(t, "None", threePairs.Get("gene_name", "None"), "absent key yields default")

	assert.Len(t, sixPairs, 6)
	assert.Equal(t, "1", sixPairs.Get("a", ""))
	assert.Equal(t, "six", sixPairs.Get("f", ""), "unquoted value form")

	assert.Len(t, twelvePairs, 12)
	assert.Equal(t, "12", twelvePairs.Get("k12", ""))
	assert.Equal(t, "fallback", twelvePairs.Get("k13", "fallback"))
}

func TestParseAttributes_Degenerate(t *testing.T) {
	assert.Empty(t, ParseAttributes(""))
	flagOnly := ParseAttributes("pseudo;")
	assert.True(t, flagOnly.Has("pseudo"))
	assert.Equal(t, "", flagOnly.Get("pseudo", "x"))
}

func TestValidate(t *testing.T) {
	rec := &TranscriptRecord{
		ID: "T1", GeneID: "G1", Contig: "c1", Start: 0, End: 100, Strand: "+",
		Exons: []ExonBlock{{Start: 0, End: 100}},
	}
	assert.NoError(t, rec.Validate())

	noExons := *rec
	noExons.Exons = nil
	assert.Error(t, noExons.Validate(), "degenerate transcript rejected")

	badSpan := *rec
	badSpan.End = 0
	assert.Error(t, badSpan.Validate())
}
