package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGTF = `contig_1	StringTie	transcript	1001	1800	.	+	.	gene_id "G1"; transcript_id "T1";
contig_1	StringTie	exon	1001	1200	.	+	.	gene_id "G1"; transcript_id "T1";
contig_1	StringTie	exon	1501	1800	.	+	.	gene_id "G1"; transcript_id "T1";
`

const testRepeats = `contig_1	200	900	LTR12C	850	+
`

const testAlignments = `contig_1	1050	1150	read1	255	+
contig_1	1600	1700	read2	255	+
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_SingleSample(t *testing.T) {
	dir := t.TempDir()
	sample := Sample{
		ID:        "s1",
		GTFPath:   writeFile(t, dir, "s1.gtf", testGTF),
		AlignPath: writeFile(t, dir, "s1.bed", testAlignments),
	}
	opts := Options{
		RepeatBED: writeFile(t, dir, "rmsk.bed", testRepeats),
		OutputDir: filepath.Join(dir, "out"),
		MinMapQ:   255,
	}

	outcomes, err := Run([]Sample{sample}, opts)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	o := outcomes[0]
	require.NoError(t, o.Err)
	assert.Equal(t, 1, o.Transcripts)
	assert.Equal(t, 1, o.TEPromoter, "repeat under the clipped promoter window")

	annotation, err := os.ReadFile(o.AnnotationPath)
	require.NoError(t, err)
	assert.Contains(t, string(annotation), "LTR12C")

	expression, err := os.ReadFile(o.ExpressionPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(expression), "\n"), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], "\t")
	assert.Equal(t, "T1", fields[0])
	assert.Equal(t, "2", fields[4], "both exonic reads counted")
	assert.Equal(t, "500", fields[5], "effective length is exonic, not genomic span")

	combined, err := os.ReadFile(o.CombinedPath)
	require.NoError(t, err)
	assert.Contains(t, string(combined), "T1")
}

func TestRun_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	good := Sample{
		ID:        "good",
		GTFPath:   writeFile(t, dir, "good.gtf", testGTF),
		AlignPath: writeFile(t, dir, "good.bed", testAlignments),
	}
	bad := Sample{
		ID:        "bad",
		GTFPath:   filepath.Join(dir, "missing.gtf"),
		AlignPath: writeFile(t, dir, "bad.bed", testAlignments),
	}
	opts := Options{
		RepeatBED: writeFile(t, dir, "rmsk.bed", testRepeats),
		OutputDir: filepath.Join(dir, "out"),
		MinMapQ:   255,
		Workers:   2,
	}

	outcomes, err := Run([]Sample{bad, good}, opts)
	require.NoError(t, err, "sample failure does not abort the batch")
	require.Len(t, outcomes, 2)

	assert.Error(t, outcomes[0].Err)
	assert.Equal(t, "bad", outcomes[0].SampleID)
	assert.NoError(t, outcomes[1].Err, "sibling sample unaffected")
	assert.Equal(t, 1, outcomes[1].Transcripts)
}

func TestOptions_Validate(t *testing.T) {
	assert.Error(t, (&Options{}).Validate(), "repeat BED required")
	assert.Error(t, (&Options{RepeatBED: "x", PromoterWindow: -1}).Validate())
	assert.Error(t, (&Options{RepeatBED: "x", MinMapQ: 300}).Validate())
	assert.NoError(t, (&Options{RepeatBED: "x", MinMapQ: 60}).Validate())
}
