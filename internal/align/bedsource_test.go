package align

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAlignments = `contig_1	100	200	read1	60	+
contig_1	150	250	read2	60	-
contig_1	300	400	read3	10	+
contig_2	0	100	read4	255	+
contig_1	bad	200	broken	60	+
`

func writeAlignments(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aln.bed")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBEDSource_Fetch(t *testing.T) {
	s, err := NewBEDSource(writeAlignments(t, sampleAlignments), nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 1, s.Skipped())

	hits, present, err := s.Fetch("contig_1", 120, 180)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Len(t, hits, 2)

	// Zero reads on a known contig is distinct from an unknown contig.
	hits, present, err = s.Fetch("contig_1", 500, 600)
	require.NoError(t, err)
	assert.True(t, present, "contig present, zero reads")
	assert.Empty(t, hits)

	hits, present, err = s.Fetch("contig_99", 0, 100)
	require.NoError(t, err)
	assert.False(t, present, "contig absent from index")
	assert.Empty(t, hits)
}

func TestBEDSource_TotalMapped(t *testing.T) {
	s, err := NewBEDSource(writeAlignments(t, sampleAlignments), nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int64(4), s.TotalMapped(0))
	assert.Equal(t, int64(3), s.TotalMapped(60), "MAPQ 10 read excluded")
	assert.Equal(t, int64(1), s.TotalMapped(255))
}

func TestBEDSource_Closed(t *testing.T) {
	s, err := NewBEDSource(writeAlignments(t, sampleAlignments), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Fetch("contig_1", 0, 100)
	assert.Error(t, err)
}

func TestBEDSource_MissingFile(t *testing.T) {
	_, err := NewBEDSource(filepath.Join(t.TempDir(), "absent.bed"), nil)
	assert.Error(t, err)
}
