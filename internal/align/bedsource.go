package align

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// contigAlignments answers range queries for one contig: alignments
// sorted by start with a running max-end array, same layout as the
// genome index.
type contigAlignments struct {
	alignments []Alignment
	maxEnd     []int64 // maxEnd[i] = max(End) for alignments[:i+1]
}

func (ca *contigAlignments) build() {
	sort.Slice(ca.alignments, func(i, j int) bool {
		return ca.alignments[i].Start < ca.alignments[j].Start
	})
	ca.maxEnd = make([]int64, len(ca.alignments))
	for i, a := range ca.alignments {
		ca.maxEnd[i] = a.End
		if i > 0 && ca.maxEnd[i-1] > ca.maxEnd[i] {
			ca.maxEnd[i] = ca.maxEnd[i-1]
		}
	}
}

func (ca *contigAlignments) fetch(start, end int64) []Alignment {
	if len(ca.alignments) == 0 {
		return nil
	}
	hi := sort.Search(len(ca.alignments), func(i int) bool {
		return ca.alignments[i].Start >= end
	})
	var out []Alignment
	for i := hi - 1; i >= 0; i-- {
		if ca.maxEnd[i] <= start {
			break
		}
		if ca.alignments[i].End > start {
			out = append(out, ca.alignments[i])
		}
	}
	return out
}

// BEDSource is a Source backed by a bamtobed-style BED file
// (chrom, start, end, read name, MAPQ, strand). The file is loaded once
// into per-contig structures; queries are indexed lookups after that.
type BEDSource struct {
	contigs map[string]*contigAlignments
	skipped int
	closed  bool
}

// NewBEDSource loads alignments from a BED file (plain or gzipped).
// A missing or unreadable file is a fatal resource error.
func NewBEDSource(path string, logger *zap.Logger) (*BEDSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alignment BED file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	s := &BEDSource{contigs: make(map[string]*contigAlignments)}

	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	var nextID int64
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			s.skipped++
			logger.Warn("skipping malformed alignment row",
				zap.Int("line", lineNum),
				zap.Int("fields", len(fields)))
			continue
		}

		start, err1 := strconv.ParseInt(fields[1], 10, 64)
		end, err2 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil || err2 != nil || start < 0 || end <= start {
			s.skipped++
			logger.Warn("skipping malformed alignment row", zap.Int("line", lineNum))
			continue
		}

		mapq := 0
		if len(fields) > 4 {
			if q, err := strconv.Atoi(fields[4]); err == nil {
				mapq = q
			}
		}
		strand := "."
		if len(fields) > 5 && (fields[5] == "+" || fields[5] == "-") {
			strand = fields[5]
		}

		ca, ok := s.contigs[fields[0]]
		if !ok {
			ca = &contigAlignments{}
			s.contigs[fields[0]] = ca
		}
		ca.alignments = append(ca.alignments, Alignment{
			ID: nextID, Start: start, End: end, MapQ: mapq, Strand: strand,
		})
		nextID++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan alignment BED: %w", err)
	}

	for _, ca := range s.contigs {
		ca.build()
	}
	return s, nil
}

// Fetch returns alignments overlapping [start, end) on contig.
func (s *BEDSource) Fetch(contig string, start, end int64) ([]Alignment, bool, error) {
	if s.closed {
		return nil, false, fmt.Errorf("alignment source is closed")
	}
	ca, ok := s.contigs[contig]
	if !ok {
		return nil, false, nil
	}
	return ca.fetch(start, end), true, nil
}

// TotalMapped returns the number of loaded alignments at or above the
// given mapping quality.
func (s *BEDSource) TotalMapped(minMapQ int) int64 {
	var n int64
	for _, ca := range s.contigs {
		for _, a := range ca.alignments {
			if a.MapQ >= minMapQ {
				n++
			}
		}
	}
	return n
}

// Skipped returns the number of rows dropped during loading.
func (s *BEDSource) Skipped() int {
	return s.skipped
}

// Close releases the source. Fetch fails after Close.
func (s *BEDSource) Close() error {
	s.closed = true
	s.contigs = nil
	return nil
}
