// Package repeats loads repeat-element annotations (RepeatMasker BED
// output) into a genome index.
package repeats

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tetools/tequant/internal/genome"
)

// Loader reads BED-formatted repeat annotations. Rows with invalid
// coordinates are skipped and counted, not fatal.
type Loader struct {
	path    string
	logger  *zap.Logger
	skipped int
}

// NewLoader creates a loader for a BED file (plain or gzipped).
func NewLoader(path string) *Loader {
	return &Loader{path: path, logger: zap.NewNop()}
}

// SetLogger sets the logger used for skip warnings.
func (l *Loader) SetLogger(log *zap.Logger) {
	l.logger = log
}

// Skipped returns the number of rows dropped during the last Load.
func (l *Loader) Skipped() int {
	return l.skipped
}

// Load parses the BED file into a fresh index and builds it.
// A missing or unreadable file is a fatal resource error.
func (l *Loader) Load() (*genome.Index, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open repeat BED file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	idx := genome.NewIndex()
	l.skipped = 0

	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") {
			continue
		}

		iv, err := parseBEDLine(line)
		if err != nil {
			l.skipped++
			l.logger.Warn("skipping malformed BED row",
				zap.Int("line", lineNum),
				zap.Error(err))
			continue
		}
		idx.Add(iv)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan repeat BED: %w", err)
	}

	idx.Build()
	return idx, nil
}

// parseBEDLine parses one BED row. Columns beyond chrom/start/end are
// optional: name defaults to "", score to 0, strand to ".".
func parseBEDLine(line string) (genome.Interval, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return genome.Interval{}, fmt.Errorf("expected at least 3 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return genome.Interval{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return genome.Interval{}, fmt.Errorf("parse end: %w", err)
	}

	name := ""
	if len(fields) > 3 {
		name = fields[3]
	}
	strand := genome.StrandNone
	if len(fields) > 5 && (fields[5] == "+" || fields[5] == "-") {
		strand = fields[5]
	}

	iv, err := genome.NewInterval(fields[0], start, end, strand, name)
	if err != nil {
		return genome.Interval{}, err
	}
	if len(fields) > 4 {
		if score, err := strconv.ParseFloat(fields[4], 64); err == nil {
			iv.Score = score
		}
	}
	return iv, nil
}
