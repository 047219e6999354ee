package gtf

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

// Parser streams TranscriptRecord values from a GTF file. Exon features
// are folded into the preceding transcript feature, so Next returns fully
// assembled records in file order.
//
// Malformed lines are skipped and counted; they never abort the stream.
type Parser struct {
	path    string
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	logger  *zap.Logger

	pending *TranscriptRecord
	lineNum int
	skipped int
	done    bool
}

// NewParser opens a GTF file (plain or gzipped) for streaming.
func NewParser(path string) (*Parser, error) {
	p := &Parser{path: path, logger: zap.NewNop()}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetLogger sets the logger used for skip warnings.
func (p *Parser) SetLogger(l *zap.Logger) {
	p.logger = l
}

func (p *Parser) open() error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	p.file = f

	var reader io.Reader = f
	if strings.HasSuffix(p.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("open gzip reader: %w", err)
		}
		p.gz = gz
		reader = gz
	}

	p.scanner = bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	p.scanner.Buffer(buf, 1024*1024)
	p.pending = nil
	p.lineNum = 0
	p.done = false
	return nil
}

// Reset reopens the underlying file so the stream can be consumed again.
func (p *Parser) Reset() error {
	p.closeFiles()
	return p.open()
}

// Close releases the underlying file handles.
func (p *Parser) Close() error {
	return p.closeFiles()
}

func (p *Parser) closeFiles() error {
	var err error
	if p.gz != nil {
		err = p.gz.Close()
		p.gz = nil
	}
	if p.file != nil {
		if cerr := p.file.Close(); err == nil {
			err = cerr
		}
		p.file = nil
	}
	return err
}

// Skipped returns the number of malformed lines and records dropped so far.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Next returns the next assembled transcript record, or (nil, nil) at end
// of input. I/O failures are returned as errors; malformed records are
// skipped with a warning.
func (p *Parser) Next() (*TranscriptRecord, error) {
	if p.done {
		return nil, nil
	}

	for p.scanner.Scan() {
		p.lineNum++
		line := p.scanner.Text()

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			p.skipped++
			p.logger.Warn("skipping malformed GTF line",
				zap.Int("line", p.lineNum),
				zap.Error(err))
			continue
		}

		switch feat.featureType {
		case "transcript":
			ready := p.finishPending()
			p.pending = &TranscriptRecord{
				ID:     feat.attrs.Get("transcript_id", ""),
				GeneID: feat.attrs.Get("gene_id", ""),
				Contig: feat.contig,
				Start:  feat.start,
				End:    feat.end,
				Strand: feat.strand,
				Attrs:  feat.attrs,
				Line:   p.lineNum,
			}
			if ready != nil {
				return ready, nil
			}

		case "exon":
			id := feat.attrs.Get("transcript_id", "")
			if p.pending == nil || id != p.pending.ID {
				p.skipped++
				p.logger.Warn("orphan exon feature",
					zap.Int("line", p.lineNum),
					zap.String("transcript_id", id))
				continue
			}
			p.pending.Exons = append(p.pending.Exons, ExonBlock{Start: feat.start, End: feat.end})
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	p.done = true
	if ready := p.finishPending(); ready != nil {
		return ready, nil
	}
	return nil, nil
}

// finishPending validates the record under assembly and returns it, or
// drops it with a warning when invalid.
func (p *Parser) finishPending() *TranscriptRecord {
	t := p.pending
	p.pending = nil
	if t == nil {
		return nil
	}

	sort.Slice(t.Exons, func(i, j int) bool {
		return t.Exons[i].Start < t.Exons[j].Start
	})

	if err := t.Validate(); err != nil {
		p.skipped++
		p.logger.Warn("skipping malformed transcript",
			zap.Int("line", t.Line),
			zap.String("transcript_id", t.ID),
			zap.Error(err))
		return nil
	}
	return t
}

// ReadAll drains the stream into a slice.
func (p *Parser) ReadAll() ([]*TranscriptRecord, error) {
	var out []*TranscriptRecord
	for {
		t, err := p.Next()
		if err != nil {
			return out, err
		}
		if t == nil {
			return out, nil
		}
		out = append(out, t)
	}
}

type feature struct {
	contig      string
	featureType string
	start       int64 // converted to 0-based
	end         int64
	strand      string
	attrs       Attributes
}

// parseLine parses one GTF line. The attribute column is optional; files
// missing trailing columns still yield a usable feature.
func parseLine(line string) (*feature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 7 {
		return nil, fmt.Errorf("expected at least 7 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}
	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid coordinates %d-%d", start, end)
	}

	attrs := Attributes{}
	if len(fields) >= 9 {
		attrs = ParseAttributes(fields[8])
	}

	strand := fields[6]
	if strand != "+" && strand != "-" {
		strand = "."
	}

	return &feature{
		contig:      fields[0],
		featureType: fields[2],
		start:       start - 1, // GTF is 1-based inclusive
		end:         end,
		strand:      strand,
		attrs:       attrs,
	}, nil
}

// ParseAttributes parses a GTF attribute column into a key/value map.
// Both `key "value";` and bare `key value` forms are accepted, with any
// number of pairs in any order. Keys without values map to "".
func ParseAttributes(attrStr string) Attributes {
	attrs := make(Attributes)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.IndexAny(part, " \t")
		if idx == -1 {
			attrs[part] = ""
			continue
		}

		key := part[:idx]
		value := strings.TrimSpace(part[idx+1:])
		value = strings.Trim(value, `"'`)
		attrs[key] = value
	}

	return attrs
}
