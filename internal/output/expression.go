package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/tetools/tequant/internal/quant"
)

// ExpressionWriter writes transcript expression rows in tab-delimited
// format, joinable with annotation output on transcript_id.
type ExpressionWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewExpressionWriter creates a tab-delimited expression writer.
func NewExpressionWriter(w io.Writer) *ExpressionWriter {
	return &ExpressionWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"transcript_id",
			"gene_id",
			"contig",
			"strand",
			"raw_count",
			"effective_length",
			"rpk",
			"tpm",
			"fpkm",
			"transcript_fraction",
		},
	}
}

// WriteHeader writes the header line.
func (ew *ExpressionWriter) WriteHeader() error {
	_, err := ew.w.WriteString(strings.Join(ew.columns, "\t") + "\n")
	return err
}

// Write writes a single expression row.
func (ew *ExpressionWriter) Write(r *quant.Result) error {
	values := []string{
		r.TranscriptID,
		orDash(r.GeneID),
		r.Contig,
		r.Strand,
		strconv.FormatInt(r.RawCount, 10),
		strconv.FormatInt(r.EffectiveLength, 10),
		formatFloat(r.RPK),
		formatFloat(r.TPM),
		formatFloat(r.FPKM),
		formatFloat(r.TranscriptFraction),
	}
	_, err := ew.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAll writes a header and every result.
func (ew *ExpressionWriter) WriteAll(results []*quant.Result) error {
	if err := ew.WriteHeader(); err != nil {
		return err
	}
	for _, r := range results {
		if err := ew.Write(r); err != nil {
			return err
		}
	}
	return ew.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (ew *ExpressionWriter) Flush() error {
	return ew.w.Flush()
}

// GeneWriter writes gene-level expression rows.
type GeneWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewGeneWriter creates a tab-delimited gene expression writer.
func NewGeneWriter(w io.Writer) *GeneWriter {
	return &GeneWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"gene_id",
			"n_transcripts",
			"raw_count",
			"tpm",
			"fpkm",
			"max_length",
		},
	}
}

// WriteAll writes a header and every gene row.
func (gw *GeneWriter) WriteAll(genes []*quant.GeneResult) error {
	if _, err := gw.w.WriteString(strings.Join(gw.columns, "\t") + "\n"); err != nil {
		return err
	}
	for _, g := range genes {
		values := []string{
			g.GeneID,
			strconv.Itoa(g.Transcripts),
			strconv.FormatInt(g.RawCount, 10),
			formatFloat(g.TPM),
			formatFloat(g.FPKM),
			strconv.FormatInt(g.MaxLength, 10),
		}
		if _, err := gw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return gw.w.Flush()
}
