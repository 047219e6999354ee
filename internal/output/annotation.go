// Package output provides tab-delimited report writers.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tetools/tequant/internal/annotate"
)

// AnnotationWriter writes TE-promoter annotation rows in tab-delimited
// format. Implements annotate.ResultWriter.
type AnnotationWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewAnnotationWriter creates a tab-delimited annotation writer.
func NewAnnotationWriter(w io.Writer) *AnnotationWriter {
	return &AnnotationWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"transcript_id",
			"gene_id",
			"contig",
			"start",
			"end",
			"strand",
			"has_te_promoter",
			"n_te_overlaps",
			"te_names",
			"promoter_window",
			"promoter_conflicts_gene",
			"n_body_overlaps",
		},
	}
}

// WriteHeader writes the header line.
func (aw *AnnotationWriter) WriteHeader() error {
	_, err := aw.w.WriteString(strings.Join(aw.columns, "\t") + "\n")
	return err
}

// Write writes a single annotation row.
func (aw *AnnotationWriter) Write(r *annotate.Result) error {
	values := []string{
		r.TranscriptID,
		orDash(r.GeneID),
		r.Contig,
		strconv.FormatInt(r.Start, 10),
		strconv.FormatInt(r.End, 10),
		r.Strand,
		boolString(r.HasTEPromoter),
		strconv.Itoa(r.NTEOverlaps),
		teNames(r.TENames),
		strconv.FormatInt(r.PromoterWindow, 10),
		boolString(r.PromoterConflictsGene),
		strconv.Itoa(r.NBodyOverlaps),
	}
	_, err := aw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (aw *AnnotationWriter) Flush() error {
	return aw.w.Flush()
}

func teNames(names []string) string {
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ",")
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.6g", f)
}
