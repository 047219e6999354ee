package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/tetools/tequant/internal/annotate"
	"github.com/tetools/tequant/internal/quant"
)

// CombinedWriter writes the joined TE-promoter report: annotation and
// expression fields for transcripts with a TE in the promoter, joined on
// transcript_id.
type CombinedWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewCombinedWriter creates a tab-delimited joined-report writer.
func NewCombinedWriter(w io.Writer) *CombinedWriter {
	return &CombinedWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"transcript_id",
			"gene_id",
			"contig",
			"start",
			"end",
			"strand",
			"te_names",
			"n_te_overlaps",
			"promoter_conflicts_gene",
			"raw_count",
			"effective_length",
			"tpm",
			"fpkm",
			"transcript_fraction",
		},
	}
}

// WriteAll joins annotations with expression results on transcript_id
// and writes one row per TE-promoter transcript, in annotation order.
// Transcripts without a matching expression row get zero-valued
// expression fields.
func (cw *CombinedWriter) WriteAll(annotations []*annotate.Result, expression []*quant.Result) error {
	if _, err := cw.w.WriteString(strings.Join(cw.columns, "\t") + "\n"); err != nil {
		return err
	}

	byID := make(map[string]*quant.Result, len(expression))
	for _, r := range expression {
		byID[r.TranscriptID] = r
	}

	for _, a := range annotations {
		if !a.HasTEPromoter {
			continue
		}
		e, ok := byID[a.TranscriptID]
		if !ok {
			e = &quant.Result{TranscriptID: a.TranscriptID}
		}
		values := []string{
			a.TranscriptID,
			orDash(a.GeneID),
			a.Contig,
			strconv.FormatInt(a.Start, 10),
			strconv.FormatInt(a.End, 10),
			a.Strand,
			teNames(a.TENames),
			strconv.Itoa(a.NTEOverlaps),
			boolString(a.PromoterConflictsGene),
			strconv.FormatInt(e.RawCount, 10),
			strconv.FormatInt(e.EffectiveLength, 10),
			formatFloat(e.TPM),
			formatFloat(e.FPKM),
			formatFloat(e.TranscriptFraction),
		}
		if _, err := cw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return cw.w.Flush()
}
