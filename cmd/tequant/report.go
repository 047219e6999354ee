package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tetools/tequant/internal/duckdb"
)

func newReportCmd() *cobra.Command {
	var (
		dbPath   string
		sampleID string
		tsv      bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report TE-promoter transcripts with their expression",
		Long: `Join stored annotation and expression results and print every
transcript with a TE-occupied promoter, ordered by descending TPM.`,
		Example: `  tequant report --db results.duckdb
  tequant report --db results.duckdb --sample patient1 --tsv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(dbPath, sampleID, tsv)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB database with stored results (required)")
	cmd.Flags().StringVar(&sampleID, "sample", "", "restrict to one sample (default all)")
	cmd.Flags().BoolVar(&tsv, "tsv", false, "tab-separated output instead of the aligned table")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runReport(dbPath, sampleID string, tsv bool) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.TEPromoterReport(sampleID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "No TE-promoter transcripts found")
		return nil
	}

	if tsv {
		fmt.Println("sample_id\ttranscript_id\tgene_id\tcontig\tstrand\tte_names\tn_te_overlaps\traw_count\ttpm\tfpkm\ttranscript_fraction")
		for _, r := range rows {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.6g\t%.6g\t%.6g\n",
				r.SampleID, r.TranscriptID, r.GeneID, r.Contig, r.Strand,
				r.TENames, r.NTEOverlaps, r.RawCount, r.TPM, r.FPKM, r.TranscriptFraction)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SAMPLE\tTRANSCRIPT\tGENE\tCONTIG\tTE NAMES\tCOUNT\tTPM\tFRACTION")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\t%.3f\n",
			r.SampleID, r.TranscriptID, r.GeneID, r.Contig,
			r.TENames, r.RawCount, r.TPM, r.TranscriptFraction)
	}
	return w.Flush()
}
