package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tetools/tequant/internal/align"
	"github.com/tetools/tequant/internal/duckdb"
	"github.com/tetools/tequant/internal/gtf"
	"github.com/tetools/tequant/internal/quant"
)

func newQuantifyCmd(verbose *bool) *cobra.Command {
	var (
		minMapQ  int
		aligner  string
		stranded bool
		workers  int
		outPath  string
		geneOut  string
		dbPath   string
		sampleID string
	)

	cmd := &cobra.Command{
		Use:   "quantify <transcripts.gtf> <alignments.bed>",
		Short: "Quantify transcript expression from alignments",
		Long: `Count uniquely mapped reads over the exonic regions of each
transcript and compute TPM, FPKM, and per-gene transcript fractions.
Alignments are read from a bamtobed-style BED file.`,
		Example: `  tequant quantify transcripts.gtf alignments.bed -o expression.tsv
  tequant quantify transcripts.gtf alignments.bed --aligner hisat2
  tequant quantify transcripts.gtf alignments.bed --gene-output genes.tsv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if aligner != "" && cmd.Flags().Changed("min-mapq") {
				return fmt.Errorf("--aligner and --min-mapq are mutually exclusive")
			}
			if aligner != "" {
				preset, err := quant.MapQPreset(aligner)
				if err != nil {
					return err
				}
				minMapQ = preset
			} else if !cmd.Flags().Changed("min-mapq") {
				minMapQ = viper.GetInt("min_mapq")
			}
			if !cmd.Flags().Changed("stranded") {
				stranded = viper.GetBool("stranded")
			}
			return runQuantify(args[0], args[1], outPath, geneOut, dbPath, sampleID,
				minMapQ, workers, stranded, *verbose)
		},
	}

	cmd.Flags().IntVar(&minMapQ, "min-mapq", quant.MapQUniqueSTAR, "minimum mapping quality for a read to count")
	cmd.Flags().StringVar(&aligner, "aligner", "", "mapping-quality preset: star or hisat2")
	cmd.Flags().BoolVar(&stranded, "stranded", false, "count only strand-matching reads")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent transcripts (0 = all CPUs)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output TSV path (default stdout)")
	cmd.Flags().StringVar(&geneOut, "gene-output", "", "also write gene-level aggregates to this path")
	cmd.Flags().StringVar(&dbPath, "db", "", "also write results to this DuckDB database")
	cmd.Flags().StringVar(&sampleID, "sample", "", "sample identifier for database rows")

	return cmd
}

func runQuantify(gtfPath, alignPath, outPath, geneOut, dbPath, sampleID string,
	minMapQ, workers int, stranded, verbose bool) error {

	if dbPath != "" && sampleID == "" {
		return fmt.Errorf("--sample is required when writing to a database")
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	parser, err := gtf.NewParser(gtfPath)
	if err != nil {
		return err
	}
	defer parser.Close()
	parser.SetLogger(logger)

	transcripts, err := parser.ReadAll()
	if err != nil {
		return err
	}

	src, err := align.NewBEDSource(alignPath, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	q := quant.NewQuantifier(src)
	q.SetLogger(logger)
	q.SetStranded(stranded)
	q.SetWorkers(workers)
	if err := q.SetMinMapQ(minMapQ); err != nil {
		return err
	}

	results, err := q.QuantifyAll(transcripts)
	if err != nil {
		return err
	}

	f, closeOut, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := writeExpressionTSV(f, results); err != nil {
		return err
	}

	if geneOut != "" {
		gf, err := os.Create(geneOut)
		if err != nil {
			return fmt.Errorf("create gene output: %w", err)
		}
		defer gf.Close()
		if err := writeGeneTSV(gf, quant.GeneExpression(results)); err != nil {
			return err
		}
	}

	if dbPath != "" {
		store, err := duckdb.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.WriteExpressionResults(sampleID, results); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Quantified %d transcripts (total mapped reads at MAPQ>=%d: %d)\n",
		len(results), minMapQ, src.TotalMapped(minMapQ))
	return nil
}
