package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tetools/tequant/internal/annotate"
	"github.com/tetools/tequant/internal/batch"
	"github.com/tetools/tequant/internal/duckdb"
	"github.com/tetools/tequant/internal/quant"
)

func newBatchCmd(verbose *bool) *cobra.Command {
	var (
		samplesPath string
		repeatBED   string
		geneBED     string
		outputDir   string
		window      int64
		stranded    bool
		minMapQ     int
		aligner     string
		workers     int
		dbPath      string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the annotate+quantify pipeline over many samples",
		Long: `Process a cohort of samples in parallel. The sample sheet is a TSV
with three columns per line: sample_id, transcripts GTF path, and
alignments BED path. Lines starting with # are ignored.

A failed sample is reported and skipped; its siblings are unaffected.`,
		Example: `  tequant batch --samples cohort.tsv --repeats rmsk.bed -d results/
  tequant batch --samples cohort.tsv --repeats rmsk.bed -d results/ --db cohort.duckdb`,
		Args: cobra.NoArgs,
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
			if !cmd.Flags().Changed("window") {
				window = viper.GetInt64("promoter_window")
			}
			if !cmd.Flags().Changed("stranded") {
				stranded = viper.GetBool("stranded")
			}
			return runBatch(samplesPath, repeatBED, geneBED, outputDir, dbPath,
				window, stranded, minMapQ, workers, *verbose)
		},
	}

	cmd.Flags().StringVar(&samplesPath, "samples", "", "sample sheet TSV (required)")
	cmd.Flags().StringVar(&repeatBED, "repeats", "", "repeat-element BED file (required)")
	cmd.Flags().StringVar(&geneBED, "genes", "", "gene-boundary BED file for promoter conflict detection")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "tequant_out", "directory for per-sample outputs")
	cmd.Flags().Int64Var(&window, "window", annotate.DefaultPromoterWindow, "upstream promoter window in bp")
	cmd.Flags().BoolVar(&stranded, "stranded", false, "strand-aware annotation and counting")
	cmd.Flags().IntVar(&minMapQ, "min-mapq", quant.MapQUniqueSTAR, "minimum mapping quality for a read to count")
	cmd.Flags().StringVar(&aligner, "aligner", "", "mapping-quality preset: star or hisat2")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent samples (0 = all CPUs)")
	cmd.Flags().StringVar(&dbPath, "db", "", "also write per-sample results to this DuckDB database")
	cmd.MarkFlagRequired("samples")
	cmd.MarkFlagRequired("repeats")

	return cmd
}

func runBatch(samplesPath, repeatBED, geneBED, outputDir, dbPath string,
	window int64, stranded bool, minMapQ, workers int, verbose bool) error {

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	samples, err := readSampleSheet(samplesPath)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("sample sheet %s contains no samples", samplesPath)
	}

	opts := batch.Options{
		RepeatBED:      repeatBED,
		GeneBED:        geneBED,
		OutputDir:      outputDir,
		PromoterWindow: window,
		Stranded:       stranded,
		MinMapQ:        minMapQ,
		Workers:        workers,
		Logger:         logger,
	}

	fmt.Fprintf(os.Stderr, "Processing %d samples...\n", len(samples))
	outcomes, err := batch.Run(samples, opts)
	if err != nil {
		return err
	}

	var store *duckdb.Store
	if dbPath != "" {
		store, err = duckdb.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  %s: FAILED: %v\n", o.SampleID, o.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s: %d transcripts, %d with a TE promoter\n",
			o.SampleID, o.Transcripts, o.TEPromoter)
		if store != nil {
			if err := storeOutcome(store, o); err != nil {
				return fmt.Errorf("store sample %s: %w", o.SampleID, err)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "Done: %d succeeded, %d failed\n", len(outcomes)-failed, failed)
	if failed == len(outcomes) {
		return fmt.Errorf("all %d samples failed", failed)
	}
	return nil
}

// readSampleSheet parses a three-column TSV: sample_id, GTF path,
// alignment BED path.
func readSampleSheet(path string) ([]batch.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample sheet: %w", err)
	}
	defer f.Close()

	var samples []batch.Sample
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("sample sheet line %d: expected 3 tab-separated columns, got %d", lineNo, len(fields))
		}
		id := strings.TrimSpace(fields[0])
		if seen[id] {
			return nil, fmt.Errorf("sample sheet line %d: duplicate sample id %q", lineNo, id)
		}
		seen[id] = true
		samples = append(samples, batch.Sample{
			ID:        id,
			GTFPath:   strings.TrimSpace(fields[1]),
			AlignPath: strings.TrimSpace(fields[2]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sample sheet: %w", err)
	}
	return samples, nil
}

func storeOutcome(store *duckdb.Store, o batch.Outcome) error {
	if err := store.WriteAnnotationResults(o.SampleID, o.Annotations); err != nil {
		return err
	}
	return store.WriteExpressionResults(o.SampleID, o.Expression)
}
