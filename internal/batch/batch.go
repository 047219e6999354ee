// Package batch runs the annotate+quantify pipeline over independent
// samples, one worker per sample.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/tetools/tequant/internal/align"
	"github.com/tetools/tequant/internal/annotate"
	"github.com/tetools/tequant/internal/gtf"
	"github.com/tetools/tequant/internal/output"
	"github.com/tetools/tequant/internal/quant"
	"github.com/tetools/tequant/internal/repeats"
)

// Sample identifies one input pair: a transcript assembly and its
// alignments.
type Sample struct {
	ID        string
	GTFPath   string
	AlignPath string
}

// Options configures a batch run. RepeatBED is required; GeneBED enables
// neighboring-gene conflict detection.
type Options struct {
	RepeatBED      string
	GeneBED        string
	OutputDir      string
	PromoterWindow int64
	Stranded       bool
	MinMapQ        int
	Workers        int // concurrent samples; 0 means NumCPU
	Logger         *zap.Logger
}

// Validate rejects contradictory or out-of-range parameters before any
// processing begins.
func (o *Options) Validate() error {
	if o.RepeatBED == "" {
		return fmt.Errorf("repeat BED path is required")
	}
	if o.PromoterWindow < 0 {
		return fmt.Errorf("promoter window must be non-negative, got %d", o.PromoterWindow)
	}
	if o.MinMapQ < 0 || o.MinMapQ > 255 {
		return fmt.Errorf("mapping-quality threshold must be in [0, 255], got %d", o.MinMapQ)
	}
	return nil
}

// Outcome reports the result of one sample's pipeline run. A failed
// sample carries its error; siblings are unaffected. Annotations and
// Expression hold the in-memory results so callers can persist them
// without re-reading the TSVs.
type Outcome struct {
	SampleID       string
	Err            error
	AnnotationPath string
	ExpressionPath string
	CombinedPath   string
	Transcripts    int
	TEPromoter     int
	Annotations    []*annotate.Result
	Expression     []*quant.Result
}

// Run processes all samples with a bounded worker pool. Each worker owns
// a private repeat index and alignment handle; nothing is shared across
// samples. Outcomes are returned in input order.
func Run(samples []Sample, opts Options) ([]Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(samples) {
		workers = len(samples)
	}

	outcomes := make([]Outcome, len(samples))
	indices := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range indices {
				outcomes[i] = runSample(samples[i], opts, logger)
				if outcomes[i].Err != nil {
					logger.Warn("sample failed",
						zap.String("sample_id", samples[i].ID),
						zap.Error(outcomes[i].Err))
				}
			}
		}()
	}
	for i := range samples {
		indices <- i
	}
	close(indices)
	wg.Wait()

	return outcomes, nil
}

// runSample executes the full pipeline for one sample. All errors are
// captured in the outcome, never propagated to sibling samples.
func runSample(s Sample, opts Options, logger *zap.Logger) Outcome {
	out := Outcome{SampleID: s.ID}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		out.Err = fmt.Errorf("create output directory: %w", err)
		return out
	}

	// Private repeat index per sample: no cross-sample sharing.
	repeatIdx, err := repeats.NewLoader(opts.RepeatBED).Load()
	if err != nil {
		out.Err = fmt.Errorf("load repeats: %w", err)
		return out
	}

	ann := annotate.NewAnnotator(repeatIdx)
	ann.SetStranded(opts.Stranded)
	ann.SetLogger(logger)
	if opts.PromoterWindow > 0 {
		if err := ann.SetWindow(opts.PromoterWindow); err != nil {
			out.Err = err
			return out
		}
	}
	if opts.GeneBED != "" {
		geneIdx, err := repeats.NewLoader(opts.GeneBED).Load()
		if err != nil {
			out.Err = fmt.Errorf("load gene boundaries: %w", err)
			return out
		}
		ann.SetGeneIndex(geneIdx)
	}

	parser, err := gtf.NewParser(s.GTFPath)
	if err != nil {
		out.Err = err
		return out
	}
	defer parser.Close()
	parser.SetLogger(logger)

	transcripts, err := parser.ReadAll()
	if err != nil {
		out.Err = err
		return out
	}
	out.Transcripts = len(transcripts)

	annotations := make([]*annotate.Result, 0, len(transcripts))
	for _, t := range transcripts {
		r := ann.Annotate(t)
		if r.HasTEPromoter {
			out.TEPromoter++
		}
		annotations = append(annotations, r)
	}

	src, err := align.NewBEDSource(s.AlignPath, logger)
	if err != nil {
		out.Err = err
		return out
	}
	defer src.Close()

	q := quant.NewQuantifier(src)
	q.SetLogger(logger)
	q.SetStranded(opts.Stranded)
	if err := q.SetMinMapQ(opts.MinMapQ); err != nil {
		out.Err = err
		return out
	}
	expression, err := q.QuantifyAll(transcripts)
	if err != nil {
		out.Err = err
		return out
	}
	out.Annotations = annotations
	out.Expression = expression

	out.AnnotationPath = filepath.Join(opts.OutputDir, s.ID+"_annotation.tsv")
	out.ExpressionPath = filepath.Join(opts.OutputDir, s.ID+"_expression.tsv")
	out.CombinedPath = filepath.Join(opts.OutputDir, s.ID+"_te_promoter.tsv")

	if err := writeAnnotations(out.AnnotationPath, annotations); err != nil {
		out.Err = err
		return out
	}
	if err := writeExpression(out.ExpressionPath, expression); err != nil {
		out.Err = err
		return out
	}
	if err := writeCombined(out.CombinedPath, annotations, expression); err != nil {
		out.Err = err
		return out
	}
	return out
}

func writeAnnotations(path string, results []*annotate.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create annotation output: %w", err)
	}
	defer f.Close()

	w := output.NewAnnotationWriter(f)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeExpression(path string, results []*quant.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create expression output: %w", err)
	}
	defer f.Close()
	return output.NewExpressionWriter(f).WriteAll(results)
}

func writeCombined(path string, annotations []*annotate.Result, expression []*quant.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create combined output: %w", err)
	}
	defer f.Close()
	return output.NewCombinedWriter(f).WriteAll(annotations, expression)
}
