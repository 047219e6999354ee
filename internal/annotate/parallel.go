package annotate

import (
	"runtime"
	"sync"

	"github.com/tetools/tequant/internal/gtf"
)

// WorkItem holds a parsed transcript ready for annotation.
type WorkItem struct {
	Seq        int
	Transcript *gtf.TranscriptRecord
}

// WorkResult holds the annotation output for a single transcript.
type WorkResult struct {
	Seq    int
	Result *Result
}

func workChanDepth() int {
	return 2 * runtime.NumCPU()
}

// ParallelAnnotate annotates work items using a pool of workers.
// Results arrive on the returned channel in completion order; use
// OrderedCollect to consume them in sequence order. The repeat and gene
// indexes must be built before the first worker starts.
// If workers is 0, runtime.NumCPU() is used.
func (a *Annotator) ParallelAnnotate(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				results <- WorkResult{
					Seq:    item.Seq,
					Result: a.Annotate(item.Transcript),
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order,
// buffering out-of-order arrivals until the next expected sequence
// number is available. Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
