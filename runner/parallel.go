package runner

import (
	"context"
	"sort"
	"sync"
)

// runWorkResult carries one iteration's outcome back from a worker.
type runWorkResult struct {
	index   int
	outcome *RunOutcome
	err     error
}

// runParallel executes the iterations across a bounded worker pool.
// Each worker owns its outcome until it is sent over the results
// channel; the merge step in the aggregator only begins after the
// join below, so no shared mutable state exists during execution.
func (a *Aggregator) runParallel(ctx context.Context) ([]*RunOutcome, []error) {
	work := make(chan int, a.runs)
	results := make(chan runWorkResult, a.runs)

	var wg sync.WaitGroup
	for w := 0; w < a.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					results <- runWorkResult{index: idx, err: ctx.Err()}
					continue
				}
				a.log.Debug("Worker picked up iteration", "worker", worker, "iteration", idx+1)
				outcome, err := a.executor.ExecuteRun(ctx, idx)
				results <- runWorkResult{index: idx, outcome: outcome, err: err}
			}
		}(w)
	}

	for i := 0; i < a.runs; i++ {
		work <- i
	}
	close(work)

	// Join on all workers before aggregation proceeds.
	wg.Wait()
	close(results)

	collected := make([]runWorkResult, 0, a.runs)
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	var outcomes []*RunOutcome
	var errs []error
	for _, r := range collected {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		outcomes = append(outcomes, r.outcome)
	}
	return outcomes, errs
}
