// Package runner expands the requested work list into individual tasks and
// drives them to completion with bounded concurrency, stopping admission when
// the budget is exhausted or the run is cancelled. Every work item produces
// exactly one result, including items that never start.
package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/hexebench/hexebench/internal/budget"
	"github.com/hexebench/hexebench/internal/retry"
)

// WorkItem is one (model, run-index) unit of requested benchmark work.
type WorkItem struct {
	Model string
	Run   int
}

// Expand produces one WorkItem per (model, run) pair. Run indexes are
// 1-based.
func Expand(models []string, iterations int) []WorkItem {
	var items []WorkItem
	for _, m := range models {
		for run := 1; run <= iterations; run++ {
			items = append(items, WorkItem{Model: m, Run: run})
		}
	}
	return items
}

// Outcome is the terminal result of one work item.
type Outcome struct {
	Kind     retry.Kind // empty on success
	Attempts int
	Err      error
}

// Succeeded reports whether the item completed without a classified failure.
func (o Outcome) Succeeded() bool { return o.Kind == "" }

// TaskResult pairs a work item with its outcome. Terminal: never revised
// after delivery.
type TaskResult struct {
	Item    WorkItem
	Outcome Outcome
}

// TaskFunc executes one work item end to end and returns its outcome.
type TaskFunc func(ctx context.Context, item WorkItem) Outcome

// TerminalState classifies how a run ended.
type TerminalState string

const (
	StateCompleted      TerminalState = "completed"
	StateBudgetExceeded TerminalState = "budget_exceeded"
	StateAborted        TerminalState = "aborted"
)

// Summary reports the aggregate result of a run. FailuresByKind plus
// Succeeded always reconciles with Total.
type Summary struct {
	Total          int
	Succeeded      int
	FailuresByKind map[retry.Kind]int
	SpentUSD       float64
	State          TerminalState
}

// ErrNotStarted marks items aborted before admission.
var ErrNotStarted = errors.New("run ended before item started")

// Runner admits work items up to a fixed overall concurrency, consulting the
// ledger before each admission.
type Runner struct {
	ledger      *budget.Ledger
	concurrency int
}

func New(ledger *budget.Ledger, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{ledger: ledger, concurrency: concurrency}
}

// Run drives every item through task. onResult is invoked exactly once per
// item, serialized, in completion order. When the budget is exceeded or ctx
// is cancelled, in-flight items drain to completion and every unstarted item
// is delivered as an aborted failure, so the result count always equals
// len(items).
func (r *Runner) Run(ctx context.Context, items []WorkItem, task TaskFunc, onResult func(TaskResult)) Summary {
	summary := Summary{
		Total:          len(items),
		FailuresByKind: make(map[retry.Kind]int),
		State:          StateCompleted,
	}

	var mu sync.Mutex
	deliver := func(res TaskResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.Outcome.Succeeded() {
			summary.Succeeded++
		} else {
			summary.FailuresByKind[res.Outcome.Kind]++
		}
		if onResult != nil {
			onResult(res)
		}
	}

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	admitted := 0

admission:
	for _, item := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			summary.State = StateAborted
			break admission
		}
		// Re-check once the slot is held: spending by the tasks that just
		// released it is what decides whether this item may start.
		if ctx.Err() != nil {
			<-sem
			summary.State = StateAborted
			break
		}
		if r.ledger.Exceeded() {
			<-sem
			summary.State = StateBudgetExceeded
			break
		}
		admitted++
		wg.Add(1)
		go func(item WorkItem) {
			defer wg.Done()
			defer func() { <-sem }()
			deliver(TaskResult{Item: item, Outcome: task(ctx, item)})
		}(item)
	}

	for _, item := range items[admitted:] {
		deliver(TaskResult{Item: item, Outcome: Outcome{Kind: retry.KindAborted, Err: ErrNotStarted}})
	}

	wg.Wait()
	summary.SpentUSD = r.ledger.Snapshot().SpentUSD
	return summary
}
