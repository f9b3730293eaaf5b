// Package bench wires the full benchmark pipeline: for every (model, run)
// work item it generates a joke, persists the raw generation, has the judge
// score it, and persists the judged record. The runner guarantees one
// auditable outcome per item no matter how the run ends.
package bench

import (
	"context"
	"errors"
	"log"

	"github.com/hexebench/hexebench/internal/config"
	"github.com/hexebench/hexebench/internal/generate"
	"github.com/hexebench/hexebench/internal/judge"
	"github.com/hexebench/hexebench/internal/result"
	"github.com/hexebench/hexebench/internal/retry"
	"github.com/hexebench/hexebench/internal/router"
	"github.com/hexebench/hexebench/internal/runner"
)

// Options carries the assembled collaborators for one run.
type Options struct {
	Config        *config.Config
	RunID         string
	RunDir        string
	Client        *router.Client
	Store         *result.Store
	Runner        *runner.Runner
	Prompt        string
	JudgeTemplate string
}

// Run executes the benchmark for the given models and iteration count and
// returns the run summary. Every task outcome, including aborted items, is
// persisted to the store before the summary is returned.
func Run(ctx context.Context, opts *Options, models []config.Model, iterations int) (runner.Summary, error) {
	byName := make(map[string]config.Model, len(models))
	names := make([]string, 0, len(models))
	for _, m := range models {
		byName[m.Name] = m
		names = append(names, m.Name)
	}
	items := runner.Expand(names, iterations)

	task := func(ctx context.Context, item runner.WorkItem) runner.Outcome {
		gen, err := generate.Joke(ctx, opts.Client, byName[item.Model], opts.Prompt, item.Run)
		if err != nil {
			return outcomeFromError(err)
		}
		if _, err := result.SaveGeneration(opts.RunDir, gen); err != nil {
			log.Printf("warning: saving generation %s run %d: %v", item.Model, item.Run, err)
		}
		return judgeAndStore(ctx, opts, gen)
	}

	summary := opts.Runner.Run(ctx, items, task, opts.sink())

	if err := result.WriteMeta(opts.RunDir, opts.RunID, opts.Config); err != nil {
		log.Printf("warning: writing meta.json: %v", err)
	}
	return summary, nil
}

// Resume judges every raw generation in the run directory that has no judged
// record yet, using the same scheduling and accounting as a fresh run.
func Resume(ctx context.Context, opts *Options) (runner.Summary, error) {
	gens, err := result.LoadGenerations(opts.RunDir)
	if err != nil {
		return runner.Summary{}, err
	}

	byItem := make(map[runner.WorkItem]*generate.Generation)
	var items []runner.WorkItem
	for i := range gens {
		gen := &gens[i]
		if result.HasRecord(opts.RunDir, gen.Model, gen.Run) {
			continue
		}
		item := runner.WorkItem{Model: gen.Model, Run: gen.Run}
		byItem[item] = gen
		items = append(items, item)
	}

	task := func(ctx context.Context, item runner.WorkItem) runner.Outcome {
		return judgeAndStore(ctx, opts, byItem[item])
	}
	return opts.Runner.Run(ctx, items, task, opts.sink()), nil
}

// judgeAndStore runs the scoring round for one generation and persists the
// judged record. The raw generation is already on disk, so a judge failure
// still leaves a resumable partial result.
func judgeAndStore(ctx context.Context, opts *Options, gen *generate.Generation) runner.Outcome {
	score, err := judge.Evaluate(ctx, opts.Client, opts.Config.JudgeModel, opts.JudgeTemplate, gen)
	if err != nil {
		return outcomeFromError(err)
	}
	rec := &result.Record{Generation: *gen, Judge: *score}
	if _, err := result.SaveRecord(opts.RunDir, rec); err != nil {
		log.Printf("warning: saving record %s run %d: %v", gen.Model, gen.Run, err)
	}
	if err := opts.Store.UpsertRecord(opts.RunID, rec); err != nil {
		log.Printf("warning: storing record %s run %d: %v", gen.Model, gen.Run, err)
	}
	return runner.Outcome{Attempts: 1}
}

// sink forwards every task result to the store. Storage failures are logged,
// never raised into the run.
func (opts *Options) sink() func(runner.TaskResult) {
	return func(res runner.TaskResult) {
		var errMsg string
		if res.Outcome.Err != nil {
			errMsg = res.Outcome.Err.Error()
		}
		err := opts.Store.SaveOutcome(opts.RunID, res.Item.Model, res.Item.Run,
			string(res.Outcome.Kind), res.Outcome.Attempts, errMsg)
		if err != nil {
			log.Printf("warning: saving outcome %s run %d: %v", res.Item.Model, res.Item.Run, err)
		}
	}
}

// outcomeFromError maps a call or parse failure to a runner outcome. Any
// failure that is not a classified call error counts as a parse problem from
// a collaborator, which fails fast by policy.
func outcomeFromError(err error) runner.Outcome {
	var ce *router.CallError
	if errors.As(err, &ce) {
		return runner.Outcome{Kind: ce.Kind, Attempts: ce.Attempts, Err: ce}
	}
	return runner.Outcome{Kind: retry.KindParse, Attempts: 1, Err: err}
}
