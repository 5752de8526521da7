package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the outcome of a single task.
type Result struct {
	Name string
	Err  error
}

// RunParallel executes all tasks concurrently and waits for every one of them.
// The returned error joins every task failure, each prefixed with the task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "internal", Func: p.ensureInternalRule},
//	    {Name: "ssh", Func: p.ensureAdminRule},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	return joinErrors(RunBounded(ctx, tasks, 0))
}

// RunBounded executes tasks with at most limit running at once (limit <= 0
// means unbounded) and returns one Result per task, in input order. A failing
// task never cancels the others.
func RunBounded(ctx context.Context, tasks []Task, limit int) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, task := range tasks {
		results[i].Name = task.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Err = task.Func(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// joinErrors combines failed results into a single error, or nil when all succeeded.
func joinErrors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed returns only the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
