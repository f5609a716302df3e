package scheduler

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/usercheck/internal/logger"
)

const (
	// Admission caps derived from request priority
	LimitHighPriority   = 10 // priority >= 8
	LimitMediumPriority = 5  // priority >= 5
	LimitLowPriority    = 3
)

// Task is one independently executed unit of work.
type Task[T any] func(ctx context.Context) (T, error)

// Outcome is the value or error produced by a Task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// ConcurrencyLimit maps a request priority onto the number of tasks
// allowed in flight at once.
func ConcurrencyLimit(priority int) int {
	switch {
	case priority >= 8:
		return LimitHighPriority
	case priority >= 5:
		return LimitMediumPriority
	default:
		return LimitLowPriority
	}
}

// RunBounded executes tasks with at most ConcurrencyLimit(priority) in
// flight and returns their outcomes aligned with the input order.
//
// Errors and panics are captured as values. A failing task never cancels
// or delays its siblings, and no timeout is imposed on any task.
func RunBounded[T any](ctx context.Context, tasks []Task[T], priority int, log logger.Logger) []Outcome[T] {
	out := make([]Outcome[T], len(tasks))
	if len(tasks) == 0 {
		return out
	}

	// A plain Group: WithContext would cancel siblings on the first error.
	var g errgroup.Group
	g.SetLimit(ConcurrencyLimit(priority))

	for i, task := range tasks {
		g.Go(func() error {
			out[i] = runCaught(ctx, i, task, log)
			return nil
		})
	}

	_ = g.Wait()
	return out
}

func runCaught[T any](ctx context.Context, i int, task Task[T], log logger.Logger) (o Outcome[T]) {
	var pc panics.Catcher
	pc.Try(func() {
		o.Value, o.Err = task(ctx)
	})

	if r := pc.Recovered(); r != nil {
		if log != nil {
			log.Warn("task panicked",
				logger.Int("task", i),
				logger.String("panic", fmt.Sprint(r.Value)),
				logger.String("stack", string(r.Stack)))
		}
		var zero T
		return Outcome[T]{Value: zero, Err: fmt.Errorf("panic: %v", r.Value)}
	}

	return o
}
