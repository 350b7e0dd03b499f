// Package batch runs sets of named remote operations, each individually
// resilient, either sequentially with stop-on-first-failure semantics or
// concurrently with partial-failure collection.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/careops/caresync/internal/metrics"
	"github.com/careops/caresync/internal/notify"
	"github.com/careops/caresync/internal/retry"
)

// Op is one named operation in a batch.
type Op[T any] struct {
	Name   string
	Policy retry.Policy
	Do     func(ctx context.Context) (T, error)
}

// StepError identifies the failing step of a sequential batch.
type StepError struct {
	Index    int
	Name     string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed after %d attempts: %v", e.Index+1, e.Name, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Failure identifies one failed operation of a concurrent batch.
type Failure struct {
	Name     string
	Attempts int
	Err      error
}

// Executor runs batches through a shared orchestrator.
type Executor struct {
	orch *retry.Orchestrator
	sink notify.Sink
}

// NewExecutor creates an executor. A nil sink discards notifications.
func NewExecutor(orch *retry.Orchestrator, sink notify.Sink) *Executor {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Executor{orch: orch, sink: sink}
}

// RunSequential executes ops in list order and stops on the first
// operation whose final outcome is a failure. No later operation executes,
// and results from earlier steps are discarded: the batch is a unit of
// work, not a collection of independent calls.
func RunSequential[T any](ctx context.Context, ex *Executor, ops []Op[T]) ([]T, error) {
	results := make([]T, 0, len(ops))

	for i, op := range ops {
		outcome := runOne(ctx, ex, op)
		if outcome.Err != nil {
			metrics.BatchFailures.WithLabelValues("sequential").Inc()
			ex.sink.Failed(op.Name, outcome.Attempts, outcome.Err)
			return nil, &StepError{Index: i, Name: op.Name, Attempts: outcome.Attempts, Err: outcome.Err}
		}
		results = append(results, outcome.Data)
	}

	return results, nil
}

// RunConcurrent launches every op at once and collects all outcomes. It
// returns the successful results (order not guaranteed to match input
// order) and the failures for a partial-failure notification. A single
// slow or failing operation never blocks or cancels the others.
func RunConcurrent[T any](ctx context.Context, ex *Executor, ops []Op[T]) ([]T, []Failure) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []T
		failures []Failure
	)

	for _, op := range ops {
		wg.Add(1)
		go func(op Op[T]) {
			defer wg.Done()
			outcome := runOne(ctx, ex, op)

			mu.Lock()
			defer mu.Unlock()
			if outcome.Err != nil {
				failures = append(failures, Failure{Name: op.Name, Attempts: outcome.Attempts, Err: outcome.Err})
				return
			}
			results = append(results, outcome.Data)
		}(op)
	}
	wg.Wait()

	if len(failures) > 0 {
		metrics.BatchFailures.WithLabelValues("concurrent").Add(float64(len(failures)))
		for _, f := range failures {
			ex.sink.Failed(f.Name, f.Attempts, f.Err)
		}
	}
	return results, failures
}

func runOne[T any](ctx context.Context, ex *Executor, op Op[T]) retry.Outcome[T] {
	policy := op.Policy
	if policy.OnRetry == nil {
		name := op.Name
		policy.OnRetry = func(attempt int, err error) {
			ex.sink.Retrying(name, attempt, err)
		}
	}
	return retry.Execute(ctx, ex.orch, op.Do, policy)
}
