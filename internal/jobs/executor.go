package jobs

import (
	"context"
	"fmt"
	"sort"
)

// Executor runs the work of a single job type.
// Execute should return an *ExecutionError on failure; its message becomes the job error.
type Executor interface {
	JobType() Type
	Execute(ctx context.Context, payload string) error
}

// Registry maps each job type to the executor that serves it.
// It is built once and read-only afterwards.
type Registry struct {
	executors map[Type]Executor
}

// NewRegistry builds a registry from the given executors.
// Two executors declaring the same type is a configuration error.
func NewRegistry(executors ...Executor) (*Registry, error) {
	r := &Registry{executors: make(map[Type]Executor, len(executors))}
	for _, ex := range executors {
		if ex == nil {
			return nil, ErrNilExecutor
		}
		t := ex.JobType()
		if prev, ok := r.executors[t]; ok {
			return nil, fmt.Errorf("%w: %s (%T and %T)", ErrDuplicateExecutor, t, prev, ex)
		}
		r.executors[t] = ex
	}
	return r, nil
}

// Lookup returns the executor registered for t.
func (r *Registry) Lookup(t Type) (Executor, bool) {
	if r == nil {
		return nil, false
	}
	ex, ok := r.executors[t]
	return ex, ok
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []Type {
	if r == nil {
		return nil
	}
	out := make([]Type, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc struct {
	Type Type
	Fn   func(ctx context.Context, payload string) error
}

func (f ExecutorFunc) JobType() Type { return f.Type }

func (f ExecutorFunc) Execute(ctx context.Context, payload string) error {
	return f.Fn(ctx, payload)
}
