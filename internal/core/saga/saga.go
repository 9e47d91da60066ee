// Package saga runs a sequence of single-statement writes as one logical unit.
//
// Each Step pairs an action with the write that undoes it. When an action fails,
// the compensations of every completed step run in reverse order. Compensation
// errors are collected rather than short-circuiting, so the caller learns both
// the original cause and every rollback that did not complete.
package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"purchasing/internal/core/apperror"
	"purchasing/pkg/logger"
)

var tracer = otel.Tracer("purchasing/saga")

// Step is one forward action and its compensating write.
type Step struct {
	// Name identifies the step in logs and rollback errors
	Name string

	Action func(ctx context.Context) error

	// Compensate undoes Action. Nil means the step needs no undo.
	Compensate func(ctx context.Context) error
}

// Saga tracks completed steps of one call. It is not safe for concurrent use.
type Saga struct {
	name      string
	completed []Step
	aborted   bool
}

// New creates an empty saga.
func New(name string) *Saga {
	return &Saga{name: name}
}

// Completed returns the number of steps applied so far.
func (s *Saga) Completed() int {
	return len(s.completed)
}

// Execute runs step.Action. On success the step is recorded for later compensation.
// On failure every completed step is compensated (LIFO) and the resulting error is returned:
// the action's own error when rollback succeeded, a PARTIAL_FAILURE otherwise.
func (s *Saga) Execute(ctx context.Context, step Step) error {
	if s.aborted {
		return fmt.Errorf("saga %s: already aborted", s.name)
	}
	if err := step.Action(ctx); err != nil {
		return s.Abort(ctx, err)
	}
	s.completed = append(s.completed, step)
	return nil
}

// Run executes steps in order, stopping at the first failure.
func (s *Saga) Run(ctx context.Context, steps ...Step) error {
	for _, step := range steps {
		if err := s.Execute(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// Abort compensates every completed step in reverse order because of cause.
// Compensations run on a context detached from the caller's cancellation.
func (s *Saga) Abort(ctx context.Context, cause error) error {
	s.aborted = true
	if len(s.completed) == 0 {
		return cause
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "saga.compensate",
		trace.WithAttributes(
			attribute.String("saga.name", s.name),
			attribute.Int("saga.steps", len(s.completed)),
		))
	defer span.End()

	var rollbackErrs []error
	for i := len(s.completed) - 1; i >= 0; i-- {
		step := s.completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			logger.Error(ctx, "compensation failed",
				"saga", s.name,
				"step", step.Name,
				"error", err,
			)
			rollbackErrs = append(rollbackErrs, fmt.Errorf("compensate %s: %w", step.Name, err))
			continue
		}
		logger.Debug(ctx, "step compensated", "saga", s.name, "step", step.Name)
	}
	s.completed = nil

	if len(rollbackErrs) > 0 {
		span.SetStatus(codes.Error, "rollback incomplete")
		return apperror.NewPartialFailure(cause, rollbackErrs)
	}

	logger.Warn(ctx, "saga rolled back", "saga", s.name, "cause", cause)
	return cause
}
