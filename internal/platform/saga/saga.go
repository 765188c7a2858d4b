// Package saga runs a fixed sequence of steps, undoing completed steps in
// reverse order when a later one fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Step is one unit of a saga. Compensate may be nil for steps with nothing
// to undo.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Saga is an ordered list of steps.
type Saga struct {
	name   string
	steps  []Step
	logger zerolog.Logger
}

func New(name string, logger zerolog.Logger, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps, logger: logger}
}

// Execute runs every step in order. On failure it compensates the steps that
// already completed, newest first, and returns the step error joined with
// any compensation failures.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Run(ctx)
		if err == nil {
			continue
		}

		failure := &StepError{Step: step.Name, Err: err}
		s.logger.Warn().Err(err).Str("saga", s.name).Str("step", step.Name).Msg("saga step failed, compensating")

		// Compensation must run even if the request context is done.
		cctx := context.WithoutCancel(ctx)
		errs := []error{failure}
		for j := i - 1; j >= 0; j-- {
			prev := s.steps[j]
			if prev.Compensate == nil {
				continue
			}
			if cerr := prev.Compensate(cctx); cerr != nil {
				s.logger.Error().Err(cerr).Str("saga", s.name).Str("step", prev.Name).Msg("compensation failed")
				errs = append(errs, fmt.Errorf("compensate %q: %w", prev.Name, cerr))
			}
		}
		return errors.Join(errs...)
	}
	return nil
}
