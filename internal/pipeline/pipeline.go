package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/tenderscan/internal/model"
)

// Step is one stage of a pipeline. Steps run in sequence and share the run.
type Step interface {
	// Do executes the step. Non-fatal problems should be recorded in the
	// run and nil returned; an error stops the pipeline unless it was built
	// with WithContinueOnError.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in the order they were added.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing later steps after one fails.
// Execute then returns the first error once all steps have run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. ctx is checked before each step.
// Step errors are wrapped with the step name.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	var firstErr error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"run", run.ID,
				"reason", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			return firstErr
		}

		p.logger.Debug("executing step", "step", step.Name(), "run", run.ID)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run", run.ID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", step.Name(), err)
			}
			if !p.continueOnError {
				return firstErr
			}
			continue
		}

		p.logger.Debug("step completed", "step", step.Name(), "run", run.ID)
	}

	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
