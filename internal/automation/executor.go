package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
)

const surfaceCloseTimeout = 10 * time.Second

// Classifier reduces raw UI text to an outcome for an operation.
type Classifier interface {
	Classify(op schemas.Operation, raw string) schemas.Outcome
}

// StepRecord is the trace entry of one executed step.
type StepRecord struct {
	Name    string
	State   State
	Elapsed time.Duration
	Err     error
}

// Result is what a script run produced.
type Result struct {
	Outcome schemas.Outcome
	State   State
	Trace   []StepRecord
}

// Executor runs scripts against a Handle and reduces the final UI state to an outcome.
type Executor struct {
	classifier Classifier
	logger     *zap.Logger
}

// NewExecutor creates a pipeline executor.
func NewExecutor(classifier Classifier, logger *zap.Logger) *Executor {
	return &Executor{
		classifier: classifier,
		logger:     logger.Named("executor"),
	}
}

// Run executes the script's steps in order. A failing or timed-out step aborts
// the rest of the script; there is no retry. The returned Result always holds
// the terminal state and the step trace, also when err is non-nil.
func (x *Executor) Run(ctx context.Context, h Handle, s Script, env *Env) (Result, error) {
	res := Result{State: StateNotStarted}
	if err := s.Validate(); err != nil {
		res.State = StateAborted
		return res, err
	}

	log := x.logger.With(zap.String("script", s.Name), zap.String("operation", string(s.Operation)))

	if s.Spawn {
		surface, release, err := spawn(ctx, h, s.spawnTimeout())
		if err != nil {
			res.State = StateAborted
			log.Warn("Script aborted.", zap.String("step", "spawn"), zap.Error(err))
			return res, err
		}
		defer release(log)
		h = surface
	}

	for _, st := range s.Steps {
		if _, done := env.Concluded(); done {
			break
		}

		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, st.Timeout)
		err := st.Action.Do(stepCtx, h, env)
		expired := stepCtx.Err() == context.DeadlineExceeded
		cancel()

		rec := StepRecord{Name: st.Name, Elapsed: time.Since(start)}
		if err != nil {
			err = stepError(st, err, expired)
			rec.Err = err
			rec.State = StateAborted
			res.Trace = append(res.Trace, rec)
			res.State = StateAborted
			log.Warn("Script aborted.", zap.String("step", st.Name), zap.Duration("elapsed", rec.Elapsed), zap.Error(err))
			return res, err
		}

		if st.Reaches != "" {
			res.State = st.Reaches
		}
		rec.State = res.State
		res.Trace = append(res.Trace, rec)
		log.Debug("Step completed.", zap.String("step", st.Name), zap.String("state", string(res.State)), zap.Duration("elapsed", rec.Elapsed))
	}

	res.Outcome = x.reduce(s.Operation, env)
	if res.Outcome.Succeeded {
		res.State = StateSucceeded
	} else {
		res.State = StateFailed
	}
	return res, nil
}

// reduce turns what the steps extracted into an outcome. An early conclusion
// may only report success if the classifier agrees with its message.
func (x *Executor) reduce(op schemas.Operation, env *Env) schemas.Outcome {
	if final, ok := env.Concluded(); ok {
		if final.Succeeded {
			if c := x.classifier.Classify(op, final.Message); !c.Succeeded {
				return c
			}
		}
		return final
	}
	text, _ := env.Result()
	return x.classifier.Classify(op, text)
}

// stepError keeps domain errors as they are and turns any other failure of an
// expired step into ErrStepTimeout.
func stepError(st Step, err error, expired bool) error {
	switch {
	case errors.Is(err, schemas.ErrInvalidAccount),
		errors.Is(err, schemas.ErrTargetNotFound),
		errors.Is(err, schemas.ErrStepTimeout):
		return fmt.Errorf("step %q: %w", st.Name, err)
	case expired || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: step %q exceeded %s: %v", schemas.ErrStepTimeout, st.Name, st.Timeout, err)
	}
	return fmt.Errorf("step %q failed: %w", st.Name, err)
}

// spawn opens a sibling page within timeout when the handle supports it and
// returns a release function that closes it on every exit path.
func spawn(ctx context.Context, h Handle, timeout time.Duration) (Handle, func(*zap.Logger), error) {
	sp, ok := h.(Spawner)
	if !ok {
		return h, func(*zap.Logger) {}, nil
	}
	spawnCtx, cancel := context.WithTimeout(ctx, timeout)
	surface, err := sp.Spawn(spawnCtx)
	expired := spawnCtx.Err() == context.DeadlineExceeded
	cancel()
	if err != nil {
		if expired || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: opening interaction surface exceeded %s: %v", schemas.ErrStepTimeout, timeout, err)
		}
		return nil, nil, fmt.Errorf("failed to open interaction surface: %w", err)
	}
	return surface, func(log *zap.Logger) {
		closeCtx, cancel := context.WithTimeout(Detach(ctx), surfaceCloseTimeout)
		defer cancel()
		if err := surface.Close(closeCtx); err != nil {
			log.Warn("Failed to close interaction surface.", zap.Error(err))
		}
	}, nil
}
