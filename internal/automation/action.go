package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// Action is one atomic UI interaction executed against a Handle.
type Action interface {
	Do(ctx context.Context, h Handle, env *Env) error
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, h Handle, env *Env) error

// Do calls f(ctx, h, env).
func (f ActionFunc) Do(ctx context.Context, h Handle, env *Env) error {
	return f(ctx, h, env)
}

// Navigate loads the URL produced by v.
func Navigate(v Value) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		return h.Navigate(ctx, v(env))
	})
}

// WaitFor waits until loc is visible.
func WaitFor(loc Locator) Action {
	return ActionFunc(func(ctx context.Context, h Handle, _ *Env) error {
		return h.WaitFor(ctx, loc)
	})
}

// TypeInto types the value into loc.
func TypeInto(loc Locator, v Value) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		return h.Type(ctx, loc, v(env))
	})
}

// SubmitInto types the value into loc and presses Enter.
func SubmitInto(loc Locator, v Value) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		return h.Type(ctx, loc, v(env)+KeyEnter)
	})
}

// Click clicks loc once it is visible.
func Click(loc Locator) Action {
	return ActionFunc(func(ctx context.Context, h Handle, _ *Env) error {
		return h.Click(ctx, loc)
	})
}

// Eval calls the function expression fn with the resolved args. fn must
// return a boolean; false means the element it addresses was missing.
func Eval(fn string, args ...Value) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		resolved := make([]any, len(args))
		for i, a := range args {
			resolved[i] = a(env)
		}
		var ok bool
		if err := h.Evaluate(ctx, fn, &ok, resolved...); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: script reported a missing element", schemas.ErrTargetNotFound)
		}
		return nil
	})
}

// ExpectText asserts that the visible text of loc equals v (case-insensitive,
// surrounding whitespace ignored). A mismatch, or an element that never shows
// up, fails with mismatch so the script stops before it can act on the wrong target.
func ExpectText(loc Locator, v Value, mismatch error) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		want := strings.TrimSpace(v(env))
		got, err := h.Text(ctx, loc)
		if err != nil {
			return fmt.Errorf("%w: %q did not appear: %v", mismatch, want, err)
		}
		if !strings.EqualFold(strings.TrimSpace(got), want) {
			return fmt.Errorf("%w: found %q, want %q", mismatch, strings.TrimSpace(got), want)
		}
		return nil
	})
}

// Inspect reads the text of loc and lets decide act on it, typically to
// conclude the script early.
func Inspect(loc Locator, decide func(text string, env *Env)) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		text, err := h.Text(ctx, loc)
		if err != nil {
			return err
		}
		decide(strings.TrimSpace(text), env)
		return nil
	})
}

// Probe waits for an optional element within the step's bound. If it shows
// up, its text is passed to found; if it does not, the script continues.
func Probe(loc Locator, found func(text string, env *Env)) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		if err := h.WaitFor(ctx, loc); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		text, err := h.Text(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		found(strings.TrimSpace(text), env)
		return nil
	})
}

// ReadOutcome extracts the result text from loc. It is the sole success or
// failure signal of a script.
func ReadOutcome(loc Locator) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		text, err := h.Text(ctx, loc)
		if err != nil {
			return err
		}
		env.SetResult(text)
		return nil
	})
}

// Conclude records a fixed result text, used when presence of an element is
// the outcome signal rather than its text.
func Conclude(v Value) Action {
	return ActionFunc(func(_ context.Context, _ Handle, env *Env) error {
		env.SetResult(v(env))
		return nil
	})
}

// Seq runs actions in order within one step's bound.
func Seq(actions ...Action) Action {
	return ActionFunc(func(ctx context.Context, h Handle, env *Env) error {
		for _, a := range actions {
			if err := a.Do(ctx, h, env); err != nil {
				return err
			}
		}
		return nil
	})
}
