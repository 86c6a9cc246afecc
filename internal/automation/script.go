package automation

import (
	"fmt"
	"time"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// State names a point in an operation's state machine.
type State string

const (
	StateNotStarted          State = "not_started"
	StateNavigated           State = "navigated"
	StateCredentialsSupplied State = "credentials_supplied"
	StateSubmitted           State = "submitted"
	StateAccountLocated      State = "account_located"
	StatePanelOpen           State = "panel_open"
	StateFormFilled          State = "form_filled"
	StateResultRead          State = "result_read"
	StateSucceeded           State = "succeeded"
	StateFailed              State = "failed"
	StateAborted             State = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAborted
}

// Step is one bounded UI action. Reaches is the state entered when the step
// completes; an empty value keeps the current state.
type Step struct {
	Name    string
	Reaches State
	Timeout time.Duration
	Action  Action
}

// Script is a deterministic, linear sequence of steps for one operation.
type Script struct {
	Name      string
	Operation schemas.Operation
	// Spawn runs the script on a fresh sibling page that is closed on exit.
	Spawn bool
	// SpawnTimeout bounds opening the sibling page. Zero falls back to the
	// first step's timeout.
	SpawnTimeout time.Duration
	Steps        []Step
}

func (s Script) spawnTimeout() time.Duration {
	if s.SpawnTimeout > 0 {
		return s.SpawnTimeout
	}
	return s.Steps[0].Timeout
}

// Validate checks the script is runnable: every step has an action and a
// positive timeout, and the last step reaches StateResultRead.
func (s Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("script %q has no steps", s.Name)
	}
	for i, st := range s.Steps {
		if st.Action == nil {
			return fmt.Errorf("script %q step %d (%s) has no action", s.Name, i, st.Name)
		}
		if st.Timeout <= 0 {
			return fmt.Errorf("script %q step %d (%s) has no timeout", s.Name, i, st.Name)
		}
	}
	if last := s.Steps[len(s.Steps)-1]; last.Reaches != StateResultRead {
		return fmt.Errorf("script %q must end with a read-outcome step, ends with %q", s.Name, last.Name)
	}
	return nil
}
