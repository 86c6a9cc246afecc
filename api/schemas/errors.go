package schemas

import (
	"context"
	"errors"
)

// ErrorKind is the machine-readable classification of a terminal state.
type ErrorKind string

const (
	KindNone                   ErrorKind = ""
	KindCredentialsUnavailable ErrorKind = "credentials_unavailable"
	KindLoginRequiredFailed    ErrorKind = "login_required_failed"
	KindStepTimeout            ErrorKind = "step_timeout"
	KindTargetNotFound         ErrorKind = "target_not_found"
	KindInvalidAccount         ErrorKind = "invalid_account"
	KindInvalidAmount          ErrorKind = "invalid_amount"
	KindInvalidRequest         ErrorKind = "invalid_request"
	KindClassifiedFailure      ErrorKind = "classified_failure"
	KindInternal               ErrorKind = "internal"
)

// Business reports whether the kind is a business-level outcome that is
// returned to the caller as a normal rejection rather than a server fault.
func (k ErrorKind) Business() bool {
	switch k {
	case KindClassifiedFailure, KindInvalidAccount, KindInvalidAmount, KindInvalidRequest:
		return true
	}
	return false
}

// Sentinel errors for the coordinator's failure taxonomy. Wrap them with
// fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrCredentialsUnavailable = errors.New("admin credentials not available")
	ErrLoginRequiredFailed    = errors.New("re-login required and failed")
	ErrStepTimeout            = errors.New("step timed out")
	ErrTargetNotFound         = errors.New("target not found")
	ErrInvalidAccount         = errors.New("invalid username")
	ErrInvalidAmount          = errors.New("invalid amount format")
	// ErrInvalidRequest rejects malformed request fields (site, account name)
	// before any session interaction.
	ErrInvalidRequest = errors.New("invalid request")
)

// KindOf maps an error onto the failure taxonomy. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCredentialsUnavailable):
		return KindCredentialsUnavailable
	case errors.Is(err, ErrLoginRequiredFailed):
		return KindLoginRequiredFailed
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidAccount):
		return KindInvalidAccount
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrTargetNotFound):
		return KindTargetNotFound
	case errors.Is(err, ErrStepTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindStepTimeout
	}
	return KindInternal
}
