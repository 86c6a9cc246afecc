package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// TestConstants pins the values that travel over the wire and into the audit log.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		constant interface{}
		expected string
	}{
		{"OpLogin", schemas.OpLogin, "login"},
		{"OpRegister", schemas.OpRegister, "register"},
		{"OpResetPassword", schemas.OpResetPassword, "reset_password"},
		{"OpLockUser", schemas.OpLockUser, "lock_user"},
		{"OpDeposit", schemas.OpDeposit, "deposit"},
		{"OpWithdraw", schemas.OpWithdraw, "withdraw"},

		{"KindCredentialsUnavailable", schemas.KindCredentialsUnavailable, "credentials_unavailable"},
		{"KindLoginRequiredFailed", schemas.KindLoginRequiredFailed, "login_required_failed"},
		{"KindStepTimeout", schemas.KindStepTimeout, "step_timeout"},
		{"KindTargetNotFound", schemas.KindTargetNotFound, "target_not_found"},
		{"KindInvalidAccount", schemas.KindInvalidAccount, "invalid_account"},
		{"KindInvalidAmount", schemas.KindInvalidAmount, "invalid_amount"},
		{"KindClassifiedFailure", schemas.KindClassifiedFailure, "classified_failure"},
		{"KindInternal", schemas.KindInternal, "internal"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, toString(tc.constant))
		})
	}
}

func toString(v interface{}) string {
	switch c := v.(type) {
	case schemas.Operation:
		return string(c)
	case schemas.ErrorKind:
		return string(c)
	}
	return ""
}
