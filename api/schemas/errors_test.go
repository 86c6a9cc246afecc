package schemas_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annonymususer90/my99exch/api/schemas"
)

func TestKindOf(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("step %q: %w", "match-account", err) }

	for _, tc := range []struct {
		err  error
		want schemas.ErrorKind
	}{
		{nil, schemas.KindNone},
		{wrap(schemas.ErrCredentialsUnavailable), schemas.KindCredentialsUnavailable},
		{wrap(schemas.ErrLoginRequiredFailed), schemas.KindLoginRequiredFailed},
		{wrap(schemas.ErrStepTimeout), schemas.KindStepTimeout},
		{wrap(context.DeadlineExceeded), schemas.KindStepTimeout},
		{wrap(schemas.ErrTargetNotFound), schemas.KindTargetNotFound},
		{wrap(schemas.ErrInvalidAccount), schemas.KindInvalidAccount},
		{wrap(schemas.ErrInvalidAmount), schemas.KindInvalidAmount},
		{wrap(schemas.ErrInvalidRequest), schemas.KindInvalidRequest},
		{errors.New("chrome crashed"), schemas.KindInternal},
	} {
		assert.Equal(t, tc.want, schemas.KindOf(tc.err), "%v", tc.err)
	}
}

func TestErrorKind_Business(t *testing.T) {
	business := []schemas.ErrorKind{schemas.KindClassifiedFailure, schemas.KindInvalidAccount, schemas.KindInvalidAmount, schemas.KindInvalidRequest}
	operational := []schemas.ErrorKind{schemas.KindCredentialsUnavailable, schemas.KindLoginRequiredFailed, schemas.KindStepTimeout, schemas.KindTargetNotFound, schemas.KindInternal}

	for _, k := range business {
		assert.True(t, k.Business(), k)
	}
	for _, k := range operational {
		assert.False(t, k.Business(), k)
	}
}

func TestFailureFromError(t *testing.T) {
	out := schemas.FailureFromError(fmt.Errorf("step %q: %w: found %q", "match", schemas.ErrInvalidAccount, "bobby"))
	assert.Equal(t, schemas.Failure(schemas.KindInvalidAccount, "invalid username"), out)

	out = schemas.FailureFromError(fmt.Errorf("%w: step %q exceeded 3s", schemas.ErrStepTimeout, "read"))
	assert.False(t, out.Succeeded)
	assert.Equal(t, schemas.KindStepTimeout, out.Kind)
	assert.Contains(t, out.Message, "exceeded 3s")

	assert.Equal(t, schemas.Outcome{}, schemas.FailureFromError(nil))
}

func TestParseOperation(t *testing.T) {
	for in, want := range map[string]schemas.Operation{
		"login":          schemas.OpLogin,
		" Deposit ":      schemas.OpDeposit,
		"resetpass":      schemas.OpResetPassword,
		"reset_password": schemas.OpResetPassword,
		"lockuser":       schemas.OpLockUser,
		"withdraw":       schemas.OpWithdraw,
		"register":       schemas.OpRegister,
	} {
		got, err := schemas.ParseOperation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := schemas.ParseOperation("transfer")
	assert.Error(t, err)
}

func TestOperationTraits(t *testing.T) {
	assert.False(t, schemas.OpLogin.RequiresSession())
	assert.True(t, schemas.OpRegister.RequiresSession())
	assert.True(t, schemas.OpDeposit.Transactional())
	assert.False(t, schemas.OpLockUser.Transactional())
	assert.Equal(t, "d", schemas.OpDeposit.AuditCode())
	assert.Equal(t, "w", schemas.OpWithdraw.AuditCode())
}

func TestCredentials(t *testing.T) {
	c := schemas.Credentials{Username: "admin", Secret: "pw"}
	assert.Equal(t, "pw", c.Code())
	c.TransactionCode = "0000"
	assert.Equal(t, "0000", c.Code())
	assert.True(t, c.Equal(schemas.Credentials{Username: "admin", Secret: "pw", TransactionCode: "0000"}))
	assert.False(t, c.Equal(schemas.Credentials{Username: "admin", Secret: "other", TransactionCode: "0000"}))
}
