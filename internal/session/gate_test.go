package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/automation/automationtest"
)

type stubAuth struct {
	calls   atomic.Int32
	outcome schemas.Outcome
	err     error
	onCall  func()
}

func (s *stubAuth) Reauthenticate(context.Context, string) (schemas.Outcome, error) {
	s.calls.Add(1)
	if s.onCall != nil {
		s.onCall()
	}
	return s.outcome, s.err
}

func newGate(t *testing.T, auth Authenticator) (*Gate, *Registry) {
	t.Helper()
	r := NewRegistry("login", zaptest.NewLogger(t))
	return NewGate(r, auth, zaptest.NewLogger(t)), r
}

func TestGate_PassThrough(t *testing.T) {
	g, r := newGate(t, &stubAuth{})
	release, err := g.Admit(context.Background(), schemas.OpLogin, site)
	require.NoError(t, err)
	release()
	assert.False(t, r.Busy(site))

	release, err = g.Admit(context.Background(), "", site)
	require.NoError(t, err)
	release()
}

func TestGate_CredentialsUnavailable(t *testing.T) {
	auth := &stubAuth{}
	g, r := newGate(t, auth)

	for _, op := range []schemas.Operation{schemas.OpDeposit, schemas.OpWithdraw, schemas.OpLockUser, schemas.OpResetPassword, schemas.OpRegister} {
		_, err := g.Admit(context.Background(), op, site)
		assert.ErrorIs(t, err, schemas.ErrCredentialsUnavailable, op)
		assert.False(t, r.Busy(site), "a rejected request must not keep the site busy")
	}
	assert.Zero(t, auth.calls.Load())
}

func TestGate_AdmitsAuthenticatedSession(t *testing.T) {
	auth := &stubAuth{}
	g, r := newGate(t, auth)
	page := automationtest.NewSite().NewPage(site + "/home")
	r.Put(context.Background(), site, Record{Handle: page})

	release, err := g.Admit(context.Background(), schemas.OpDeposit, site)
	require.NoError(t, err)
	assert.True(t, r.Busy(site))
	release()
	release()
	assert.False(t, r.Busy(site))
	assert.Zero(t, auth.calls.Load())
}

func TestGate_Reauthenticates(t *testing.T) {
	ctx := context.Background()

	t.Run("should proceed after a successful re-login", func(t *testing.T) {
		auth := &stubAuth{outcome: schemas.Success("Login successful")}
		g, r := newGate(t, auth)
		r.Put(ctx, site, Record{Handle: automationtest.NewSite().NewPage(site + "/login")})
		auth.onCall = func() { assert.True(t, r.Busy(site), "re-login runs while the site is held") }

		release, err := g.Admit(ctx, schemas.OpDeposit, site)
		require.NoError(t, err)
		release()
		assert.EqualValues(t, 1, auth.calls.Load())
	})

	t.Run("should abort with LoginRequiredFailed on a failed re-login", func(t *testing.T) {
		auth := &stubAuth{outcome: schemas.Failure(schemas.KindClassifiedFailure, "invalid credentials")}
		g, r := newGate(t, auth)
		r.Put(ctx, site, Record{Handle: automationtest.NewSite().NewPage(site + "/login")})

		_, err := g.Admit(ctx, schemas.OpDeposit, site)
		assert.ErrorIs(t, err, schemas.ErrLoginRequiredFailed)
		assert.Contains(t, err.Error(), "invalid credentials")
		assert.False(t, r.Busy(site))
	})

	t.Run("should abort with LoginRequiredFailed when re-login errors", func(t *testing.T) {
		auth := &stubAuth{err: errors.New("browser gone")}
		g, r := newGate(t, auth)
		r.Put(ctx, site, Record{Handle: automationtest.NewSite().NewPage(site + "/login")})

		_, err := g.Admit(ctx, schemas.OpWithdraw, site)
		assert.ErrorIs(t, err, schemas.ErrLoginRequiredFailed)
		assert.Equal(t, schemas.KindLoginRequiredFailed, schemas.KindOf(err))
	})

	t.Run("should keep the cause of a failed re-login", func(t *testing.T) {
		cause := fmt.Errorf("%w: step %q exceeded 5s", schemas.ErrStepTimeout, "open-site")
		auth := &stubAuth{err: cause}
		g, r := newGate(t, auth)
		r.Put(ctx, site, Record{Handle: automationtest.NewSite().NewPage(site + "/login")})

		_, err := g.Admit(ctx, schemas.OpDeposit, site)
		assert.ErrorIs(t, err, schemas.ErrLoginRequiredFailed)
		assert.ErrorIs(t, err, schemas.ErrStepTimeout)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, schemas.KindLoginRequiredFailed, schemas.KindOf(err))
	})
}

func TestGate_RejectionsLeaveNoSlots(t *testing.T) {
	g, r := newGate(t, &stubAuth{})
	for i := 0; i < 10000; i++ {
		_, err := g.Admit(context.Background(), schemas.OpDeposit, fmt.Sprintf("https://unknown-%d.example", i))
		require.ErrorIs(t, err, schemas.ErrCredentialsUnavailable)
	}
	assert.Zero(t, r.slotCount())
}

func TestGate_WaitsForBusySite(t *testing.T) {
	g, r := newGate(t, &stubAuth{})
	r.Put(context.Background(), site, Record{Handle: automationtest.NewSite().NewPage(site + "/home")})

	first, err := g.Admit(context.Background(), schemas.OpDeposit, site)
	require.NoError(t, err)

	admitted := make(chan Release, 1)
	go func() {
		release, err := g.Admit(context.Background(), schemas.OpWithdraw, site)
		if err == nil {
			admitted <- release
		}
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("second request admitted while the first was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	first()
	select {
	case release, ok := <-admitted:
		require.True(t, ok)
		release()
	case <-time.After(time.Second):
		t.Fatal("second request never admitted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	hold, err := g.Hold(context.Background(), site)
	require.NoError(t, err)
	_, err = g.Admit(ctx, schemas.OpDeposit, site)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a caller that gives up stops waiting")
	hold()
}
