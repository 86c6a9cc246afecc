package operations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/automation"
	"github.com/annonymususer90/my99exch/internal/automation/automationtest"
	"github.com/annonymususer90/my99exch/internal/outcome"
)

func fastTimeouts() Timeouts {
	d := 60 * time.Millisecond
	return Timeouts{Navigation: d, Wait: d, Action: d, ExactMatch: d, CredentialsProbe: 20 * time.Millisecond, PostLogin: d}
}

type harness struct {
	t       *testing.T
	profile Profile
	scripts *Scripts
	site    *automationtest.Site
	exec    *automation.Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := DefaultProfile()
	return &harness{
		t:       t,
		profile: p,
		scripts: NewScripts(NewProfiles(p, nil), fastTimeouts()),
		site:    automationtest.NewSite(),
		exec:    automation.NewExecutor(outcome.NewDefaultRegistry(), zaptest.NewLogger(t)),
	}
}

func (h *harness) run(op schemas.Operation, params map[automation.Param]string) (automation.Result, error) {
	h.t.Helper()
	script, err := h.scripts.For(op, "https://panel.example")
	require.NoError(h.t, err)
	require.NoError(h.t, script.Validate())
	if params == nil {
		params = map[automation.Param]string{}
	}
	params[automation.ParamSite] = "https://panel.example"
	return h.exec.Run(context.Background(), h.site.NewPage("https://panel.example/home"), script, automation.NewEnv(params))
}

// usersPage shows a search box whose first result is name.
func (h *harness) usersPage(name, status string) {
	u := h.profile.Users
	h.site.Set(u.Search, "")
	h.site.Set(u.RowName, name)
	h.site.Set(u.RowStatus, status)
}

func (h *harness) panel(p Panel, result string) {
	for _, l := range []Locator{p.Open, p.Tab, p.Amount, p.Password, p.ConfirmPassword, p.Code} {
		if !l.IsZero() {
			h.site.Set(l, "")
		}
	}
	h.site.OnType(p.Code, func(pg *automationtest.Page, _ string) { pg.Site().Set(p.Result, result) })
}

func TestDeposit(t *testing.T) {
	t.Run("should fill the panel and read the toast", func(t *testing.T) {
		h := newHarness(t)
		h.usersPage("alice", "Active")
		h.panel(h.profile.Deposit, "Credit Updated Successfully")

		res, err := h.run(schemas.OpDeposit, map[automation.Param]string{
			automation.ParamAccount: "alice",
			automation.ParamAmount:  "50",
			automation.ParamCode:    "0000",
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.Success("Credit Updated Successfully"), res.Outcome)
		assert.Equal(t, automation.StateSucceeded, res.State)
		assert.Equal(t, 1, h.site.Count("click", h.profile.Deposit.Tab))
		assert.Equal(t, 1, h.site.Count("evaluate", automation.Locator{}))

		var typed []string
		for _, c := range h.site.Calls() {
			if c.Kind == "type" {
				typed = append(typed, c.Payload)
			}
		}
		assert.Equal(t, []string{"alice" + automation.KeyEnter, "50", "0000" + automation.KeyEnter}, typed)
	})

	t.Run("should report insufficient credit as a business failure", func(t *testing.T) {
		h := newHarness(t)
		h.usersPage("alice", "Active")
		h.panel(h.profile.Deposit, "Your Client Does Not Have Sufficient Credit")

		res, err := h.run(schemas.OpDeposit, map[automation.Param]string{automation.ParamAccount: "alice", automation.ParamAmount: "50"})
		require.NoError(t, err)
		assert.False(t, res.Outcome.Succeeded)
		assert.Equal(t, schemas.KindClassifiedFailure, res.Outcome.Kind)
	})

	t.Run("should refuse to act on a near-miss account", func(t *testing.T) {
		h := newHarness(t)
		h.usersPage("bobby", "Active")
		h.panel(h.profile.Deposit, "ok")

		_, err := h.run(schemas.OpDeposit, map[automation.Param]string{automation.ParamAccount: "bob", automation.ParamAmount: "50"})
		assert.ErrorIs(t, err, schemas.ErrInvalidAccount)
		assert.Zero(t, h.site.Count("click", h.profile.Deposit.Open))
		assert.Zero(t, h.site.Count("type", h.profile.Deposit.Amount))
	})
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t)
	h.usersPage("Alice", "Active")
	h.panel(h.profile.Withdraw, "Your Client Does Not Have Sufficient Balance")

	res, err := h.run(schemas.OpWithdraw, map[automation.Param]string{automation.ParamAccount: "alice", automation.ParamAmount: "10.50"})
	require.NoError(t, err)
	assert.False(t, res.Outcome.Succeeded)
	assert.Equal(t, 1, h.site.Count("click", h.profile.Withdraw.Tab))
	assert.Zero(t, h.site.Count("click", h.profile.Deposit.Tab))
}

func TestLockUser(t *testing.T) {
	t.Run("should short-circuit on an already locked account every time", func(t *testing.T) {
		h := newHarness(t)
		h.usersPage("alice", "Locked")
		h.panel(h.profile.Lock, "User Locked")

		for i := 0; i < 2; i++ {
			res, err := h.run(schemas.OpLockUser, map[automation.Param]string{automation.ParamAccount: "alice"})
			require.NoError(t, err)
			assert.Equal(t, schemas.Success(MsgAlreadyLocked), res.Outcome)
		}
		assert.Zero(t, h.site.Count("click", h.profile.Lock.Open))
		assert.Zero(t, h.site.Count("type", h.profile.Lock.Code))
	})

	t.Run("should lock an active account", func(t *testing.T) {
		h := newHarness(t)
		h.usersPage("alice", "Unlocked")
		h.panel(h.profile.Lock, "User Locked")

		res, err := h.run(schemas.OpLockUser, map[automation.Param]string{automation.ParamAccount: "alice", automation.ParamCode: "1234"})
		require.NoError(t, err)
		assert.Equal(t, schemas.Success("User Locked"), res.Outcome)
		assert.Equal(t, 1, h.site.Count("type", h.profile.Lock.Code))
	})
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t)
	h.usersPage("alice", "Active")
	h.panel(h.profile.Reset, "Password Changed")

	res, err := h.run(schemas.OpResetPassword, map[automation.Param]string{
		automation.ParamAccount:   "alice",
		automation.ParamNewSecret: "Abcd1234",
		automation.ParamCode:      "9999",
	})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Succeeded)
	assert.Equal(t, 1, h.site.Count("type", h.profile.Reset.Password))
	assert.Equal(t, 1, h.site.Count("type", h.profile.Reset.ConfirmPassword))
}

func TestRegister(t *testing.T) {
	setup := func(h *harness, result string) {
		r := h.profile.Register
		for _, l := range []Locator{r.NavLink, r.Username, r.FullName, r.Password, r.Confirm} {
			h.site.Set(l, "")
		}
		h.site.OnType(r.Confirm, func(pg *automationtest.Page, _ string) { pg.Site().Set(r.Result, result) })
	}

	t.Run("should classify a taken name as failure", func(t *testing.T) {
		h := newHarness(t)
		setup(h, "The username has already been taken.")
		res, err := h.run(schemas.OpRegister, map[automation.Param]string{automation.ParamAccount: "alice", automation.ParamNewSecret: "Abcd1234"})
		require.NoError(t, err)
		assert.False(t, res.Outcome.Succeeded)
	})

	t.Run("should succeed on a confirmation", func(t *testing.T) {
		h := newHarness(t)
		setup(h, "User Created")
		res, err := h.run(schemas.OpRegister, map[automation.Param]string{automation.ParamAccount: "alice", automation.ParamNewSecret: "Abcd1234"})
		require.NoError(t, err)
		assert.True(t, res.Outcome.Succeeded)
	})
}

func TestLogin(t *testing.T) {
	setup := func(h *harness) {
		l := h.profile.Login
		for _, loc := range []Locator{l.Ready, l.Username, l.Password, l.RememberMe, l.Submit} {
			h.site.Set(loc, "")
		}
	}

	t.Run("should succeed only on the post-login marker", func(t *testing.T) {
		h := newHarness(t)
		setup(h)
		h.site.OnClick(h.profile.Login.Submit, func(p *automationtest.Page) { p.Site().Set(h.profile.Login.HomeMarker, "") })

		res, err := h.run(schemas.OpLogin, map[automation.Param]string{automation.ParamUsername: "admin", automation.ParamSecret: "s3cret"})
		require.NoError(t, err)
		assert.Equal(t, schemas.Success(MsgLoginSucceeded), res.Outcome)
		assert.Len(t, h.site.Pages(), 1, "login runs on the session page")
	})

	t.Run("should fail fast on the credentials error marker", func(t *testing.T) {
		h := newHarness(t)
		setup(h)
		h.site.OnClick(h.profile.Login.Submit, func(p *automationtest.Page) {
			p.Site().Set(h.profile.Login.ErrorMarker, "These credentials do not match our records.")
		})

		res, err := h.run(schemas.OpLogin, map[automation.Param]string{automation.ParamUsername: "admin", automation.ParamSecret: "nope"})
		require.NoError(t, err)
		assert.False(t, res.Outcome.Succeeded)
		assert.Equal(t, "These credentials do not match our records.", res.Outcome.Message)
		assert.Zero(t, h.site.Count("wait", h.profile.Login.HomeMarker))
	})

	t.Run("should time out when neither marker shows up", func(t *testing.T) {
		h := newHarness(t)
		setup(h)

		res, err := h.run(schemas.OpLogin, map[automation.Param]string{automation.ParamUsername: "admin", automation.ParamSecret: "s3cret"})
		assert.ErrorIs(t, err, schemas.ErrStepTimeout)
		assert.Equal(t, automation.StateAborted, res.State)
	})
}

func TestScriptsFor_Unknown(t *testing.T) {
	_, err := NewScripts(NewProfiles(DefaultProfile(), nil), DefaultTimeouts()).For("teleport", "https://x")
	assert.Error(t, err)
}
