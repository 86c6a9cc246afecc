// File: internal/operations/scripts.go
package operations

import (
	"fmt"
	"strings"
	"time"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/automation"
)

// Messages used when presence of an element, not its text, is the outcome.
const (
	MsgLoginSucceeded     = "Login successful"
	MsgInvalidCredentials = "invalid credentials"
	MsgAlreadyLocked      = "already locked"
)

// Timeouts bound every step kind of the operation scripts.
type Timeouts struct {
	Navigation time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Wait       time.Duration `mapstructure:"wait" yaml:"wait"`
	Action     time.Duration `mapstructure:"action" yaml:"action"`
	// ExactMatch bounds the search-result identity check.
	ExactMatch time.Duration `mapstructure:"exact_match" yaml:"exact_match"`
	// CredentialsProbe bounds the wait for a rejected-login marker.
	CredentialsProbe time.Duration `mapstructure:"credentials_probe" yaml:"credentials_probe"`
	PostLogin        time.Duration `mapstructure:"post_login" yaml:"post_login"`
}

// DefaultTimeouts mirror the bounds the stock panels need in practice.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:       120 * time.Second,
		Wait:             120 * time.Second,
		Action:           30 * time.Second,
		ExactMatch:       3 * time.Second,
		CredentialsProbe: 5 * time.Second,
		PostLogin:        90 * time.Second,
	}
}

// Validate rejects non-positive bounds.
func (t Timeouts) Validate() error {
	for name, d := range map[string]time.Duration{
		"navigation":        t.Navigation,
		"wait":              t.Wait,
		"action":            t.Action,
		"exact_match":       t.ExactMatch,
		"credentials_probe": t.CredentialsProbe,
		"post_login":        t.PostLogin,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive, got %s", name, d)
		}
	}
	return nil
}

// setValue forces the value of a CSS-addressed input. Both values arrive as
// arguments; nothing is spliced into the function text.
const setValue = `(selector, value) => {
	const el = document.querySelector(selector);
	if (!el) return false;
	if (el.value !== value) {
		el.value = value;
		el.dispatchEvent(new Event('input', { bubbles: true }));
	}
	return true;
}`

// Scripts builds the business operation scripts for a site from its profile.
type Scripts struct {
	profiles *Profiles
	timeouts Timeouts
}

// NewScripts creates a script table.
func NewScripts(profiles *Profiles, timeouts Timeouts) *Scripts {
	return &Scripts{profiles: profiles, timeouts: timeouts}
}

// Timeouts returns the bounds the scripts are built with.
func (s *Scripts) Timeouts() Timeouts { return s.timeouts }

// For returns the script of op for site.
func (s *Scripts) For(op schemas.Operation, site string) (automation.Script, error) {
	p := s.profiles.For(site)
	switch op {
	case schemas.OpLogin:
		return s.login(p.Login), nil
	case schemas.OpRegister:
		return s.register(p.Register), nil
	case schemas.OpDeposit:
		return s.transfer(op, p.Users, p.Deposit), nil
	case schemas.OpWithdraw:
		return s.transfer(op, p.Users, p.Withdraw), nil
	case schemas.OpResetPassword:
		return s.resetPassword(p.Users, p.Reset), nil
	case schemas.OpLockUser:
		return s.lockUser(p.Users, p.Lock), nil
	}
	return automation.Script{}, fmt.Errorf("no script for operation %q", op)
}

// login runs on the session page itself: it is the page the session keeps.
func (s *Scripts) login(p LoginProfile) automation.Script {
	t := s.timeouts
	steps := []automation.Step{
		{Name: "open-site", Reaches: automation.StateNavigated, Timeout: t.Navigation, Action: automation.Navigate(automation.SiteURL("/"))},
		{Name: "await-form", Timeout: t.Wait, Action: automation.WaitFor(p.Ready)},
		{Name: "username", Timeout: t.Action, Action: automation.TypeInto(p.Username, automation.P(automation.ParamUsername))},
		{Name: "password", Reaches: automation.StateCredentialsSupplied, Timeout: t.Action, Action: automation.TypeInto(p.Password, automation.P(automation.ParamSecret))},
	}
	if !p.RememberMe.IsZero() {
		steps = append(steps, automation.Step{Name: "remember-me", Timeout: t.Action, Action: automation.Click(p.RememberMe)})
	}
	steps = append(steps, automation.Step{Name: "submit", Reaches: automation.StateSubmitted, Timeout: t.Action, Action: automation.Click(p.Submit)})
	if !p.ErrorMarker.IsZero() {
		steps = append(steps, automation.Step{Name: "credentials-error", Timeout: t.CredentialsProbe, Action: automation.Probe(p.ErrorMarker, func(text string, env *automation.Env) {
			if text == "" {
				text = MsgInvalidCredentials
			}
			env.Conclude(schemas.Failure(schemas.KindClassifiedFailure, text))
		})})
	}
	steps = append(steps,
		automation.Step{Name: "home", Reaches: automation.StateResultRead, Timeout: t.PostLogin, Action: automation.Seq(
			automation.WaitFor(p.HomeMarker),
			automation.Conclude(automation.Lit(MsgLoginSucceeded)),
		)},
	)
	return automation.Script{Name: "login", Operation: schemas.OpLogin, Steps: steps}
}

func (s *Scripts) register(p RegisterProfile) automation.Script {
	t := s.timeouts
	account := automation.P(automation.ParamAccount)
	secret := automation.P(automation.ParamNewSecret)
	return automation.Script{
		Name:         "register",
		Operation:    schemas.OpRegister,
		Spawn:        true,
		SpawnTimeout: t.Navigation,
		Steps: []automation.Step{
			{Name: "open-site", Reaches: automation.StateNavigated, Timeout: t.Navigation, Action: automation.Navigate(automation.SiteURL("/"))},
			{Name: "open-form", Timeout: t.Wait, Action: automation.Click(p.NavLink)},
			{Name: "username", Timeout: t.Wait, Action: automation.TypeInto(p.Username, account)},
			{Name: "full-name", Timeout: t.Action, Action: automation.TypeInto(p.FullName, account)},
			{Name: "password", Reaches: automation.StateFormFilled, Timeout: t.Action, Action: automation.TypeInto(p.Password, secret)},
			{Name: "confirm", Reaches: automation.StateSubmitted, Timeout: t.Action, Action: automation.SubmitInto(p.Confirm, secret)},
			{Name: "read-result", Reaches: automation.StateResultRead, Timeout: t.Wait, Action: automation.ReadOutcome(p.Result)},
		},
	}
}

// locate searches the account list and asserts the first result is exactly
// the requested account.
func (s *Scripts) locate(u UsersProfile) []automation.Step {
	t := s.timeouts
	account := automation.P(automation.ParamAccount)
	return []automation.Step{
		{Name: "open-users", Reaches: automation.StateNavigated, Timeout: t.Navigation, Action: automation.Navigate(automation.SiteURL(u.Path))},
		{Name: "search", Timeout: t.Wait, Action: automation.SubmitInto(u.Search, account)},
		{Name: "match-account", Reaches: automation.StateAccountLocated, Timeout: t.ExactMatch, Action: automation.ExpectText(u.RowName, account, schemas.ErrInvalidAccount)},
	}
}

func (s *Scripts) openPanel(p Panel) []automation.Step {
	t := s.timeouts
	steps := []automation.Step{{Name: "open-panel", Reaches: automation.StatePanelOpen, Timeout: t.Action, Action: automation.Click(p.Open)}}
	if !p.Tab.IsZero() {
		steps = append(steps, automation.Step{Name: "select-tab", Reaches: automation.StatePanelOpen, Timeout: t.Action, Action: automation.Click(p.Tab)})
	}
	return steps
}

func (s *Scripts) transfer(op schemas.Operation, u UsersProfile, p Panel) automation.Script {
	t := s.timeouts
	amount := automation.P(automation.ParamAmount)
	steps := append(s.locate(u), s.openPanel(p)...)
	steps = append(steps, automation.Step{Name: "amount", Reaches: automation.StateFormFilled, Timeout: t.Wait, Action: automation.TypeInto(p.Amount, amount)})
	if p.Amount.Strategy() == automation.ByCSS {
		steps = append(steps, automation.Step{Name: "settle-amount", Timeout: t.Action, Action: automation.Eval(setValue, automation.Lit(p.Amount.Query), amount)})
	}
	steps = append(steps,
		automation.Step{Name: "confirm", Reaches: automation.StateSubmitted, Timeout: t.Action, Action: automation.SubmitInto(p.Code, automation.P(automation.ParamCode))},
		automation.Step{Name: "read-result", Reaches: automation.StateResultRead, Timeout: t.Wait, Action: automation.ReadOutcome(p.Result)},
	)
	return automation.Script{Name: string(op), Operation: op, Spawn: true, SpawnTimeout: t.Navigation, Steps: steps}
}

func (s *Scripts) resetPassword(u UsersProfile, p Panel) automation.Script {
	t := s.timeouts
	secret := automation.P(automation.ParamNewSecret)
	steps := append(s.locate(u), s.openPanel(p)...)
	steps = append(steps,
		automation.Step{Name: "new-password", Timeout: t.Wait, Action: automation.TypeInto(p.Password, secret)},
		automation.Step{Name: "repeat-password", Reaches: automation.StateFormFilled, Timeout: t.Action, Action: automation.TypeInto(p.ConfirmPassword, secret)},
		automation.Step{Name: "confirm", Reaches: automation.StateSubmitted, Timeout: t.Action, Action: automation.SubmitInto(p.Code, automation.P(automation.ParamCode))},
		automation.Step{Name: "read-result", Reaches: automation.StateResultRead, Timeout: t.Wait, Action: automation.ReadOutcome(p.Result)},
	)
	return automation.Script{Name: "reset-password", Operation: schemas.OpResetPassword, Spawn: true, SpawnTimeout: t.Navigation, Steps: steps}
}

func (s *Scripts) lockUser(u UsersProfile, p Panel) automation.Script {
	t := s.timeouts
	marker := strings.ToLower(strings.TrimSpace(u.LockedMarker))
	steps := s.locate(u)
	if !u.RowStatus.IsZero() && marker != "" {
		steps = append(steps, automation.Step{Name: "check-status", Timeout: t.Action, Action: automation.Inspect(u.RowStatus, func(text string, env *automation.Env) {
			for _, word := range strings.Fields(strings.ToLower(text)) {
				if word == marker {
					env.Conclude(schemas.Success(MsgAlreadyLocked))
					return
				}
			}
		})})
	}
	steps = append(steps, s.openPanel(p)...)
	steps = append(steps,
		automation.Step{Name: "confirm", Reaches: automation.StateSubmitted, Timeout: t.Action, Action: automation.SubmitInto(p.Code, automation.P(automation.ParamCode))},
		automation.Step{Name: "read-result", Reaches: automation.StateResultRead, Timeout: t.Wait, Action: automation.ReadOutcome(p.Result)},
	)
	return automation.Script{Name: "lock-user", Operation: schemas.OpLockUser, Spawn: true, SpawnTimeout: t.Navigation, Steps: steps}
}
