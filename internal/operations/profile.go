// File: internal/operations/profile.go
package operations

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/annonymususer90/my99exch/internal/automation"
)

type Locator = automation.Locator

// LoginProfile locates the controls of a panel's sign-in form.
type LoginProfile struct {
	Ready      Locator `mapstructure:"ready" yaml:"ready"`
	Username   Locator `mapstructure:"username" yaml:"username"`
	Password   Locator `mapstructure:"password" yaml:"password"`
	RememberMe Locator `mapstructure:"remember_me" yaml:"remember_me"`
	Submit     Locator `mapstructure:"submit" yaml:"submit"`
	// ErrorMarker shows up quickly when the credentials are rejected.
	ErrorMarker Locator `mapstructure:"error_marker" yaml:"error_marker"`
	// HomeMarker only exists on authenticated pages.
	HomeMarker Locator `mapstructure:"home_marker" yaml:"home_marker"`
}

// RegisterProfile locates the account-creation form.
type RegisterProfile struct {
	NavLink  Locator `mapstructure:"nav_link" yaml:"nav_link"`
	Username Locator `mapstructure:"username" yaml:"username"`
	FullName Locator `mapstructure:"full_name" yaml:"full_name"`
	Password Locator `mapstructure:"password" yaml:"password"`
	Confirm  Locator `mapstructure:"confirm" yaml:"confirm"`
	Result   Locator `mapstructure:"result" yaml:"result"`
}

// UsersProfile locates the account list and its first search result.
type UsersProfile struct {
	Path      string  `mapstructure:"path" yaml:"path"`
	Search    Locator `mapstructure:"search" yaml:"search"`
	RowName   Locator `mapstructure:"row_name" yaml:"row_name"`
	RowStatus Locator `mapstructure:"row_status" yaml:"row_status"`
	// LockedMarker is matched case-insensitively against the row status text.
	LockedMarker string `mapstructure:"locked_marker" yaml:"locked_marker"`
}

// Panel locates an action panel opened from the first search result. Fields
// an operation does not use stay empty.
type Panel struct {
	Open            Locator `mapstructure:"open" yaml:"open"`
	Tab             Locator `mapstructure:"tab" yaml:"tab"`
	Amount          Locator `mapstructure:"amount" yaml:"amount"`
	Password        Locator `mapstructure:"password" yaml:"password"`
	ConfirmPassword Locator `mapstructure:"confirm_password" yaml:"confirm_password"`
	Code            Locator `mapstructure:"code" yaml:"code"`
	Result          Locator `mapstructure:"result" yaml:"result"`
}

// Profile is the full Locator set for one family of target sites.
type Profile struct {
	Login    LoginProfile    `mapstructure:"login" yaml:"login"`
	Register RegisterProfile `mapstructure:"register" yaml:"register"`
	Users    UsersProfile    `mapstructure:"users" yaml:"users"`
	Deposit  Panel           `mapstructure:"deposit" yaml:"deposit"`
	Withdraw Panel           `mapstructure:"withdraw" yaml:"withdraw"`
	Reset    Panel           `mapstructure:"reset" yaml:"reset"`
	Lock     Panel           `mapstructure:"lock" yaml:"lock"`
}

const (
	usersSearch = "#layout-wrapper .account-list .search-form input"
	firstRow    = "#layout-wrapper .account-list table tbody tr:first-child"
	toast       = ".swal2-container.swal2-top-end.swal2-backdrop-show .swal2-title"
)

func tab(n int) Locator {
	return automation.CSS(fmt.Sprintf(`ul[role="tablist"] > li:nth-child(%d) > :first-child`, n))
}

// DefaultProfile returns the Locator set of the stock panel markup.
func DefaultProfile() Profile {
	rowActions := automation.CSS(firstRow + " > td:nth-child(7) > :first-child > :nth-child(3)")
	balance := automation.CSS(firstRow + " > td:nth-child(2) > :first-child")

	return Profile{
		Login: LoginProfile{
			Ready:       automation.XPath("/html/body/div[1]/div/div/div[2]/div/form/div[1]/input"),
			Username:    automation.CSS("#username"),
			Password:    automation.CSS("#password"),
			RememberMe:  automation.CSS(`label[for="remember_me"]`),
			Submit:      automation.CSS("#login-form > div:nth-child(5) > button"),
			ErrorMarker: automation.CSS("#login-form .invalid-feedback, #login-form .alert-danger"),
			HomeMarker:  automation.CSS("#layout-wrapper"),
		},
		Register: RegisterProfile{
			NavLink:  automation.CSS("body > header > nav > div > ul > li:nth-child(6) > a"),
			Username: automation.XPath("/html/body/main/div/div/div/div/div/div/div/form/div[1]/input"),
			FullName: automation.XPath("/html/body/main/div/div/div/div/div/div/div/form/div[2]/input"),
			Password: automation.XPath("/html/body/main/div/div/div/div/div/div/div/form/div[3]/input"),
			Confirm:  automation.XPath("/html/body/main/div/div/div/div/div/div/div/form/div[4]/input"),
			Result:   automation.CSS(toast + ", form .invalid-feedback"),
		},
		Users: UsersProfile{
			Path:         "/users",
			Search:       automation.CSS(usersSearch),
			RowName:      automation.CSS(firstRow + " span[title]"),
			RowStatus:    automation.CSS(firstRow + " > td:nth-child(6)"),
			LockedMarker: "locked",
		},
		Deposit: Panel{
			Open:   balance,
			Tab:    tab(1),
			Amount: automation.CSS(`input[name="userCreditUpdateamount"]`),
			Code:   automation.CSS(`input[name="userCreditUpdatempassword"]`),
			Result: automation.CSS(toast),
		},
		Withdraw: Panel{
			Open:   balance,
			Tab:    tab(2),
			Amount: automation.CSS(`input[name="userWithdrawCreditUpdateamount"]`),
			Code:   automation.CSS(`input[name="userWithdrawCreditUpdatempassword"]`),
			Result: automation.CSS(toast),
		},
		Reset: Panel{
			Open:            rowActions,
			Tab:             tab(2),
			Password:        automation.CSS(`input[name="userchangepasswordpassword"]`),
			ConfirmPassword: automation.CSS(`input[name="userchangepasswordcpassword"]`),
			Code:            automation.CSS(`input[name="userchangepasswordmpassword"]`),
			Result:          automation.CSS(toast),
		},
		Lock: Panel{
			Open:   rowActions,
			Tab:    tab(3),
			Code:   automation.CSS(`input[name="UserLockMpassword"]`),
			Result: automation.CSS(toast),
		},
	}
}

// Over returns p with every unset field taken from base.
func (p Profile) Over(base Profile) Profile {
	return Profile{
		Login: LoginProfile{
			Ready:       pick(p.Login.Ready, base.Login.Ready),
			Username:    pick(p.Login.Username, base.Login.Username),
			Password:    pick(p.Login.Password, base.Login.Password),
			RememberMe:  pick(p.Login.RememberMe, base.Login.RememberMe),
			Submit:      pick(p.Login.Submit, base.Login.Submit),
			ErrorMarker: pick(p.Login.ErrorMarker, base.Login.ErrorMarker),
			HomeMarker:  pick(p.Login.HomeMarker, base.Login.HomeMarker),
		},
		Register: RegisterProfile{
			NavLink:  pick(p.Register.NavLink, base.Register.NavLink),
			Username: pick(p.Register.Username, base.Register.Username),
			FullName: pick(p.Register.FullName, base.Register.FullName),
			Password: pick(p.Register.Password, base.Register.Password),
			Confirm:  pick(p.Register.Confirm, base.Register.Confirm),
			Result:   pick(p.Register.Result, base.Register.Result),
		},
		Users: UsersProfile{
			Path:         or(p.Users.Path, base.Users.Path),
			Search:       pick(p.Users.Search, base.Users.Search),
			RowName:      pick(p.Users.RowName, base.Users.RowName),
			RowStatus:    pick(p.Users.RowStatus, base.Users.RowStatus),
			LockedMarker: or(p.Users.LockedMarker, base.Users.LockedMarker),
		},
		Deposit:  p.Deposit.over(base.Deposit),
		Withdraw: p.Withdraw.over(base.Withdraw),
		Reset:    p.Reset.over(base.Reset),
		Lock:     p.Lock.over(base.Lock),
	}
}

func (p Panel) over(base Panel) Panel {
	return Panel{
		Open:            pick(p.Open, base.Open),
		Tab:             pick(p.Tab, base.Tab),
		Amount:          pick(p.Amount, base.Amount),
		Password:        pick(p.Password, base.Password),
		ConfirmPassword: pick(p.ConfirmPassword, base.ConfirmPassword),
		Code:            pick(p.Code, base.Code),
		Result:          pick(p.Result, base.Result),
	}
}

func pick(l, fallback Locator) Locator {
	if l.IsZero() {
		return fallback
	}
	return l
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// Profiles resolves the Locator set for a site by host name.
type Profiles struct {
	mu     sync.RWMutex
	def    Profile
	byHost map[string]Profile
}

// NewProfiles creates a table whose fallback is def. Per-host overrides are
// completed from def.
func NewProfiles(def Profile, overrides map[string]Profile) *Profiles {
	p := &Profiles{def: def, byHost: make(map[string]Profile, len(overrides))}
	for host, o := range overrides {
		p.Set(host, o)
	}
	return p
}

// Set installs an override for host.
func (p *Profiles) Set(host string, o Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byHost[strings.ToLower(strings.TrimSpace(host))] = o.Over(p.def)
}

// For returns the profile for the site URL.
func (p *Profiles) For(site string) Profile {
	host := site
	if u, err := url.Parse(site); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if prof, ok := p.byHost[strings.ToLower(host)]; ok {
		return prof
	}
	return p.def
}
