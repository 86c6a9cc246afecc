package automation

import (
	"strings"
	"sync"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// Param names a runtime value bound into a script.
type Param string

const (
	ParamSite      Param = "site"
	ParamUsername  Param = "username"
	ParamSecret    Param = "secret"
	ParamCode      Param = "code"
	ParamAccount   Param = "account"
	ParamAmount    Param = "amount"
	ParamNewSecret Param = "new_secret"
)

// Value produces a string at step execution time from the script's Env.
type Value func(env *Env) string

// Lit is a constant Value.
func Lit(s string) Value { return func(*Env) string { return s } }

// P reads a bound parameter.
func P(p Param) Value { return func(env *Env) string { return env.Get(p) } }

// SiteURL joins the bound site with a path.
func SiteURL(path string) Value {
	return func(env *Env) string {
		base := strings.TrimRight(env.Get(ParamSite), "/")
		if path == "" || path == "/" {
			return base
		}
		return base + "/" + strings.TrimLeft(path, "/")
	}
}

// Env carries the parameters of one script run and collects what the steps
// extract from the UI.
type Env struct {
	mu         sync.Mutex
	params     map[Param]string
	result     string
	resultRead bool
	final      *schemas.Outcome
}

// NewEnv binds params for a script run.
func NewEnv(params map[Param]string) *Env {
	cp := make(map[Param]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return &Env{params: cp}
}

// Get returns a bound parameter, or "" when unbound.
func (e *Env) Get(p Param) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params[p]
}

// SetResult records the raw outcome text read from the UI.
func (e *Env) SetResult(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = strings.TrimSpace(text)
	e.resultRead = true
}

// Result returns the raw outcome text and whether it was read.
func (e *Env) Result() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.resultRead
}

// Conclude ends the script early with a fixed outcome. Remaining steps are skipped.
func (e *Env) Conclude(o schemas.Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.final = &o
	e.result = o.Message
	e.resultRead = true
}

// Concluded returns the early outcome, if any.
func (e *Env) Concluded() (schemas.Outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.final == nil {
		return schemas.Outcome{}, false
	}
	return *e.final, true
}
