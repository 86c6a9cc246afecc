// Package outcome turns text extracted from a driven UI into success or
// failure by matching known failure phrases.
//
// Matching is a heuristic: a failure worded in a way no registered phrase
// covers is reported as success. The registry is append-only so operators can
// grow it as new panel wording is observed, without ever weakening it.
package outcome

import (
	"sort"
	"strings"
	"sync"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// DefaultPhrases are the failure phrases known for each operation. Common
// phrases apply to every operation.
var DefaultPhrases = map[schemas.Operation][]string{
	schemas.OpLogin:         {"incorrect", "wrong", "not match", "locked", "disabled"},
	schemas.OpRegister:      {"taken", "already", "exists"},
	schemas.OpResetPassword: {"not found", "not match", "incorrect"},
	schemas.OpLockUser:      {"not found", "not allowed", "incorrect"},
	schemas.OpDeposit:       {"insufficient", "not have sufficient", "incorrect", "not allowed"},
	schemas.OpWithdraw:      {"insufficient", "not have sufficient", "incorrect", "not allowed"},
}

// CommonPhrases apply to every operation.
var CommonPhrases = []string{"invalid", "failed", "error", "not permitted", "unauthorized"}

// Registry is an append-only, concurrency-safe set of failure phrases per
// operation. It implements automation.Classifier.
type Registry struct {
	mu      sync.RWMutex
	common  []string
	phrases map[schemas.Operation][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{phrases: make(map[schemas.Operation][]string)}
}

// NewDefaultRegistry returns a registry preloaded with DefaultPhrases and CommonPhrases.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterCommon(CommonPhrases...)
	for op, phrases := range DefaultPhrases {
		r.Register(op, phrases...)
	}
	return r
}

// Register appends failure phrases for op. Phrases are lower-cased; blanks and
// duplicates are ignored. There is no way to remove a phrase.
func (r *Registry) Register(op schemas.Operation, phrases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phrases[op] = appendUnique(r.phrases[op], phrases)
}

// RegisterCommon appends failure phrases that apply to every operation.
func (r *Registry) RegisterCommon(phrases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.common = appendUnique(r.common, phrases)
}

// Phrases returns the effective, sorted phrase list for op.
func (r *Registry) Phrases(op schemas.Operation) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append(append([]string(nil), r.common...), r.phrases[op]...)
	sort.Strings(out)
	return out
}

// Match returns the first failure phrase found in raw, if any.
func (r *Registry) Match(op schemas.Operation, raw string) (string, bool) {
	text := strings.ToLower(raw)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, set := range [][]string{r.phrases[op], r.common} {
		for _, p := range set {
			if strings.Contains(text, p) {
				return p, true
			}
		}
	}
	return "", false
}

// Classify maps raw UI text to an outcome. Absence of every known failure
// phrase is success; the raw text is kept as the message either way.
func (r *Registry) Classify(op schemas.Operation, raw string) schemas.Outcome {
	msg := strings.TrimSpace(raw)
	if _, failed := r.Match(op, msg); failed {
		return schemas.Failure(schemas.KindClassifiedFailure, msg)
	}
	return schemas.Success(msg)
}

func appendUnique(dst []string, add []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, p := range dst {
		seen[p] = struct{}{}
	}
	for _, p := range add {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		dst = append(dst, p)
	}
	return dst
}
