package outcome

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/annonymususer90/my99exch/api/schemas"
)

func TestClassify_InsufficientAnyCasing(t *testing.T) {
	r := NewDefaultRegistry()
	const base = "Your Client Does Not Have %s Credit"

	for _, word := range []string{"insufficient", "INSUFFICIENT", "Insufficient", "iNsUfFiCiEnT"} {
		text := strings.Replace(base, "%s", word, 1)
		got := r.Classify(schemas.OpDeposit, text)
		assert.False(t, got.Succeeded, "text %q must be classified as failure", text)
		assert.Equal(t, schemas.KindClassifiedFailure, got.Kind)
		assert.Equal(t, text, got.Message)
	}

	stripped := strings.Replace(base, "%s", "", 1)
	got := r.Classify(schemas.OpDeposit, stripped)
	want := schemas.Outcome{Succeeded: true, Message: stripped}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_PerOperationPhrases(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name string
		op   schemas.Operation
		text string
		ok   bool
	}{
		{"register taken", schemas.OpRegister, "Username has already been taken", false},
		{"register exists", schemas.OpRegister, "User EXISTS", false},
		{"register ok", schemas.OpRegister, "User created successfully", true},
		{"withdraw not have sufficient", schemas.OpWithdraw, "Your Client Does Not Have Sufficient Balance", false},
		{"withdraw ok", schemas.OpWithdraw, "Balance updated", true},
		{"deposit phrase does not leak to lock", schemas.OpLockUser, "insufficient", true},
		{"already locked is a lock success", schemas.OpLockUser, "already locked", true},
		{"common phrase applies everywhere", schemas.OpLockUser, "Something went wrong: error 42", false},
		{"empty text is success", schemas.OpDeposit, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(tt.op, tt.text)
			assert.Equal(t, tt.ok, got.Succeeded)
		})
	}
}

func TestRegistry_AppendOnly(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Classify(schemas.OpDeposit, "limit exceeded").Succeeded)

	r.Register(schemas.OpDeposit, "  Limit Exceeded ", "", "limit exceeded")
	assert.Equal(t, []string{"limit exceeded"}, r.Phrases(schemas.OpDeposit))
	assert.False(t, r.Classify(schemas.OpDeposit, "Daily LIMIT EXCEEDED").Succeeded)

	r.RegisterCommon("denied")
	assert.Equal(t, []string{"denied", "limit exceeded"}, r.Phrases(schemas.OpDeposit))
	assert.False(t, r.Classify(schemas.OpRegister, "access denied").Succeeded)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewDefaultRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(schemas.OpWithdraw, "frozen")
		}()
		go func() {
			defer wg.Done()
			_ = r.Classify(schemas.OpWithdraw, "account frozen")
		}()
	}
	wg.Wait()
	phrase, ok := r.Match(schemas.OpWithdraw, "account frozen")
	assert.True(t, ok)
	assert.Equal(t, "frozen", phrase)
}
