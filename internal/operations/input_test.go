package operations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/automation"
)

func TestValidateAmount(t *testing.T) {
	for _, ok := range []string{"100", "0.5", "10.25", " 42 "} {
		got, err := ValidateAmount(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, strings.TrimSpace(ok), got)
	}
	for _, bad := range []string{"-5", "abc", "", "0", "0.00", "1.234", "1e3", "1,000"} {
		_, err := ValidateAmount(bad)
		assert.ErrorIs(t, err, schemas.ErrInvalidAmount, bad)
	}
}

func TestDeriveAccount(t *testing.T) {
	got, err := DeriveAccount("  alice_01 ", "pl")
	require.NoError(t, err)
	assert.Equal(t, "alice_01", got)

	_, err = DeriveAccount("bob'); drop", "pl")
	assert.ErrorIs(t, err, schemas.ErrInvalidAccount)

	a, err := DeriveAccount("", "PL")
	require.NoError(t, err)
	b, err := DeriveAccount("", "PL")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, "pl"))
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}

func TestProfiles(t *testing.T) {
	def := DefaultProfile()
	override := Profile{Users: UsersProfile{Path: "/accounts"}, Deposit: Panel{Amount: automation.CSS("#amt")}}
	table := NewProfiles(def, map[string]Profile{"Panel.Example": override})

	got := table.For("https://panel.example:8443/login")
	assert.Equal(t, "/accounts", got.Users.Path)
	assert.Equal(t, "#amt", got.Deposit.Amount.Query)
	assert.Equal(t, def.Deposit.Code, got.Deposit.Code)
	assert.Equal(t, def.Login, got.Login)

	assert.Equal(t, def, table.For("https://other.example"))
}
