package operations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/annonymususer90/my99exch/api/schemas"
)

var (
	amountPattern  = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)
	accountPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]{1,63}$`)
)

// ValidateAmount checks a positive decimal amount with at most two
// fractional digits and returns it trimmed.
func ValidateAmount(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !amountPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", schemas.ErrInvalidAmount, raw)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return "", fmt.Errorf("%w: %q must be greater than zero", schemas.ErrInvalidAmount, raw)
	}
	return s, nil
}

// ValidateAccount checks an account name typed into a search or form field.
func ValidateAccount(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !accountPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", schemas.ErrInvalidAccount, raw)
	}
	return s, nil
}

// DeriveAccount returns the account name to register. An empty request gets a
// generated name under prefix.
func DeriveAccount(requested, prefix string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		return ValidateAccount(requested)
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ValidateAccount(strings.ToLower(prefix) + id[:10])
}
