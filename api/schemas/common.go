package schemas

import (
	"fmt"
	"strings"
)

// -- Common Schemas --

// Credentials holds the administrator account used to authenticate against a
// target site. TransactionCode is the secondary code some panels demand on
// every balance or account mutation; when empty the Secret is used.
type Credentials struct {
	Username        string `json:"username" mapstructure:"username" yaml:"username"`
	Secret          string `json:"-" mapstructure:"password" yaml:"password"`
	TransactionCode string `json:"-" mapstructure:"transaction_code" yaml:"transaction_code"`
}

// Code returns the transaction code, falling back to the secret.
func (c Credentials) Code() string {
	if c.TransactionCode != "" {
		return c.TransactionCode
	}
	return c.Secret
}

// Equal reports whether two credential sets address the same account with the same secrets.
func (c Credentials) Equal(o Credentials) bool {
	return c.Username == o.Username && c.Secret == o.Secret && c.Code() == o.Code()
}

// Operation names a business operation that can be run against a target site.
type Operation string

const (
	OpLogin         Operation = "login"
	OpRegister      Operation = "register"
	OpResetPassword Operation = "reset_password"
	OpLockUser      Operation = "lock_user"
	OpDeposit       Operation = "deposit"
	OpWithdraw      Operation = "withdraw"
)

// Operations lists every business operation in a stable order.
var Operations = []Operation{OpLogin, OpRegister, OpResetPassword, OpLockUser, OpDeposit, OpWithdraw}

// RequiresSession reports whether the operation must pass the admission gate
// with an authenticated session. Login builds the session itself.
func (o Operation) RequiresSession() bool {
	return o != OpLogin && o != ""
}

// Transactional reports whether the operation moves funds and must be audited.
func (o Operation) Transactional() bool {
	return o == OpDeposit || o == OpWithdraw
}

// AuditCode is the single letter the audit log uses for the operation kind.
func (o Operation) AuditCode() string {
	switch o {
	case OpDeposit:
		return "d"
	case OpWithdraw:
		return "w"
	default:
		return string(o)
	}
}

// ParseOperation converts a user-facing name (including the legacy endpoint
// spellings such as "resetpass" and "lockuser") into an Operation.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "login":
		return OpLogin, nil
	case "register":
		return OpRegister, nil
	case "reset_password", "resetpass", "reset-password":
		return OpResetPassword, nil
	case "lock_user", "lockuser", "lock-user":
		return OpLockUser, nil
	case "deposit":
		return OpDeposit, nil
	case "withdraw":
		return OpWithdraw, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Request is one inbound business request, keyed by the target site.
type Request struct {
	Site      string
	Operation Operation
	Account   string
	Amount    string
	// Origin identifies where the request came from (the Host header at the HTTP boundary).
	Origin string
}

// OperationFromAuditCode reverses AuditCode.
func OperationFromAuditCode(code string) Operation {
	switch code {
	case "d":
		return OpDeposit
	case "w":
		return OpWithdraw
	}
	return Operation(code)
}
