package schemas

import "time"

// AuditEntry is one transaction audit record, written once per deposit or
// withdraw attempt regardless of outcome.
type AuditEntry struct {
	ID        int64         `json:"id,omitempty"`
	Site      string        `json:"site"`
	Operation Operation     `json:"operation"`
	Account   string        `json:"account"`
	Amount    string        `json:"amount"`
	Elapsed   time.Duration `json:"elapsed"`
	Message   string        `json:"message"`
	Succeeded bool          `json:"succeeded"`
	Origin    string        `json:"origin"`
	CreatedAt time.Time     `json:"created_at"`
}
