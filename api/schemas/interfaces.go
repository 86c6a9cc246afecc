package schemas

import (
	"context"
	"time"
)

// -- Audit Interfaces --

// AuditLog receives transaction audit entries. Implementations must be safe
// for concurrent use; the coordinator writes from every request goroutine.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditQuery selects audit entries created within [From, To). A non-empty
// Origin restricts the result to entries recorded for that request origin.
type AuditQuery struct {
	From   time.Time
	To     time.Time
	Origin string
}

// AuditReader reads back audit entries for export.
type AuditReader interface {
	Entries(ctx context.Context, q AuditQuery) ([]AuditEntry, error)
}

// AuditStore is an audit log that can also be read for export.
type AuditStore interface {
	AuditLog
	AuditReader
	Close() error
}
