package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// Authenticator re-runs the login script for a registered site whose session
// was lost.
type Authenticator interface {
	Reauthenticate(ctx context.Context, site string) (schemas.Outcome, error)
}

// Release ends an admission. Calling it more than once is safe.
type Release func()

// Gate admits business requests to a site one at a time. An admission holds
// the site's busy slot until its Release is called.
type Gate struct {
	registry *Registry
	auth     Authenticator
	logger   *zap.Logger
}

// NewGate creates an admission gate over registry.
func NewGate(registry *Registry, auth Authenticator, logger *zap.Logger) *Gate {
	return &Gate{registry: registry, auth: auth, logger: logger.Named("gate")}
}

// Admit waits for site to be free, then checks it has credentials and an
// authenticated session, re-authenticating once if it does not. Operations
// that need no session pass straight through.
func (g *Gate) Admit(ctx context.Context, op schemas.Operation, site string) (Release, error) {
	if !op.RequiresSession() {
		return func() {}, nil
	}

	release, err := g.Hold(ctx, site)
	if err != nil {
		return nil, err
	}

	if _, ok := g.registry.Get(site); !ok {
		release()
		return nil, fmt.Errorf("%w for %s", schemas.ErrCredentialsUnavailable, site)
	}

	if g.registry.IsAuthenticated(ctx, site) {
		return release, nil
	}

	g.logger.Info("Session is not authenticated, logging in again.", zap.String("site", site), zap.String("operation", string(op)))
	out, err := g.auth.Reauthenticate(ctx, site)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", schemas.ErrLoginRequiredFailed, err)
	}
	if !out.Succeeded {
		release()
		return nil, fmt.Errorf("%w: %s", schemas.ErrLoginRequiredFailed, out.Message)
	}
	return release, nil
}

// Hold waits for site to be free and marks it busy without any session check.
// Login uses it to serialize against operations on the same site.
func (g *Gate) Hold(ctx context.Context, site string) (Release, error) {
	start := time.Now()
	if err := g.registry.MarkBusy(ctx, site); err != nil {
		return nil, fmt.Errorf("gave up waiting for %s: %w", site, err)
	}
	if waited := time.Since(start); waited > time.Second {
		g.logger.Debug("Waited for busy site.", zap.String("site", site), zap.Duration("waited", waited))
	}

	var once sync.Once
	return func() { once.Do(func() { g.registry.ClearBusy(site) }) }, nil
}
