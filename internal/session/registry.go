// File: internal/session/registry.go
package session

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/idna"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/automation"
)

const (
	releaseTimeout = 10 * time.Second
	// DefaultLocationTimeout bounds the location read of IsAuthenticated.
	DefaultLocationTimeout = 10 * time.Second
)

// Record is the session state of one target site.
type Record struct {
	Site        string
	Credentials schemas.Credentials
	// Handle is owned by the record; replacing the record releases it.
	Handle automation.Handle
}

// Registry maps site identifiers to session records. Each site also owns a
// busy slot that serializes operations against it. A slot lives while it is
// held or waited on, independent of the record, so a first login can hold it.
type Registry struct {
	mu              sync.RWMutex
	records         map[string]*Record
	slots           map[string]*slot
	loginMarker     string
	locationTimeout time.Duration
	logger          *zap.Logger
}

// slot is a site's busy flag. refs counts holders and waiters.
type slot struct {
	ch   chan struct{}
	refs int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLocationTimeout bounds how long IsAuthenticated waits for the session's
// location. Non-positive values keep the default.
func WithLocationTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.locationTimeout = d
		}
	}
}

// NewRegistry creates an empty registry. A session whose current location
// contains loginMarker is considered unauthenticated.
func NewRegistry(loginMarker string, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if loginMarker == "" {
		loginMarker = "login"
	}
	r := &Registry{
		records:         make(map[string]*Record),
		slots:           make(map[string]*slot),
		loginMarker:     strings.ToLower(loginMarker),
		locationTimeout: DefaultLocationTimeout,
		logger:          logger.Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeSite canonicalizes a site identifier: lower-cased scheme and host,
// IDNA host in ASCII form, no trailing slash, no query or fragment.
func NormalizeSite(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("site identifier is empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid site identifier %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid site identifier %q: unsupported scheme %q", raw, u.Scheme)
	}
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil || host == "" {
		return "", fmt.Errorf("invalid site identifier %q: bad host", raw)
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	return strings.ToLower(u.Scheme) + "://" + host + strings.TrimRight(u.EscapedPath(), "/"), nil
}

// Get returns a copy of the record for site.
func (r *Registry) Get(site string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[site]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Put installs rec for site. A prior record's handle is released first
// unless rec reuses it.
func (r *Registry) Put(ctx context.Context, site string, rec Record) {
	rec.Site = site
	r.mu.Lock()
	prev, existed := r.records[site]
	r.records[site] = &rec
	r.mu.Unlock()

	if existed && prev.Handle != nil && prev.Handle != rec.Handle {
		r.release(ctx, site, prev.Handle)
	}
	r.logger.Debug("Session record installed.", zap.String("site", site), zap.Bool("replaced", existed))
}

// Remove drops the record for site and releases its handle.
func (r *Registry) Remove(ctx context.Context, site string) {
	r.mu.Lock()
	prev, existed := r.records[site]
	delete(r.records, site)
	r.mu.Unlock()

	if existed && prev.Handle != nil {
		r.release(ctx, site, prev.Handle)
	}
}

// Sites lists the registered site identifiers.
func (r *Registry) Sites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sites := make([]string, 0, len(r.records))
	for s := range r.records {
		sites = append(sites, s)
	}
	sort.Strings(sites)
	return sites
}

// acquire returns the slot of site, creating it if needed, and counts the
// caller as a user until unref.
func (r *Registry) acquire(site string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[site]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		r.slots[site] = sl
	}
	sl.refs++
	return sl.ch
}

// unref drops one user of the slot of site and forgets the slot once it has
// none left.
func (r *Registry) unref(site string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[site]
	if !ok {
		return
	}
	if sl.refs--; sl.refs <= 0 {
		delete(r.slots, site)
	}
}

// MarkBusy waits until site is free and marks it busy. Waiting ends early
// with ctx's error.
func (r *Registry) MarkBusy(ctx context.Context, site string) error {
	ch := r.acquire(site)
	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		r.unref(site)
		return ctx.Err()
	}
}

// TryMarkBusy marks site busy if it is free.
func (r *Registry) TryMarkBusy(site string) bool {
	ch := r.acquire(site)
	select {
	case ch <- struct{}{}:
		return true
	default:
		r.unref(site)
		return false
	}
}

// ClearBusy frees site. Clearing a free site is a no-op.
func (r *Registry) ClearBusy(site string) {
	r.mu.RLock()
	sl, ok := r.slots[site]
	r.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case <-sl.ch:
		r.unref(site)
	default:
	}
}

// Busy reports whether an operation holds site.
func (r *Registry) Busy(site string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl, ok := r.slots[site]
	return ok && len(sl.ch) > 0
}

// IsAuthenticated probes the session's current location: a location without
// the login marker means authenticated. A missing record, or a read that fails
// or outlasts the location timeout, counts as unauthenticated.
func (r *Registry) IsAuthenticated(ctx context.Context, site string) bool {
	rec, ok := r.Get(site)
	if !ok || rec.Handle == nil {
		return false
	}
	locCtx, cancel := context.WithTimeout(ctx, r.locationTimeout)
	defer cancel()
	loc, err := rec.Handle.Location(locCtx)
	if err != nil {
		r.logger.Warn("Authentication probe failed.", zap.String("site", site), zap.Error(err))
		return false
	}
	return loc != "" && !strings.Contains(strings.ToLower(loc), r.loginMarker)
}

// Close releases every handle and empties the registry.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	records := r.records
	r.records = make(map[string]*Record)
	r.mu.Unlock()

	for site, rec := range records {
		if rec.Handle != nil {
			r.release(ctx, site, rec.Handle)
		}
	}
}

func (r *Registry) release(ctx context.Context, site string, h automation.Handle) {
	closeCtx, cancel := context.WithTimeout(automation.Detach(ctx), releaseTimeout)
	defer cancel()
	if err := h.Close(closeCtx); err != nil {
		r.logger.Warn("Failed to release session handle.", zap.String("site", site), zap.Error(err))
	}
}
