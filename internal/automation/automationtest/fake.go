// Package automationtest provides a scripted in-memory automation.Handle for
// tests that must not launch a browser.
package automationtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/annonymususer90/my99exch/internal/automation"
)

// Call is one recorded interaction.
type Call struct {
	Page    int
	Kind    string
	Target  string
	Payload string
}

// Site is the shared state of a fake target site. Pages opened on it see the
// same elements, the way tabs of one browser context see the same panel.
type Site struct {
	mu            sync.Mutex
	elements      map[string]string
	calls         []Call
	onClick       map[string]func(p *Page)
	onType        map[string]func(p *Page, text string)
	onNavigate    func(p *Page, url string)
	evalResult    any
	evalErr       error
	spawnErr      error
	stallSpawn    bool
	stallLocation bool
	pages         []*Page
}

// NewSite creates an empty fake site.
func NewSite() *Site {
	return &Site{
		elements:   make(map[string]string),
		onClick:    make(map[string]func(*Page)),
		onType:     make(map[string]func(*Page, string)),
		evalResult: true,
	}
}

// Set makes loc visible with the given text.
func (s *Site) Set(loc automation.Locator, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[loc.String()] = text
}

// Remove hides loc.
func (s *Site) Remove(loc automation.Locator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, loc.String())
}

// OnClick registers a side effect for clicks on loc.
func (s *Site) OnClick(loc automation.Locator, fn func(p *Page)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick[loc.String()] = fn
}

// OnType registers a side effect for typing into loc.
func (s *Site) OnType(loc automation.Locator, fn func(p *Page, text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onType[loc.String()] = fn
}

// OnNavigate registers a side effect for every navigation.
func (s *Site) OnNavigate(fn func(p *Page, url string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNavigate = fn
}

// SetEvalResult sets the value every Evaluate call returns.
func (s *Site) SetEvalResult(v any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evalResult = v
	s.evalErr = err
}

// FailSpawn makes Spawn return err.
func (s *Site) FailSpawn(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawnErr = err
}

// StallSpawn makes Spawn block until its context ends, like a tab that never
// attaches.
func (s *Site) StallSpawn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stallSpawn = true
}

// StallLocation makes Location block until its context ends.
func (s *Site) StallLocation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stallLocation = true
}

// NewPage opens a page at location.
func (s *Site) NewPage(location string) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Page{site: s, id: len(s.pages) + 1, location: location}
	s.pages = append(s.pages, p)
	return p
}

// Pages returns every page opened on the site, including spawned ones.
func (s *Site) Pages() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Page(nil), s.pages...)
}

// Calls returns a copy of the recorded interactions.
func (s *Site) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many calls of kind hit target ("" matches any target).
func (s *Site) Count(kind string, target automation.Locator) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Kind == kind && (target.IsZero() || c.Target == target.String()) {
			n++
		}
	}
	return n
}

func (s *Site) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *Site) lookup(loc automation.Locator) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.elements[loc.String()]
	return text, ok
}

// Page is a fake automation.Handle bound to a Site.
type Page struct {
	site *Site
	id   int

	mu       sync.Mutex
	location string
	closed   bool
}

var (
	_ automation.Handle  = (*Page)(nil)
	_ automation.Spawner = (*Page)(nil)
)

// ID identifies the page in recorded calls.
func (p *Page) ID() int { return p.id }

// Site returns the site the page is bound to.
func (p *Page) Site() *Site { return p.site }

// SetLocation moves the page without recording a navigation.
func (p *Page) SetLocation(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = url
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.live(); err != nil {
		return err
	}
	p.site.record(Call{Page: p.id, Kind: "navigate", Target: url})
	p.SetLocation(url)
	p.site.mu.Lock()
	hook := p.site.onNavigate
	p.site.mu.Unlock()
	if hook != nil {
		hook(p, url)
	}
	return ctx.Err()
}

// WaitFor returns once loc is present, or blocks until ctx is done.
func (p *Page) WaitFor(ctx context.Context, loc automation.Locator) error {
	if err := p.live(); err != nil {
		return err
	}
	p.site.record(Call{Page: p.id, Kind: "wait", Target: loc.String()})
	return p.await(ctx, loc)
}

func (p *Page) Type(ctx context.Context, loc automation.Locator, text string) error {
	if err := p.live(); err != nil {
		return err
	}
	if err := p.await(ctx, loc); err != nil {
		return err
	}
	p.site.record(Call{Page: p.id, Kind: "type", Target: loc.String(), Payload: text})
	p.site.mu.Lock()
	hook := p.site.onType[loc.String()]
	p.site.mu.Unlock()
	if hook != nil {
		hook(p, strings.TrimSuffix(text, automation.KeyEnter))
	}
	return nil
}

func (p *Page) Click(ctx context.Context, loc automation.Locator) error {
	if err := p.live(); err != nil {
		return err
	}
	if err := p.await(ctx, loc); err != nil {
		return err
	}
	p.site.record(Call{Page: p.id, Kind: "click", Target: loc.String()})
	p.site.mu.Lock()
	hook := p.site.onClick[loc.String()]
	p.site.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Evaluate(ctx context.Context, fn string, res any, args ...any) error {
	if err := p.live(); err != nil {
		return err
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return err
	}
	p.site.record(Call{Page: p.id, Kind: "evaluate", Target: fn, Payload: string(payload)})
	p.site.mu.Lock()
	v, evalErr := p.site.evalResult, p.site.evalErr
	p.site.mu.Unlock()
	if evalErr != nil {
		return evalErr
	}
	if res == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, res)
}

func (p *Page) Text(ctx context.Context, loc automation.Locator) (string, error) {
	if err := p.live(); err != nil {
		return "", err
	}
	if err := p.await(ctx, loc); err != nil {
		return "", err
	}
	p.site.record(Call{Page: p.id, Kind: "text", Target: loc.String()})
	text, _ := p.site.lookup(loc)
	return text, nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	if err := p.live(); err != nil {
		return "", err
	}
	p.site.mu.Lock()
	stall := p.site.stallLocation
	p.site.mu.Unlock()
	if stall {
		<-ctx.Done()
		return "", ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Spawn opens a sibling page on the same site at the current location.
func (p *Page) Spawn(ctx context.Context) (automation.Handle, error) {
	if err := p.live(); err != nil {
		return nil, err
	}
	p.site.mu.Lock()
	spawnErr, stall := p.site.spawnErr, p.site.stallSpawn
	p.site.mu.Unlock()
	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if spawnErr != nil {
		return nil, spawnErr
	}
	p.mu.Lock()
	loc := p.location
	p.mu.Unlock()
	return p.site.NewPage(loc), nil
}

func (p *Page) live() error {
	if p.Closed() {
		return fmt.Errorf("page %d is closed", p.id)
	}
	return nil
}

// await polls for loc until it is present or ctx is done.
func (p *Page) await(ctx context.Context, loc automation.Locator) error {
	for {
		if _, ok := p.site.lookup(loc); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}
