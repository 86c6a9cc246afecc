// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/annonymususer90/my99exch/internal/automation"
	"github.com/annonymususer90/my99exch/internal/config"
)

const (
	browserStartTimeout = 60 * time.Second
	shutdownGracePeriod = 15 * time.Second
)

// Manager handles the browser process lifecycle. Every session page it opens
// lives in its own browser context, so sites never share cookies. The browser
// is launched on the first Open.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	pages    map[*Page]struct{}
	limiters map[string]*rate.Limiter
	closed   bool

	// Initialization state management
	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager. Initialization is deferred until the
// first session page is requested.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		logger:   logger.Named("browser"),
		pages:    make(map[*Page]struct{}),
		limiters: make(map[string]*rate.Limiter),
	}
	m.logger.Info("Browser manager created (initialization deferred).")
	return m
}

// initialize launches Chrome.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser...", zap.Bool("headless", m.cfg.Headless))

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), AllocatorOptions(m.cfg)...)
		ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(m.logger.Sugar().Errorf)}
		if m.cfg.Debug {
			ctxOpts = append(ctxOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
		}
		m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx, ctxOpts...)

		startCtx, cancel := context.WithTimeout(ctx, browserStartTimeout)
		defer cancel()
		// The first Run allocates the browser; it must run on the long-lived context.
		root := newPage(m.browserCtx, m.browserCancel, "", nil, m.logger)
		if err := root.start(startCtx); err != nil {
			m.allocCancel()
			m.initErr = fmt.Errorf("failed to launch browser: %w", err)
			return
		}
		m.logger.Info("Browser launched.")
	})
	return m.initErr
}

// Open creates the session page of site in a fresh browser context.
func (m *Manager) Open(ctx context.Context, site string) (automation.Handle, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("browser manager is shut down")
	}
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())
	p := newPage(tabCtx, cancel, site, m.limiter(site), m.logger.With(zap.String("site", site)))
	p.onClose = m.forget

	if err := p.start(ctx, m.setupActions()...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open session page for %s: %w", site, err)
	}

	m.mu.Lock()
	m.pages[p] = struct{}{}
	m.mu.Unlock()
	m.logger.Debug("Session page opened.", zap.String("site", site))
	return p, nil
}

func (m *Manager) setupActions() []chromedp.Action {
	var actions []chromedp.Action
	if len(m.cfg.ExtraHeaders) > 0 {
		headers := make(network.Headers, len(m.cfg.ExtraHeaders))
		for k, v := range m.cfg.ExtraHeaders {
			headers[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}
	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(m.cfg.ViewportWidth), int64(m.cfg.ViewportHeight)))
	}
	return actions
}

// limiter returns the navigation pacer shared by every page of site.
func (m *Manager) limiter(site string) *rate.Limiter {
	if m.cfg.NavigationRate <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[site]
	if !ok {
		burst := m.cfg.NavigationBurst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(m.cfg.NavigationRate), burst)
		m.limiters[site] = l
	}
	return l
}

func (m *Manager) forget(p *Page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, p)
}

// Shutdown closes every session page and the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pages := make([]*Page, 0, len(m.pages))
	for p := range m.pages {
		pages = append(pages, p)
	}
	m.mu.Unlock()

	m.logger.Info("Shutting down browser manager...", zap.Int("open_pages", len(pages)))
	for _, p := range pages {
		if err := p.Close(ctx); err != nil {
			m.logger.Warn("Failed to close session page.", zap.Error(err))
		}
	}

	// Waits for an initialization in flight and prevents a later one.
	m.initOnce.Do(func() {})
	if m.browserCtx == nil {
		return nil
	}
	closeCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(m.browserCtx) }()
	var err error
	select {
	case err = <-done:
	case <-closeCtx.Done():
		err = fmt.Errorf("timed out waiting for the browser to exit: %w", closeCtx.Err())
	}
	m.allocCancel()
	m.logger.Info("Browser manager shut down.")
	return err
}
