package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/automation"
)

// Page is one Chrome tab driven through chromedp. A site's session page owns
// its browser context; pages spawned from it share that context's cookies and
// close with it.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	site    string
	limiter *rate.Limiter
	logger  *zap.Logger
	onClose func(*Page)

	closeOnce sync.Once
	closeErr  error
}

var (
	_ automation.Handle  = (*Page)(nil)
	_ automation.Spawner = (*Page)(nil)
)

func newPage(ctx context.Context, cancel context.CancelFunc, site string, limiter *rate.Limiter, logger *zap.Logger) *Page {
	return &Page{ctx: ctx, cancel: cancel, site: site, limiter: limiter, logger: logger}
}

// start runs the first actions on the tab, which attaches it. The tab's
// lifetime is bound to p.ctx, so ctx only bounds how long we wait.
func (p *Page) start(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(p.ctx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// run executes actions on the tab, bounded by ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return fmt.Errorf("page for %s is closed", p.site)
	}
	runCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("navigation pacing: %w", err)
		}
	}
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *Page) WaitFor(ctx context.Context, loc automation.Locator) error {
	by, err := queryOption(loc)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.WaitVisible(loc.Query, by))
}

func (p *Page) Type(ctx context.Context, loc automation.Locator, text string) error {
	by, err := queryOption(loc)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.SendKeys(loc.Query, text, by, chromedp.NodeVisible))
}

func (p *Page) Click(ctx context.Context, loc automation.Locator) error {
	by, err := queryOption(loc)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Click(loc.Query, by, chromedp.NodeVisible))
}

func (p *Page) Evaluate(ctx context.Context, fn string, res any, args ...any) error {
	expr, err := callExpression(fn, args)
	if err != nil {
		return err
	}
	err = p.run(ctx, chromedp.Evaluate(expr, res, chromedp.EvalAsValue, awaitPromise))
	if errors.Is(err, chromedp.ErrJSNull) || errors.Is(err, chromedp.ErrJSUndefined) {
		return fmt.Errorf("%w: script returned no value", schemas.ErrTargetNotFound)
	}
	return err
}

func (p *Page) Text(ctx context.Context, loc automation.Locator) (string, error) {
	by, err := queryOption(loc)
	if err != nil {
		return "", err
	}
	var text string
	if err := p.run(ctx, chromedp.Text(loc.Query, &text, by, chromedp.NodeVisible)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Spawn opens a sibling tab in the same browser context.
func (p *Page) Spawn(ctx context.Context) (automation.Handle, error) {
	if p.ctx.Err() != nil {
		return nil, fmt.Errorf("page for %s is closed", p.site)
	}
	tabCtx, cancel := chromedp.NewContext(p.ctx)
	child := newPage(tabCtx, cancel, p.site, p.limiter, p.logger)
	if err := child.start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab for %s: %w", p.site, err)
	}
	return child, nil
}

// Close closes the tab, and the browser context when p owns it.
func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(p.ctx) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				p.closeErr = err
			}
		case <-ctx.Done():
			p.cancel()
			p.closeErr = fmt.Errorf("closing page for %s: %w", p.site, ctx.Err())
		}
		if p.onClose != nil {
			p.onClose(p)
		}
		p.logger.Debug("Page closed.", zap.String("site", p.site))
	})
	return p.closeErr
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true).WithSilent(true)
}
