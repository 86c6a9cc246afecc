package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// bootstrapParallelism bounds concurrent startup logins; each one drives its
// own browser context.
const bootstrapParallelism = 4

// SiteLogin is a site to log in to at startup.
type SiteLogin struct {
	URL         string
	Credentials schemas.Credentials
}

type loginFunc func(ctx context.Context, site string, creds schemas.Credentials) schemas.Outcome

func bootstrap(ctx context.Context, sites []SiteLogin, login loginFunc, logger *zap.Logger) map[string]schemas.Outcome {
	var (
		mu       sync.Mutex
		outcomes = make(map[string]schemas.Outcome, len(sites))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bootstrapParallelism)
	for _, site := range sites {
		g.Go(func() error {
			out := login(gctx, site.URL, site.Credentials)
			if !out.Succeeded {
				logger.Warn("Startup login failed.", zap.String("site", site.URL), zap.String("message", out.Message))
			}
			mu.Lock()
			outcomes[site.URL] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Startup logins finished.", zap.Int("sites", len(sites)))
	return outcomes
}
