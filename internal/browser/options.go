package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/annonymususer90/my99exch/internal/automation"
	"github.com/annonymususer90/my99exch/internal/config"
)

// AllocatorOptions builds the Chrome launch options for cfg on top of
// chromedp's defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		// Needed for stability in containers.
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("no-zygote", true),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecutablePath))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	for _, arg := range cfg.Args {
		name, value := parseFlag(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseFlag turns "--name=value" or "--name" into a chromedp flag.
func parseFlag(arg string) (string, any) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil
	}
	if name, value, ok := strings.Cut(arg, "="); ok {
		return name, value
	}
	return arg, true
}

// queryOption maps a locator strategy onto a chromedp selector strategy.
func queryOption(l automation.Locator) (chromedp.QueryOption, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	switch l.Strategy() {
	case automation.ByXPath:
		return chromedp.BySearch, nil
	case automation.ByID:
		return chromedp.ByID, nil
	case automation.ByJSPath:
		return chromedp.ByJSPath, nil
	}
	return chromedp.ByQuery, nil
}

// callExpression applies the function expression fn to args. The arguments
// are embedded as a JSON array literal, never spliced into fn.
func callExpression(fn string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	return fmt.Sprintf("(%s).apply(null, %s)", strings.TrimSpace(fn), raw), nil
}
