// Package browser selects the rendering backend configured at startup.
package browser

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/browser/chromedpbrowser"
	"github.com/korrarahuldev/company-crawler/internal/browser/rodbrowser"
	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

// Supported backend names.
const (
	BackendChromedp = "chromedp"
	BackendRod      = "rod"
)

// Config captures the knobs shared by both backends.
type Config struct {
	Backend           string
	Headless          bool
	NavigationTimeout time.Duration
	SettleWait        time.Duration
	UserAgent         string
}

// Select instantiates the configured backend. An unavailable backend runtime
// (no Chrome binary, launcher failure) surfaces here as an error, making it a
// fatal startup condition rather than a per-job one.
func Select(cfg Config, logger *zap.Logger) (crawler.BrowserBackend, error) {
	switch cfg.Backend {
	case BackendChromedp:
		backend, err := chromedpbrowser.New(chromedpbrowser.Config{
			Headless:          cfg.Headless,
			NavigationTimeout: cfg.NavigationTimeout,
			SettleWait:        cfg.SettleWait,
			UserAgent:         cfg.UserAgent,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("chromedp backend unavailable: %w", err)
		}
		return backend, nil
	case BackendRod:
		backend, err := rodbrowser.New(rodbrowser.Config{
			Headless:          cfg.Headless,
			NavigationTimeout: cfg.NavigationTimeout,
			SettleWait:        cfg.SettleWait,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("rod backend unavailable: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.Backend)
	}
}
