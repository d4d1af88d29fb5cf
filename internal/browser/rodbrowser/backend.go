// Package rodbrowser renders pages with Chrome driven by go-rod.
package rodbrowser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

// Config controls the rod backend.
type Config struct {
	Headless          bool
	NavigationTimeout time.Duration
	SettleWait        time.Duration
}

// Backend owns the launched browser shared by all sessions.
type Backend struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *zap.Logger
}

// New launches Chrome via rod's launcher and connects to it. A missing or
// unlaunchable browser fails here, at startup.
func New(cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.SettleWait <= 0 {
		cfg.SettleWait = 500 * time.Millisecond
	}

	l := launcher.New().Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &Backend{cfg: cfg, browser: browser, launcher: l, logger: logger}, nil
}

// NewSession opens one page reused for every navigation of a crawl.
func (b *Backend) NewSession(ctx context.Context) (crawler.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session context: %w", err)
	}
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &session{backend: b, page: page}, nil
}

// Close shuts down the browser and its launcher process.
func (b *Backend) Close() error {
	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	b.launcher.Kill()
	return nil
}

type session struct {
	backend *Backend
	page    *rod.Page
}

// Navigate loads the URL, waits for the load event plus a settle period, and
// returns the rendered DOM.
func (s *session) Navigate(ctx context.Context, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(ctx, s.backend.cfg.NavigationTimeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	time.Sleep(s.backend.cfg.SettleWait)

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (s *session) Close() error {
	if err := s.page.Close(); err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}
