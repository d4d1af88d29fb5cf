// Package chromedpbrowser renders pages with headless Chrome via chromedp.
package chromedpbrowser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

// Config controls the chromedp backend.
type Config struct {
	Headless          bool
	NavigationTimeout time.Duration
	SettleWait        time.Duration
	UserAgent         string
}

// Backend owns the Chrome exec allocator shared by all sessions.
type Backend struct {
	cfg             Config
	allocator       context.Context
	allocatorCancel context.CancelFunc
	logger          *zap.Logger
}

// New launches the allocator and warms up a throwaway browser so a missing
// Chrome installation fails at startup.
func New(cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.SettleWait <= 0 {
		cfg.SettleWait = 500 * time.Millisecond
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	warmupCtx, warmupCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(warmupCtx); err != nil {
		warmupCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	warmupCancel()

	return &Backend{
		cfg:             cfg,
		allocator:       allocCtx,
		allocatorCancel: allocCancel,
		logger:          logger,
	}, nil
}

// NewSession opens one browser tab reused for every navigation of a crawl.
func (b *Backend) NewSession(ctx context.Context) (crawler.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session context: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(b.allocator)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open chromedp tab: %w", err)
	}
	return &session{backend: b, tabCtx: tabCtx, tabCancel: tabCancel}, nil
}

// Close tears down the allocator and every remaining session.
func (b *Backend) Close() error {
	b.allocatorCancel()
	return nil
}

type session struct {
	backend   *Backend
	tabCtx    context.Context
	tabCancel context.CancelFunc
}

// Navigate loads the URL, waits for the document body and a short settle
// period, then returns the rendered DOM.
func (s *session) Navigate(ctx context.Context, url string) (string, error) {
	taskCtx, cancel := context.WithTimeout(s.tabCtx, s.backend.cfg.NavigationTimeout)
	defer cancel()

	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.backend.cfg.SettleWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if s.backend.cfg.UserAgent != "" {
		tasks = append(chromedp.Tasks{
			emulation.SetUserAgentOverride(s.backend.cfg.UserAgent),
		}, tasks...)
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (s *session) Close() error {
	s.tabCancel()
	return nil
}

// forwardCancel propagates cancellation of the caller's context into the
// chromedp task context.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
