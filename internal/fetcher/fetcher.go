// Package fetcher implements plain HTTP document retrieval using Colly.
package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Colly downloads documents (PDFs and the like) outside the browser session.
// Robots compliance is handled by the traversal's own policy, so the
// collector's built-in handling is disabled.
type Colly struct {
	cfg  Config
	base *colly.Collector
}

// New builds a document fetcher.
func New(cfg Config) *Colly {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	return &Colly{cfg: cfg, base: c}
}

// FetchDocument retrieves the URL and verifies the response content type
// matches wantType. A mismatch is an error; the caller skips the item.
func (f *Colly) FetchDocument(ctx context.Context, url string, wantType string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch canceled: %w", err)
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := f.base.Clone()
	collector.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if !strings.Contains(strings.ToLower(contentType), wantType) {
			fetchErr = fmt.Errorf("unexpected content type %q (want %s)", contentType, wantType)
			return
		}
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("request failed (status %d): %w", r.StatusCode, err)
	})

	if err := collector.Visit(url); err != nil {
		return nil, fmt.Errorf("visit %s: %w", url, err)
	}
	collector.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty document body from %s", url)
	}
	return body, nil
}
