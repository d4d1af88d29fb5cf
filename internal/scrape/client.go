// Package scrape implements the client for the hosted scrape service used by
// the first processing tier.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

// Config holds scrape-service connection and crawl options.
type Config struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	PageLimit    int           `mapstructure:"page_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ExcludePaths []string      `mapstructure:"exclude_paths"`
}

// Client talks to the scrape service over HTTP JSON.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a scrape client. BaseURL and APIKey are required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scrape.base_url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("scrape.api_key is required")
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type crawlRequest struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
	ExcludePaths  []string      `json:"excludePaths,omitempty"`
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

type pageData struct {
	Markdown string       `json:"markdown"`
	Metadata pageMetadata `json:"metadata"`
}

type pageMetadata struct {
	SourceURL string `json:"sourceURL"`
}

type crawlResponse struct {
	Success bool       `json:"success"`
	Error   string     `json:"error"`
	Data    []pageData `json:"data"`
}

type mapResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Links   []string `json:"links"`
}

type scrapeResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Data    pageData `json:"data"`
}

// CrawlSite crawls the website through the service and returns the scraped
// pages. The service applies the configured page limit and path exclusions.
func (c *Client) CrawlSite(ctx context.Context, website string) ([]crawler.ScrapePage, error) {
	req := crawlRequest{
		URL:           website,
		Limit:         c.cfg.PageLimit,
		ScrapeOptions: scrapeOptions{Formats: []string{"markdown"}},
		ExcludePaths:  c.cfg.ExcludePaths,
	}
	var resp crawlResponse
	if err := c.post(ctx, "/v1/crawl", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("crawl %s: service reported failure: %s", website, resp.Error)
	}

	pages := make([]crawler.ScrapePage, 0, len(resp.Data))
	for _, d := range resp.Data {
		pages = append(pages, crawler.ScrapePage{SourceURL: d.Metadata.SourceURL, Markdown: d.Markdown})
	}
	c.logger.Info("scrape service crawl finished",
		zap.String("website", website),
		zap.Int("pages", len(pages)))
	return pages, nil
}

// MapSite returns the URLs the service can discover on the website.
func (c *Client) MapSite(ctx context.Context, website string) ([]string, error) {
	var resp mapResponse
	if err := c.post(ctx, "/v1/map", map[string]string{"url": website}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("map %s: service reported failure: %s", website, resp.Error)
	}
	return resp.Links, nil
}

// ScrapeURL scrapes a single page.
func (c *Client) ScrapeURL(ctx context.Context, pageURL string) (crawler.ScrapePage, error) {
	req := map[string]any{
		"url":             pageURL,
		"formats":         []string{"markdown"},
		"onlyMainContent": true,
	}
	var resp scrapeResponse
	if err := c.post(ctx, "/v1/scrape", req, &resp); err != nil {
		return crawler.ScrapePage{}, err
	}
	if !resp.Success {
		return crawler.ScrapePage{}, fmt.Errorf("scrape %s: service reported failure: %s", pageURL, resp.Error)
	}
	return crawler.ScrapePage{SourceURL: resp.Data.Metadata.SourceURL, Markdown: resp.Data.Markdown}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("call %s: status %d: %s", path, resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
