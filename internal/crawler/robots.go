package crawler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const robotsMaxBytes = 1 << 20

// RobotsPolicy holds the disallowed path prefixes for one domain. Matching is
// deliberately simplified prefix matching; wildcard and Allow precedence rules
// are not honored. A nil policy allows everything.
type RobotsPolicy struct {
	disallowed []string
}

// NewRobotsPolicy builds a policy from raw disallowed prefixes.
func NewRobotsPolicy(disallowed []string) *RobotsPolicy {
	prefixes := make([]string, 0, len(disallowed))
	for _, p := range disallowed {
		p = strings.TrimSpace(p)
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &RobotsPolicy{disallowed: prefixes}
}

// Allowed reports whether the URL path escapes every disallowed prefix.
func (p *RobotsPolicy) Allowed(rawURL string) bool {
	if p == nil || len(p.disallowed) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, prefix := range p.disallowed {
		if strings.HasPrefix(u.Path, prefix) {
			return false
		}
	}
	return true
}

// FetchRobotsPolicy retrieves and parses robots.txt for the website's domain.
// Fetch failures and non-200 responses yield an empty policy: the crawl
// proceeds unrestricted rather than failing the job.
func FetchRobotsPolicy(ctx context.Context, client *http.Client, website string, userAgent string, logger *zap.Logger) *RobotsPolicy {
	parsed, err := url.Parse(website)
	if err != nil {
		return NewRobotsPolicy(nil)
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return NewRobotsPolicy(nil)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("robots fetch failed; crawling unrestricted",
			zap.String("url", robotsURL), zap.Error(err))
		return NewRobotsPolicy(nil)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return NewRobotsPolicy(nil)
	}

	policy := parseRobots(io.LimitReader(resp.Body, robotsMaxBytes))
	logger.Debug("robots policy loaded",
		zap.String("url", robotsURL), zap.Int("disallowed", len(policy.disallowed)))
	return policy
}

func parseRobots(r io.Reader) *RobotsPolicy {
	var disallowed []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "disallow:") {
			continue
		}
		value := strings.TrimSpace(line[len("disallow:"):])
		if value != "" {
			disallowed = append(disallowed, value)
		}
	}
	return NewRobotsPolicy(disallowed)
}
