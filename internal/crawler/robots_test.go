package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestRobotsPolicyPrefixMatch(t *testing.T) {
	t.Parallel()

	policy := NewRobotsPolicy([]string{"/private/", "/admin"})

	if policy.Allowed("https://example.com/private/report") {
		t.Fatal("disallowed prefix should block")
	}
	if policy.Allowed("https://example.com/admin") {
		t.Fatal("exact disallowed path should block")
	}
	if !policy.Allowed("https://example.com/about") {
		t.Fatal("unlisted path should be allowed")
	}
	// Simplified prefix matching: no wildcard expansion.
	if !policy.Allowed("https://example.com/public/private/") {
		t.Fatal("prefix matching must anchor at path start")
	}
}

func TestRobotsPolicyNilAllowsAll(t *testing.T) {
	t.Parallel()

	var policy *RobotsPolicy
	if !policy.Allowed("https://example.com/anything") {
		t.Fatal("nil policy must allow everything")
	}
}

func TestParseRobots(t *testing.T) {
	t.Parallel()

	body := `User-agent: *
Disallow: /private/
disallow: /tmp
Allow: /public/
# Disallow: /commented
Disallow:
`
	policy := parseRobots(strings.NewReader(body))
	if policy.Allowed("https://example.com/private/x") {
		t.Fatal("expected /private/ blocked")
	}
	if policy.Allowed("https://example.com/tmp") {
		t.Fatal("expected lowercase directive honored")
	}
	if !policy.Allowed("https://example.com/public/") {
		t.Fatal("Allow lines are ignored, path should pass")
	}
	if !policy.Allowed("https://example.com/commented") {
		t.Fatal("comment lines must not produce rules")
	}
}

func TestFetchRobotsPolicy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /internal/\n"))
	}))
	defer srv.Close()

	policy := FetchRobotsPolicy(context.Background(), srv.Client(), srv.URL, "test-bot", zap.NewNop())
	if policy.Allowed(srv.URL + "/internal/docs") {
		t.Fatal("fetched policy should block /internal/")
	}
	if !policy.Allowed(srv.URL + "/about") {
		t.Fatal("fetched policy should allow /about")
	}
}

func TestFetchRobotsPolicyMissingFileAllowsAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	policy := FetchRobotsPolicy(context.Background(), srv.Client(), srv.URL, "test-bot", zap.NewNop())
	if !policy.Allowed(srv.URL + "/anything") {
		t.Fatal("missing robots.txt must not restrict the crawl")
	}
}

func TestFetchRobotsPolicyUnreachableHostAllowsAll(t *testing.T) {
	t.Parallel()

	policy := FetchRobotsPolicy(context.Background(), &http.Client{}, "http://127.0.0.1:1", "test-bot", zap.NewNop())
	if !policy.Allowed("http://127.0.0.1:1/page") {
		t.Fatal("fetch failure must not restrict the crawl")
	}
}
