package crawler

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/About", "https://example.com/About"},
		{"strips default https port", "https://example.com:443/team", "https://example.com/team"},
		{"strips default http port", "http://example.com:80/", "http://example.com/"},
		{"keeps explicit port", "https://example.com:8443/x", "https://example.com:8443/x"},
		{"drops fragment", "https://example.com/page#section-2", "https://example.com/page"},
		{"sorts query parameters", "https://example.com/search?b=2&a=1", "https://example.com/search?a=1&b=2"},
		{"trims surrounding whitespace", "  https://example.com/  ", "https://example.com/"},
		{"adds root path", "https://example.com", "https://example.com/"},
		{"adds root path before query", "https://example.com?a=1", "https://example.com/?a=1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeURL(tc.in)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error = %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeURLEquivalentFormsCollapse(t *testing.T) {
	t.Parallel()

	a, err := NormalizeURL("https://Example.com:443/about?b=2&a=1#top")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NormalizeURL("https://example.com/about?a=1&b=2")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("equivalent URLs normalized differently: %q vs %q", a, b)
	}

	bare, err := NormalizeURL("https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	slash, err := NormalizeURL("https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if bare != slash {
		t.Fatalf("bare host and explicit root normalized differently: %q vs %q", bare, slash)
	}
}

func TestNormalizeURLRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"ftp://example.com/file",
		"mailto:hi@example.com",
		"/relative/path",
		"",
	} {
		if _, err := NormalizeURL(in); err == nil {
			t.Fatalf("NormalizeURL(%q) expected error", in)
		}
	}
}

func TestSameDomain(t *testing.T) {
	t.Parallel()

	if !SameDomain("https://example.com/careers", "example.com") {
		t.Fatal("expected same domain")
	}
	if SameDomain("https://cdn.example.com/logo", "example.com") {
		t.Fatal("subdomain should not match host-scoped domain")
	}
	if SameDomain("https://other.com/", "example.com") {
		t.Fatal("different domain should not match")
	}
}

func TestDocumentContentType(t *testing.T) {
	t.Parallel()

	ct, ok := DocumentContentType("https://example.com/reports/annual.PDF")
	if !ok || ct != "application/pdf" {
		t.Fatalf("got (%q, %v), want (application/pdf, true)", ct, ok)
	}
	if _, ok := DocumentContentType("https://example.com/about"); ok {
		t.Fatal("plain page classified as document")
	}
	// Only the path decides, not the query.
	if _, ok := DocumentContentType("https://example.com/view?file=x.pdf"); ok {
		t.Fatal("query string should not classify as document")
	}
}

func TestIsImageURL(t *testing.T) {
	t.Parallel()

	for _, u := range []string{
		"https://example.com/logo.png",
		"https://example.com/photo.JPG",
		"https://example.com/banner.jpeg",
		"https://example.com/anim.gif",
	} {
		if !IsImageURL(u) {
			t.Fatalf("IsImageURL(%q) = false, want true", u)
		}
	}
	if IsImageURL("https://example.com/report.pdf") {
		t.Fatal("document classified as image")
	}
}
