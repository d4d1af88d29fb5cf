package crawler

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/korrarahuldev/company-crawler/internal/storage"
)

// Artifact roots. Each is subdivided per job into "{company_name}_{job_id}".
const (
	documentsRoot     = "documents"
	rawPagesRoot      = "raw_pages"
	extractedTextRoot = "extracted_text"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-_.]`)

// ArtifactStore lays crawl artifacts out on a storage provider. Each job owns
// an isolated subtree; reruns of the same job overwrite prior artifacts, which
// keeps at-least-once reprocessing safe.
type ArtifactStore struct {
	provider storage.Provider
	clock    Clock
}

// NewArtifactStore builds an artifact store over the given provider.
func NewArtifactStore(provider storage.Provider, clock Clock) *ArtifactStore {
	return &ArtifactStore{provider: provider, clock: clock}
}

// SaveRawPage persists rendered markup and returns the stored path.
func (s *ArtifactStore) SaveRawPage(ctx context.Context, companyName, jobID, pageURL string, markup []byte) (string, error) {
	name := pageFilename(pageURL) + ".html"
	return s.save(ctx, rawPagesRoot, companyName, jobID, name, markup)
}

// SaveExtractedText persists plain text derived from a page.
func (s *ArtifactStore) SaveExtractedText(ctx context.Context, companyName, jobID, pageURL string, text []byte) (string, error) {
	name := pageFilename(pageURL) + ".txt"
	return s.save(ctx, extractedTextRoot, companyName, jobID, name, text)
}

// SaveDocument persists a fetched document under its URL's final path
// segment, falling back to a timestamp-based name when the URL has none.
func (s *ArtifactStore) SaveDocument(ctx context.Context, companyName, jobID, docURL string, data []byte) (string, error) {
	name := documentFilename(docURL, s.clock.Now())
	return s.save(ctx, documentsRoot, companyName, jobID, name, data)
}

// SaveScrapeResults persists external scrape output as one CSV per job under
// the extracted-text root, one row per page record.
func (s *ArtifactStore) SaveScrapeResults(ctx context.Context, companyName, jobID string, pages []ScrapePage) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"source_url", "markdown_text", "source_type"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, page := range pages {
		if err := w.Write([]string{page.SourceURL, page.Markdown, "company_website"}); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return s.save(ctx, extractedTextRoot, companyName, jobID, "scrape_results.csv", buf.Bytes())
}

func (s *ArtifactStore) save(ctx context.Context, root, companyName, jobID, filename string, data []byte) (string, error) {
	objectPath := path.Join(root, jobDirName(companyName, jobID), filename)
	location, err := s.provider.Save(ctx, objectPath, data)
	if err != nil {
		return "", fmt.Errorf("save artifact %s: %w", objectPath, err)
	}
	return location, nil
}

func jobDirName(companyName, jobID string) string {
	return sanitizeFilename(companyName) + "_" + jobID
}

// pageFilename derives a filename from the URL path, replacing unsafe
// characters and falling back to "index" for an empty path.
func pageFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "index"
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "index"
	}
	return sanitizeFilename(p)
}

// documentFilename takes the URL's final path segment, or a timestamp-based
// name when the path yields nothing usable.
func documentFilename(rawURL string, now time.Time) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return sanitizeFilename(base)
		}
	}
	return fmt.Sprintf("document_%d.pdf", now.Unix())
}

func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
