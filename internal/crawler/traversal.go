package crawler

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/korrarahuldev/company-crawler/internal/metrics"
)

// TraversalConfig holds the settings for one crawl session.
type TraversalConfig struct {
	MaxPages         int
	RespectRobots    bool
	UserAgent        string
	ExcludedPatterns []*regexp.Regexp
	// CrawlQPS throttles page fetches when > 0.
	CrawlQPS float64
}

// Traverser drives breadth-first discovery of a company website, producing
// classified artifacts. Traversal within a job is strictly sequential; the
// browser session is too heavyweight to share.
type Traverser struct {
	backend BrowserBackend
	docs    DocumentFetcher
	store   *ArtifactStore
	robots  *http.Client
	cfg     TraversalConfig
	logger  *zap.Logger
}

// NewTraverser constructs a Traverser.
func NewTraverser(
	backend BrowserBackend,
	docs DocumentFetcher,
	store *ArtifactStore,
	cfg TraversalConfig,
	logger *zap.Logger,
) *Traverser {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Traverser{
		backend: backend,
		docs:    docs,
		store:   store,
		robots:  &http.Client{Timeout: 10 * time.Second},
		cfg:     cfg,
		logger:  logger,
	}
}

// Crawl walks the job's website breadth-first up to the page budget and
// persists every artifact. Page-level failures are absorbed; session-level
// failures abort only this job. The browser session is torn down on every
// exit path, including panics.
func (t *Traverser) Crawl(ctx context.Context, job Job) (result CrawlResult, err error) {
	root, err := NormalizeURL(job.Website)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("normalize root url: %w", err)
	}
	domain, err := RegistrableDomain(root)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("root domain: %w", err)
	}

	var policy *RobotsPolicy
	if t.cfg.RespectRobots {
		policy = FetchRobotsPolicy(ctx, t.robots, root, t.cfg.UserAgent, t.logger)
	}

	session, err := t.backend.NewSession(ctx)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			t.logger.Warn("close browser session", zap.String("job_id", job.JobID), zap.Error(cerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl aborted: %v", r)
		}
	}()

	var limiter *rate.Limiter
	if t.cfg.CrawlQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(t.cfg.CrawlQPS), 1)
	}

	s := &crawlSession{
		traverser: t,
		job:       job,
		domain:    domain,
		policy:    policy,
		frontier:  NewFrontier(root),
		limiter:   limiter,
		session:   session,
	}
	if err := s.run(ctx); err != nil {
		return CrawlResult{}, err
	}

	t.logger.Info("crawl completed",
		zap.String("job_id", job.JobID),
		zap.String("website", root),
		zap.Int("pages_crawled", s.frontier.VisitedCount()))

	return CrawlResult{
		CompanyName:        job.CompanyName,
		JobID:              job.JobID,
		Website:            root,
		PagesCrawled:       s.frontier.VisitedCount(),
		DocumentFiles:      s.documentFiles,
		RawPageFiles:       s.rawPageFiles,
		ExtractedTextFiles: s.textFiles,
	}, nil
}

// crawlSession carries the mutable state of one traversal.
type crawlSession struct {
	traverser *Traverser
	job       Job
	domain    string
	policy    *RobotsPolicy
	frontier  *Frontier
	limiter   *rate.Limiter
	session   BrowserSession

	documentFiles []string
	rawPageFiles  []string
	textFiles     []string
}

func (s *crawlSession) run(ctx context.Context) error {
	t := s.traverser
	for s.frontier.VisitedCount() < t.cfg.MaxPages {
		current, ok := s.frontier.Pop()
		if !ok {
			break
		}
		if s.frontier.Visited(current) || !s.policy.Allowed(current) {
			continue
		}
		s.frontier.MarkVisited(current)

		t.logger.Info("crawling page",
			zap.String("job_id", s.job.JobID),
			zap.Int("page", s.frontier.VisitedCount()),
			zap.Int("budget", t.cfg.MaxPages),
			zap.String("url", current))

		if err := s.wait(ctx); err != nil {
			return err
		}

		if wantType, isDoc := DocumentContentType(current); isDoc {
			s.fetchDocument(ctx, current, wantType)
			continue
		}
		s.fetchPage(ctx, current)
	}
	return ctx.Err()
}

// fetchDocument downloads one document; failures are logged and skipped.
func (s *crawlSession) fetchDocument(ctx context.Context, docURL, wantType string) {
	t := s.traverser
	data, err := t.docs.FetchDocument(ctx, docURL, wantType)
	if err != nil {
		t.logger.Warn("document fetch failed",
			zap.String("job_id", s.job.JobID), zap.String("url", docURL), zap.Error(err))
		return
	}
	location, err := t.store.SaveDocument(ctx, s.job.CompanyName, s.job.JobID, docURL, data)
	if err != nil {
		t.logger.Error("save document failed",
			zap.String("job_id", s.job.JobID), zap.String("url", docURL), zap.Error(err))
		return
	}
	s.documentFiles = append(s.documentFiles, location)
	metrics.PageCrawled(string(PageClassDocument))
	metrics.ArtifactWritten("document")
}

// fetchPage renders one page, persists its artifacts, and expands its links.
func (s *crawlSession) fetchPage(ctx context.Context, pageURL string) {
	t := s.traverser
	start := time.Now()
	markup, err := s.session.Navigate(ctx, pageURL)
	metrics.ObserveFetchDuration(time.Since(start))
	if err != nil {
		t.logger.Warn("page fetch failed",
			zap.String("job_id", s.job.JobID), zap.String("url", pageURL), zap.Error(err))
		return
	}
	metrics.PageCrawled(string(PageClassHTML))

	rawPath, err := t.store.SaveRawPage(ctx, s.job.CompanyName, s.job.JobID, pageURL, []byte(markup))
	if err != nil {
		t.logger.Error("save raw page failed",
			zap.String("job_id", s.job.JobID), zap.String("url", pageURL), zap.Error(err))
	} else {
		s.rawPageFiles = append(s.rawPageFiles, rawPath)
		metrics.ArtifactWritten("raw_page")

		if text, terr := ExtractText(markup); terr != nil {
			t.logger.Warn("text extraction failed",
				zap.String("job_id", s.job.JobID), zap.String("url", pageURL), zap.Error(terr))
		} else if textPath, serr := t.store.SaveExtractedText(ctx, s.job.CompanyName, s.job.JobID, pageURL, []byte(text)); serr != nil {
			t.logger.Error("save extracted text failed",
				zap.String("job_id", s.job.JobID), zap.String("url", pageURL), zap.Error(serr))
		} else {
			s.textFiles = append(s.textFiles, textPath)
			metrics.ArtifactWritten("extracted_text")
		}
	}

	links, err := ExtractLinks(markup, pageURL)
	if err != nil {
		t.logger.Warn("link extraction failed",
			zap.String("job_id", s.job.JobID), zap.String("url", pageURL), zap.Error(err))
		return
	}
	s.expand(ctx, links)
}

// expand filters discovered links into the frontier. Discovery order
// determines traversal order, giving deterministic shallow-first BFS.
// Cross-domain document links are fetched immediately rather than enqueued.
func (s *crawlSession) expand(ctx context.Context, links []string) {
	t := s.traverser
	for _, link := range links {
		normalized, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		if s.excluded(normalized) || IsImageURL(normalized) {
			continue
		}
		if !s.policy.Allowed(normalized) {
			continue
		}

		wantType, isDoc := DocumentContentType(normalized)
		if SameDomain(normalized, s.domain) {
			s.frontier.Push(normalized)
			continue
		}
		if !isDoc {
			continue
		}
		// Off-domain document: fetch once now, never enqueue.
		if s.frontier.Visited(normalized) || s.frontier.VisitedCount() >= t.cfg.MaxPages {
			continue
		}
		s.frontier.MarkVisited(normalized)
		if err := s.wait(ctx); err != nil {
			return
		}
		s.fetchDocument(ctx, normalized, wantType)
	}
}

func (s *crawlSession) excluded(rawURL string) bool {
	for _, pattern := range s.traverser.cfg.ExcludedPatterns {
		if pattern.MatchString(rawURL) {
			return true
		}
	}
	return false
}

func (s *crawlSession) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("crawl rate limit: %w", err)
	}
	return nil
}
