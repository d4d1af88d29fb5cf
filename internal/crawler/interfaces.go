package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by JobStore implementations for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Message is one dequeued queue entry awaiting acknowledgement. Receipt
// identifies this particular delivery for Delete; a message not deleted before
// the transport's visibility window lapses is redelivered.
type Message struct {
	ID      string
	Body    []byte
	Receipt string
}

// Transport provides send/receive/delete semantics over named logical queues.
// Receive long-polls up to wait for at most max messages. Delivery is
// at-least-once: consumers must delete only after the outcome is known and
// tolerate reprocessing.
type Transport interface {
	Send(ctx context.Context, queue string, body []byte) error
	Receive(ctx context.Context, queue string, max int, wait time.Duration) ([]Message, error)
	Delete(ctx context.Context, queue string, receipt string) error
	Close() error
}

// BrowserSession is one live rendering session, scoped to a single crawl.
// Navigate loads the URL, waits for the page to settle, and returns the
// rendered markup. Close must be called on every exit path.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) (string, error)
	Close() error
}

// BrowserBackend opens rendering sessions. The concrete backend is selected
// once at startup; callers never branch on the implementation type.
type BrowserBackend interface {
	NewSession(ctx context.Context) (BrowserSession, error)
	Close() error
}

// DocumentFetcher retrieves a binary document over plain HTTP, verifying the
// response content type against wantType.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string, wantType string) ([]byte, error)
}

// JobStore persists job lifecycle state so the status endpoint reflects true
// pipeline progress.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, failureReason string) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// ScrapeClient is the tier-1 contract with the external scrape service.
type ScrapeClient interface {
	CrawlSite(ctx context.Context, website string) ([]ScrapePage, error)
}

// Publisher pushes completion events across the downstream processing boundary.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
