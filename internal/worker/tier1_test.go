package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
	jsmemory "github.com/korrarahuldev/company-crawler/internal/jobstore/memory"
	pubmemory "github.com/korrarahuldev/company-crawler/internal/publisher/memory"
	queuememory "github.com/korrarahuldev/company-crawler/internal/queue/memory"
	memstorage "github.com/korrarahuldev/company-crawler/internal/storage/memory"
)

const (
	testPrimaryQueue  = "company_scrape_queue"
	testFallbackQueue = "company_crawl_queue"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type fakeScraper struct {
	pages []crawler.ScrapePage
	err   error
	calls int
}

func (s *fakeScraper) CrawlSite(context.Context, string) ([]crawler.ScrapePage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.pages, nil
}

type tier1Fixture struct {
	worker    *Tier1
	transport *queuememory.Transport
	jobs      *jsmemory.Store
	publisher *pubmemory.Publisher
	provider  *memstorage.Store
}

func newTier1Fixture(t *testing.T, scraper *fakeScraper) *tier1Fixture {
	t.Helper()
	transport := queuememory.NewTransport(time.Minute, realClock{})
	t.Cleanup(func() { _ = transport.Close() })
	jobs := jsmemory.NewStore()
	publisher := pubmemory.NewPublisher()
	provider := memstorage.New()
	artifacts := crawler.NewArtifactStore(provider, realClock{})

	w := NewTier1(Tier1Config{
		PrimaryQueue:  testPrimaryQueue,
		FallbackQueue: testFallbackQueue,
		Concurrency:   2,
	}, transport, jobs, scraper, artifacts, publisher, zap.NewNop())
	return &tier1Fixture{worker: w, transport: transport, jobs: jobs, publisher: publisher, provider: provider}
}

func enqueueJob(t *testing.T, f *tier1Fixture) crawler.Job {
	t.Helper()
	job := crawler.Job{
		JobID:       "job-1",
		CompanyName: "Acme",
		Website:     "https://example.com",
		Status:      crawler.JobStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.jobs.CreateJob(context.Background(), job))
	body, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, f.transport.Send(context.Background(), testPrimaryQueue, body))
	return job
}

func receiveOne(t *testing.T, f *tier1Fixture, queue string) crawler.Message {
	t.Helper()
	msgs, err := f.transport.Receive(context.Background(), queue, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

func TestTier1SuccessCompletesJob(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{pages: []crawler.ScrapePage{
		{SourceURL: "https://example.com/", Markdown: "# Acme"},
		{SourceURL: "https://example.com/about", Markdown: "About us"},
	}}
	f := newTier1Fixture(t, scraper)
	enqueueJob(t, f)

	msg := receiveOne(t, f, testPrimaryQueue)
	f.worker.handle(context.Background(), msg)

	job, err := f.jobs.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusCompleted, job.Status)
	require.Empty(t, job.FailureReason)

	require.Contains(t, f.provider.Paths(), "extracted_text/Acme_job-1/scrape_results.csv")
	require.Len(t, f.publisher.Messages(), 1)
	require.Equal(t, 0, f.transport.Len(testPrimaryQueue), "message settled after success")
	require.Equal(t, 0, f.transport.Len(testFallbackQueue))
}

func TestTier1FailureHandsOffToFallbackQueue(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{err: fmt.Errorf("upstream 502")}
	f := newTier1Fixture(t, scraper)
	enqueueJob(t, f)

	msg := receiveOne(t, f, testPrimaryQueue)
	f.worker.handle(context.Background(), msg)

	job, err := f.jobs.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusTier1Failed, job.Status)
	require.Contains(t, job.FailureReason, "upstream 502")

	fallback := receiveOne(t, f, testFallbackQueue)
	var forwarded crawler.Job
	require.NoError(t, json.Unmarshal(fallback.Body, &forwarded))
	require.Equal(t, "job-1", forwarded.JobID)
	require.Equal(t, crawler.JobStatusTier1Failed, forwarded.Status)
	require.Contains(t, forwarded.FailureReason, "upstream 502")

	require.Equal(t, 0, f.transport.Len(testPrimaryQueue), "original message settled after handoff")
	require.Empty(t, f.publisher.Messages(), "no completion event on failover")
}

func TestTier1EmptyResultIsFailure(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{pages: nil}
	f := newTier1Fixture(t, scraper)
	enqueueJob(t, f)

	msg := receiveOne(t, f, testPrimaryQueue)
	f.worker.handle(context.Background(), msg)

	job, err := f.jobs.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusTier1Failed, job.Status)
	require.Equal(t, 1, f.transport.Len(testFallbackQueue))
}

func TestTier1DropsMalformedMessage(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{}
	f := newTier1Fixture(t, scraper)
	require.NoError(t, f.transport.Send(context.Background(), testPrimaryQueue, []byte("not json")))

	msg := receiveOne(t, f, testPrimaryQueue)
	f.worker.handle(context.Background(), msg)

	require.Equal(t, 0, scraper.calls, "malformed message must not reach the scraper")
	require.Equal(t, 0, f.transport.Len(testPrimaryQueue), "poison message settled")
	require.Equal(t, 0, f.transport.Len(testFallbackQueue))
}

func TestTier1RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newTier1Fixture(t, &fakeScraper{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestTier1RunProcessesEndToEnd(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{pages: []crawler.ScrapePage{{SourceURL: "https://example.com/", Markdown: "hi"}}}
	f := newTier1Fixture(t, scraper)
	enqueueJob(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		job, err := f.jobs.GetJob(context.Background(), "job-1")
		return err == nil && job.Status == crawler.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
