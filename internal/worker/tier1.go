// Package worker runs the two tier consumers: the scrape-service pool and the
// single-flight fallback crawler.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
	"github.com/korrarahuldev/company-crawler/internal/metrics"
)

const (
	receiveWait    = 20 * time.Second
	receiveBackoff = 5 * time.Second
)

// Tier1Config wires the first-tier worker.
type Tier1Config struct {
	PrimaryQueue  string `mapstructure:"primary_queue"`
	FallbackQueue string `mapstructure:"fallback_queue"`
	Concurrency   int    `mapstructure:"concurrency"`
}

// Tier1 consumes the primary queue and drives the external scrape service.
// Failures are not terminal: the job is annotated and handed to the fallback
// queue for the second tier.
type Tier1 struct {
	cfg       Tier1Config
	transport crawler.Transport
	jobs      crawler.JobStore
	scraper   crawler.ScrapeClient
	artifacts *crawler.ArtifactStore
	publisher crawler.Publisher
	logger    *zap.Logger
}

// NewTier1 builds the tier-1 worker.
func NewTier1(
	cfg Tier1Config,
	transport crawler.Transport,
	jobs crawler.JobStore,
	scraper crawler.ScrapeClient,
	artifacts *crawler.ArtifactStore,
	publisher crawler.Publisher,
	logger *zap.Logger,
) *Tier1 {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &Tier1{
		cfg:       cfg,
		transport: transport,
		jobs:      jobs,
		scraper:   scraper,
		artifacts: artifacts,
		publisher: publisher,
		logger:    logger,
	}
}

// Run receives and processes messages until the context is canceled. Each
// batch is fanned out to at most Concurrency goroutines; the loop does not
// fetch the next batch until the current one is fully settled.
func (w *Tier1) Run(ctx context.Context) error {
	w.logger.Info("tier1 worker started",
		zap.String("queue", w.cfg.PrimaryQueue),
		zap.Int("concurrency", w.cfg.Concurrency))

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("tier1 worker stopping")
			return nil
		}

		msgs, err := w.transport.Receive(ctx, w.cfg.PrimaryQueue, w.cfg.Concurrency, receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("tier1 worker stopping")
				return nil
			}
			metrics.TransportError()
			w.logger.Error("receive from primary queue failed", zap.Error(err))
			sleep(ctx, receiveBackoff)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		var wg sync.WaitGroup
		for _, msg := range msgs {
			wg.Add(1)
			go func(msg crawler.Message) {
				defer wg.Done()
				metrics.Tier1WorkerBusy(1)
				defer metrics.Tier1WorkerBusy(-1)
				w.handle(ctx, msg)
			}(msg)
		}
		wg.Wait()
	}
}

// handle processes one delivery end to end. The message is deleted only after
// the outcome is recorded, so a crash mid-processing means redelivery, never
// a lost job.
func (w *Tier1) handle(ctx context.Context, msg crawler.Message) {
	var job crawler.Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.logger.Error("dropping malformed queue message",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		w.deleteMessage(ctx, w.cfg.PrimaryQueue, msg.Receipt)
		return
	}

	logger := w.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("company", job.CompanyName))
	logger.Info("tier1 processing job", zap.String("website", job.Website))

	if err := w.jobs.UpdateStatus(ctx, job.JobID, crawler.JobStatusTier1Processing, ""); err != nil {
		logger.Warn("mark tier1_processing failed", zap.Error(err))
	}

	pages, err := w.scraper.CrawlSite(ctx, job.Website)
	if err == nil && len(pages) == 0 {
		err = fmt.Errorf("scrape service returned no pages for %s", job.Website)
	}
	if err != nil {
		w.fallback(ctx, job, msg, err, logger)
		return
	}

	csvPath, err := w.artifacts.SaveScrapeResults(ctx, job.CompanyName, job.JobID, pages)
	if err != nil {
		w.fallback(ctx, job, msg, fmt.Errorf("persist scrape results: %w", err), logger)
		return
	}

	if err := w.jobs.UpdateStatus(ctx, job.JobID, crawler.JobStatusCompleted, ""); err != nil {
		logger.Warn("mark completed failed", zap.Error(err))
	}
	if _, err := w.publisher.Publish(ctx, map[string]any{
		"job_id":       job.JobID,
		"company_name": job.CompanyName,
		"website":      job.Website,
		"tier":         "tier1",
		"pages":        len(pages),
		"results_file": csvPath,
	}); err != nil {
		logger.Warn("publish completion event failed", zap.Error(err))
	}

	metrics.JobProcessed("tier1", "completed")
	logger.Info("tier1 job completed",
		zap.Int("pages", len(pages)),
		zap.String("results_file", csvPath))
	w.deleteMessage(ctx, w.cfg.PrimaryQueue, msg.Receipt)
}

// fallback annotates the failure, re-enqueues the job on the fallback queue,
// and settles the original delivery. The original message stays in the
// primary queue if the handoff itself fails, so the job is retried rather
// than lost.
func (w *Tier1) fallback(ctx context.Context, job crawler.Job, msg crawler.Message, cause error, logger *zap.Logger) {
	logger.Warn("tier1 scrape failed, handing job to fallback crawler", zap.Error(cause))

	job.Status = crawler.JobStatusTier1Failed
	job.FailureReason = cause.Error()
	if err := w.jobs.UpdateStatus(ctx, job.JobID, crawler.JobStatusTier1Failed, job.FailureReason); err != nil {
		logger.Warn("mark tier1_failed failed", zap.Error(err))
	}

	body, err := json.Marshal(job)
	if err != nil {
		logger.Error("marshal fallback job failed", zap.Error(err))
		return
	}
	if err := w.transport.Send(ctx, w.cfg.FallbackQueue, body); err != nil {
		metrics.TransportError()
		logger.Error("send to fallback queue failed, leaving message for redelivery", zap.Error(err))
		return
	}

	metrics.JobProcessed("tier1", "failed_over")
	w.deleteMessage(ctx, w.cfg.PrimaryQueue, msg.Receipt)
}

func (w *Tier1) deleteMessage(ctx context.Context, queue, receipt string) {
	if err := w.transport.Delete(ctx, queue, receipt); err != nil {
		metrics.TransportError()
		w.logger.Warn("delete queue message failed",
			zap.String("queue", queue),
			zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
