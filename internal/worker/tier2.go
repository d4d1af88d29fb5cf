package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
	"github.com/korrarahuldev/company-crawler/internal/metrics"
)

// Tier2Config wires the fallback worker.
type Tier2Config struct {
	FallbackQueue string `mapstructure:"fallback_queue"`
}

// Tier2 consumes the fallback queue and runs the self-hosted crawl. Browser
// sessions are expensive, so exactly one job is in flight at a time.
type Tier2 struct {
	cfg       Tier2Config
	transport crawler.Transport
	jobs      crawler.JobStore
	traverser *crawler.Traverser
	publisher crawler.Publisher
	logger    *zap.Logger
}

// NewTier2 builds the tier-2 worker.
func NewTier2(
	cfg Tier2Config,
	transport crawler.Transport,
	jobs crawler.JobStore,
	traverser *crawler.Traverser,
	publisher crawler.Publisher,
	logger *zap.Logger,
) *Tier2 {
	return &Tier2{
		cfg:       cfg,
		transport: transport,
		jobs:      jobs,
		traverser: traverser,
		publisher: publisher,
		logger:    logger,
	}
}

// Run receives one message at a time until the context is canceled.
func (w *Tier2) Run(ctx context.Context) error {
	w.logger.Info("tier2 worker started", zap.String("queue", w.cfg.FallbackQueue))

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("tier2 worker stopping")
			return nil
		}

		msgs, err := w.transport.Receive(ctx, w.cfg.FallbackQueue, 1, receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("tier2 worker stopping")
				return nil
			}
			metrics.TransportError()
			w.logger.Error("receive from fallback queue failed", zap.Error(err))
			sleep(ctx, receiveBackoff)
			continue
		}
		for _, msg := range msgs {
			w.handle(ctx, msg)
		}
	}
}

func (w *Tier2) handle(ctx context.Context, msg crawler.Message) {
	var job crawler.Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.logger.Error("dropping malformed queue message",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		w.deleteMessage(ctx, msg.Receipt)
		return
	}

	logger := w.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("company", job.CompanyName))
	logger.Info("tier2 crawling website",
		zap.String("website", job.Website),
		zap.String("tier1_failure", job.FailureReason))

	if err := w.jobs.UpdateStatus(ctx, job.JobID, crawler.JobStatusTier2Processing, job.FailureReason); err != nil {
		logger.Warn("mark tier2_processing failed", zap.Error(err))
	}

	result, err := w.traverser.Crawl(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted by shutdown, not a crawl defect: the message stays
			// on the queue and is redelivered after the visibility window.
			logger.Info("tier2 crawl interrupted, leaving message for redelivery", zap.Error(err))
			return
		}
		logger.Error("tier2 crawl failed", zap.Error(err))
		if uerr := w.jobs.UpdateStatus(ctx, job.JobID, crawler.JobStatusFailed, err.Error()); uerr != nil {
			logger.Warn("mark failed failed", zap.Error(uerr))
		}
		metrics.JobProcessed("tier2", "failed")
		w.deleteMessage(ctx, msg.Receipt)
		return
	}

	if err := w.jobs.UpdateStatus(ctx, job.JobID, crawler.JobStatusCompleted, ""); err != nil {
		logger.Warn("mark completed failed", zap.Error(err))
	}
	if _, err := w.publisher.Publish(ctx, result); err != nil {
		logger.Warn("publish crawl result failed", zap.Error(err))
	}

	metrics.JobProcessed("tier2", "completed")
	logger.Info("tier2 job completed",
		zap.Int("pages_crawled", result.PagesCrawled),
		zap.Int("documents", len(result.DocumentFiles)))
	w.deleteMessage(ctx, msg.Receipt)
}

func (w *Tier2) deleteMessage(ctx context.Context, receipt string) {
	if err := w.transport.Delete(ctx, w.cfg.FallbackQueue, receipt); err != nil {
		metrics.TransportError()
		w.logger.Warn("delete queue message failed",
			zap.String("queue", w.cfg.FallbackQueue),
			zap.Error(err))
	}
}
