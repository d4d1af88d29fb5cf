package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

func testJob() crawler.Job {
	return crawler.Job{
		JobID:       "job-1",
		CompanyName: "Acme",
		Website:     "https://example.com",
		Status:      crawler.JobStatusPending,
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestCreateAndGetJob(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if err := store.CreateJob(context.Background(), testJob()); err != nil {
		t.Fatalf("CreateJob error = %v", err)
	}
	job, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob error = %v", err)
	}
	if job.Status != crawler.JobStatusPending || job.CompanyName != "Acme" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestCreateJobDuplicateKeepsFirst(t *testing.T) {
	t.Parallel()

	store := NewStore()
	first := testJob()
	if err := store.CreateJob(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	dup := first
	dup.CompanyName = "Imposter"
	if err := store.CreateJob(context.Background(), dup); err != nil {
		t.Fatalf("duplicate create must be a no-op, got %v", err)
	}
	job, _ := store.GetJob(context.Background(), "job-1")
	if job.CompanyName != "Acme" {
		t.Fatalf("duplicate create overwrote the row: %+v", job)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if err := store.CreateJob(context.Background(), testJob()); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateStatus(context.Background(), "job-1", crawler.JobStatusTier1Failed, "upstream 502"); err != nil {
		t.Fatal(err)
	}
	job, _ := store.GetJob(context.Background(), "job-1")
	if job.Status != crawler.JobStatusTier1Failed || job.FailureReason != "upstream 502" {
		t.Fatalf("unexpected job %+v", job)
	}

	if err := store.UpdateStatus(context.Background(), "job-1", crawler.JobStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	job, _ = store.GetJob(context.Background(), "job-1")
	if job.Status != crawler.JobStatusCompleted || job.FailureReason != "" {
		t.Fatalf("completion must clear the failure reason: %+v", job)
	}
}

func TestUnknownJobErrors(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, err := store.GetJob(context.Background(), "missing"); !errors.Is(err, crawler.ErrJobNotFound) {
		t.Fatalf("GetJob error = %v, want ErrJobNotFound", err)
	}
	if err := store.UpdateStatus(context.Background(), "missing", crawler.JobStatusCompleted, ""); !errors.Is(err, crawler.ErrJobNotFound) {
		t.Fatalf("UpdateStatus error = %v, want ErrJobNotFound", err)
	}
}
