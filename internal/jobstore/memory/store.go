// Package memory provides an in-memory job store for local development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

// Store keeps job rows in a map.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]crawler.Job
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]crawler.Job)}
}

// CreateJob records a job. Duplicate IDs are ignored, matching the
// Postgres store's insert-once behavior.
func (s *Store) CreateJob(_ context.Context, job crawler.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return nil
	}
	s.jobs[job.JobID] = job
	return nil
}

// UpdateStatus transitions a job's status.
func (s *Store) UpdateStatus(_ context.Context, jobID string, status crawler.JobStatus, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: %w", jobID, crawler.ErrJobNotFound)
	}
	job.Status = status
	job.FailureReason = failureReason
	s.jobs[jobID] = job
	return nil
}

// GetJob returns a stored job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, fmt.Errorf("get job %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return job, nil
}
