// Package crawler defines the core types shared across the ingestion pipeline:
// jobs moving between tiers, crawl artifacts, and the capability interfaces the
// orchestrators are wired against.
package crawler

import "time"

// JobStatus represents the lifecycle state of an ingestion job.
type JobStatus string

// Job status values carried in queue messages and persisted in the job store.
const (
	JobStatusPending         JobStatus = "pending"
	JobStatusTier1Processing JobStatus = "tier1_processing"
	JobStatusTier1Failed     JobStatus = "tier1_failed"
	JobStatusTier2Processing JobStatus = "tier2_processing"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
)

// Job is the unit of work handed between tiers. Its JSON encoding is the queue
// message schema; ownership transfers by queue handoff, never by shared memory.
type Job struct {
	JobID         string    `json:"job_id"`
	CompanyName   string    `json:"company_name"`
	Website       string    `json:"website"`
	Status        JobStatus `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// PageClass distinguishes rendered HTML pages from binary documents.
type PageClass string

// Page classifications produced by the traversal engine.
const (
	PageClassHTML     PageClass = "html_page"
	PageClassDocument PageClass = "document"
)

// CrawlResult is the terminal output of a fallback crawl, handed to the
// downstream processing boundary.
type CrawlResult struct {
	CompanyName        string   `json:"company_name"`
	JobID              string   `json:"job_id"`
	Website            string   `json:"website"`
	PagesCrawled       int      `json:"pages_crawled"`
	DocumentFiles      []string `json:"document_files"`
	RawPageFiles       []string `json:"raw_page_files"`
	ExtractedTextFiles []string `json:"extracted_text_files"`
}

// ScrapePage is one page record returned by the external scrape service.
type ScrapePage struct {
	SourceURL string
	Markdown  string
}
