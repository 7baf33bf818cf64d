package model

import "time"

// JobStatus represents the current state of a discovery or enrichment job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// DiscoveryJob tracks one multi-source discovery run.
//
// A job is created with status processing and receives exactly one terminal
// transition. ProcessedURLs is checkpointed after each source URL so a stalled
// job is distinguishable from one that never started.
type DiscoveryJob struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	SourceURLs        []string          `json:"source_urls"`
	Status            JobStatus         `json:"status"`
	TotalURLs         int               `json:"total_urls"`
	ProcessedURLs     int               `json:"processed_urls"`
	SuccessfulScrapes int               `json:"successful_scrapes"`
	FailedScrapes     int               `json:"failed_scrapes"`
	Result            *DiscoverySummary `json:"result,omitempty"`
	Error             string            `json:"error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// ContactResearchJob tracks one contact-enrichment run for a stored startup.
type ContactResearchJob struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	StartupID   string           `json:"startup_id"`
	StartupName string           `json:"startup_name"`
	Website     string           `json:"website,omitempty"`
	Status      JobStatus        `json:"status"`
	Result      *ContactFindings `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// ContactFindings holds the outcome of one enrichment run.
type ContactFindings struct {
	Emails           []string `json:"emails,omitempty"`
	Phones           []string `json:"phones,omitempty"`
	LinkedInURL      string   `json:"linkedin_url,omitempty"`
	LinkedInVerified bool     `json:"linkedin_verified"`
	FromCache        bool     `json:"from_cache,omitempty"`
	StepErrors       []string `json:"step_errors,omitempty"`
}
