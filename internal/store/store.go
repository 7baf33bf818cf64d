// Package store persists startups and job rows behind a backend-agnostic
// interface with SQLite and Postgres implementations.
package store

import (
	"context"
	"errors"

	"github.com/agscout/agscout/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyTerminal is returned when a terminal job update races a previous
// one. Job rows receive exactly one terminal transition; the loser of the
// race sees this error instead of silently overwriting.
var ErrAlreadyTerminal = errors.New("store: job already in a terminal state")

// JobFilter narrows discovery-job listings.
type JobFilter struct {
	Status model.JobStatus
	Limit  int
	Offset int
}

// Store is the persistence interface for the discovery and enrichment
// pipeline. Point lookups and primary-key updates only; uniqueness across a
// user's portfolio is the dedup filter's job, not a storage constraint.
type Store interface {
	// Startups
	InsertStartup(ctx context.Context, s *model.StoredStartup) error
	GetStartup(ctx context.Context, id string) (*model.StoredStartup, error)
	// FindStartupByName matches on the normalized (lower-cased, trimmed) name.
	FindStartupByName(ctx context.Context, userID, name string) (*model.StoredStartup, error)
	UpdateStartupContact(ctx context.Context, id string, ci *model.ContactInfo) error
	ListStartups(ctx context.Context, userID string, limit, offset int) ([]model.StoredStartup, error)

	// Discovery jobs
	CreateDiscoveryJob(ctx context.Context, userID string, sourceURLs []string) (*model.DiscoveryJob, error)
	CheckpointDiscoveryJob(ctx context.Context, id string, processed, successful, failed int) error
	CompleteDiscoveryJob(ctx context.Context, id string, status model.JobStatus, result *model.DiscoverySummary, errMsg string) error
	GetDiscoveryJob(ctx context.Context, id string) (*model.DiscoveryJob, error)
	ListDiscoveryJobs(ctx context.Context, userID string, filter JobFilter) ([]model.DiscoveryJob, error)

	// Contact research jobs
	CreateContactJob(ctx context.Context, userID string, startup *model.StoredStartup) (*model.ContactResearchJob, error)
	CompleteContactJob(ctx context.Context, id string, findings *model.ContactFindings) error
	FailContactJob(ctx context.Context, id string, errMsg string) error
	GetContactJob(ctx context.Context, id string) (*model.ContactResearchJob, error)
	GetContactJobByStartup(ctx context.Context, startupID string) (*model.ContactResearchJob, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
