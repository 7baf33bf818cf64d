package model

import "time"

// ScrapeMetadata describes one source fetch.
type ScrapeMetadata struct {
	SourceURL        string    `json:"source_url"`
	ScrapedAt        time.Time `json:"scraped_at"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// ScrapeResult is the outcome of processing one source URL: the accepted
// candidates plus any absorbed per-URL errors. A blocked or empty source is a
// successful result with no data.
type ScrapeResult struct {
	Success  bool              `json:"success"`
	Data     []CandidateRecord `json:"data"`
	Errors   []string          `json:"errors,omitempty"`
	Metadata ScrapeMetadata    `json:"metadata"`
}

// DiscoverySummary aggregates one discovery run for the job row.
type DiscoverySummary struct {
	Accepted     int     `json:"accepted"`
	Stored       int     `json:"stored"`
	AverageScore float64 `json:"average_score"`
	HighQuality  int     `json:"high_quality"`
	TiersWalked  int     `json:"tiers_walked"`
}
