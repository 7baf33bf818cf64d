// Package model defines the records and job rows shared across the discovery
// and enrichment pipeline.
package model

import (
	"strings"
	"time"
)

// NormalizeKey lower-cases and trims a name or website for uniqueness checks.
// The dedup filter and the store's find-by-name lookup must agree on this.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContactInfo holds contact details attached to a stored startup.
type ContactInfo struct {
	Emails           []string   `json:"emails,omitempty"`
	Phones           []string   `json:"phones,omitempty"`
	LinkedInURL      string     `json:"linkedin_url,omitempty"`
	LinkedInVerified bool       `json:"linkedin_verified"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`
}

// Fresh reports whether the contact info was updated within maxAge.
func (c *ContactInfo) Fresh(maxAge time.Duration) bool {
	if c == nil || c.LastUpdated == nil {
		return false
	}
	return time.Since(*c.LastUpdated) < maxAge
}

// CandidateRecord is one startup extracted from a single page fetch. It lives
// only in memory; it becomes a StoredStartup after passing validation and
// dedup.
type CandidateRecord struct {
	Name        string         `json:"name"`
	Website     string         `json:"website,omitempty"`
	Description string         `json:"description,omitempty"`
	City        string         `json:"city,omitempty"`
	Country     string         `json:"country,omitempty"`
	Industry    string         `json:"industry"`
	ContactInfo *ContactInfo   `json:"contact_info,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Meta returns the metadata map, allocating it on first use.
func (c *CandidateRecord) Meta() map[string]any {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	return c.Metadata
}

// StoredStartup is a validated, deduplicated startup persisted under a user's
// portfolio. Uniqueness on (user, normalized name) and (user, normalized
// website) is enforced by the dedup filter at insert time, not by the store.
type StoredStartup struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Website         string         `json:"website,omitempty"`
	Description     string         `json:"description,omitempty"`
	City            string         `json:"city,omitempty"`
	Country         string         `json:"country,omitempty"`
	Industry        string         `json:"industry,omitempty"`
	SourceURL       string         `json:"source_url,omitempty"`
	SourceName      string         `json:"source_name,omitempty"`
	IsValidated     bool           `json:"is_validated"`
	ValidationScore int            `json:"validation_score"`
	ContactInfo     *ContactInfo   `json:"contact_info,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
