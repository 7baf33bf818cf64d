// Package dedupe enforces per-user uniqueness of discovered startups across a
// batch and against the persisted portfolio.
package dedupe

import (
	"context"

	"go.uber.org/zap"

	"github.com/agscout/agscout/internal/model"
)

// Lookup is the persistence probe: it returns true if the user already has a
// stored startup under the given name. The store's FindStartupByName satisfies
// it via a small adapter.
type Lookup func(ctx context.Context, userID, name string) (bool, error)

// Filter drops duplicate candidates. A fresh Filter is created per batch and
// carries the accepted name/website sets across Apply calls, so every page of
// the same discovery run shares one uniqueness scope. Not safe for concurrent
// use.
type Filter struct {
	lookup    Lookup
	seenNames map[string]struct{}
	seenSites map[string]struct{}
}

// New creates a Filter backed by the given persistence lookup. A nil lookup
// skips the cross-batch pass.
func New(lookup Lookup) *Filter {
	return &Filter{
		lookup:    lookup,
		seenNames: make(map[string]struct{}),
		seenSites: make(map[string]struct{}),
	}
}

// Apply returns the candidates that are unique within the batch and absent
// from the user's stored portfolio. Candidates are processed in extraction
// order and the first occurrence of a name or website wins; later duplicates
// are dropped without comparing scores.
//
// The in-batch pass is O(n) with O(1) set membership. The persistence check is
// one point lookup per surviving candidate, which is fine at batch sizes up
// to a few dozen. A lookup error keeps the candidate rather than dropping it:
// a duplicate row is recoverable, a silently lost discovery is not.
func (f *Filter) Apply(ctx context.Context, userID string, candidates []model.CandidateRecord) []model.CandidateRecord {
	unique := make([]model.CandidateRecord, 0, len(candidates))
	for _, c := range candidates {
		nameKey := model.NormalizeKey(c.Name)
		siteKey := model.NormalizeKey(c.Website)

		if _, dup := f.seenNames[nameKey]; dup {
			continue
		}
		if siteKey != "" {
			if _, dup := f.seenSites[siteKey]; dup {
				continue
			}
		}

		if f.lookup != nil {
			exists, err := f.lookup(ctx, userID, c.Name)
			if err != nil {
				zap.L().Warn("dedupe: portfolio lookup failed, keeping candidate",
					zap.String("name", c.Name),
					zap.Error(err),
				)
			} else if exists {
				continue
			}
		}

		f.seenNames[nameKey] = struct{}{}
		if siteKey != "" {
			f.seenSites[siteKey] = struct{}{}
		}
		unique = append(unique, c)
	}

	if dropped := len(candidates) - len(unique); dropped > 0 {
		zap.L().Debug("dedupe: dropped duplicates",
			zap.Int("in", len(candidates)),
			zap.Int("dropped", dropped),
		)
	}
	return unique
}
