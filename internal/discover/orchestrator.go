// Package discover implements the source orchestrator: it walks seed URLs and
// prioritized source tiers, fetches under retry and blocklist policy, runs
// extraction, validation, and dedup, and owns the discovery job lifecycle.
package discover

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agscout/agscout/internal/dedupe"
	"github.com/agscout/agscout/internal/extract"
	"github.com/agscout/agscout/internal/fetch"
	"github.com/agscout/agscout/internal/model"
	"github.com/agscout/agscout/internal/resilience"
	"github.com/agscout/agscout/internal/score"
	"github.com/agscout/agscout/internal/store"
)

// Options configures one discovery run.
type Options struct {
	// SeedURLs are the directly-provided sources, processed before any tier
	// fallback. May be empty, in which case the tier walk starts immediately.
	SeedURLs []string

	// TargetCount stops the run early once this many candidates are accepted.
	// Default 10.
	TargetCount int

	// MaxRetries is the retry count per URL for transient failures. Default 2.
	MaxRetries int

	// RetryDelay is the fixed inter-attempt delay. Default 2s.
	RetryDelay time.Duration

	// Validate applies the loose score gate to extracted candidates. When
	// false every extracted candidate is accepted.
	Validate bool

	// Store persists accepted candidates as portfolio records.
	Store bool

	// Country biases search-tier queries and is recorded on the job.
	Country string
}

func (o *Options) setDefaults() {
	if o.TargetCount <= 0 {
		o.TargetCount = 10
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
}

// Outcome is the full result of one discovery run.
type Outcome struct {
	Job     *model.DiscoveryJob    `json:"job"`
	Results []model.ScrapeResult   `json:"results"`
	Stored  []model.StoredStartup  `json:"stored,omitempty"`
	Summary model.DiscoverySummary `json:"summary"`
}

// Orchestrator sequences multi-source discovery. One Orchestrator serves many
// runs; per-run state (dedup sets, counters) lives on the stack of Run.
type Orchestrator struct {
	client    *fetch.Client
	extractor *extract.Extractor
	engine    *score.Engine
	store     store.Store
	tiers     []Tier
}

// New creates an Orchestrator. Passing nil tiers selects the default walk.
func New(client *fetch.Client, extractor *extract.Extractor, engine *score.Engine, st store.Store, tiers []Tier) *Orchestrator {
	if tiers == nil {
		tiers = defaultTiers
	}
	return &Orchestrator{
		client:    client,
		extractor: extractor,
		engine:    engine,
		store:     st,
		tiers:     tiers,
	}
}

// Tiers returns the configured fallback tiers.
func (o *Orchestrator) Tiers() []Tier { return o.tiers }

// Run executes one discovery job for a user. The job row is created before
// any fetch and receives exactly one terminal update after the run: completed
// on success (even a zero-candidate one), cancelled when the context dies
// mid-run, failed only when an error escapes the per-URL boundaries.
func (o *Orchestrator) Run(ctx context.Context, userID string, opts Options) (*Outcome, error) {
	opts.setDefaults()

	job, err := o.store.CreateDiscoveryJob(ctx, userID, opts.SeedURLs)
	if err != nil {
		return nil, eris.Wrap(err, "discover: create job")
	}

	log := zap.L().With(zap.String("job_id", job.ID), zap.String("user_id", userID))
	log.Info("discovery run starting",
		zap.Int("seed_urls", len(opts.SeedURLs)),
		zap.Int("target", opts.TargetCount),
	)

	outcome, runErr := o.run(ctx, log, job, userID, opts)

	switch {
	case runErr != nil && ctx.Err() != nil:
		if termErr := o.store.CompleteDiscoveryJob(context.WithoutCancel(ctx), job.ID, model.JobStatusCancelled, nil, runErr.Error()); termErr != nil {
			log.Error("mark job cancelled failed", zap.Error(termErr))
		}
		job.Status = model.JobStatusCancelled
		return outcome, runErr
	case runErr != nil:
		if termErr := o.store.CompleteDiscoveryJob(ctx, job.ID, model.JobStatusFailed, nil, runErr.Error()); termErr != nil {
			log.Error("mark job failed failed", zap.Error(termErr))
		}
		job.Status = model.JobStatusFailed
		job.Error = runErr.Error()
		return outcome, runErr
	default:
		if termErr := o.store.CompleteDiscoveryJob(ctx, job.ID, model.JobStatusCompleted, &outcome.Summary, ""); termErr != nil {
			log.Error("mark job completed failed", zap.Error(termErr))
		}
		job.Status = model.JobStatusCompleted
		job.Result = &outcome.Summary
		return outcome, nil
	}
}

// run is the fallible body of Run; its error decides the terminal status.
func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, job *model.DiscoveryJob, userID string, opts Options) (*Outcome, error) {
	outcome := &Outcome{Job: job}

	var lookup dedupe.Lookup
	if o.store != nil {
		lookup = func(ctx context.Context, userID, name string) (bool, error) {
			_, err := o.store.FindStartupByName(ctx, userID, name)
			if err == nil {
				return true, nil
			}
			if eris.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
	}
	filter := dedupe.New(lookup)

	var accepted []model.CandidateRecord
	processed, succeeded, failed := 0, 0, 0

	processURL := func(rawURL string) error {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "discover: run cancelled")
		}

		res := o.processURL(ctx, log, userID, filter, rawURL, opts)
		outcome.Results = append(outcome.Results, res)

		processed++
		if res.Success {
			succeeded++
		} else {
			failed++
		}
		accepted = append(accepted, res.Data...)

		if processed <= job.TotalURLs {
			if err := o.store.CheckpointDiscoveryJob(ctx, job.ID, processed, succeeded, failed); err != nil {
				log.Warn("checkpoint failed", zap.Error(err))
			}
			job.ProcessedURLs = processed
		}
		job.SuccessfulScrapes = succeeded
		job.FailedScrapes = failed
		return nil
	}

	// Seed URLs first, in input order.
	for _, u := range opts.SeedURLs {
		if len(accepted) >= opts.TargetCount {
			break
		}
		if err := processURL(u); err != nil {
			return outcome, err
		}
	}

	// Tier fallback: only when the seeds left us short of the target.
	tiersWalked := 0
	if len(accepted) < opts.TargetCount {
		for _, tier := range o.tiers {
			if len(accepted) >= opts.TargetCount {
				break
			}
			tiersWalked++
			log.Info("walking source tier",
				zap.String("tier", tier.Name),
				zap.Int("accepted_so_far", len(accepted)),
			)
			for _, raw := range tier.URLs {
				if len(accepted) >= opts.TargetCount {
					break
				}
				if err := processURL(expandTierURL(raw, opts.Country)); err != nil {
					return outcome, err
				}
			}
		}
	}

	// Persist the batch. A store failure here is outside the per-URL boundary
	// and fails the job.
	if opts.Store {
		stored, err := o.persist(ctx, userID, accepted)
		outcome.Stored = stored
		if err != nil {
			return outcome, eris.Wrap(err, "discover: persist batch")
		}
	}

	outcome.Summary = summarize(accepted, outcome.Stored, tiersWalked)
	log.Info("discovery run finished",
		zap.Int("accepted", outcome.Summary.Accepted),
		zap.Int("stored", outcome.Summary.Stored),
		zap.Int("tiers_walked", tiersWalked),
	)
	return outcome, nil
}

// processURL handles one source end to end. All errors are absorbed into the
// returned ScrapeResult; nothing here can fail the job.
func (o *Orchestrator) processURL(ctx context.Context, log *zap.Logger, userID string, filter *dedupe.Filter, rawURL string, opts Options) model.ScrapeResult {
	start := time.Now()
	res := model.ScrapeResult{
		Metadata: model.ScrapeMetadata{
			SourceURL: rawURL,
			ScrapedAt: start.UTC(),
		},
	}
	defer func() {
		res.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()
	}()

	// Blocklisted hosts are skipped before any network call and count as a
	// successful empty result.
	if u, err := url.Parse(rawURL); err == nil && o.client.Blocklist().Matches(u.Host) {
		log.Debug("source blocklisted, skipping", zap.String("url", rawURL))
		res.Success = true
		return res
	}

	retryCfg := resilience.FixedRetryConfig(opts.MaxRetries+1, opts.RetryDelay)
	retryCfg.OnRetry = resilience.RetryLogger("discover", "fetch")

	page, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*fetch.Page, error) {
		return o.client.Get(ctx, rawURL)
	})
	if err != nil {
		if resilience.IsPermanent(err) {
			// Terminal for this URL: empty result, not a job failure.
			log.Debug("source permanently unavailable",
				zap.String("url", rawURL),
				zap.Error(err),
			)
			res.Success = true
			res.Errors = append(res.Errors, err.Error())
			return res
		}
		log.Warn("source fetch failed", zap.String("url", rawURL), zap.Error(err))
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	candidates := o.extractor.Extract(page.HTML, rawURL)

	if opts.Validate {
		kept := candidates[:0]
		for i := range candidates {
			v := o.engine.Validate(&candidates[i])
			if !v.IsValid {
				continue
			}
			candidates[i].Meta()["quality_score"] = v.Score
			kept = append(kept, candidates[i])
		}
		candidates = kept
	}

	res.Data = filter.Apply(ctx, userID, candidates)
	for i := range res.Data {
		res.Data[i].Meta()["source_url"] = rawURL
	}
	res.Success = true
	return res
}

// persist converts accepted candidates to stored records. It stops on the
// first insert error; records inserted before the failure stay persisted.
func (o *Orchestrator) persist(ctx context.Context, userID string, accepted []model.CandidateRecord) ([]model.StoredStartup, error) {
	stored := make([]model.StoredStartup, 0, len(accepted))
	for i := range accepted {
		c := &accepted[i]

		qualityScore := 0
		if v, ok := c.Metadata["quality_score"].(int); ok {
			qualityScore = v
		}

		rec := model.StoredStartup{
			UserID:          userID,
			Name:            c.Name,
			Website:         c.Website,
			Description:     c.Description,
			City:            c.City,
			Country:         c.Country,
			Industry:        c.Industry,
			SourceURL:       stringMeta(c.Metadata, "source_url"),
			SourceName:      stringMeta(c.Metadata, "source"),
			IsValidated:     qualityScore > 0,
			ValidationScore: qualityScore,
			ContactInfo:     c.ContactInfo,
			Metadata:        c.Metadata,
		}
		if err := o.store.InsertStartup(ctx, &rec); err != nil {
			return stored, err
		}
		stored = append(stored, rec)
	}
	return stored, nil
}

func summarize(accepted []model.CandidateRecord, stored []model.StoredStartup, tiersWalked int) model.DiscoverySummary {
	sum := model.DiscoverySummary{
		Accepted:    len(accepted),
		Stored:      len(stored),
		TiersWalked: tiersWalked,
	}
	total := 0
	for i := range accepted {
		if v, ok := accepted[i].Metadata["quality_score"].(int); ok {
			total += v
			if v >= 70 {
				sum.HighQuality++
			}
		}
	}
	if len(accepted) > 0 {
		sum.AverageScore = float64(total) / float64(len(accepted))
	}
	return sum
}

func stringMeta(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
