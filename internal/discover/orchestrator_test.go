package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agscout/agscout/internal/extract"
	"github.com/agscout/agscout/internal/fetch"
	"github.com/agscout/agscout/internal/model"
	"github.com/agscout/agscout/internal/score"
	"github.com/agscout/agscout/internal/store"
)

// directoryHTML is a listing page with one strong candidate. The comment
// filler clears the extractor's minimum-size guard.
const directoryHTML = `<html><body>
	<h2 class="company">AgriTech Labs</h2>
	<p class="description">AgriTech Labs builds precision farming sensors that help growers
	cut water use by thirty percent, serving customers across more than two hundred farms
	in the Netherlands and Germany since the platform launched.</p>
	<a href="https://agritechlabs.io">Visit website</a>
	<p>Founded in 2019. Series A. 25 employees. Based in Wageningen.</p>
</body></html>`

func padHTML(html string) string {
	return html + "<!-- " + strings.Repeat("filler ", 200) + " -->"
}

func newMemStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func fastClient(blocklist ...string) *fetch.Client {
	return fetch.NewClient(fetch.Options{
		HostRate:  1000,
		HostBurst: 1000,
		Blocklist: blocklist,
	})
}

// noTiers disables the fallback walk so tests never touch real sources.
var noTiers = []Tier{}

func fastOpts(opts Options) Options {
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return opts
}

func newOrchestrator(client *fetch.Client, st store.Store, tiers []Tier) *Orchestrator {
	return New(client, extract.New(extract.Config{}),
		score.NewEngine(score.DefaultWeights(), score.DefaultThresholds()), st, tiers)
}

func TestOrchestrator_Run_SeedToStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(padHTML(directoryHTML)))
	}))
	defer srv.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient(), st, noTiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL + "/agtech"},
		Validate: true,
		Store:    true,
	}))
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, outcome.Job.Status)
	require.Len(t, outcome.Results, 1)
	assert.True(t, outcome.Results[0].Success)
	require.NotEmpty(t, outcome.Results[0].Data)

	require.NotEmpty(t, outcome.Stored)
	rec := outcome.Stored[0]
	assert.Equal(t, "AgriTech Labs", rec.Name)
	assert.Equal(t, srv.URL+"/agtech", rec.SourceURL)
	assert.True(t, rec.IsValidated)
	assert.Greater(t, rec.ValidationScore, 0)

	// The job row received its one terminal transition.
	job, err := st.GetDiscoveryJob(context.Background(), outcome.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.Result)
	assert.Equal(t, outcome.Summary.Accepted, job.Result.Accepted)

	// And the record is queryable through the portfolio.
	stored, err := st.FindStartupByName(context.Background(), "u1", "agritech labs")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)
}

func TestOrchestrator_Run_BlocklistedSeedSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient("127.0.0.1"), st, noTiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL},
	}))
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.True(t, outcome.Results[0].Success)
	assert.Empty(t, outcome.Results[0].Data)
	assert.Equal(t, int32(0), hits.Load())
	assert.Equal(t, model.JobStatusCompleted, outcome.Job.Status)
}

func TestOrchestrator_Run_PermanentErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient(), st, noTiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL},
	}))
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	res := outcome.Results[0]
	assert.True(t, res.Success, "a dead source is terminal, not a job failure")
	assert.Empty(t, res.Data)
	assert.NotEmpty(t, res.Errors)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOrchestrator_Run_TransientErrorRetriesThenAbsorbs(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient(), st, noTiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs:   []string{srv.URL},
		MaxRetries: 1,
	}))
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
	require.Len(t, outcome.Results, 1)
	assert.False(t, outcome.Results[0].Success)

	job, err := st.GetDiscoveryJob(context.Background(), outcome.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.FailedScrapes)
}

func TestOrchestrator_Run_TargetCountStopsEarly(t *testing.T) {
	srv1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(padHTML(directoryHTML)))
	}))
	defer srv1.Close()

	var srv2Hits atomic.Int32
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv2Hits.Add(1)
	}))
	defer srv2.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient(), st, noTiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs:    []string{srv1.URL, srv2.URL},
		TargetCount: 1,
		Validate:    true,
	}))
	require.NoError(t, err)

	assert.Equal(t, int32(0), srv2Hits.Load())
	assert.Len(t, outcome.Results, 1)
	assert.GreaterOrEqual(t, outcome.Summary.Accepted, 1)

	job, err := st.GetDiscoveryJob(context.Background(), outcome.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedURLs)
}

func TestOrchestrator_Run_TierFallback(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(padHTML(directoryHTML)))
	}))
	defer srv.Close()

	tiers := []Tier{{Name: "test", URLs: []string{srv.URL + "/search?q={query}"}}}
	st := newMemStore(t)
	o := newOrchestrator(fastClient(), st, tiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		TargetCount: 1,
		Country:     "Kenya",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Kenya", gotQuery.Load())
	assert.Equal(t, 1, outcome.Summary.TiersWalked)
	assert.GreaterOrEqual(t, outcome.Summary.Accepted, 1)
}

func TestOrchestrator_Run_ValidationGate(t *testing.T) {
	// Name-only listing: enough to extract, too thin to score well.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(padHTML(`<html><body><h2 class="startup">HarvestIQ Agritech</h2></body></html>`)))
	}))
	defer srv.Close()

	st := newMemStore(t)
	strict := New(fastClient(), extract.New(extract.Config{}),
		score.NewEngine(score.DefaultWeights(), score.Thresholds{AcceptScore: 95, ValidScore: 99}), st, noTiers)

	outcome, err := strict.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL},
		Validate: true,
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Summary.Accepted)

	// Without the gate the same page yields a candidate.
	outcome, err = strict.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL},
		Validate: false,
	}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, outcome.Summary.Accepted, 1)
}

// failingStore makes batch persistence fail while job writes still work.
type failingStore struct {
	store.Store
}

func (f *failingStore) InsertStartup(ctx context.Context, s *model.StoredStartup) error {
	return assert.AnError
}

func TestOrchestrator_Run_PersistFailureFailsJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(padHTML(directoryHTML)))
	}))
	defer srv.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient(), &failingStore{Store: st}, noTiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL},
		Store:    true,
	}))
	require.Error(t, err)
	assert.Equal(t, model.JobStatusFailed, outcome.Job.Status)

	job, jerr := st.GetDiscoveryJob(context.Background(), outcome.Job.ID)
	require.NoError(t, jerr)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.NotEmpty(t, job.Error)
}

func TestOrchestrator_Run_CancelMarksJobCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		_, _ = w.Write([]byte(padHTML(directoryHTML)))
	}))
	defer srv.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient(), st, noTiers)

	outcome, err := o.Run(ctx, "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL, srv.URL + "/second"},
	}))
	require.Error(t, err)
	assert.Equal(t, model.JobStatusCancelled, outcome.Job.Status)

	job, jerr := st.GetDiscoveryJob(context.Background(), outcome.Job.ID)
	require.NoError(t, jerr)
	assert.Equal(t, model.JobStatusCancelled, job.Status)
}

func TestOrchestrator_Run_DedupAcrossSources(t *testing.T) {
	// Both seeds list the same startup; only the first occurrence survives.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(padHTML(directoryHTML)))
	}))
	defer srv.Close()

	st := newMemStore(t)
	o := newOrchestrator(fastClient(), st, noTiers)

	outcome, err := o.Run(context.Background(), "u1", fastOpts(Options{
		SeedURLs: []string{srv.URL + "/a", srv.URL + "/b"},
		Validate: true,
	}))
	require.NoError(t, err)

	count := 0
	for _, res := range outcome.Results {
		for _, c := range res.Data {
			if c.Name == "AgriTech Labs" {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
}
