package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agscout/agscout/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleStartup(name string) *model.StoredStartup {
	return &model.StoredStartup{
		UserID:          "u1",
		Name:            name,
		Website:         "https://agritechlabs.io",
		Description:     "Precision farming sensors for greenhouse growers.",
		City:            "Wageningen",
		Country:         "Netherlands",
		Industry:        "AgTech",
		SourceURL:       "https://news.example.com/article",
		SourceName:      "news.example.com",
		IsValidated:     true,
		ValidationScore: 72,
		ContactInfo:     &model.ContactInfo{Emails: []string{"info@agritechlabs.io"}},
		Metadata:        map[string]any{"pattern_family": "semantic"},
	}
}

func TestSQLite_StartupRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := sampleStartup("AgriTech Labs")
	require.NoError(t, st.InsertStartup(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := st.GetStartup(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "AgriTech Labs", got.Name)
	assert.Equal(t, "https://agritechlabs.io", got.Website)
	assert.Equal(t, 72, got.ValidationScore)
	assert.True(t, got.IsValidated)
	require.NotNil(t, got.ContactInfo)
	assert.Equal(t, []string{"info@agritechlabs.io"}, got.ContactInfo.Emails)
	assert.Equal(t, "semantic", got.Metadata["pattern_family"])
}

func TestSQLite_GetStartup_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetStartup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_FindStartupByName_Normalized(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertStartup(ctx, sampleStartup("AgriTech Labs")))

	got, err := st.FindStartupByName(ctx, "u1", "  AGRITECH LABS ")
	require.NoError(t, err)
	assert.Equal(t, "AgriTech Labs", got.Name)

	_, err = st.FindStartupByName(ctx, "other-user", "AgriTech Labs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateStartupContact(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := sampleStartup("CropMind")
	require.NoError(t, st.InsertStartup(ctx, rec))

	now := time.Now().UTC()
	ci := &model.ContactInfo{
		Emails:           []string{"hello@cropmind.io"},
		Phones:           []string{"+31 20 123 4567"},
		LinkedInURL:      "https://www.linkedin.com/company/cropmind",
		LinkedInVerified: true,
		LastUpdated:      &now,
	}
	require.NoError(t, st.UpdateStartupContact(ctx, rec.ID, ci))

	got, err := st.GetStartup(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContactInfo)
	assert.True(t, got.ContactInfo.LinkedInVerified)
	assert.Equal(t, []string{"hello@cropmind.io"}, got.ContactInfo.Emails)

	assert.ErrorIs(t, st.UpdateStartupContact(ctx, "missing", ci), ErrNotFound)
}

func TestSQLite_ListStartups(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	older := sampleStartup("First Farm Co")
	older.CreatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, st.InsertStartup(ctx, older))

	newer := sampleStartup("Second Crop Co")
	newer.CreatedAt = time.Now().UTC()
	require.NoError(t, st.InsertStartup(ctx, newer))

	list, err := st.ListStartups(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second Crop Co", list[0].Name)

	list, err = st.ListStartups(ctx, "u1", 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "First Farm Co", list[0].Name)
}

func TestSQLite_DiscoveryJobLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job, err := st.CreateDiscoveryJob(ctx, "u1", []string{"https://a.example.com", "https://b.example.com"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.Equal(t, 2, job.TotalURLs)

	got, err := st.GetDiscoveryJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt, "completed_at must be null while processing")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, got.SourceURLs)

	require.NoError(t, st.CheckpointDiscoveryJob(ctx, job.ID, 1, 1, 0))
	got, err = st.GetDiscoveryJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ProcessedURLs)
	assert.Equal(t, 1, got.SuccessfulScrapes)

	summary := &model.DiscoverySummary{Accepted: 3, Stored: 3, AverageScore: 61.5}
	require.NoError(t, st.CompleteDiscoveryJob(ctx, job.ID, model.JobStatusCompleted, summary, ""))

	got, err = st.GetDiscoveryJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3, got.Result.Accepted)
}

func TestSQLite_DiscoveryJobTerminalIsOneShot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job, err := st.CreateDiscoveryJob(ctx, "u1", nil)
	require.NoError(t, err)

	require.NoError(t, st.CompleteDiscoveryJob(ctx, job.ID, model.JobStatusFailed, nil, "store exploded"))

	// A second terminal write loses the race and must not overwrite.
	err = st.CompleteDiscoveryJob(ctx, job.ID, model.JobStatusCompleted, nil, "")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	got, err := st.GetDiscoveryJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "store exploded", got.Error)

	// Checkpoints after the terminal transition report the job as terminal,
	// not missing.
	assert.ErrorIs(t, st.CheckpointDiscoveryJob(ctx, job.ID, 5, 5, 0), ErrAlreadyTerminal)

	// A checkpoint on an unknown job is still a lookup failure.
	assert.ErrorIs(t, st.CheckpointDiscoveryJob(ctx, "no-such-job", 1, 1, 0), ErrNotFound)
}

func TestSQLite_CompleteDiscoveryJob_RejectsNonTerminal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job, err := st.CreateDiscoveryJob(ctx, "u1", nil)
	require.NoError(t, err)

	assert.Error(t, st.CompleteDiscoveryJob(ctx, job.ID, model.JobStatusProcessing, nil, ""))
}

func TestSQLite_CompleteDiscoveryJob_NotFound(t *testing.T) {
	st := newTestStore(t)
	err := st.CompleteDiscoveryJob(context.Background(), "missing", model.JobStatusCompleted, nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListDiscoveryJobs_StatusFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	j1, err := st.CreateDiscoveryJob(ctx, "u1", nil)
	require.NoError(t, err)
	_, err = st.CreateDiscoveryJob(ctx, "u1", nil)
	require.NoError(t, err)
	require.NoError(t, st.CompleteDiscoveryJob(ctx, j1.ID, model.JobStatusCompleted, nil, ""))

	completed, err := st.ListDiscoveryJobs(ctx, "u1", JobFilter{Status: model.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, j1.ID, completed[0].ID)

	all, err := st.ListDiscoveryJobs(ctx, "u1", JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ContactJobLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := sampleStartup("TerraSense")
	require.NoError(t, st.InsertStartup(ctx, rec))

	job, err := st.CreateContactJob(ctx, "u1", rec)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.Equal(t, rec.ID, job.StartupID)

	findings := &model.ContactFindings{
		Emails:           []string{"info@terrasense.io"},
		LinkedInURL:      "https://www.linkedin.com/company/terrasense",
		LinkedInVerified: true,
	}
	require.NoError(t, st.CompleteContactJob(ctx, job.ID, findings))

	got, err := st.GetContactJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.LinkedInVerified)

	// Failing after completion must not revert the terminal state.
	assert.ErrorIs(t, st.FailContactJob(ctx, job.ID, "late failure"), ErrAlreadyTerminal)

	byStartup, err := st.GetContactJobByStartup(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, byStartup.ID)
}

func TestSQLite_FailContactJob(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := sampleStartup("FailCo Farms")
	require.NoError(t, st.InsertStartup(ctx, rec))

	job, err := st.CreateContactJob(ctx, "u1", rec)
	require.NoError(t, err)
	require.NoError(t, st.FailContactJob(ctx, job.ID, "all research steps failed"))

	got, err := st.GetContactJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "all research steps failed", got.Error)
	require.NotNil(t, got.CompletedAt)
}
