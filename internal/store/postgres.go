package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/agscout/agscout/internal/db"
	"github.com/agscout/agscout/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a PostgresStore with pool sizing defaults suited to
// the pipeline's write volume.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS startups (
	id               UUID PRIMARY KEY,
	user_id          TEXT NOT NULL,
	name             TEXT NOT NULL,
	name_normalized  TEXT NOT NULL,
	website          TEXT,
	description      TEXT,
	city             TEXT,
	country          TEXT,
	industry         TEXT,
	source_url       TEXT,
	source_name      TEXT,
	is_validated     BOOLEAN NOT NULL DEFAULT FALSE,
	validation_score INTEGER NOT NULL DEFAULT 0,
	contact_info     JSONB,
	metadata         JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS discovery_jobs (
	id                 UUID PRIMARY KEY,
	user_id            TEXT NOT NULL,
	source_urls        JSONB NOT NULL,
	status             TEXT NOT NULL DEFAULT 'processing',
	total_urls         INTEGER NOT NULL DEFAULT 0,
	processed_urls     INTEGER NOT NULL DEFAULT 0,
	successful_scrapes INTEGER NOT NULL DEFAULT 0,
	failed_scrapes     INTEGER NOT NULL DEFAULT 0,
	result             JSONB,
	error              TEXT,
	created_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS contact_jobs (
	id           UUID PRIMARY KEY,
	user_id      TEXT NOT NULL,
	startup_id   UUID NOT NULL REFERENCES startups(id),
	startup_name TEXT NOT NULL,
	website      TEXT,
	status       TEXT NOT NULL DEFAULT 'processing',
	result       JSONB,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_startups_user_name ON startups(user_id, name_normalized);
CREATE INDEX IF NOT EXISTS idx_discovery_jobs_user ON discovery_jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_contact_jobs_startup ON contact_jobs(startup_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertStartup(ctx context.Context, rec *model.StoredStartup) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	contactJSON, err := jsonOrNil(rec.ContactInfo)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal contact info")
	}
	metaJSON, err := jsonOrNil(rec.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO startups (id, user_id, name, name_normalized, website, description,
			city, country, industry, source_url, source_name,
			is_validated, validation_score, contact_info, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.ID, rec.UserID, rec.Name, model.NormalizeKey(rec.Name), rec.Website, rec.Description,
		rec.City, rec.Country, rec.Industry, rec.SourceURL, rec.SourceName,
		rec.IsValidated, rec.ValidationScore, contactJSON, metaJSON, rec.CreatedAt, rec.UpdatedAt)
	return eris.Wrap(err, "postgres: insert startup")
}

const pgStartupColumns = `id, user_id, name, website, description, city, country, industry,
	source_url, source_name, is_validated, validation_score, contact_info, metadata, created_at, updated_at`

func (s *PostgresStore) GetStartup(ctx context.Context, id string) (*model.StoredStartup, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgStartupColumns+` FROM startups WHERE id = $1`, id)
	return scanPgStartup(row)
}

func (s *PostgresStore) FindStartupByName(ctx context.Context, userID, name string) (*model.StoredStartup, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgStartupColumns+` FROM startups WHERE user_id = $1 AND name_normalized = $2 LIMIT 1`,
		userID, model.NormalizeKey(name))
	return scanPgStartup(row)
}

func (s *PostgresStore) UpdateStartupContact(ctx context.Context, id string, ci *model.ContactInfo) error {
	contactJSON, err := jsonOrNil(ci)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal contact info")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE startups SET contact_info = $1, updated_at = $2 WHERE id = $3`,
		contactJSON, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update startup contact %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "startup %s", id)
	}
	return nil
}

func (s *PostgresStore) ListStartups(ctx context.Context, userID string, limit, offset int) ([]model.StoredStartup, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgStartupColumns+` FROM startups WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list startups")
	}
	defer rows.Close()

	var out []model.StoredStartup
	for rows.Next() {
		rec, err := scanPgStartup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list startups rows")
}

func (s *PostgresStore) CreateDiscoveryJob(ctx context.Context, userID string, sourceURLs []string) (*model.DiscoveryJob, error) {
	urlsJSON, err := json.Marshal(sourceURLs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal source urls")
	}

	job := &model.DiscoveryJob{
		ID:         uuid.New().String(),
		UserID:     userID,
		SourceURLs: sourceURLs,
		Status:     model.JobStatusProcessing,
		TotalURLs:  len(sourceURLs),
		CreatedAt:  time.Now().UTC(),
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO discovery_jobs (id, user_id, source_urls, status, total_urls, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.UserID, urlsJSON, string(job.Status), job.TotalURLs, job.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create discovery job")
	}
	return job, nil
}

func (s *PostgresStore) CheckpointDiscoveryJob(ctx context.Context, id string, processed, successful, failed int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_jobs SET processed_urls = $1, successful_scrapes = $2, failed_scrapes = $3
		 WHERE id = $4 AND status = 'processing'`,
		processed, successful, failed, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: checkpoint discovery job %s", id)
	}
	if tag.RowsAffected() == 0 {
		// A checkpoint against a terminal job is rejected, not missing.
		if s.jobExists(ctx, "discovery_jobs", id) {
			return eris.Wrapf(ErrAlreadyTerminal, "discovery job %s", id)
		}
		return eris.Wrapf(ErrNotFound, "discovery job %s", id)
	}
	return nil
}

func (s *PostgresStore) CompleteDiscoveryJob(ctx context.Context, id string, status model.JobStatus, result *model.DiscoverySummary, errMsg string) error {
	if !status.Terminal() {
		return eris.Errorf("postgres: %s is not a terminal status", status)
	}
	resultJSON, err := jsonOrNil(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal discovery result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_jobs SET status = $1, result = $2, error = NULLIF($3, ''), completed_at = $4
		 WHERE id = $5 AND status = 'processing'`,
		string(status), resultJSON, errMsg, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete discovery job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAlreadyTerminal, "discovery job %s", id)
	}
	return nil
}

// jobExists distinguishes a missing row from an already-terminal one when a
// guarded update touches nothing.
func (s *PostgresStore) jobExists(ctx context.Context, table, id string) bool {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = $1`, id).Scan(&n)
	return err == nil && n > 0
}

const pgDiscoveryJobColumns = `id, user_id, source_urls, status, total_urls, processed_urls,
	successful_scrapes, failed_scrapes, result, error, created_at, completed_at`

func (s *PostgresStore) GetDiscoveryJob(ctx context.Context, id string) (*model.DiscoveryJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgDiscoveryJobColumns+` FROM discovery_jobs WHERE id = $1`, id)
	return scanPgDiscoveryJob(row)
}

func (s *PostgresStore) ListDiscoveryJobs(ctx context.Context, userID string, filter JobFilter) ([]model.DiscoveryJob, error) {
	query := `SELECT ` + pgDiscoveryJobColumns + ` FROM discovery_jobs WHERE user_id = $1`
	args := []any{userID}

	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list discovery jobs")
	}
	defer rows.Close()

	var out []model.DiscoveryJob
	for rows.Next() {
		job, err := scanPgDiscoveryJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list discovery jobs rows")
}

func (s *PostgresStore) CreateContactJob(ctx context.Context, userID string, startup *model.StoredStartup) (*model.ContactResearchJob, error) {
	job := &model.ContactResearchJob{
		ID:          uuid.New().String(),
		UserID:      userID,
		StartupID:   startup.ID,
		StartupName: startup.Name,
		Website:     startup.Website,
		Status:      model.JobStatusProcessing,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contact_jobs (id, user_id, startup_id, startup_name, website, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.UserID, job.StartupID, job.StartupName, job.Website, string(job.Status), job.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create contact job")
	}
	return job, nil
}

func (s *PostgresStore) CompleteContactJob(ctx context.Context, id string, findings *model.ContactFindings) error {
	resultJSON, err := jsonOrNil(findings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal contact findings")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE contact_jobs SET status = $1, result = $2, completed_at = $3
		 WHERE id = $4 AND status = 'processing'`,
		string(model.JobStatusCompleted), resultJSON, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete contact job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAlreadyTerminal, "contact job %s", id)
	}
	return nil
}

func (s *PostgresStore) FailContactJob(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contact_jobs SET status = $1, error = $2, completed_at = $3
		 WHERE id = $4 AND status = 'processing'`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail contact job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAlreadyTerminal, "contact job %s", id)
	}
	return nil
}

const pgContactJobColumns = `id, user_id, startup_id, startup_name, website, status, result, error, created_at, completed_at`

func (s *PostgresStore) GetContactJob(ctx context.Context, id string) (*model.ContactResearchJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgContactJobColumns+` FROM contact_jobs WHERE id = $1`, id)
	return scanPgContactJob(row)
}

func (s *PostgresStore) GetContactJobByStartup(ctx context.Context, startupID string) (*model.ContactResearchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgContactJobColumns+` FROM contact_jobs WHERE startup_id = $1 ORDER BY created_at DESC LIMIT 1`,
		startupID)
	return scanPgContactJob(row)
}

func scanPgStartup(row pgx.Row) (*model.StoredStartup, error) {
	var (
		rec                   model.StoredStartup
		website, description  *string
		city, country         *string
		industry, sourceURL   *string
		sourceName            *string
		contactJSON, metaJSON []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Name, &website, &description,
		&city, &country, &industry, &sourceURL, &sourceName,
		&rec.IsValidated, &rec.ValidationScore, &contactJSON, &metaJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan startup")
	}

	rec.Website = deref(website)
	rec.Description = deref(description)
	rec.City = deref(city)
	rec.Country = deref(country)
	rec.Industry = deref(industry)
	rec.SourceURL = deref(sourceURL)
	rec.SourceName = deref(sourceName)

	if len(contactJSON) > 0 {
		if err := json.Unmarshal(contactJSON, &rec.ContactInfo); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contact info")
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
	}
	return &rec, nil
}

func scanPgDiscoveryJob(row pgx.Row) (*model.DiscoveryJob, error) {
	var (
		job        model.DiscoveryJob
		urlsJSON   []byte
		status     string
		resultJSON []byte
		errString  *string
	)
	err := row.Scan(&job.ID, &job.UserID, &urlsJSON, &status, &job.TotalURLs, &job.ProcessedURLs,
		&job.SuccessfulScrapes, &job.FailedScrapes, &resultJSON, &errString, &job.CreatedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan discovery job")
	}

	job.Status = model.JobStatus(status)
	job.Error = deref(errString)
	if err := json.Unmarshal(urlsJSON, &job.SourceURLs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal source urls")
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &job.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal discovery result")
		}
	}
	return &job, nil
}

func scanPgContactJob(row pgx.Row) (*model.ContactResearchJob, error) {
	var (
		job        model.ContactResearchJob
		website    *string
		status     string
		resultJSON []byte
		errString  *string
	)
	err := row.Scan(&job.ID, &job.UserID, &job.StartupID, &job.StartupName, &website,
		&status, &resultJSON, &errString, &job.CreatedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan contact job")
	}

	job.Website = deref(website)
	job.Status = model.JobStatus(status)
	job.Error = deref(errString)
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &job.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contact findings")
		}
	}
	return &job, nil
}

func jsonOrNil(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *model.ContactInfo:
		if t == nil {
			return nil, nil
		}
	case *model.DiscoverySummary:
		if t == nil {
			return nil, nil
		}
	case *model.ContactFindings:
		if t == nil {
			return nil, nil
		}
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

