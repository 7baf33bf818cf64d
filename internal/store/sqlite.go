package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/agscout/agscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS startups (
	id               TEXT PRIMARY KEY,
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
	is_validated     INTEGER NOT NULL DEFAULT 0,
	validation_score INTEGER NOT NULL DEFAULT 0,
	contact_info     TEXT,
	metadata         TEXT,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS discovery_jobs (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	source_urls        TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'processing',
	total_urls         INTEGER NOT NULL DEFAULT 0,
	processed_urls     INTEGER NOT NULL DEFAULT 0,
	successful_scrapes INTEGER NOT NULL DEFAULT 0,
	failed_scrapes     INTEGER NOT NULL DEFAULT 0,
	result             TEXT,
	error              TEXT,
	created_at         DATETIME NOT NULL,
	completed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS contact_jobs (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	startup_id   TEXT NOT NULL REFERENCES startups(id),
	startup_name TEXT NOT NULL,
	website      TEXT,
	status       TEXT NOT NULL DEFAULT 'processing',
	result       TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_startups_user_name ON startups(user_id, name_normalized);
CREATE INDEX IF NOT EXISTS idx_startups_user ON startups(user_id);
CREATE INDEX IF NOT EXISTS idx_discovery_jobs_user ON discovery_jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_discovery_jobs_status ON discovery_jobs(status);
CREATE INDEX IF NOT EXISTS idx_contact_jobs_startup ON contact_jobs(startup_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertStartup(ctx context.Context, rec *model.StoredStartup) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	contactJSON, err := marshalNullable(rec.ContactInfo)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact info")
	}
	metaJSON, err := marshalNullable(rec.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO startups (id, user_id, name, name_normalized, website, description,
			city, country, industry, source_url, source_name,
			is_validated, validation_score, contact_info, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Name, model.NormalizeKey(rec.Name), rec.Website, rec.Description,
		rec.City, rec.Country, rec.Industry, rec.SourceURL, rec.SourceName,
		boolToInt(rec.IsValidated), rec.ValidationScore, contactJSON, metaJSON, rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert startup")
}

const startupColumns = `id, user_id, name, website, description, city, country, industry,
	source_url, source_name, is_validated, validation_score, contact_info, metadata, created_at, updated_at`

func (s *SQLiteStore) GetStartup(ctx context.Context, id string) (*model.StoredStartup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+startupColumns+` FROM startups WHERE id = ?`, id)
	return scanStartup(row)
}

func (s *SQLiteStore) FindStartupByName(ctx context.Context, userID, name string) (*model.StoredStartup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+startupColumns+` FROM startups WHERE user_id = ? AND name_normalized = ? LIMIT 1`,
		userID, model.NormalizeKey(name))
	return scanStartup(row)
}

func (s *SQLiteStore) UpdateStartupContact(ctx context.Context, id string, ci *model.ContactInfo) error {
	contactJSON, err := marshalNullable(ci)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact info")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE startups SET contact_info = ?, updated_at = ? WHERE id = ?`,
		contactJSON, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update startup contact %s", id)
	}
	return checkRowsAffected(res, "startup", id)
}

func (s *SQLiteStore) ListStartups(ctx context.Context, userID string, limit, offset int) ([]model.StoredStartup, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+startupColumns+` FROM startups WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list startups")
	}
	defer rows.Close()

	var out []model.StoredStartup
	for rows.Next() {
		rec, err := scanStartup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list startups rows")
}

func (s *SQLiteStore) CreateDiscoveryJob(ctx context.Context, userID string, sourceURLs []string) (*model.DiscoveryJob, error) {
	urlsJSON, err := json.Marshal(sourceURLs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal source urls")
	}

	job := &model.DiscoveryJob{
		ID:         uuid.New().String(),
		UserID:     userID,
		SourceURLs: sourceURLs,
		Status:     model.JobStatusProcessing,
		TotalURLs:  len(sourceURLs),
		CreatedAt:  time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO discovery_jobs (id, user_id, source_urls, status, total_urls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(urlsJSON), string(job.Status), job.TotalURLs, job.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create discovery job")
	}
	return job, nil
}

func (s *SQLiteStore) CheckpointDiscoveryJob(ctx context.Context, id string, processed, successful, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_jobs SET processed_urls = ?, successful_scrapes = ?, failed_scrapes = ?
		 WHERE id = ? AND status = 'processing'`,
		processed, successful, failed, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: checkpoint discovery job %s", id)
	}
	// A checkpoint against a terminal job is rejected, not missing.
	return checkTerminal(ctx, res, s.jobExists(ctx, "discovery_jobs", id), id)
}

func (s *SQLiteStore) CompleteDiscoveryJob(ctx context.Context, id string, status model.JobStatus, result *model.DiscoverySummary, errMsg string) error {
	if !status.Terminal() {
		return eris.Errorf("sqlite: %s is not a terminal status", status)
	}
	resultJSON, err := marshalNullable(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal discovery result")
	}

	// The status guard makes the terminal transition one-shot.
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_jobs SET status = ?, result = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(status), resultJSON, nullString(errMsg), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete discovery job %s", id)
	}
	return checkTerminal(ctx, res, s.jobExists(ctx, "discovery_jobs", id), id)
}

func (s *SQLiteStore) GetDiscoveryJob(ctx context.Context, id string) (*model.DiscoveryJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, source_urls, status, total_urls, processed_urls,
			successful_scrapes, failed_scrapes, result, error, created_at, completed_at
		 FROM discovery_jobs WHERE id = ?`, id)
	return scanDiscoveryJob(row)
}

func (s *SQLiteStore) ListDiscoveryJobs(ctx context.Context, userID string, filter JobFilter) ([]model.DiscoveryJob, error) {
	query := `SELECT id, user_id, source_urls, status, total_urls, processed_urls,
		successful_scrapes, failed_scrapes, result, error, created_at, completed_at
		FROM discovery_jobs WHERE user_id = ?`
	args := []any{userID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list discovery jobs")
	}
	defer rows.Close()

	var out []model.DiscoveryJob
	for rows.Next() {
		job, err := scanDiscoveryJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list discovery jobs rows")
}

func (s *SQLiteStore) CreateContactJob(ctx context.Context, userID string, startup *model.StoredStartup) (*model.ContactResearchJob, error) {
	job := &model.ContactResearchJob{
		ID:          uuid.New().String(),
		UserID:      userID,
		StartupID:   startup.ID,
		StartupName: startup.Name,
		Website:     startup.Website,
		Status:      model.JobStatusProcessing,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_jobs (id, user_id, startup_id, startup_name, website, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.StartupID, job.StartupName, job.Website, string(job.Status), job.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create contact job")
	}
	return job, nil
}

func (s *SQLiteStore) CompleteContactJob(ctx context.Context, id string, findings *model.ContactFindings) error {
	resultJSON, err := marshalNullable(findings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact findings")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contact_jobs SET status = ?, result = ?, completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(model.JobStatusCompleted), resultJSON, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete contact job %s", id)
	}
	return checkTerminal(ctx, res, s.jobExists(ctx, "contact_jobs", id), id)
}

func (s *SQLiteStore) FailContactJob(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contact_jobs SET status = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail contact job %s", id)
	}
	return checkTerminal(ctx, res, s.jobExists(ctx, "contact_jobs", id), id)
}

func (s *SQLiteStore) GetContactJob(ctx context.Context, id string) (*model.ContactResearchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, startup_id, startup_name, website, status, result, error, created_at, completed_at
		 FROM contact_jobs WHERE id = ?`, id)
	return scanContactJob(row)
}

func (s *SQLiteStore) GetContactJobByStartup(ctx context.Context, startupID string) (*model.ContactResearchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, startup_id, startup_name, website, status, result, error, created_at, completed_at
		 FROM contact_jobs WHERE startup_id = ? ORDER BY created_at DESC LIMIT 1`, startupID)
	return scanContactJob(row)
}

// jobExists distinguishes a missing row from an already-terminal one when a
// guarded terminal update touches nothing.
func (s *SQLiteStore) jobExists(ctx context.Context, table, id string) bool {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = ?`, id).Scan(&n)
	return err == nil && n > 0
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStartup(row scanner) (*model.StoredStartup, error) {
	var (
		rec                   model.StoredStartup
		website, description  sql.NullString
		city, country         sql.NullString
		industry, sourceURL   sql.NullString
		sourceName            sql.NullString
		contactJSON, metaJSON sql.NullString
		validated             int
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Name, &website, &description,
		&city, &country, &industry, &sourceURL, &sourceName,
		&validated, &rec.ValidationScore, &contactJSON, &metaJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan startup")
	}

	rec.Website = website.String
	rec.Description = description.String
	rec.City = city.String
	rec.Country = country.String
	rec.Industry = industry.String
	rec.SourceURL = sourceURL.String
	rec.SourceName = sourceName.String
	rec.IsValidated = validated != 0

	if contactJSON.Valid && contactJSON.String != "" {
		if err := json.Unmarshal([]byte(contactJSON.String), &rec.ContactInfo); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contact info")
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &rec.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metadata")
		}
	}
	return &rec, nil
}

func scanDiscoveryJob(row scanner) (*model.DiscoveryJob, error) {
	var (
		job                   model.DiscoveryJob
		urlsJSON              string
		status                string
		resultJSON, errString sql.NullString
		completedAt           sql.NullTime
	)
	err := row.Scan(&job.ID, &job.UserID, &urlsJSON, &status, &job.TotalURLs, &job.ProcessedURLs,
		&job.SuccessfulScrapes, &job.FailedScrapes, &resultJSON, &errString, &job.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan discovery job")
	}

	job.Status = model.JobStatus(status)
	job.Error = errString.String
	if err := json.Unmarshal([]byte(urlsJSON), &job.SourceURLs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal source urls")
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &job.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal discovery result")
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func scanContactJob(row scanner) (*model.ContactResearchJob, error) {
	var (
		job                   model.ContactResearchJob
		website               sql.NullString
		status                string
		resultJSON, errString sql.NullString
		completedAt           sql.NullTime
	)
	err := row.Scan(&job.ID, &job.UserID, &job.StartupID, &job.StartupName, &website,
		&status, &resultJSON, &errString, &job.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan contact job")
	}

	job.Website = website.String
	job.Status = model.JobStatus(status)
	job.Error = errString.String
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &job.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contact findings")
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}

func checkTerminal(_ context.Context, res sql.Result, exists bool, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if exists {
			return eris.Wrapf(ErrAlreadyTerminal, "job %s", id)
		}
		return eris.Wrapf(ErrNotFound, "job %s", id)
	}
	return nil
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	switch t := v.(type) {
	case *model.ContactInfo:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *model.DiscoverySummary:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *model.ContactFindings:
		if t == nil {
			return sql.NullString{}, nil
		}
	case map[string]any:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
