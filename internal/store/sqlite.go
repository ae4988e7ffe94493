package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/showdeck/importer/internal/model"
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
CREATE TABLE IF NOT EXISTS import_jobs (
	id                TEXT PRIMARY KEY,
	org_id            TEXT NOT NULL,
	status            TEXT NOT NULL,
	mode              TEXT NOT NULL,
	sources           TEXT NOT NULL,
	result            TEXT,
	errors            TEXT,
	error_message     TEXT NOT NULL DEFAULT '',
	previous_attempts TEXT,
	version           INTEGER NOT NULL DEFAULT 1,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS shows (
	id       TEXT PRIMARY KEY,
	org_id   TEXT NOT NULL,
	title    TEXT NOT NULL,
	date     TEXT NOT NULL,
	city     TEXT,
	venue    TEXT
);

CREATE TABLE IF NOT EXISTS venues (
	id     TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	name   TEXT NOT NULL,
	city   TEXT
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_org ON import_jobs(org_id);
CREATE INDEX IF NOT EXISTS idx_import_jobs_status ON import_jobs(status);
CREATE INDEX IF NOT EXISTS idx_shows_org ON shows(org_id);
CREATE INDEX IF NOT EXISTS idx_venues_org ON venues(org_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, orgID string, sources []model.RawSource, mode model.ExtractionMode, status model.JobStatus) (*model.ImportJob, error) {
	job := &model.ImportJob{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Status:    status,
		Mode:      mode,
		Sources:   sources,
		Version:   1,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO import_jobs (id, org_id, status, mode, sources, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.OrgID, string(job.Status), string(job.Mode), string(sourcesJSON),
		job.Version, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID, orgID string) (*model.ImportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, status, mode, sources, result, errors, error_message,
		        previous_attempts, version, created_at, updated_at
		 FROM import_jobs WHERE id = ? AND org_id = ?`,
		jobID, orgID,
	)
	return scanJob(row)
}

// UpdateJob writes the whole job record, guarded by the optimistic version
// counter. On success the in-memory version is advanced to match the row.
func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.ImportJob) error {
	resultJSON, errorsJSON, attemptsJSON, err := marshalJobDocs(job)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs
		 SET status = ?, result = ?, errors = ?, error_message = ?,
		     previous_attempts = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND org_id = ? AND version = ?`,
		string(job.Status), resultJSON, errorsJSON, job.ErrorMessage,
		attemptsJSON, now, job.ID, job.OrgID, job.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Distinguish a stale version from a missing/foreign job.
		var exists int
		check := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM import_jobs WHERE id = ? AND org_id = ?`, job.ID, job.OrgID)
		if scanErr := check.Scan(&exists); scanErr == sql.ErrNoRows {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	job.Version++
	job.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, orgID string, filter JobFilter) ([]model.ImportJob, error) {
	query := `SELECT id, org_id, status, mode, sources, result, errors, error_message,
	                 previous_attempts, version, created_at, updated_at
	          FROM import_jobs WHERE org_id = ?`
	args := []any{orgID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.ImportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) ShowsByOrg(ctx context.Context, orgID string) ([]model.Show, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, title, date, COALESCE(city, ''), COALESCE(venue, '')
		 FROM shows WHERE org_id = ?`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: shows by org")
	}
	defer rows.Close()

	var shows []model.Show
	for rows.Next() {
		var sh model.Show
		if err := rows.Scan(&sh.ID, &sh.OrgID, &sh.Title, &sh.Date, &sh.City, &sh.VenueName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan show")
		}
		shows = append(shows, sh)
	}
	return shows, eris.Wrap(rows.Err(), "sqlite: shows iterate")
}

func (s *SQLiteStore) VenuesByOrg(ctx context.Context, orgID string) ([]model.Venue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, name, COALESCE(city, '') FROM venues WHERE org_id = ?`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: venues by org")
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.OrgID, &v.Name, &v.City); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan venue")
		}
		venues = append(venues, v)
	}
	return venues, eris.Wrap(rows.Err(), "sqlite: venues iterate")
}

// helpers

func marshalJobDocs(job *model.ImportJob) (result, errs, attempts sql.NullString, err error) {
	if job.Result != nil {
		b, mErr := json.Marshal(job.Result)
		if mErr != nil {
			return result, errs, attempts, eris.Wrap(mErr, "store: marshal result")
		}
		result = sql.NullString{String: string(b), Valid: true}
	}
	if len(job.Errors) > 0 {
		b, mErr := json.Marshal(job.Errors)
		if mErr != nil {
			return result, errs, attempts, eris.Wrap(mErr, "store: marshal errors")
		}
		errs = sql.NullString{String: string(b), Valid: true}
	}
	if len(job.PreviousAttempts) > 0 {
		b, mErr := json.Marshal(job.PreviousAttempts)
		if mErr != nil {
			return result, errs, attempts, eris.Wrap(mErr, "store: marshal attempts")
		}
		attempts = sql.NullString{String: string(b), Valid: true}
	}
	return result, errs, attempts, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.ImportJob, error) {
	var j model.ImportJob
	var sourcesJSON string
	var resultJSON, errorsJSON, attemptsJSON sql.NullString

	err := row.Scan(&j.ID, &j.OrgID, &j.Status, &j.Mode, &sourcesJSON,
		&resultJSON, &errorsJSON, &j.ErrorMessage, &attemptsJSON,
		&j.Version, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan job")
	}

	if err := json.Unmarshal([]byte(sourcesJSON), &j.Sources); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal sources")
	}
	if resultJSON.Valid {
		j.Result = &model.ImportResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), j.Result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal result")
		}
	}
	if errorsJSON.Valid {
		if err := json.Unmarshal([]byte(errorsJSON.String), &j.Errors); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal errors")
		}
	}
	if attemptsJSON.Valid {
		if err := json.Unmarshal([]byte(attemptsJSON.String), &j.PreviousAttempts); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal attempts")
		}
	}
	return &j, nil
}
