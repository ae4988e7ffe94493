package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/showdeck/importer/internal/model"
)

// PgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgres connects to the given database URL and pings it.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (or a pgxmock in tests).
func NewPostgresFromPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS import_jobs (
	id                UUID PRIMARY KEY,
	org_id            TEXT NOT NULL,
	status            TEXT NOT NULL,
	mode              TEXT NOT NULL,
	sources           JSONB NOT NULL,
	result            JSONB,
	errors            JSONB,
	error_message     TEXT NOT NULL DEFAULT '',
	previous_attempts JSONB,
	version           INTEGER NOT NULL DEFAULT 1,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_org ON import_jobs(org_id);
CREATE INDEX IF NOT EXISTS idx_import_jobs_status ON import_jobs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, orgID string, sources []model.RawSource, mode model.ExtractionMode, status model.JobStatus) (*model.ImportJob, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_jobs (id, org_id, status, mode, sources, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.OrgID, string(job.Status), string(job.Mode), sourcesJSON,
		job.Version, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID, orgID string) (*model.ImportJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, org_id, status, mode, sources, result, errors, error_message,
		        previous_attempts, version, created_at, updated_at
		 FROM import_jobs WHERE id = $1 AND org_id = $2`,
		jobID, orgID,
	)
	return scanPgJob(row)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.ImportJob) error {
	var resultJSON, errorsJSON, attemptsJSON []byte
	var err error
	if job.Result != nil {
		if resultJSON, err = json.Marshal(job.Result); err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
	}
	if len(job.Errors) > 0 {
		if errorsJSON, err = json.Marshal(job.Errors); err != nil {
			return eris.Wrap(err, "postgres: marshal errors")
		}
	}
	if len(job.PreviousAttempts) > 0 {
		if attemptsJSON, err = json.Marshal(job.PreviousAttempts); err != nil {
			return eris.Wrap(err, "postgres: marshal attempts")
		}
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_jobs
		 SET status = $1, result = $2, errors = $3, error_message = $4,
		     previous_attempts = $5, version = version + 1, updated_at = $6
		 WHERE id = $7 AND org_id = $8 AND version = $9`,
		string(job.Status), resultJSON, errorsJSON, job.ErrorMessage,
		attemptsJSON, now, job.ID, job.OrgID, job.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}

	if tag.RowsAffected() == 0 {
		var exists int
		err := s.pool.QueryRow(ctx,
			`SELECT 1 FROM import_jobs WHERE id = $1 AND org_id = $2`, job.ID, job.OrgID,
		).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	job.Version++
	job.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, orgID string, filter JobFilter) ([]model.ImportJob, error) {
	query := `SELECT id, org_id, status, mode, sources, result, errors, error_message,
	                 previous_attempts, version, created_at, updated_at
	          FROM import_jobs WHERE org_id = $1`
	args := []any{orgID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.ImportJob
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) ShowsByOrg(ctx context.Context, orgID string) ([]model.Show, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, org_id, title, date, COALESCE(city, ''), COALESCE(venue, '')
		 FROM shows WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: shows by org")
	}
	defer rows.Close()

	var shows []model.Show
	for rows.Next() {
		var sh model.Show
		if err := rows.Scan(&sh.ID, &sh.OrgID, &sh.Title, &sh.Date, &sh.City, &sh.VenueName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan show")
		}
		shows = append(shows, sh)
	}
	return shows, eris.Wrap(rows.Err(), "postgres: shows iterate")
}

func (s *PostgresStore) VenuesByOrg(ctx context.Context, orgID string) ([]model.Venue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, org_id, name, COALESCE(city, '') FROM venues WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: venues by org")
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.OrgID, &v.Name, &v.City); err != nil {
			return nil, eris.Wrap(err, "postgres: scan venue")
		}
		venues = append(venues, v)
	}
	return venues, eris.Wrap(rows.Err(), "postgres: venues iterate")
}

func scanPgJob(row pgx.Row) (*model.ImportJob, error) {
	var j model.ImportJob
	var sourcesJSON []byte
	var resultJSON, errorsJSON, attemptsJSON []byte

	err := row.Scan(&j.ID, &j.OrgID, &j.Status, &j.Mode, &sourcesJSON,
		&resultJSON, &errorsJSON, &j.ErrorMessage, &attemptsJSON,
		&j.Version, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}

	if err := json.Unmarshal(sourcesJSON, &j.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal sources")
	}
	if len(resultJSON) > 0 {
		j.Result = &model.ImportResult{}
		if err := json.Unmarshal(resultJSON, j.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &j.Errors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal errors")
		}
	}
	if len(attemptsJSON) > 0 {
		if err := json.Unmarshal(attemptsJSON, &j.PreviousAttempts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attempts")
		}
	}
	return &j, nil
}
