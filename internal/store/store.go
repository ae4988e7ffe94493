package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/showdeck/importer/internal/model"
)

// ErrNotFound is returned when a job does not exist or belongs to another
// organization; callers cannot distinguish the two.
var ErrNotFound = eris.New("store: job not found")

// ErrVersionConflict is returned when an update carries a stale version,
// meaning another attempt wrote the job since it was read.
var ErrVersionConflict = eris.New("store: job version conflict")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines job persistence. All reads and writes are org-scoped;
// updates are whole-record with an optimistic version check.
type Store interface {
	CreateJob(ctx context.Context, orgID string, sources []model.RawSource, mode model.ExtractionMode, status model.JobStatus) (*model.ImportJob, error)
	GetJob(ctx context.Context, jobID, orgID string) (*model.ImportJob, error)
	UpdateJob(ctx context.Context, job *model.ImportJob) error
	ListJobs(ctx context.Context, orgID string, filter JobFilter) ([]model.ImportJob, error)

	// Catalog reads for duplicate matching. The pipeline never writes these
	// tables; candidate acceptance happens outside this system.
	ShowsByOrg(ctx context.Context, orgID string) ([]model.Show, error)
	VenuesByOrg(ctx context.Context, orgID string) ([]model.Venue, error)

	Migrate(ctx context.Context) error
	Close() error
}
