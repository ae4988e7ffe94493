package job

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/store"
)

// ErrWorkerUnavailable is returned when a job needs background execution but
// the worker fleet fails its health probe. No job record is created in that
// case; the caller asks the user to retry later.
var ErrWorkerUnavailable = eris.New("job: background worker unavailable")

// ErrNotRetryable is returned when a retry is requested for a job whose
// status does not permit one.
var ErrNotRetryable = eris.New("job: status not retryable")

// Backgrounder hands a job to the background worker fleet.
type Backgrounder interface {
	// Healthy probes worker availability; bounded by its own timeout.
	Healthy(ctx context.Context) error
	// Submit enqueues the job for asynchronous execution.
	Submit(ctx context.Context, jobID, orgID string) error
}

// Thresholds decide when a job is too large to run inline and when its
// outcome is too uncertain to complete without a reviewer.
type Thresholds struct {
	BackgroundWords   int
	BackgroundSources int
	// ReviewConfidence is the minimum mean confidence across a candidate's
	// resolved fields; a candidate below it sends the job to review.
	ReviewConfidence float64
}

// DefaultThresholds matches interactive latency expectations: anything past a
// few pages or a few attachments goes to the worker.
var DefaultThresholds = Thresholds{BackgroundWords: 4000, BackgroundSources: 3, ReviewConfidence: 0.6}

// Orchestrator owns the import job lifecycle: creation, foreground or
// background dispatch, pipeline runs, retry and AI-enhance re-runs.
type Orchestrator struct {
	store      store.Store
	pipeline   *Pipeline
	background Backgrounder // nil disables background dispatch
	thresholds Thresholds
	now        func() time.Time
}

// NewOrchestrator wires the lifecycle. background may be nil, in which case
// every job runs inline regardless of size.
func NewOrchestrator(st store.Store, pipeline *Pipeline, background Backgrounder, thresholds Thresholds) *Orchestrator {
	if thresholds.BackgroundWords <= 0 {
		thresholds.BackgroundWords = DefaultThresholds.BackgroundWords
	}
	if thresholds.BackgroundSources <= 0 {
		thresholds.BackgroundSources = DefaultThresholds.BackgroundSources
	}
	if thresholds.ReviewConfidence <= 0 {
		thresholds.ReviewConfidence = DefaultThresholds.ReviewConfidence
	}
	return &Orchestrator{
		store:      st,
		pipeline:   pipeline,
		background: background,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// ShouldBackground reports whether the submission is too large for an inline
// run: total words or source count past the thresholds.
func (o *Orchestrator) ShouldBackground(sources []model.RawSource) bool {
	if len(sources) > o.thresholds.BackgroundSources {
		return true
	}
	var words int
	for _, s := range sources {
		words += s.WordCount
	}
	return words > o.thresholds.BackgroundWords
}

// Start creates a job and either runs it inline or hands it to the worker.
// Sources must already be ingested (text extracted, word counts set).
//
// A submission with no usable text but at least one file attachment is the
// documents-only fallback: the job completes immediately with document
// metadata and a LOW_TEXT warning instead of failing.
func (o *Orchestrator) Start(ctx context.Context, orgID string, sources []model.RawSource, mode model.ExtractionMode) (*model.ImportJob, error) {
	if orgID == "" {
		return nil, eris.New("job: org id required")
	}
	if len(sources) == 0 {
		return nil, eris.New("job: at least one source required")
	}
	if mode == "" {
		mode = model.ModeHeuristic
	}

	if documentsOnly(sources) {
		job, err := o.store.CreateJob(ctx, orgID, sources, mode, model.JobCompleted)
		if err != nil {
			return nil, err
		}
		job.Result = documentsOnlyResult(sources)
		if err := o.store.UpdateJob(ctx, job); err != nil {
			return nil, err
		}
		zap.L().Info("job: documents-only fallback",
			zap.String("job_id", job.ID),
			zap.Int("documents", len(job.Result.Documents)),
		)
		return job, nil
	}

	wantBackground := o.background != nil && o.ShouldBackground(sources)
	if wantBackground {
		// Probe before creating the job so a dead worker fleet never strands
		// a pending record.
		if err := o.background.Healthy(ctx); err != nil {
			zap.L().Warn("job: worker health probe failed", zap.Error(err))
			return nil, eris.Wrap(ErrWorkerUnavailable, err.Error())
		}
	}

	job, err := o.store.CreateJob(ctx, orgID, sources, mode, model.JobPending)
	if err != nil {
		return nil, err
	}

	zap.L().Info("job: created",
		zap.String("job_id", job.ID),
		zap.String("org_id", orgID),
		zap.String("mode", string(mode)),
		zap.Int("sources", len(sources)),
		zap.Int("words", job.TotalWords()),
		zap.Bool("background", wantBackground),
	)

	if wantBackground {
		if err := o.background.Submit(ctx, job.ID, orgID); err != nil {
			job.Status = model.JobFailed
			job.ErrorMessage = "background submission failed: " + err.Error()
			if uErr := o.store.UpdateJob(ctx, job); uErr != nil {
				zap.L().Error("job: failed recording submission failure", zap.Error(uErr))
			}
			return nil, eris.Wrap(ErrWorkerUnavailable, err.Error())
		}
		return job, nil
	}

	if err := o.Execute(ctx, job.ID, orgID); err != nil {
		return nil, err
	}
	return o.store.GetJob(ctx, job.ID, orgID)
}

// Execute runs the pipeline for an existing job and persists the outcome.
// Used for both inline runs and background activity invocations. Pipeline
// errors mark the job failed rather than propagating; only store errors
// return non-nil.
func (o *Orchestrator) Execute(ctx context.Context, jobID, orgID string) error {
	job, err := o.store.GetJob(ctx, jobID, orgID)
	if err != nil {
		return err
	}

	job.Status = model.JobProcessing
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	result, softErrs, runErr := o.pipeline.Run(ctx, job)
	job.Errors = softErrs
	if runErr != nil {
		job.Status = model.JobFailed
		job.ErrorMessage = runErr.Error()
		zap.L().Error("job: pipeline failed",
			zap.String("job_id", job.ID),
			zap.Error(runErr),
		)
		return o.store.UpdateJob(ctx, job)
	}

	job.Result = result
	job.ErrorMessage = ""
	if o.needsReview(result) {
		job.Status = model.JobNeedsReview
	} else {
		job.Status = model.JobCompleted
	}

	zap.L().Info("job: run complete",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("soft_errors", len(softErrs)),
	)
	return o.store.UpdateJob(ctx, job)
}

// Retry re-runs a failed or needs_review job. The current outcome is
// snapshotted into PreviousAttempts before the re-run; a concurrent retry
// loses the optimistic version race and surfaces ErrVersionConflict.
func (o *Orchestrator) Retry(ctx context.Context, jobID, orgID string) (*model.ImportJob, error) {
	return o.rerun(ctx, jobID, orgID, func(job *model.ImportJob) error {
		if job.Status != model.JobFailed && job.Status != model.JobNeedsReview {
			return eris.Wrapf(ErrNotRetryable, "status %s", job.Status)
		}
		return nil
	}, nil)
}

// Enhance re-runs a job with the AI-assisted extraction mode. Permitted from
// any terminal status, including completed; the prior result is preserved as
// an attempt snapshot.
func (o *Orchestrator) Enhance(ctx context.Context, jobID, orgID string) (*model.ImportJob, error) {
	return o.rerun(ctx, jobID, orgID, func(job *model.ImportJob) error {
		switch job.Status {
		case model.JobCompleted, model.JobFailed, model.JobNeedsReview:
			return nil
		}
		return eris.Wrapf(ErrNotRetryable, "status %s", job.Status)
	}, func(job *model.ImportJob) {
		job.Mode = model.ModeAIAssisted
	})
}

func (o *Orchestrator) rerun(ctx context.Context, jobID, orgID string, check func(*model.ImportJob) error, mutate func(*model.ImportJob)) (*model.ImportJob, error) {
	job, err := o.store.GetJob(ctx, jobID, orgID)
	if err != nil {
		return nil, err
	}
	if err := check(job); err != nil {
		return nil, err
	}

	job.PreviousAttempts = append(job.PreviousAttempts, job.Snapshot(o.now().UTC()))
	job.Status = model.JobPending
	job.Result = nil
	job.Errors = nil
	job.ErrorMessage = ""
	if mutate != nil {
		mutate(job)
	}

	// The optimistic version check makes this write the race arbiter: the
	// losing concurrent re-run stops here with ErrVersionConflict.
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	if o.background != nil && o.ShouldBackground(job.Sources) {
		if err := o.background.Healthy(ctx); err != nil {
			return nil, eris.Wrap(ErrWorkerUnavailable, err.Error())
		}
		if err := o.background.Submit(ctx, job.ID, orgID); err != nil {
			return nil, eris.Wrap(ErrWorkerUnavailable, err.Error())
		}
		return o.store.GetJob(ctx, job.ID, orgID)
	}

	if err := o.Execute(ctx, job.ID, orgID); err != nil {
		return nil, err
	}
	return o.store.GetJob(ctx, job.ID, orgID)
}

// documentsOnly reports whether no source carries usable text while at least
// one file attachment exists.
func documentsOnly(sources []model.RawSource) bool {
	hasFile := false
	for _, s := range sources {
		if s.RawText != "" && !s.IsLowText {
			return false
		}
		if s.Kind == model.SourceFile || s.Kind == model.SourceSpreadsheet {
			hasFile = true
		}
	}
	return hasFile
}

func documentsOnlyResult(sources []model.RawSource) *model.ImportResult {
	result := &model.ImportResult{Warnings: []string{model.WarnLowText}}
	for _, s := range sources {
		if s.Kind != model.SourceFile && s.Kind != model.SourceSpreadsheet {
			continue
		}
		result.Documents = append(result.Documents, model.DocumentRef{
			FileName:  s.FileName,
			MimeType:  s.MimeType,
			SizeBytes: s.SizeBytes,
			PageCount: s.PageCount,
			LowText:   s.IsLowText,
		})
	}
	return result
}

// needsReview reports whether any candidate carries an ambiguous field or
// resolved with too little overall confidence. A candidate that resolved
// nothing at all also goes to review rather than completing empty.
func (o *Orchestrator) needsReview(result *model.ImportResult) bool {
	for _, c := range result.Candidates {
		var sum float64
		var resolved int
		for _, r := range c.Resolutions {
			switch r.State {
			case model.StateAmbiguous:
				return true
			case model.StateResolved:
				sum += r.Confidence
				resolved++
			}
		}
		if resolved == 0 || sum/float64(resolved) < o.thresholds.ReviewConfidence {
			return true
		}
	}
	return false
}
