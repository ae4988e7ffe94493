package job

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showdeck/importer/internal/chunker"
	"github.com/showdeck/importer/internal/dupes"
	"github.com/showdeck/importer/internal/extract"
	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/store"
)

// memStore is an in-memory Store with the same optimistic-version semantics
// as the real backends.
type memStore struct {
	mu     sync.Mutex
	jobs   map[string]*model.ImportJob
	shows  map[string][]model.Show
	venues map[string][]model.Venue
}

func newMemStore() *memStore {
	return &memStore{
		jobs:   make(map[string]*model.ImportJob),
		shows:  make(map[string][]model.Show),
		venues: make(map[string][]model.Venue),
	}
}

func (m *memStore) CreateJob(ctx context.Context, orgID string, sources []model.RawSource, mode model.ExtractionMode, status model.JobStatus) (*model.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := &model.ImportJob{
		ID: uuid.New().String(), OrgID: orgID, Status: status,
		Mode: mode, Sources: sources, Version: 1,
	}
	m.jobs[job.ID] = job
	dup := *job
	return &dup, nil
}

func (m *memStore) GetJob(ctx context.Context, jobID, orgID string) (*model.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	dup := *job
	return &dup, nil
}

func (m *memStore) UpdateJob(ctx context.Context, job *model.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[job.ID]
	if !ok || cur.OrgID != job.OrgID {
		return store.ErrNotFound
	}
	if cur.Version != job.Version {
		return store.ErrVersionConflict
	}
	job.Version++
	dup := *job
	m.jobs[job.ID] = &dup
	return nil
}

func (m *memStore) ListJobs(ctx context.Context, orgID string, filter store.JobFilter) ([]model.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ImportJob
	for _, j := range m.jobs {
		if j.OrgID == orgID && (filter.Status == "" || j.Status == filter.Status) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *memStore) ShowsByOrg(ctx context.Context, orgID string) ([]model.Show, error) {
	return m.shows[orgID], nil
}

func (m *memStore) VenuesByOrg(ctx context.Context, orgID string) ([]model.Venue, error) {
	return m.venues[orgID], nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

type fakeBackgrounder struct {
	healthErr error
	submitErr error
	submitted []string
}

func (f *fakeBackgrounder) Healthy(ctx context.Context) error { return f.healthErr }
func (f *fakeBackgrounder) Submit(ctx context.Context, jobID, orgID string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, jobID)
	return nil
}

type fakeAI struct {
	result *model.StructuredExtraction
	err    error
}

func (f *fakeAI) ExtractStructured(ctx context.Context, text string) (*model.StructuredExtraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testOrchestrator(t *testing.T, st store.Store, bg Backgrounder, ai extract.AIExtractor) *Orchestrator {
	t.Helper()
	aliases, err := model.LoadAliasTable()
	require.NoError(t, err)

	pipeline := NewPipeline(
		chunker.New(0, 0),
		extract.New(aliases, ai, extract.Options{}),
		dupes.New(st.(*memStore), 0, 0),
	)
	return NewOrchestrator(st, pipeline, bg, Thresholds{})
}

func pasted(text string) model.RawSource {
	words := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' {
			inWord = false
		} else if !inWord {
			words++
			inWord = true
		}
	}
	return model.RawSource{ID: uuid.New().String(), Kind: model.SourcePasted, RawText: text, WordCount: words}
}

const bookingText = `Show: Spring Tour Opener
Date: Nov 3, 2025
Venue: The Fillmore
City: Denver
Guarantee: $5,000
Set Time: 9:00 pm
Contact: sarah.jones@promoterco.com`

func TestStart_InlineRunCompletes(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	job, err := o.Start(context.Background(), "org-1", []model.RawSource{pasted(bookingText)}, model.ModeHeuristic)
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, job.Status)
	require.NotNil(t, job.Result)
	require.Len(t, job.Result.Candidates, 1)

	cand := job.Result.Candidates[0]
	assert.Equal(t, "Spring Tour Opener", cand.Title)
	assert.Equal(t, "2025-11-03", cand.Date)
	assert.Equal(t, "The Fillmore", cand.VenueName)
	assert.Equal(t, "Denver", cand.City)
	assert.Equal(t, int64(500000), cand.GuaranteeCents)
	assert.Equal(t, "21:00", cand.SetTime)
	require.Len(t, cand.Contacts, 1)
	assert.Equal(t, "sarah.jones@promoterco.com", cand.Contacts[0].Email)
}

func TestStart_RequiresOrgAndSources(t *testing.T) {
	o := testOrchestrator(t, newMemStore(), nil, nil)

	_, err := o.Start(context.Background(), "", []model.RawSource{pasted("x")}, model.ModeHeuristic)
	assert.Error(t, err)

	_, err = o.Start(context.Background(), "org-1", nil, model.ModeHeuristic)
	assert.Error(t, err)
}

func TestStart_DocumentsOnlyFallback(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	sources := []model.RawSource{{
		ID: "f1", Kind: model.SourceFile, FileName: "rider.pdf",
		MimeType: "application/pdf", SizeBytes: 120000, PageCount: 4, IsLowText: true,
	}}
	job, err := o.Start(context.Background(), "org-1", sources, model.ModeHeuristic)
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Empty(t, job.Result.Candidates)
	require.Len(t, job.Result.Documents, 1)
	assert.Equal(t, "rider.pdf", job.Result.Documents[0].FileName)
	assert.Contains(t, job.Result.Warnings, model.WarnLowText)
}

func TestStart_LargeJobGoesToWorker(t *testing.T) {
	st := newMemStore()
	bg := &fakeBackgrounder{}
	o := testOrchestrator(t, st, bg, nil)

	sources := []model.RawSource{pasted("word"), pasted("word"), pasted("word"), pasted("word")}
	job, err := o.Start(context.Background(), "org-1", sources, model.ModeHeuristic)
	require.NoError(t, err)

	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, []string{job.ID}, bg.submitted)
}

func TestStart_UnhealthyWorkerRefusesWithoutCreatingJob(t *testing.T) {
	st := newMemStore()
	bg := &fakeBackgrounder{healthErr: eris.New("dial tcp: connection refused")}
	o := testOrchestrator(t, st, bg, nil)

	sources := []model.RawSource{pasted("a"), pasted("b"), pasted("c"), pasted("d")}
	_, err := o.Start(context.Background(), "org-1", sources, model.ModeHeuristic)
	require.ErrorIs(t, err, ErrWorkerUnavailable)
	assert.Empty(t, st.jobs)
}

func TestStart_AmbiguousFieldNeedsReview(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	// Two labeled venues on the same date with equal confidence.
	text := "Date: Nov 3, 2025\nVenue: The Fillmore\nVenue: The Troubadour"
	job, err := o.Start(context.Background(), "org-1", []model.RawSource{pasted(text)}, model.ModeHeuristic)
	require.NoError(t, err)

	assert.Equal(t, model.JobNeedsReview, job.Status)
	require.Len(t, job.Result.Candidates, 1)

	var venueRes model.Resolution
	for _, r := range job.Result.Candidates[0].Resolutions {
		if r.Type == model.FactVenueName {
			venueRes = r
		}
	}
	assert.Equal(t, model.StateAmbiguous, venueRes.State)
	assert.Len(t, venueRes.CompetingValues, 2)
}

func TestStart_ConflictingDatesAcrossSourcesNeedReview(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	// Two submissions about the same show that disagree on the date. One
	// candidate with the date surfaced as ambiguous, never one show per date.
	sources := []model.RawSource{
		pasted("Date: Jul 15, 2025"),
		pasted("Date: July 16 2025"),
	}
	job, err := o.Start(context.Background(), "org-1", sources, model.ModeHeuristic)
	require.NoError(t, err)

	assert.Equal(t, model.JobNeedsReview, job.Status)
	require.Len(t, job.Result.Candidates, 1)

	cand := job.Result.Candidates[0]
	assert.Empty(t, cand.Date)

	var dateRes model.Resolution
	for _, r := range cand.Resolutions {
		if r.Type == model.FactDate {
			dateRes = r
		}
	}
	assert.Equal(t, model.StateAmbiguous, dateRes.State)
	assert.Empty(t, dateRes.SelectedFactID)
	assert.Len(t, dateRes.CompetingValues, 2)
}

func TestStart_LowConfidenceResultNeedsReview(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	// A bare clock with no set/show/doors context resolves, but far too
	// weakly to auto-complete the job.
	job, err := o.Start(context.Background(), "org-1",
		[]model.RawSource{pasted("arrive around 10:30 maybe")}, model.ModeHeuristic)
	require.NoError(t, err)

	assert.Equal(t, model.JobNeedsReview, job.Status)
	require.Len(t, job.Result.Candidates, 1)
	assert.Equal(t, "10:30", job.Result.Candidates[0].SetTime)

	var timeRes model.Resolution
	for _, r := range job.Result.Candidates[0].Resolutions {
		if r.Type == model.FactSetTime {
			timeRes = r
		}
	}
	assert.Equal(t, model.StateResolved, timeRes.State)
	assert.Equal(t, 0.5, timeRes.Confidence)
}

func TestStart_AIFailureDegradesToPatternOnly(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, &fakeAI{err: eris.New("model overloaded")})

	job, err := o.Start(context.Background(), "org-1", []model.RawSource{pasted(bookingText)}, model.ModeAIAssisted)
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, job.Status)
	require.Len(t, job.Errors, 1)
	assert.Contains(t, job.Errors[0], "ai extraction degraded")
	assert.Equal(t, "Spring Tour Opener", job.Result.Candidates[0].Title)
}

func TestStart_AIAssistedSplitsMultipleEvents(t *testing.T) {
	st := newMemStore()
	ai := &fakeAI{result: &model.StructuredExtraction{
		Events: []model.ExtractedEvent{
			{
				Title: model.FieldGuess{Value: "Night One", Confidence: 0.9},
				Date:  model.FieldGuess{Value: "2025-11-03", Confidence: 0.95},
			},
			{
				Title: model.FieldGuess{Value: "Night Two", Confidence: 0.9},
				Date:  model.FieldGuess{Value: "2025-11-05", Confidence: 0.95},
			},
		},
	}}
	o := testOrchestrator(t, st, nil, ai)

	job, err := o.Start(context.Background(), "org-1",
		[]model.RawSource{pasted("two nights, details attached")}, model.ModeAIAssisted)
	require.NoError(t, err)

	require.Len(t, job.Result.Candidates, 2)
	assert.Equal(t, "Night One", job.Result.Candidates[0].Title)
	assert.Equal(t, "2025-11-03", job.Result.Candidates[0].Date)
	assert.Equal(t, "Night Two", job.Result.Candidates[1].Title)
	assert.Equal(t, "2025-11-05", job.Result.Candidates[1].Date)
}

func TestStart_DuplicateHintsAttached(t *testing.T) {
	st := newMemStore()
	st.shows["org-1"] = []model.Show{
		{ID: "s1", OrgID: "org-1", Title: "Spring Tour Opener", Date: "2025-11-03", City: "Denver"},
	}
	o := testOrchestrator(t, st, nil, nil)

	job, err := o.Start(context.Background(), "org-1", []model.RawSource{pasted(bookingText)}, model.ModeHeuristic)
	require.NoError(t, err)

	require.Len(t, job.Result.Candidates, 1)
	dups := job.Result.Candidates[0].Duplicates
	require.NotEmpty(t, dups)
	assert.Equal(t, "s1", dups[0].EntityID)
	assert.Equal(t, 1.0, dups[0].Score)
}

func TestRetry_SnapshotsPriorAttempt(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	created, err := st.CreateJob(context.Background(), "org-1",
		[]model.RawSource{pasted(bookingText)}, model.ModeHeuristic, model.JobFailed)
	require.NoError(t, err)
	created.ErrorMessage = "boom"
	require.NoError(t, st.UpdateJob(context.Background(), created))

	job, err := o.Retry(context.Background(), created.ID, "org-1")
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Empty(t, job.ErrorMessage)
	require.Len(t, job.PreviousAttempts, 1)
	assert.Equal(t, model.JobFailed, job.PreviousAttempts[0].Status)
	assert.Equal(t, "boom", job.PreviousAttempts[0].ErrorMessage)
}

func TestRetry_CompletedJobIsNotRetryable(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	created, err := st.CreateJob(context.Background(), "org-1",
		[]model.RawSource{pasted("x")}, model.ModeHeuristic, model.JobCompleted)
	require.NoError(t, err)

	_, err = o.Retry(context.Background(), created.ID, "org-1")
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestRetry_WrongOrgIsNotFound(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	created, err := st.CreateJob(context.Background(), "org-1",
		[]model.RawSource{pasted("x")}, model.ModeHeuristic, model.JobFailed)
	require.NoError(t, err)

	_, err = o.Retry(context.Background(), created.ID, "org-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnhance_SwitchesToAIMode(t *testing.T) {
	st := newMemStore()
	ai := &fakeAI{result: &model.StructuredExtraction{
		Events: []model.ExtractedEvent{{
			Notes: model.FieldGuess{Value: "two sold-out nights last year", Confidence: 0.8},
		}},
	}}
	o := testOrchestrator(t, st, nil, ai)

	created, err := st.CreateJob(context.Background(), "org-1",
		[]model.RawSource{pasted(bookingText)}, model.ModeHeuristic, model.JobCompleted)
	require.NoError(t, err)

	job, err := o.Enhance(context.Background(), created.ID, "org-1")
	require.NoError(t, err)

	assert.Equal(t, model.ModeAIAssisted, job.Mode)
	require.Len(t, job.PreviousAttempts, 1)
	require.Len(t, job.Result.Candidates, 1)
	assert.Equal(t, "two sold-out nights last year", job.Result.Candidates[0].Notes)
}

func TestEnhance_PendingJobRejected(t *testing.T) {
	st := newMemStore()
	o := testOrchestrator(t, st, nil, nil)

	created, err := st.CreateJob(context.Background(), "org-1",
		[]model.RawSource{pasted("x")}, model.ModeHeuristic, model.JobProcessing)
	require.NoError(t, err)

	_, err = o.Enhance(context.Background(), created.ID, "org-1")
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestShouldBackground_Thresholds(t *testing.T) {
	o := NewOrchestrator(newMemStore(), nil, nil, Thresholds{BackgroundWords: 10, BackgroundSources: 2})

	small := []model.RawSource{{WordCount: 5}}
	assert.False(t, o.ShouldBackground(small))

	wordy := []model.RawSource{{WordCount: 11}}
	assert.True(t, o.ShouldBackground(wordy))

	many := []model.RawSource{{WordCount: 1}, {WordCount: 1}, {WordCount: 1}}
	assert.True(t, o.ShouldBackground(many))
}
