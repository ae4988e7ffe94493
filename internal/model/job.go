package model

import "time"

// JobStatus is the import job state machine.
// pending → processing → {completed | failed | needs_review}.
// needs_review and failed are retryable; completed can be re-run via an
// explicit AI-enhance request. Every re-run snapshots the current result
// into PreviousAttempts first.
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobProcessing  JobStatus = "processing"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
	JobNeedsReview JobStatus = "needs_review"
)

// ExtractionMode selects the extraction strategy for a run.
type ExtractionMode string

const (
	ModeHeuristic  ExtractionMode = "heuristic"
	ModeAIAssisted ExtractionMode = "ai_assisted"
)

// WarnLowText flags a source whose extracted text was too thin to trust.
const WarnLowText = "LOW_TEXT"

// ImportResult is the parsed outcome of one pipeline run: the candidates,
// non-text documents, warnings, and the job-level confidence map.
type ImportResult struct {
	Candidates    []ImportCandidate `json:"candidates"`
	Documents     []DocumentRef     `json:"documents,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	ConfidenceMap ConfidenceMap     `json:"confidence_map,omitempty"`
}

// AttemptSnapshot preserves a prior run's outcome for audit and retry.
type AttemptSnapshot struct {
	Status       JobStatus     `json:"status"`
	Result       *ImportResult `json:"result,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	SnappedAt    time.Time     `json:"snapped_at"`
}

// ImportJob is the persisted unit of work. Owned exclusively by one
// organization; all writes go through a whole-record update guarded by the
// optimistic Version counter.
type ImportJob struct {
	ID               string            `json:"id"`
	OrgID            string            `json:"org_id"`
	Status           JobStatus         `json:"status"`
	Mode             ExtractionMode    `json:"mode"`
	Sources          []RawSource       `json:"sources"`
	Result           *ImportResult     `json:"result,omitempty"`
	Errors           []string          `json:"errors,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	PreviousAttempts []AttemptSnapshot `json:"previous_attempts,omitempty"`
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Snapshot captures the job's current outcome as an attempt record.
func (j *ImportJob) Snapshot(now time.Time) AttemptSnapshot {
	return AttemptSnapshot{
		Status:       j.Status,
		Result:       j.Result,
		Errors:       j.Errors,
		ErrorMessage: j.ErrorMessage,
		SnappedAt:    now,
	}
}

// TotalWords sums word counts across all sources.
func (j *ImportJob) TotalWords() int {
	var n int
	for _, s := range j.Sources {
		n += s.WordCount
	}
	return n
}
