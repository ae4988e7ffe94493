package job

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkflowInput identifies the job a background run operates on. The job
// record itself stays in the store; only identity crosses the wire.
type WorkflowInput struct {
	JobID string
	OrgID string
}

// ImportJobWorkflow drives one background import run. All real work happens
// in the RunPipeline activity; the workflow only carries the retry policy.
func ImportJobWorkflow(ctx workflow.Context, in WorkflowInput) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	return workflow.ExecuteActivity(ctx, a.RunPipeline, in).Get(ctx, nil)
}

// Activities carries worker-side dependencies into activity invocations.
type Activities struct {
	Orchestrator *Orchestrator
}

// RunPipeline executes the pipeline for one job. Pipeline failures are
// recorded on the job record inside Execute, so only infrastructure errors
// surface to the workflow retry policy.
func (a *Activities) RunPipeline(ctx context.Context, in WorkflowInput) error {
	return a.Orchestrator.Execute(ctx, in.JobID, in.OrgID)
}

// RegisterWorker registers the workflow and activities on a temporal worker.
func RegisterWorker(w worker.Worker, acts *Activities) {
	w.RegisterWorkflow(ImportJobWorkflow)
	w.RegisterActivity(acts.RunPipeline)
}

// TemporalBackgrounder submits jobs to the worker fleet via a temporal
// client. Implements Backgrounder.
type TemporalBackgrounder struct {
	client        client.Client
	taskQueue     string
	healthTimeout time.Duration
}

// NewTemporalBackgrounder wraps an existing temporal client.
func NewTemporalBackgrounder(c client.Client, taskQueue string, healthTimeout time.Duration) *TemporalBackgrounder {
	if taskQueue == "" {
		taskQueue = "import-jobs"
	}
	if healthTimeout <= 0 {
		healthTimeout = 2 * time.Second
	}
	return &TemporalBackgrounder{client: c, taskQueue: taskQueue, healthTimeout: healthTimeout}
}

// Submit starts the import workflow for a job. The workflow ID is derived
// from the job ID, so re-submitting the same job while a run is in flight is
// rejected by the server rather than duplicated.
func (t *TemporalBackgrounder) Submit(ctx context.Context, jobID, orgID string) error {
	_, err := t.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "import-job-" + jobID,
		TaskQueue: t.taskQueue,
	}, ImportJobWorkflow, WorkflowInput{JobID: jobID, OrgID: orgID})
	if err != nil {
		return eris.Wrapf(err, "job: start workflow for %s", jobID)
	}
	return nil
}
