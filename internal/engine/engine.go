// Package engine is the pipeline execution core: a durable, idempotent,
// partially-resumable state machine that runs a job's steps in order,
// records each step's outcome through the ledger before the next one
// starts, and applies the retry policy on failures.
package engine

import (
	"context"
	"math"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/notify"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/steps"
)

// Ledger is the slice of the job store the engine writes through. Every
// mutation is durable before the engine moves on.
type Ledger interface {
	GetJob(ctx context.Context, id string) (model.Job, error)
	MarkStarted(ctx context.Context, id string) error
	CompleteStep(ctx context.Context, id string, out model.Output, progress int, final bool) error
	FailJob(ctx context.Context, id string, cause string) error
}

// Registry resolves step names to executors.
type Registry interface {
	Get(name string) (steps.Executor, bool)
}

// Deps wires the engine.
type Deps struct {
	Ledger   Ledger
	Registry Registry
	Notifier *notify.Notifier
	Log      *logger.Logger

	// MaxAttempts bounds transient retries per step (total attempts).
	MaxAttempts int
	// StepTimeout bounds a single executor attempt.
	StepTimeout time.Duration
	// BackoffBase is the initial delay of the exponential backoff.
	BackoffBase time.Duration
}

type Engine struct {
	ledger      Ledger
	registry    Registry
	notifier    *notify.Notifier
	log         *logger.Logger
	maxAttempts int
	stepTimeout time.Duration
	backoffBase time.Duration
}

func New(d Deps) *Engine {
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = 3
	}
	if d.StepTimeout <= 0 {
		d.StepTimeout = 10 * time.Minute
	}
	if d.BackoffBase <= 0 {
		d.BackoffBase = 500 * time.Millisecond
	}
	return &Engine{
		ledger:      d.Ledger,
		registry:    d.Registry,
		notifier:    d.Notifier,
		log:         d.Log.WithComponent("engine"),
		maxAttempts: d.MaxAttempts,
		stepTimeout: d.StepTimeout,
		backoffBase: d.BackoffBase,
	}
}

// Execute drives the job to a terminal status and returns it.
//
// A nil error means the returned status is durably recorded (including
// FAILURE); the caller can ack the delivery. A non-nil error means the
// ledger could not be updated and the delivery should be redelivered.
func (e *Engine) Execute(ctx context.Context, jobID string) (model.Status, error) {
	log := e.log.WithJobID(jobID)

	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	// Duplicate queue deliveries for finished jobs are a no-op.
	if job.Status.Terminal() {
		log.Info("job already terminal, skipping", "status", string(job.Status))
		return job.Status, nil
	}

	if job.Status == model.StatusPending {
		if err := e.ledger.MarkStarted(ctx, jobID); err != nil {
			return "", err
		}
		job.Status = model.StatusStarted
		e.notify(ctx, log, &job)
	}

	total := len(job.Pipeline)
	start := job.NextStepIndex()
	if start > 0 {
		log.Info("resuming job", "completed_steps", start, "total_steps", total)
	}
	if start >= total {
		// CompleteStep writes the last output and SUCCESS atomically, so a
		// STARTED job always has at least one step left.
		return "", errors.Newf(errors.CodeInternal, "job has %d outputs for %d steps but is not terminal", start, total)
	}

	for i := start; i < total; i++ {
		name := job.Pipeline[i]
		stepLog := log.WithStep(name)

		exec, ok := e.registry.Get(name)
		if !ok {
			// Creation-time validation makes this unreachable for jobs
			// created through the API; fail rather than guess.
			return e.fail(ctx, log, &job, errors.Validationf("unsupported step: %s", name))
		}

		req := steps.Request{
			JobID:    job.ID,
			InputKey: inputKeyFor(&job, i),
			Params:   map[string]string{},
		}

		stepLog.Info("running step", "index", i, "input_key", req.InputKey)
		started := time.Now()

		out, err := e.runStep(ctx, exec, req)
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown, not a step verdict: leave the job STARTED so
				// the next delivery resumes it.
				return "", errors.Wrap(ctx.Err(), "engine.step", "execution interrupted")
			}
			return e.fail(ctx, log, &job, err)
		}

		final := i == total-1
		progress := progressFor(i+1, total)
		if err := e.ledger.CompleteStep(ctx, job.ID, out, progress, final); err != nil {
			return "", err
		}

		job.Outputs = append(job.Outputs, out)
		job.Progress = progress
		if final {
			job.Status = model.StatusSuccess
			job.Progress = 100
		}
		e.notify(ctx, log, &job)

		stepLog.Info("step completed",
			"index", i,
			"output_key", out.S3Key,
			"progress", job.Progress,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}

	log.Info("job succeeded", "outputs", len(job.Outputs))
	return model.StatusSuccess, nil
}

// runStep invokes the executor, retrying transient failures with
// exponential backoff. Each attempt gets its own timeout; permanent
// failures abort immediately.
func (e *Engine) runStep(ctx context.Context, exec steps.Executor, req steps.Request) (model.Output, error) {
	backoff := retry.WithMaxRetries(uint64(e.maxAttempts-1), retry.NewExponential(e.backoffBase))

	var out model.Output
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()

		var execErr error
		out, execErr = exec.Execute(attemptCtx, req)
		if execErr == nil {
			return nil
		}
		if errors.IsTransient(execErr) {
			e.log.WithJobID(req.JobID).WithStep(exec.Name()).Warn("transient step failure, will retry",
				"error", execErr.Error(),
			)
			return retry.RetryableError(execErr)
		}
		return execErr
	})
	return out, err
}

// fail records the failure in the ledger. Steps after the failure point are
// not attempted; outputs already recorded stay available.
func (e *Engine) fail(ctx context.Context, log *logger.Logger, job *model.Job, cause error) (model.Status, error) {
	log.Error("job failed", "error", cause.Error(), "code", string(errors.GetCode(cause)))

	if err := e.ledger.FailJob(ctx, job.ID, cause.Error()); err != nil {
		return "", err
	}
	job.Status = model.StatusFailure
	e.notify(ctx, log, job)
	return model.StatusFailure, nil
}

func (e *Engine) notify(ctx context.Context, log *logger.Logger, job *model.Job) {
	if err := e.notifier.Publish(ctx, job.ID, job.Status, job.Progress); err != nil {
		log.Warn("status notification failed", "error", err.Error())
	}
}

// progressFor maps completed-step count to the 0..100 progress scale.
func progressFor(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
