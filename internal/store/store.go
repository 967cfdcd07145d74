// Package store is the job ledger: the single durable source of truth for
// job state, per-step outputs, and worker leases. All cross-worker
// coordination happens through atomic updates here, never through in-process
// locks.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// ErrLeaseHeld is returned when another worker holds a live lease on the job.
var ErrLeaseHeld = errors.Conflict("job lease held by another worker")

// ErrLeaseLost is returned when a renewal or release finds the lease no
// longer owned by the caller (it expired and was reclaimed).
var ErrLeaseLost = errors.Conflict("job lease lost")

// maxErrorLen bounds the error text persisted on FAILURE.
const maxErrorLen = 2000

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateJob inserts a PENDING ledger entry. The pipeline must already be
// validated; the ledger does not re-check step names.
func (s *Store) CreateJob(ctx context.Context, inputKey string, pipeline []string) (model.Job, error) {
	job := model.Job{
		ID:       uuid.NewString(),
		Status:   model.StatusPending,
		InputKey: inputKey,
		Pipeline: pipeline,
		Outputs:  []model.Output{},
	}

	pipelineJSON, err := json.Marshal(pipeline)
	if err != nil {
		return model.Job{}, errors.Wrap(err, "store.create", "marshal pipeline")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, status, input_key, pipeline)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		job.ID, job.Status, inputKey, pipelineJSON,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return model.Job{}, errors.Wrap(err, "store.create", "insert job")
	}
	return job, nil
}

// GetJob loads a single ledger entry.
func (s *Store) GetJob(ctx context.Context, id string) (model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, input_key, pipeline, progress, outputs, error_text,
		        COALESCE(lease_holder, ''), lease_expires_at, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		id,
	)
	return scanJob(row, id)
}

// ListJobs returns recent jobs, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status string, limit int) ([]model.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, status, input_key, pipeline, progress, outputs, error_text,
			        COALESCE(lease_holder, ''), lease_expires_at, created_at, updated_at
			 FROM jobs WHERE status = $1
			 ORDER BY created_at DESC LIMIT $2`,
			status, limit,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, status, input_key, pipeline, progress, outputs, error_text,
			        COALESCE(lease_holder, ''), lease_expires_at, created_at, updated_at
			 FROM jobs ORDER BY created_at DESC LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "store.list", "query jobs")
	}
	defer rows.Close()

	out := make([]model.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkStarted transitions PENDING -> STARTED. A no-op when the job already
// left PENDING (resume path or duplicate delivery).
func (s *Store) MarkStarted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3`,
		id, model.StatusStarted, model.StatusPending,
	)
	if err != nil {
		return errors.Wrap(err, "store.start", "mark job started")
	}
	return nil
}

// CompleteStep durably records one step's canonical output and the new
// progress in a single atomic write. When final is set the same write also
// transitions the job to SUCCESS with progress 100, so a crash can never
// observe SUCCESS without the last output, or progress 100 without SUCCESS.
func (s *Store) CompleteStep(ctx context.Context, id string, out model.Output, progress int, final bool) error {
	outJSON, err := json.Marshal([]model.Output{out})
	if err != nil {
		return errors.Wrap(err, "store.complete_step", "marshal output")
	}

	if final {
		_, err = s.pool.Exec(ctx,
			`UPDATE jobs
			 SET outputs = outputs || $2::jsonb, progress = 100,
			     status = $3, updated_at = now()
			 WHERE id = $1 AND status = $4`,
			id, outJSON, model.StatusSuccess, model.StatusStarted,
		)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE jobs
			 SET outputs = outputs || $2::jsonb, progress = $3, updated_at = now()
			 WHERE id = $1 AND status = $4`,
			id, outJSON, progress, model.StatusStarted,
		)
	}
	if err != nil {
		return errors.Wrap(err, "store.complete_step", "append output")
	}
	return nil
}

// FailJob transitions an active job to FAILURE with a truncated error text.
// Terminal jobs are left untouched.
func (s *Store) FailJob(ctx context.Context, id string, cause string) error {
	if len(cause) > maxErrorLen {
		cause = cause[:maxErrorLen]
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, error_text = $3, updated_at = now()
		 WHERE id = $1 AND status IN ($4, $5)`,
		id, model.StatusFailure, cause, model.StatusPending, model.StatusStarted,
	)
	if err != nil {
		return errors.Wrap(err, "store.fail", "mark job failed")
	}
	return nil
}

// AcquireLease claims the job for holder if it is unleased or the previous
// lease expired. The claim is a single conditional UPDATE, so exactly one of
// two concurrent claimants wins.
func (s *Store) AcquireLease(ctx context.Context, id, holder string, ttl time.Duration) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET lease_holder = $2, lease_expires_at = now() + make_interval(secs => $3)
		 WHERE id = $1 AND (lease_holder IS NULL OR lease_expires_at < now())`,
		id, holder, ttl.Seconds(),
	)
	if err != nil {
		return errors.Wrap(err, "store.lease", "acquire lease")
	}
	if tag.RowsAffected() == 0 {
		// Either another worker holds the lease or the job is gone.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return errors.Wrap(err, "store.lease", "check job")
		}
		if !exists {
			return errors.NotFound("job", id)
		}
		return ErrLeaseHeld
	}
	return nil
}

// RenewLease extends the lease while execution is still running. Fails with
// ErrLeaseLost when the holder no longer owns the job.
func (s *Store) RenewLease(ctx context.Context, id, holder string, ttl time.Duration) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET lease_expires_at = now() + make_interval(secs => $3)
		 WHERE id = $1 AND lease_holder = $2`,
		id, holder, ttl.Seconds(),
	)
	if err != nil {
		return errors.Wrap(err, "store.lease", "renew lease")
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaseLost
	}
	return nil
}

// ReleaseLease clears the lease if holder still owns it.
func (s *Store) ReleaseLease(ctx context.Context, id, holder string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET lease_holder = NULL, lease_expires_at = NULL
		 WHERE id = $1 AND lease_holder = $2`,
		id, holder,
	)
	if err != nil {
		return errors.Wrap(err, "store.lease", "release lease")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner, id string) (model.Job, error) {
	var (
		job          model.Job
		pipelineJSON []byte
		outputsJSON  []byte
	)
	err := row.Scan(
		&job.ID, &job.Status, &job.InputKey, &pipelineJSON, &job.Progress,
		&outputsJSON, &job.Error, &job.LeaseHolder, &job.LeaseExpires,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Job{}, errors.NotFound("job", id)
		}
		return model.Job{}, errors.Wrap(err, "store.scan", "scan job row")
	}
	if err := json.Unmarshal(pipelineJSON, &job.Pipeline); err != nil {
		return model.Job{}, errors.Wrap(err, "store.scan", "decode pipeline")
	}
	if err := json.Unmarshal(outputsJSON, &job.Outputs); err != nil {
		return model.Job{}, errors.Wrap(err, "store.scan", "decode outputs")
	}
	return job, nil
}
