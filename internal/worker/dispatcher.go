// Package worker consumes job-ready notifications and drives the execution
// engine, one lease-guarded claim-execute-ack cycle per delivery.
package worker

import (
	"context"
	"time"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/queue"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/store"
)

// Leaser is the lease slice of the ledger: an atomic claim-if-unleased-or-
// expired primitive. It is the only cross-worker coordination mechanism.
type Leaser interface {
	AcquireLease(ctx context.Context, id, holder string, ttl time.Duration) error
	RenewLease(ctx context.Context, id, holder string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, id, holder string) error
}

// Executor runs one job to a terminal status.
type Executor interface {
	Execute(ctx context.Context, jobID string) (model.Status, error)
}

// Dispatcher owns the claim-execute-ack cycle for one worker identity.
type Dispatcher struct {
	leaser   Leaser
	executor Executor
	log      *logger.Logger
	holder   string
	leaseTTL time.Duration
}

func NewDispatcher(leaser Leaser, executor Executor, log *logger.Logger, holder string, leaseTTL time.Duration) *Dispatcher {
	if leaseTTL <= 0 {
		leaseTTL = time.Minute
	}
	return &Dispatcher{
		leaser:   leaser,
		executor: executor,
		log:      log.WithComponent("dispatcher"),
		holder:   holder,
		leaseTTL: leaseTTL,
	}
}

// Handle processes one delivery. Ack/requeue policy:
//
//   - lease held elsewhere: ack and drop, the other worker owns the job
//   - job not found: ack and drop, redelivery cannot fix it
//   - terminal status reached (SUCCESS or durably recorded FAILURE): ack
//   - anything else (ledger unreachable, shutdown mid-step): requeue
func (d *Dispatcher) Handle(ctx context.Context, del queue.Delivery) {
	log := d.log.WithJobID(del.JobID)

	err := d.leaser.AcquireLease(ctx, del.JobID, d.holder, d.leaseTTL)
	switch {
	case errors.Is(err, store.ErrLeaseHeld):
		log.Debug("lease held by another worker, dropping delivery")
		d.ack(log, del)
		return
	case errors.IsNotFound(err):
		log.Warn("job not found, dropping delivery")
		d.ack(log, del)
		return
	case err != nil:
		log.Warn("lease acquisition failed, requeueing", "error", err.Error())
		d.requeue(log, del)
		return
	}

	log.Info("lease acquired", "holder", d.holder)
	start := time.Now()

	// Renew the lease in the background so long transcodes outlive the TTL.
	// Losing the lease cancels execution: another worker owns the job now.
	execCtx, cancel := context.WithCancel(ctx)
	renewDone := make(chan struct{})
	go d.renewLoop(execCtx, del.JobID, cancel, renewDone)

	status, execErr := d.executor.Execute(execCtx, del.JobID)

	cancel()
	<-renewDone

	// Release with the parent context: execCtx may already be canceled.
	if relErr := d.leaser.ReleaseLease(ctx, del.JobID, d.holder); relErr != nil &&
		!errors.Is(relErr, store.ErrLeaseLost) {
		log.Warn("lease release failed", "error", relErr.Error())
	}

	if execErr != nil {
		if errors.IsNotFound(execErr) {
			log.Warn("job disappeared during execution, dropping delivery")
			d.ack(log, del)
			return
		}
		log.Warn("execution not durably recorded, requeueing", "error", execErr.Error())
		d.requeue(log, del)
		return
	}

	log.Info("job reached terminal status",
		"status", string(status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	d.ack(log, del)
}

func (d *Dispatcher) renewLoop(ctx context.Context, jobID string, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)

	interval := d.leaseTTL / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.leaser.RenewLease(ctx, jobID, d.holder, d.leaseTTL); err != nil {
				if errors.Is(err, store.ErrLeaseLost) {
					d.log.WithJobID(jobID).Error("lease lost mid-execution, canceling")
					cancel()
					return
				}
				// Transient renewal failure: the lease is still ours until
				// the TTL runs out, try again on the next tick.
				d.log.WithJobID(jobID).Warn("lease renewal failed", "error", err.Error())
			}
		}
	}
}

func (d *Dispatcher) ack(log *logger.Logger, del queue.Delivery) {
	if err := del.Ack(); err != nil {
		log.Warn("ack failed", "error", err.Error())
	}
}

func (d *Dispatcher) requeue(log *logger.Logger, del queue.Delivery) {
	if err := del.Requeue(); err != nil {
		log.Warn("requeue failed", "error", err.Error())
	}
}
