package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/queue"
)

// Deps wires the worker pool.
type Deps struct {
	Queue       queue.Queue
	Leaser      Leaser
	Executor    Executor
	Log         *logger.Logger
	Concurrency int
	LeaseTTL    time.Duration
}

// Run starts the worker pool and blocks until ctx is canceled or the
// delivery channel closes. Workers share one consumer channel; each
// delivery is handled by exactly one worker.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	if d.Concurrency <= 0 {
		d.Concurrency = 4
	}

	deliveries, err := d.Queue.Consume(ctx)
	if err != nil {
		return err
	}

	holderBase := workerIdentity()
	log.Info("worker pool started", "concurrency", d.Concurrency, "holder", holderBase)

	var wg sync.WaitGroup
	for i := 0; i < d.Concurrency; i++ {
		holder := fmt.Sprintf("%s/%d", holderBase, i)
		disp := NewDispatcher(d.Leaser, d.Executor, log, holder, d.LeaseTTL)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for del := range deliveries {
				disp.Handle(ctx, del)
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		log.Info("worker pool stopped", "reason", ctx.Err().Error())
		return ctx.Err()
	}
	log.Warn("delivery channel closed, worker pool stopped")
	return nil
}

// workerIdentity builds a lease-holder prefix unique to this process.
func workerIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
