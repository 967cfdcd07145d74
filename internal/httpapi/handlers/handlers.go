// Package handlers implements the HTTP API surface: presigned uploads, job
// creation, and status polling. Handlers talk to the ledger, queue, and
// object store through interfaces so they can be tested with fakes.
package handlers

import (
	"context"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/objectstore"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/resolver"
)

// Ledger is the job-store slice the API needs.
type Ledger interface {
	CreateJob(ctx context.Context, inputKey string, pipeline []string) (model.Job, error)
	GetJob(ctx context.Context, id string) (model.Job, error)
	ListJobs(ctx context.Context, status string, limit int) ([]model.Job, error)
}

// Publisher enqueues job-ready notifications.
type Publisher interface {
	Publish(ctx context.Context, jobID string) error
}

// Resolver builds the external job view with signed URLs.
type Resolver interface {
	Resolve(ctx context.Context, job model.Job) (resolver.JobView, error)
}

// Presigner issues upload grants.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (objectstore.PresignedPut, error)
}

// Deps wires the handlers.
type Deps struct {
	Ledger    Ledger
	Publisher Publisher
	Resolver  Resolver
	Presigner Presigner
	Log       *logger.Logger

	// HealthChecks are named dependency probes for GET /health?deep=true.
	HealthChecks map[string]func(ctx context.Context) error
}

type Handler struct {
	ledger    Ledger
	publisher Publisher
	resolver  Resolver
	presigner Presigner
	log       *logger.Logger
	checks    map[string]func(ctx context.Context) error
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		ledger:    d.Ledger,
		publisher: d.Publisher,
		resolver:  d.Resolver,
		presigner: d.Presigner,
		log:       log.WithComponent("httpapi"),
		checks:    d.HealthChecks,
	}
}
