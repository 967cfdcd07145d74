// Package steps holds the pluggable step executors. Each executor performs
// one named transform against an object-store key and records exactly one
// canonical output; executors are stateless and idempotent for a given
// (input key, params) pair so the engine can re-run them after a crash.
package steps

import (
	"context"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/objectstore"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
)

// Request is the execution-time step description. It is built by the engine
// right before dispatch and never persisted.
type Request struct {
	JobID    string
	InputKey string
	Params   map[string]string
}

// Executor performs one named transform.
type Executor interface {
	Name() string
	// Execute runs the transform and returns its canonical output. The
	// same request must yield the same output key every time.
	Execute(ctx context.Context, req Request) (model.Output, error)
}

// Deps carries everything executors need. Executors share no mutable state;
// every invocation works in its own scratch directory.
type Deps struct {
	Gateway       objectstore.Gateway
	FfmpegPath    string
	WatermarkText string
	Log           *logger.Logger
}

// Registry maps the closed set of step names to executors.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry wires the four built-in executors.
func NewRegistry(d Deps) *Registry {
	if d.FfmpegPath == "" {
		d.FfmpegPath = "ffmpeg"
	}
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}
	d.Log = d.Log.WithComponent("steps")

	r := &Registry{executors: make(map[string]Executor)}
	for _, e := range []Executor{
		&thumbnailStep{deps: d},
		&watermarkStep{deps: d},
		&transcodeStep{deps: d},
		&hlsStep{deps: d},
	} {
		r.executors[e.Name()] = e
	}
	return r
}

// Get looks up the executor for a step name.
func (r *Registry) Get(name string) (Executor, bool) {
	e, ok := r.executors[name]
	return e, ok
}
