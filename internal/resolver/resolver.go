// Package resolver converts ledger entries into the external job view,
// attaching a freshly signed download URL to every output at read time.
// URLs expire, so they are never cached or persisted; each status poll gets
// new signatures.
package resolver

import (
	"context"
	"time"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// Signer is the read-side slice of the object store gateway.
type Signer interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// OutputView is one output with its download URL.
type OutputView struct {
	Type  string `json:"type"`
	S3Key string `json:"s3_key"`
	URL   string `json:"url"`
}

// JobView is the JSON shape returned to API callers.
type JobView struct {
	ID        string       `json:"id"`
	Status    model.Status `json:"status"`
	Progress  int          `json:"progress"`
	Outputs   []OutputView `json:"outputs"`
	Error     string       `json:"error"`
	Pipeline  []string     `json:"pipeline"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	InputURL  string       `json:"input_url"`
}

type Resolver struct {
	signer Signer
	getTTL time.Duration
}

func New(signer Signer, getTTL time.Duration) *Resolver {
	if getTTL <= 0 {
		getTTL = 10 * time.Minute
	}
	return &Resolver{signer: signer, getTTL: getTTL}
}

// Resolve builds the external view of a job. For hls_720p outputs only the
// playlist key is signed; segment access is a bucket-policy decision, not
// the resolver's.
func (r *Resolver) Resolve(ctx context.Context, job model.Job) (JobView, error) {
	view := JobView{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Outputs:   make([]OutputView, 0, len(job.Outputs)),
		Error:     job.Error,
		Pipeline:  job.Pipeline,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}

	inputURL, err := r.signer.PresignGet(ctx, job.InputKey, r.getTTL)
	if err != nil {
		return JobView{}, errors.Wrap(err, "resolver.input", "sign input url")
	}
	view.InputURL = inputURL

	for _, out := range job.Outputs {
		url, err := r.signer.PresignGet(ctx, out.S3Key, r.getTTL)
		if err != nil {
			return JobView{}, errors.Wrap(err, "resolver.output", "sign output url").
				WithField("key", out.S3Key)
		}
		view.Outputs = append(view.Outputs, OutputView{
			Type:  out.Type,
			S3Key: out.S3Key,
			URL:   url,
		})
	}
	return view, nil
}
