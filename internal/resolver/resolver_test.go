package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// fakeSigner returns a URL embedding the key and an incrementing serial so
// tests can tell signatures apart.
type fakeSigner struct {
	serial int
	err    error
}

func (f *fakeSigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.serial++
	return fmt.Sprintf("https://store.example/%s?sig=%d", key, f.serial), nil
}

func sampleJob() model.Job {
	return model.Job{
		ID:       "job-1",
		Status:   model.StatusSuccess,
		Progress: 100,
		InputKey: "uploads/in.mp4",
		Pipeline: []string{model.StepTranscode720, model.StepHLS720},
		Outputs: []model.Output{
			{Type: model.StepTranscode720, S3Key: "outputs/job-1/transcode_720p/v.mp4"},
			{Type: model.StepHLS720, S3Key: "outputs/job-1/hls_720p/d/index.m3u8"},
		},
	}
}

func TestResolveSignsEveryOutput(t *testing.T) {
	r := New(&fakeSigner{}, time.Minute)

	view, err := r.Resolve(context.Background(), sampleJob())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if view.InputURL == "" {
		t.Error("input URL missing")
	}
	if len(view.Outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(view.Outputs))
	}
	for _, out := range view.Outputs {
		if out.URL == "" {
			t.Errorf("output %s has no URL", out.S3Key)
		}
		if out.S3Key == "" {
			t.Errorf("output view must keep the stable s3_key alongside the URL")
		}
	}
}

func TestResolveSignsFreshURLsPerCall(t *testing.T) {
	signer := &fakeSigner{}
	r := New(signer, time.Minute)
	job := sampleJob()

	first, err := r.Resolve(context.Background(), job)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	second, err := r.Resolve(context.Background(), job)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	// Same key, different signature: URLs are never cached between polls.
	if first.Outputs[0].URL == second.Outputs[0].URL {
		t.Errorf("URL reused across calls: %q", first.Outputs[0].URL)
	}
	if first.Outputs[0].S3Key != second.Outputs[0].S3Key {
		t.Errorf("s3_key changed across calls: %q vs %q",
			first.Outputs[0].S3Key, second.Outputs[0].S3Key)
	}
}

func TestResolveEmptyOutputs(t *testing.T) {
	job := sampleJob()
	job.Status = model.StatusPending
	job.Progress = 0
	job.Outputs = nil

	view, err := New(&fakeSigner{}, time.Minute).Resolve(context.Background(), job)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if view.Outputs == nil || len(view.Outputs) != 0 {
		t.Errorf("outputs = %#v, want empty non-nil slice", view.Outputs)
	}
}

func TestResolveSignerFailure(t *testing.T) {
	signer := &fakeSigner{err: errors.Unavailable("object store")}
	if _, err := New(signer, time.Minute).Resolve(context.Background(), sampleJob()); err == nil {
		t.Fatal("want error when signing fails, got nil")
	}
}
