package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/steps"
)

// fakeLedger keeps one job in memory and mimics the store's conditional
// update semantics.
type fakeLedger struct {
	mu  sync.Mutex
	job model.Job

	getErr      error
	completeErr error

	startCalls    int
	completeCalls int
	failCalls     int
}

func (f *fakeLedger) GetJob(ctx context.Context, id string) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.Job{}, f.getErr
	}
	if f.job.ID != id {
		return model.Job{}, errors.NotFound("job", id)
	}
	job := f.job
	job.Pipeline = append([]string(nil), f.job.Pipeline...)
	job.Outputs = append([]model.Output(nil), f.job.Outputs...)
	return job, nil
}

func (f *fakeLedger) MarkStarted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.job.Status == model.StatusPending {
		f.job.Status = model.StatusStarted
	}
	return nil
}

func (f *fakeLedger) CompleteStep(ctx context.Context, id string, out model.Output, progress int, final bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	if f.completeErr != nil {
		return f.completeErr
	}
	if f.job.Status != model.StatusStarted {
		return nil
	}
	f.job.Outputs = append(f.job.Outputs, out)
	if final {
		f.job.Status = model.StatusSuccess
		f.job.Progress = 100
	} else {
		f.job.Progress = progress
	}
	return nil
}

func (f *fakeLedger) FailJob(ctx context.Context, id string, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	if !f.job.Status.Terminal() {
		f.job.Status = model.StatusFailure
		f.job.Error = cause
	}
	return nil
}

func (f *fakeLedger) snapshot() model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.job
}

// fakeExec runs a function per invocation and records the requests it saw.
type fakeExec struct {
	name string
	fn   func(ctx context.Context, req steps.Request) (model.Output, error)

	mu   sync.Mutex
	reqs []steps.Request
}

func (e *fakeExec) Name() string { return e.name }

func (e *fakeExec) Execute(ctx context.Context, req steps.Request) (model.Output, error) {
	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	e.mu.Unlock()
	return e.fn(ctx, req)
}

func succeedWith(key string) func(ctx context.Context, req steps.Request) (model.Output, error) {
	return func(ctx context.Context, req steps.Request) (model.Output, error) {
		return model.Output{Type: "x", S3Key: key}, nil
	}
}

type fakeRegistry map[string]*fakeExec

func (r fakeRegistry) Get(name string) (steps.Executor, bool) {
	e, ok := r[name]
	return e, ok
}

func newEngine(ledger Ledger, reg Registry) *Engine {
	return New(Deps{
		Ledger:      ledger,
		Registry:    reg,
		MaxAttempts: 3,
		StepTimeout: time.Second,
		BackoffBase: time.Millisecond,
	})
}

func pendingJob(pipeline ...string) model.Job {
	return model.Job{
		ID:       "job-1",
		Status:   model.StatusPending,
		InputKey: "uploads/in.jpg",
		Pipeline: pipeline,
		Outputs:  []model.Output{},
	}
}

func TestExecuteRunsPipelineToSuccess(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob(model.StepWatermark, model.StepThumbnail)}
	wm := &fakeExec{name: model.StepWatermark, fn: succeedWith("outputs/job-1/watermark/a.jpg")}
	th := &fakeExec{name: model.StepThumbnail, fn: succeedWith("outputs/job-1/thumbnail/b.jpg")}
	reg := fakeRegistry{model.StepWatermark: wm, model.StepThumbnail: th}

	status, err := newEngine(ledger, reg).Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if status != model.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", status)
	}

	job := ledger.snapshot()
	if job.Status != model.StatusSuccess {
		t.Errorf("ledger status = %s, want SUCCESS", job.Status)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if len(job.Outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(job.Outputs))
	}
	if ledger.startCalls != 1 {
		t.Errorf("MarkStarted calls = %d, want 1", ledger.startCalls)
	}

	// The watermark works from the original upload, the thumbnail from the
	// watermark's output.
	if got := wm.reqs[0].InputKey; got != "uploads/in.jpg" {
		t.Errorf("watermark input = %q, want original upload", got)
	}
	if got := th.reqs[0].InputKey; got != "outputs/job-1/watermark/a.jpg" {
		t.Errorf("thumbnail input = %q, want watermark output", got)
	}
}

func TestExecuteIntermediateProgress(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob(model.StepTranscode720, model.StepHLS720)}

	var progressSeen []int
	tc := &fakeExec{name: model.StepTranscode720, fn: func(ctx context.Context, req steps.Request) (model.Output, error) {
		return model.Output{Type: model.StepTranscode720, S3Key: "outputs/job-1/transcode_720p/v.mp4"}, nil
	}}
	hls := &fakeExec{name: model.StepHLS720, fn: func(ctx context.Context, req steps.Request) (model.Output, error) {
		progressSeen = append(progressSeen, ledger.snapshot().Progress)
		return model.Output{Type: model.StepHLS720, S3Key: "outputs/job-1/hls_720p/d/index.m3u8"}, nil
	}}
	reg := fakeRegistry{model.StepTranscode720: tc, model.StepHLS720: hls}

	if _, err := newEngine(ledger, reg).Execute(context.Background(), "job-1"); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	// When the second step runs, the first step's progress is already durable.
	if len(progressSeen) != 1 || progressSeen[0] != 50 {
		t.Errorf("progress before final step = %v, want [50]", progressSeen)
	}
}

func TestExecutePermanentFailure(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob(model.StepTranscode720)}
	tc := &fakeExec{name: model.StepTranscode720, fn: func(ctx context.Context, req steps.Request) (model.Output, error) {
		return model.Output{}, errors.InvalidMedia("moov atom not found")
	}}
	reg := fakeRegistry{model.StepTranscode720: tc}

	status, err := newEngine(ledger, reg).Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Execute error: %v (failure must be durably recorded, not returned)", err)
	}
	if status != model.StatusFailure {
		t.Fatalf("status = %s, want FAILURE", status)
	}

	job := ledger.snapshot()
	if job.Status != model.StatusFailure {
		t.Errorf("ledger status = %s, want FAILURE", job.Status)
	}
	if job.Error == "" {
		t.Error("failure recorded without error text")
	}
	if len(job.Outputs) != 0 {
		t.Errorf("outputs = %d, want 0", len(job.Outputs))
	}
	if job.Progress != 0 {
		t.Errorf("progress = %d, want 0", job.Progress)
	}
	// Permanent errors are not retried.
	if len(tc.reqs) != 1 {
		t.Errorf("attempts = %d, want 1", len(tc.reqs))
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob(model.StepThumbnail)}
	attempts := 0
	th := &fakeExec{name: model.StepThumbnail, fn: func(ctx context.Context, req steps.Request) (model.Output, error) {
		attempts++
		if attempts < 3 {
			return model.Output{}, errors.Unavailable("object store")
		}
		return model.Output{Type: model.StepThumbnail, S3Key: "outputs/job-1/thumbnail/t.jpg"}, nil
	}}
	reg := fakeRegistry{model.StepThumbnail: th}

	status, err := newEngine(ledger, reg).Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if status != model.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS after retries", status)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteTransientFailureExhaustsAttempts(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob(model.StepThumbnail)}
	attempts := 0
	th := &fakeExec{name: model.StepThumbnail, fn: func(ctx context.Context, req steps.Request) (model.Output, error) {
		attempts++
		return model.Output{}, errors.Timeout("ffmpeg")
	}}
	reg := fakeRegistry{model.StepThumbnail: th}

	status, err := newEngine(ledger, reg).Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if status != model.StatusFailure {
		t.Fatalf("status = %s, want FAILURE after exhausting retries", status)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteTerminalJobIsNoOp(t *testing.T) {
	job := pendingJob(model.StepThumbnail)
	job.Status = model.StatusSuccess
	job.Progress = 100
	job.Outputs = []model.Output{{Type: model.StepThumbnail, S3Key: "outputs/job-1/thumbnail/t.jpg"}}
	ledger := &fakeLedger{job: job}
	th := &fakeExec{name: model.StepThumbnail, fn: succeedWith("other")}
	reg := fakeRegistry{model.StepThumbnail: th}

	status, err := newEngine(ledger, reg).Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if status != model.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", status)
	}
	if len(th.reqs) != 0 {
		t.Error("terminal job still executed a step")
	}
	if ledger.startCalls+ledger.completeCalls+ledger.failCalls != 0 {
		t.Error("terminal job mutated the ledger")
	}
}

func TestExecuteResumesFromRecordedOutputs(t *testing.T) {
	job := pendingJob(model.StepTranscode720, model.StepHLS720)
	job.Status = model.StatusStarted
	job.Progress = 50
	job.Outputs = []model.Output{{Type: model.StepTranscode720, S3Key: "outputs/job-1/transcode_720p/v.mp4"}}
	ledger := &fakeLedger{job: job}

	tc := &fakeExec{name: model.StepTranscode720, fn: succeedWith("never")}
	hls := &fakeExec{name: model.StepHLS720, fn: succeedWith("outputs/job-1/hls_720p/d/index.m3u8")}
	reg := fakeRegistry{model.StepTranscode720: tc, model.StepHLS720: hls}

	status, err := newEngine(ledger, reg).Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if status != model.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", status)
	}
	if len(tc.reqs) != 0 {
		t.Error("completed step ran again on resume")
	}
	if len(hls.reqs) != 1 {
		t.Fatalf("remaining step ran %d times, want 1", len(hls.reqs))
	}
	// hls_720p composes on the transcode output, not the original upload.
	if got := hls.reqs[0].InputKey; got != "outputs/job-1/transcode_720p/v.mp4" {
		t.Errorf("resumed step input = %q, want transcode output", got)
	}
}

func TestExecuteUnknownStepFailsJob(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob("resize_4k")}
	reg := fakeRegistry{}

	status, err := newEngine(ledger, reg).Execute(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if status != model.StatusFailure {
		t.Fatalf("status = %s, want FAILURE", status)
	}
	if ledger.failCalls != 1 {
		t.Errorf("FailJob calls = %d, want 1", ledger.failCalls)
	}
}

func TestExecuteLedgerUnreachableReturnsError(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob(model.StepThumbnail), getErr: errors.Unavailable("postgres")}
	reg := fakeRegistry{}

	if _, err := newEngine(ledger, reg).Execute(context.Background(), "job-1"); err == nil {
		t.Fatal("want error when the ledger is unreachable, got nil")
	}
}

func TestExecuteCanceledMidStepLeavesJobStarted(t *testing.T) {
	ledger := &fakeLedger{job: pendingJob(model.StepThumbnail)}
	ctx, cancel := context.WithCancel(context.Background())

	th := &fakeExec{name: model.StepThumbnail, fn: func(ctx context.Context, req steps.Request) (model.Output, error) {
		cancel()
		<-ctx.Done()
		return model.Output{}, errors.WrapWithCode(ctx.Err(), errors.CodeTimeout, "step", "interrupted")
	}}
	reg := fakeRegistry{model.StepThumbnail: th}

	if _, err := newEngine(ledger, reg).Execute(ctx, "job-1"); err == nil {
		t.Fatal("want error on cancellation so the delivery is requeued, got nil")
	}

	job := ledger.snapshot()
	if job.Status != model.StatusStarted {
		t.Errorf("status after interruption = %s, want STARTED for resume", job.Status)
	}
	if ledger.failCalls != 0 {
		t.Error("interruption must not record FAILURE")
	}
}

func TestProgressFor(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{1, 1, 100},
		{1, 2, 50},
		{2, 2, 100},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 4, 25},
	}
	for _, tt := range tests {
		if got := progressFor(tt.done, tt.total); got != tt.want {
			t.Errorf("progressFor(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}
