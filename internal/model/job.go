// Package model defines the job ledger records and the pipeline vocabulary
// shared by the API, the worker, and the execution engine.
package model

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// Status is the lifecycle state of a job. SUCCESS and FAILURE are terminal
// and never change once set.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Step names accepted in a pipeline. The set is closed: executors are
// registered per name and unknown names are rejected at creation time.
const (
	StepThumbnail    = "thumbnail"
	StepWatermark    = "watermark"
	StepTranscode720 = "transcode_720p"
	StepHLS720       = "hls_720p"
)

// AllowedSteps maps every valid step name to its media kind.
var AllowedSteps = map[string]string{
	StepThumbnail:    KindImage,
	StepWatermark:    KindImage,
	StepTranscode720: KindVideo,
	StepHLS720:       KindVideo,
}

// Media kinds derived from the input key's extension.
const (
	KindImage = "image"
	KindVideo = "video"
	KindOther = "other"
)

// Output is one artifact produced by a completed step. Each step records
// exactly one canonical output; the count of outputs is the resume cursor
// for a STARTED job.
type Output struct {
	Type  string `json:"type"`
	S3Key string `json:"s3_key"`
}

// Job is the ledger record. The ledger owns it; the engine holds a transient
// working copy during a run and writes back through the store.
type Job struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	InputKey  string    `json:"input_key"`
	Pipeline  []string  `json:"pipeline"`
	Progress  int       `json:"progress"`
	Outputs   []Output  `json:"outputs"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Lease bookkeeping, internal to the dispatcher. Not part of the
	// external job view.
	LeaseHolder  string     `json:"-"`
	LeaseExpires *time.Time `json:"-"`
}

// NextStepIndex is the index of the first step that has not recorded its
// canonical output yet.
func (j *Job) NextStepIndex() int {
	return len(j.Outputs)
}

// PipelineValidationError rejects a job before it is ever enqueued.
type PipelineValidationError struct {
	Step   string
	Reason string
}

func (e *PipelineValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("invalid pipeline: step %q %s", e.Step, e.Reason)
	}
	return "invalid pipeline: " + e.Reason
}

// ValidatePipeline checks every step name against the allowed set and
// de-duplicates while preserving order. An empty result is an error: a job
// with nothing to do must never reach the queue.
func ValidatePipeline(steps []string) ([]string, error) {
	seen := make(map[string]bool, len(steps))
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := AllowedSteps[s]; !ok {
			return nil, &PipelineValidationError{Step: s, Reason: "is not a supported step"}
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, &PipelineValidationError{Reason: "no steps given"}
	}
	return out, nil
}

// DefaultPipeline picks a pipeline for inputs created without one:
// images get a thumbnail, videos a 720p transcode. Returns nil for
// unrecognized media.
func DefaultPipeline(inputKey string) []string {
	switch GuessKind(inputKey) {
	case KindImage:
		return []string{StepThumbnail}
	case KindVideo:
		return []string{StepTranscode720}
	default:
		return nil
	}
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true,
	".avi": true, ".m4v": true, ".mpg": true, ".mpeg": true, ".ts": true,
}

// GuessKind classifies an object key by its extension. The mime package is
// consulted first; a fixed table covers the video containers the stdlib
// table does not ship.
func GuessKind(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if videoExts[ext] {
		return KindVideo
	}
	mt := mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	default:
		return KindOther
	}
}
