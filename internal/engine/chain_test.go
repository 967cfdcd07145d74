package engine

import (
	"testing"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
)

func TestComposes(t *testing.T) {
	tests := []struct {
		prev, next string
		want       bool
	}{
		{model.StepTranscode720, model.StepHLS720, true},
		{model.StepWatermark, model.StepThumbnail, true},
		// Chaining is directional.
		{model.StepHLS720, model.StepTranscode720, false},
		{model.StepThumbnail, model.StepWatermark, false},
		{model.StepThumbnail, model.StepHLS720, false},
		{model.StepTranscode720, model.StepThumbnail, false},
	}
	for _, tt := range tests {
		if got := Composes(tt.prev, tt.next); got != tt.want {
			t.Errorf("Composes(%s, %s) = %v, want %v", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestInputKeyFor(t *testing.T) {
	job := &model.Job{
		InputKey: "uploads/in.mp4",
		Pipeline: []string{model.StepThumbnail, model.StepTranscode720, model.StepHLS720},
		Outputs: []model.Output{
			{Type: model.StepThumbnail, S3Key: "outputs/j/thumbnail/t.jpg"},
			{Type: model.StepTranscode720, S3Key: "outputs/j/transcode_720p/v.mp4"},
		},
	}

	tests := []struct {
		i    int
		want string
	}{
		{0, "uploads/in.mp4"},
		// thumbnail -> transcode_720p is not a chaining pair.
		{1, "uploads/in.mp4"},
		// transcode_720p -> hls_720p is.
		{2, "outputs/j/transcode_720p/v.mp4"},
	}
	for _, tt := range tests {
		if got := inputKeyFor(job, tt.i); got != tt.want {
			t.Errorf("inputKeyFor(job, %d) = %q, want %q", tt.i, got, tt.want)
		}
	}
}
