package model

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidatePipeline(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{
			name: "single step",
			in:   []string{StepThumbnail},
			want: []string{StepThumbnail},
		},
		{
			name: "all steps keep order",
			in:   []string{StepTranscode720, StepHLS720, StepWatermark, StepThumbnail},
			want: []string{StepTranscode720, StepHLS720, StepWatermark, StepThumbnail},
		},
		{
			name: "duplicates collapse to first occurrence",
			in:   []string{StepThumbnail, StepWatermark, StepThumbnail},
			want: []string{StepThumbnail, StepWatermark},
		},
		{
			name: "whitespace entries are skipped",
			in:   []string{" ", StepThumbnail, ""},
			want: []string{StepThumbnail},
		},
		{
			name:    "unknown step rejected",
			in:      []string{StepThumbnail, "resize_4k"},
			wantErr: true,
		},
		{
			name:    "empty pipeline rejected",
			in:      []string{},
			wantErr: true,
		},
		{
			name:    "only blanks rejected",
			in:      []string{"", "  "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePipeline(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ValidatePipeline(%v) = %v, want error", tt.in, got)
				}
				var ve *PipelineValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("error type = %T, want *PipelineValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidatePipeline(%v) error: %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidatePipeline(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"uploads/abc_photo.jpg", KindImage},
		{"uploads/abc_photo.JPEG", KindImage},
		{"uploads/logo.png", KindImage},
		{"uploads/anim.webp", KindImage},
		{"uploads/clip.mp4", KindVideo},
		{"uploads/clip.MOV", KindVideo},
		{"uploads/clip.mkv", KindVideo},
		{"uploads/clip.webm", KindVideo},
		{"uploads/readme.txt", KindOther},
		{"uploads/noext", KindOther},
	}
	for _, tt := range tests {
		if got := GuessKind(tt.key); got != tt.want {
			t.Errorf("GuessKind(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestDefaultPipeline(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"uploads/photo.jpg", []string{StepThumbnail}},
		{"uploads/clip.mp4", []string{StepTranscode720}},
		{"uploads/doc.pdf", nil},
	}
	for _, tt := range tests {
		got := DefaultPipeline(tt.key)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DefaultPipeline(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusStarted, false},
		{StatusSuccess, true},
		{StatusFailure, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestNextStepIndex(t *testing.T) {
	job := Job{Pipeline: []string{StepTranscode720, StepHLS720}}
	if got := job.NextStepIndex(); got != 0 {
		t.Errorf("NextStepIndex with no outputs = %d, want 0", got)
	}
	job.Outputs = append(job.Outputs, Output{Type: StepTranscode720, S3Key: "outputs/x"})
	if got := job.NextStepIndex(); got != 1 {
		t.Errorf("NextStepIndex after one output = %d, want 1", got)
	}
}
