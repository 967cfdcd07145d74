package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "invalid input")

	if err.Code != CodeValidation {
		t.Errorf("expected code=%s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "invalid input" {
		t.Errorf("expected message='invalid input', got %s", err.Message)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(CodeValidation, "invalid"),
			contains: []string{"VALIDATION_ERROR", "invalid"},
		},
		{
			name: "error with op",
			err: &Error{
				Code:    CodeInternal,
				Message: "ledger write failed",
				Op:      "store.complete_step",
			},
			contains: []string{"store.complete_step", "INTERNAL_ERROR", "ledger write failed"},
		},
		{
			name: "error with underlying",
			err: &Error{
				Code:    CodeUnavailable,
				Message: "wrapper",
				Err:     fmt.Errorf("connection refused"),
			},
			contains: []string{"wrapper", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			str := tt.err.Error()
			for _, c := range tt.contains {
				if !strings.Contains(str, c) {
					t.Errorf("expected error string to contain %q, got: %s", c, str)
				}
			}
		})
	}
}

func TestWrapPreservesCode(t *testing.T) {
	inner := Timeout("s3 upload")
	wrapped := Wrap(inner, "engine.step", "step failed")

	if wrapped.Code != CodeTimeout {
		t.Errorf("expected wrap to preserve TIMEOUT, got %s", wrapped.Code)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("expected errors.Is to match through wrap")
	}
}

func TestWrapUncoded(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("plain"), "op", "msg")
	if wrapped.Code != CodeInternal {
		t.Errorf("expected uncoded errors to wrap as INTERNAL, got %s", wrapped.Code)
	}
	if Wrap(nil, "op", "msg") != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestWrapWithCode(t *testing.T) {
	wrapped := WrapWithCode(fmt.Errorf("boom"), CodeInvalidMedia, "steps.transcode", "decode failed")
	if wrapped.Code != CodeInvalidMedia {
		t.Errorf("expected INVALID_MEDIA, got %s", wrapped.Code)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, 400},
		{CodeInvalidMedia, 400},
		{CodeNotFound, 404},
		{CodeConflict, 409},
		{CodeUnavailable, 503},
		{CodeTimeout, 504},
		{CodeInternal, 500},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", Timeout("step"), true},
		{"unavailable", Unavailable("minio"), true},
		{"wrapped unavailable", Wrap(Unavailable("minio"), "op", "msg"), true},
		{"invalid media", InvalidMedia("corrupt header"), false},
		{"validation", Validation("bad step"), false},
		{"plain", fmt.Errorf("whatever"), false},
		{"internal", New(CodeInternal, "x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeHelpers(t *testing.T) {
	nf := NotFound("job", "job_123")
	if !IsNotFound(nf) {
		t.Error("expected IsNotFound")
	}
	if nf.Fields["id"] != "job_123" {
		t.Errorf("expected id field, got %v", nf.Fields)
	}

	if !IsValidation(Validationf("step %q unknown", "resize_4k")) {
		t.Error("expected IsValidation")
	}

	if GetCode(fmt.Errorf("plain")) != CodeInternal {
		t.Error("expected plain error to report INTERNAL")
	}
}
