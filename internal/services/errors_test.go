package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"rendition/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcode", "convert", "ffmpeg exited", base)

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "transcode: convert: ffmpeg exited") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "worker", "download", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "router", "submit", "bad resolution", nil), false},
		{"not found", fmt.Errorf("lookup: %w", services.ErrNotFound), false},
		{"transient", services.Wrap(services.ErrTransient, "worker", "upload", "", errors.New("dial tcp")), true},
		{"external tool", services.Wrap(services.ErrExternalTool, "transcode", "convert", "", errors.New("exit 1")), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "transcode", "convert", "ffmpeg missing", nil), true},
		{"untagged", errors.New("mystery"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
