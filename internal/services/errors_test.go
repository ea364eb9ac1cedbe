package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"vareview/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"probe", "ffprobe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "download", "get", "reset", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "download", "get", "deadline", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "rttm", "parse", "bad", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindAndExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
		code int
	}{
		{"nil", nil, "", 0},
		{"validation", services.Wrap(services.ErrValidation, "rttm", "parse", "bad", nil), "validation", 2},
		{"not found", services.Wrap(services.ErrNotFound, "library", "remove", "missing", nil), "not_found", 2},
		{"configuration", services.Wrap(services.ErrConfiguration, "ingest", "download", "no url", nil), "configuration", 2},
		{"timeout", services.Wrap(services.ErrTimeout, "ingest", "download", "slow", nil), "timeout", 3},
		{"deadline", fmt.Errorf("download: %w", context.DeadlineExceeded), "timeout", 3},
		{"transient", services.Wrap(services.ErrTransient, "ingest", "download", "reset", nil), "transient", 3},
		{"external tool", services.Wrap(services.ErrExternalTool, "merge", "probe", "ffprobe", nil), "external_tool", 1},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), "cancelled", 130},
		{"plain", errors.New("boom"), "internal", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Kind(tt.err); got != tt.kind {
				t.Fatalf("Kind = %q, want %q", got, tt.kind)
			}
			if got := services.ExitCode(tt.err); got != tt.code {
				t.Fatalf("ExitCode = %d, want %d", got, tt.code)
			}
		})
	}
}
