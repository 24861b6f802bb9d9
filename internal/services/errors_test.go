package services_test

import (
	"errors"
	"strings"
	"testing"

	"clipper/internal/services"
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

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{services.Wrap(services.ErrTransient, "upload", "post", "reset", nil), true},
		{services.Wrap(services.ErrTimeout, "upload", "post", "deadline", nil), true},
		{services.Wrap(services.ErrValidation, "upload", "size", "too large", nil), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestHintMapping(t *testing.T) {
	if hint := services.Hint(nil); hint != "" {
		t.Fatalf("expected empty hint for nil, got %q", hint)
	}
	err := services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil)
	if hint := services.Hint(err); !strings.Contains(hint, "configuration") {
		t.Fatalf("unexpected hint %q", hint)
	}
	if hint := services.Hint(errors.New("x")); hint != "check logs for details" {
		t.Fatalf("unexpected default hint %q", hint)
	}
}
