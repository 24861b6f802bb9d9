package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present, "#!/bin/sh\nexit 0\n")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries("", reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status: %#v", results[2])
	}
}

func TestResolvePrefersBundledDir(t *testing.T) {
	bundled := t.TempDir()
	system := t.TempDir()
	bundledPath := filepath.Join(bundled, executableName("ffmpeg"))
	systemPath := filepath.Join(system, executableName("ffmpeg"))
	writeStub(t, bundledPath, "#!/bin/sh\nexit 0\n")
	writeStub(t, systemPath, "#!/bin/sh\nexit 0\n")
	t.Setenv("PATH", system)

	got, err := Resolve(bundled, "ffmpeg")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != bundledPath {
		t.Fatalf("expected bundled binary %q, got %q", bundledPath, got)
	}

	got, err = Resolve("", "ffmpeg")
	if err != nil {
		t.Fatalf("Resolve without bin dir returned error: %v", err)
	}
	if got != systemPath {
		t.Fatalf("expected PATH binary %q, got %q", systemPath, got)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	if _, err := Resolve(t.TempDir(), "ffprobe"); err == nil {
		t.Fatal("expected resolution to fail")
	}
	if _, err := Resolve("", ""); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestResolveRejectsNonExecutablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve("", path); err == nil {
		t.Fatal("expected non-executable file to be rejected")
	}
}

func TestVersionReadsFirstLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffmpeg")
	writeStub(t, path, "#!/bin/sh\necho 'ffmpeg version 7.1 test build'\necho 'configuration: --enable-libass'\n")

	got, err := Version(context.Background(), path)
	if err != nil {
		t.Fatalf("Version returned error: %v", err)
	}
	if got != "ffmpeg version 7.1 test build" {
		t.Fatalf("unexpected version line %q", got)
	}
}
