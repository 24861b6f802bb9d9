package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// versionTimeout bounds "<tool> -version" probes.
const versionTimeout = 5 * time.Second

// Resolve finds the executable for name. Explicit paths are checked as-is.
// Bare names are looked up in binDir (the bundled tools directory) before
// falling back to PATH, so a shipped ffmpeg wins over a system one.
func Resolve(binDir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty command")
	}
	if strings.ContainsRune(name, filepath.Separator) {
		info, err := os.Stat(name)
		if err != nil {
			return "", err
		}
		if !isExecutable(info) {
			return "", fmt.Errorf("%s is not executable", name)
		}
		return name, nil
	}
	if binDir = strings.TrimSpace(binDir); binDir != "" {
		candidate := filepath.Join(binDir, executableName(name))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}

// Version runs "<binary> -version" and returns the first output line, e.g.
// "ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers".
func Version(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", fmt.Errorf("%s -version: empty output", binary)
}

func executableName(base string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(base), ".exe") {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
