package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/outcome"
	"clipper/internal/supervisor"
	"clipper/internal/textutil"
)

// JobLogger writes the captured encoder log of each finished job to its own
// file.
type JobLogger struct {
	baseDir string
}

// NewJobLogger stores logs under <log_dir>/jobs. A nil config or empty log
// directory disables it.
func NewJobLogger(cfg *config.Config) *JobLogger {
	dir := ""
	if cfg != nil && strings.TrimSpace(cfg.Paths.LogDir) != "" {
		dir = filepath.Join(cfg.Paths.LogDir, "jobs")
	}
	return &JobLogger{baseDir: dir}
}

// Dir returns the log directory, empty when disabled.
func (j *JobLogger) Dir() string { return j.baseDir }

// Write saves ts and its outcome and returns the file path. It is a no-op
// returning "" when the logger is disabled.
func (j *JobLogger) Write(ts supervisor.TerminalState, out outcome.Outcome) (string, error) {
	if j == nil || j.baseDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure job log directory: %w", err)
	}
	path := filepath.Join(j.baseDir, j.filename(ts))

	var b strings.Builder
	fmt.Fprintf(&b, "job: %s\n", ts.JobID)
	fmt.Fprintf(&b, "state: %s\n", ts.State)
	fmt.Fprintf(&b, "outcome: %s\n", out.Summary())
	if out.Hint != "" {
		fmt.Fprintf(&b, "hint: %s\n", out.Hint)
	}
	fmt.Fprintf(&b, "command: %s\n", strings.Join(ts.Command, " "))
	fmt.Fprintf(&b, "output: %s\n", ts.OutputPath)
	fmt.Fprintf(&b, "exit_code: %d\n", ts.ExitCode)
	if !ts.StartedAt.IsZero() {
		fmt.Fprintf(&b, "started: %s\n", ts.StartedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "finished: %s\n", ts.FinishedAt.UTC().Format(time.RFC3339))
	for _, w := range ts.Warnings {
		fmt.Fprintf(&b, "warning[%s]: %s\n", w.Code, w.Line)
	}
	b.WriteString("\n")
	for _, line := range ts.Log {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write job log: %w", err)
	}
	return path, nil
}

func (j *JobLogger) filename(ts supervisor.TerminalState) string {
	when := ts.FinishedAt
	if when.IsZero() {
		when = time.Now()
	}
	id := ts.JobID
	if len(id) > 8 {
		id = id[:8]
	}
	name := "clip"
	if ts.OutputPath != "" {
		base := filepath.Base(ts.OutputPath)
		if slug := textutil.SanitizeToken(strings.TrimSuffix(base, filepath.Ext(base))); slug != "" {
			name = slug
		}
	}
	return fmt.Sprintf("%s-%s-%s.log", when.UTC().Format("20060102T150405"), id, name)
}
