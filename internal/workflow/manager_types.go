package workflow

import (
	"strings"

	"clipper/internal/ffmpeg"
	"clipper/internal/media/source"
	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/supervisor"
	"clipper/internal/timerange"
)

// Request describes one clip. Empty Start and End disable trimming; an
// empty Source reuses the currently selected source.
type Request struct {
	Source    string            `json:"source,omitempty"`
	Start     string            `json:"start,omitempty"`
	End       string            `json:"end,omitempty"`
	Options   params.RawOptions `json:"options"`
	OutputDir string            `json:"output_dir,omitempty"`
}

// Trimming reports whether either trim bound was given.
func (r Request) Trimming() bool {
	return strings.TrimSpace(r.Start) != "" || strings.TrimSpace(r.End) != ""
}

// Submission is an accepted request. It either carries a running job or an
// outcome decided before launch.
type Submission struct {
	JobID   string                    `json:"job_id"`
	Source  *source.MediaSource       `json:"source,omitempty"`
	Trim    timerange.TrimRange       `json:"trim"`
	Params  params.EncodingParameters `json:"-"`
	Command ffmpeg.CommandLine        `json:"-"`

	handle *supervisor.Handle
	early  *outcome.Outcome
}

// Launched reports whether an encoder process was started.
func (s *Submission) Launched() bool { return s.handle != nil }

// Handle returns the supervisor handle, or nil when nothing was launched.
func (s *Submission) Handle() *supervisor.Handle { return s.handle }

// Early returns the pre-launch outcome, if any.
func (s *Submission) Early() (outcome.Outcome, bool) {
	if s.early == nil {
		return outcome.Outcome{}, false
	}
	return *s.early, true
}
