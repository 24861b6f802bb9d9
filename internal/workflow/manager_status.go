package workflow

import (
	"clipper/internal/media/source"
	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/supervisor"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Busy        bool                `json:"busy"`
	Job         *supervisor.Job     `json:"job,omitempty"`
	Source      *source.MediaSource `json:"source,omitempty"`
	Params      params.RawOptions   `json:"params"`
	LastOutcome *outcome.Outcome    `json:"last_outcome,omitempty"`
}

// Status returns the latest workflow information. Job is the active job, or
// the most recent one when idle.
func (m *Manager) Status() StatusSummary {
	summary := StatusSummary{Params: m.Params().Raw()}
	if src, ok := m.Source(); ok {
		summary.Source = src
	}
	if h, ok := m.sup.Active(); ok {
		job := h.Snapshot()
		summary.Busy = true
		summary.Job = &job
	} else if h, ok := m.sup.Latest(); ok {
		job := h.Snapshot()
		summary.Job = &job
	}
	if out, ok := m.lastOutcome(); ok {
		summary.LastOutcome = &out
	}
	return summary
}
