package supervisor

import (
	"fmt"
	"time"
)

// State is a job lifecycle state. Jobs move Pending -> Running -> one of
// the terminal states. Running is entered only once the encoder process has
// started, so a launch failure goes from Pending straight to Failed.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// BusyError is returned by Submit while another job is active.
type BusyError struct {
	JobID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("job %s is already running", e.JobID)
}

// Request describes one encoder invocation.
type Request struct {
	// Argv is the binary followed by its arguments.
	Argv       []string
	OutputPath string
	// Expected is the output duration used as the progress denominator.
	Expected time.Duration
	// Source is informational, shown in snapshots.
	Source string
}

// Job is a point-in-time view of a job.
type Job struct {
	ID            string        `json:"id"`
	Source        string        `json:"source,omitempty"`
	Command       []string      `json:"command"`
	OutputPath    string        `json:"output_path"`
	State         State         `json:"state"`
	Progress      float64       `json:"progress"`
	Elapsed       time.Duration `json:"elapsed"`
	Expected      time.Duration `json:"expected"`
	ETA           time.Duration `json:"eta,omitempty"`
	Speed         float64       `json:"speed,omitempty"`
	LastErrorLine string        `json:"last_error_line,omitempty"`
	Warnings      []Warning     `json:"warnings,omitempty"`
	CancelPending bool          `json:"cancel_pending,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     time.Time     `json:"started_at,omitzero"`
	FinishedAt    time.Time     `json:"finished_at,omitzero"`
}

// TerminalState is everything known about a finished job. The outcome
// reporter classifies it without further process interaction.
type TerminalState struct {
	JobID      string   `json:"job_id"`
	State      State    `json:"state"`
	Command    []string `json:"command"`
	OutputPath string   `json:"output_path"`
	// ExitCode is -1 when the process was never started or died by signal.
	ExitCode int `json:"exit_code"`
	// ProcessError is set when the process could not be started or waited on.
	ProcessError string `json:"process_error,omitempty"`
	// ToolMissing is set when the encoder binary was absent, either found by
	// preflight or reported by the launch.
	ToolMissing bool `json:"tool_missing,omitempty"`
	// OutputError explains why an exit-0 run still failed (missing, empty or
	// undecodable output).
	OutputError   string    `json:"output_error,omitempty"`
	TimedOut      bool      `json:"timed_out,omitempty"`
	LastErrorLine string    `json:"last_error_line,omitempty"`
	Log           []string  `json:"log,omitempty"`
	Warnings      []Warning `json:"warnings,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	FinishedAt    time.Time `json:"finished_at"`
}

// EventType identifies an Event payload.
type EventType string

const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventWarning  EventType = "warning"
	EventTerminal EventType = "terminal"
)

// Event is delivered in order for a job. The EventTerminal event is always
// last.
type Event struct {
	Seq      int            `json:"seq"`
	JobID    string         `json:"job_id"`
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	State    State          `json:"state,omitempty"`
	Progress float64        `json:"progress,omitempty"`
	Elapsed  time.Duration  `json:"elapsed,omitempty"`
	ETA      time.Duration  `json:"eta,omitempty"`
	Speed    float64        `json:"speed,omitempty"`
	Warning  *Warning       `json:"warning,omitempty"`
	Terminal *TerminalState `json:"terminal,omitempty"`
}
