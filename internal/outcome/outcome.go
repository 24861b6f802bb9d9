package outcome

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"clipper/internal/services"
	"clipper/internal/supervisor"
)

// Status is the top-level result.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
)

// Kind categorises a failure.
type Kind string

const (
	KindMissingTool      Kind = "MissingTool"
	KindInvalidInput     Kind = "InvalidInput"
	KindPermissionDenied Kind = "PermissionDenied"
	KindEncoderError     Kind = "EncoderError"
	KindUnknown          Kind = "Unknown"
)

// Outcome is what the user-facing layer renders for a finished job.
type Outcome struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
	// Path is the output file for a successful job.
	Path   string `json:"path,omitempty"`
	Kind   Kind   `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
	// Lines are the log lines the detail was drawn from.
	Lines    []string             `json:"lines,omitempty"`
	Hint     string               `json:"hint,omitempty"`
	Warnings []supervisor.Warning `json:"warnings,omitempty"`
}

// Summary renders a one-line message.
func (o Outcome) Summary() string {
	switch o.Status {
	case StatusSuccess:
		return "Clip saved to " + o.Path
	case StatusCancelled:
		return "Cancelled"
	default:
		first, _, _ := strings.Cut(o.Detail, "\n")
		if first == "" {
			return string(o.Kind)
		}
		return fmt.Sprintf("%s: %s", o.Kind, first)
	}
}

// Err returns nil for success and cancellation, and otherwise an error marked
// with the matching services sentinel.
func (o Outcome) Err() error {
	if o.Status != StatusFailure {
		return nil
	}
	var marker error
	switch o.Kind {
	case KindMissingTool, KindEncoderError:
		marker = services.ErrExternalTool
	case KindInvalidInput:
		marker = services.ErrValidation
	case KindPermissionDenied:
		marker = services.ErrPermission
	default:
		marker = errors.New("encoder failed")
	}
	return services.Wrap(marker, "encode", string(o.Kind), o.Detail, nil)
}

// Reporter classifies terminal job states.
type Reporter struct {
	rules []Rule
}

// NewReporter returns a reporter checking extra rules before DefaultRules.
func NewReporter(extra ...Rule) *Reporter {
	rules := make([]Rule, 0, len(extra)+len(DefaultRules))
	rules = append(rules, extra...)
	rules = append(rules, DefaultRules...)
	return &Reporter{rules: rules}
}

// Report maps ts to an Outcome. It only reads ts.
func (r *Reporter) Report(ts supervisor.TerminalState) Outcome {
	out := Outcome{JobID: ts.JobID, Warnings: slices.Clone(ts.Warnings)}
	switch ts.State {
	case supervisor.StateSucceeded:
		out.Status = StatusSuccess
		out.Path = ts.OutputPath
		return out
	case supervisor.StateCancelled:
		out.Status = StatusCancelled
		return out
	}

	out.Status = StatusFailure
	switch {
	case ts.ToolMissing:
		out.Kind = KindMissingTool
		out.Detail = firstNonEmpty(ts.ProcessError, "encoder binary not found")
	case ts.TimedOut:
		out.Kind = KindEncoderError
		out.Detail = "timed out"
		out.Lines = relevantLines(ts.Log)
	case ts.ProcessError != "" && len(ts.Log) == 0:
		out.Kind, out.Detail, out.Hint = r.classify([]string{ts.ProcessError})
		if out.Kind == "" {
			out.Kind = KindUnknown
			out.Detail = ts.ProcessError
		}
	default:
		out.Lines = relevantLines(ts.Log)
		var matched string
		out.Kind, matched, out.Hint = r.classify(ts.Log)
		switch {
		case out.Kind != "":
			out.Detail = matched
			if !slices.Contains(out.Lines, matched) && matched != "" {
				out.Lines = append([]string{matched}, out.Lines...)
			}
		case ts.ExitCode == 0 && ts.OutputError != "":
			out.Kind = KindEncoderError
			out.Detail = ts.OutputError
		case ts.ProcessError != "":
			out.Kind = KindUnknown
			out.Detail = ts.ProcessError
		case ts.ExitCode < 0:
			out.Kind = KindUnknown
			out.Detail = "encoder was terminated by a signal"
		default:
			out.Kind = KindUnknown
			out.Detail = strings.Join(out.Lines, "\n")
			if out.Detail == "" {
				out.Detail = fmt.Sprintf("encoder exited with status %d", ts.ExitCode)
			}
		}
	}
	if out.Hint == "" {
		out.Hint = defaultHint(out.Kind)
	}
	return out
}

// classify walks lines newest first so the error that ended the run beats
// earlier diagnostics. Fallback rules are tried only after every line missed
// the specific rules.
func (r *Reporter) classify(lines []string) (Kind, string, string) {
	for _, fallback := range []bool{false, true} {
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if line == "" || noisePattern.MatchString(line) {
				continue
			}
			for _, rule := range r.rules {
				if rule.Fallback != fallback || !rule.Pattern.MatchString(line) {
					continue
				}
				detail := line
				if rule.Detail != "" {
					detail = rule.Detail
				}
				return rule.Kind, detail, rule.Hint
			}
		}
	}
	return "", "", ""
}

// Failure builds a failure outcome for a job that never reached the encoder,
// e.g. a preflight or probe failure.
func Failure(jobID string, kind Kind, detail string) Outcome {
	return Outcome{
		JobID:  jobID,
		Status: StatusFailure,
		Kind:   kind,
		Detail: detail,
		Hint:   defaultHint(kind),
	}
}

var defaultReporter = NewReporter()

// Report classifies ts with DefaultRules.
func Report(ts supervisor.TerminalState) Outcome {
	return defaultReporter.Report(ts)
}

func defaultHint(kind Kind) string {
	switch kind {
	case KindMissingTool:
		return "install ffmpeg or set tools.ffmpeg_binary (clipper deps)"
	case KindInvalidInput:
		return "check that the input exists and is a readable video"
	case KindPermissionDenied:
		return "check write access to the output directory"
	case KindEncoderError:
		return "try another codec or container, or inspect the encoder log"
	default:
		return "inspect the full encoder log"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
