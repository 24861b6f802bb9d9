package timerange

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"clipper/internal/services"
)

// Epsilon is the minimum clip length produced by auto-correction.
const Epsilon = 100 * time.Millisecond

// Kind classifies a time-range validation failure.
type Kind string

const (
	KindMalformedTime   Kind = "MalformedTime"
	KindInvalidDuration Kind = "InvalidDuration"
)

// ValidationError reports input that cannot be auto-corrected.
type ValidationError struct {
	Kind   Kind
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %q: %s", e.Kind, e.Input, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

// Input is one trim bound, given either as text or as a structured value.
// The zero Input is empty and selects the natural default for its bound.
type Input struct {
	text       string
	value      time.Duration
	structured bool
}

// Text wraps user-entered "MM:SS" or "HH:MM:SS" text.
func Text(s string) Input { return Input{text: s} }

// At wraps a structured position, e.g. from a drag handle.
func At(d time.Duration) Input { return Input{value: d, structured: true} }

// Seconds wraps a structured position in seconds.
func Seconds(s float64) Input {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return Input{text: strconv.FormatFloat(s, 'f', -1, 64)}
	}
	return At(time.Duration(s * float64(time.Second)))
}

// Empty reports whether the input carries no value.
func (in Input) Empty() bool {
	return !in.structured && strings.TrimSpace(in.text) == ""
}

func (in Input) String() string {
	if in.structured {
		return Format(in.value)
	}
	return in.text
}

func (in Input) resolve(fallback time.Duration) (time.Duration, error) {
	if in.structured {
		return in.value, nil
	}
	if in.Empty() {
		return fallback, nil
	}
	return Parse(in.text)
}

// TrimRange is the [Start, End) window retained in the output.
type TrimRange struct {
	Start   time.Duration
	End     time.Duration
	Enabled bool
	// Adjusted is set when auto-correction changed either bound.
	Adjusted bool
}

// Length returns End-Start.
func (r TrimRange) Length() time.Duration {
	return r.End - r.Start
}

// Full reports whether the range spans the whole source.
func (r TrimRange) Full(duration time.Duration) bool {
	return r.Start <= 0 && r.End >= duration
}

func (r TrimRange) String() string {
	return Format(r.Start) + "-" + Format(r.End)
}

// Disabled returns the untrimmed range for a source of the given duration.
func Disabled(duration time.Duration) TrimRange {
	return TrimRange{Start: 0, End: duration, Enabled: false}
}

// Compute parses and validates trim bounds against duration. Malformed text
// is a hard failure; out-of-order or out-of-bounds values are corrected and
// never raise. An empty start means 0 and an empty end means duration.
func Compute(start, end Input, duration time.Duration) (TrimRange, error) {
	if duration <= 0 {
		return TrimRange{}, &ValidationError{Kind: KindInvalidDuration, Reason: "source duration must be positive"}
	}
	s, err := start.resolve(0)
	if err != nil {
		return TrimRange{}, err
	}
	e, err := end.resolve(duration)
	if err != nil {
		return TrimRange{}, err
	}
	return Correct(s, e, duration), nil
}

// ComputeEnabled is Compute when enabled is true, and Disabled otherwise.
func ComputeEnabled(enabled bool, start, end Input, duration time.Duration) (TrimRange, error) {
	if !enabled {
		return Disabled(duration), nil
	}
	return Compute(start, end, duration)
}

// Correct clamps both bounds into [0, duration] and then orders them so that
// Start < End. Equal bounds are separated by Epsilon, or less when the
// source is shorter than Epsilon.
func Correct(start, end, duration time.Duration) TrimRange {
	r := TrimRange{Start: start, End: end, Enabled: true}
	r.Start = clamp(r.Start, duration)
	r.End = clamp(r.End, duration)
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	if r.Start == r.End {
		gap := min(Epsilon, duration)
		if r.End-gap >= 0 {
			r.Start = r.End - gap
		} else {
			r.Start, r.End = 0, gap
		}
	}
	r.Adjusted = r.Start != start || r.End != end
	return r
}

func clamp(d, duration time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > duration {
		return duration
	}
	return d
}
