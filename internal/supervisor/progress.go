package supervisor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	statsTimePattern  = regexp.MustCompile(`time=\s*(-?\d+):(\d+):(\d+(?:\.\d+)?)`)
	statsSpeedPattern = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// Sample is one elapsed-time reading from the encoder.
type Sample struct {
	Elapsed time.Duration
	// Speed is the encoder's realtime multiplier; zero when unknown.
	Speed float64
	// Final is set by the "progress=end" marker.
	Final bool
}

// ProgressParser extracts samples from ffmpeg stderr. It understands the
// classic "frame=... time=HH:MM:SS.xx ... speed=1.2x" stats line and the
// key=value blocks written by "-progress pipe:2", which end with a
// "progress=continue|end" line.
type ProgressParser struct {
	pending    Sample
	hasPending bool
}

// Feed consumes one line. ok reports whether a complete sample is ready;
// progress reports whether the line was progress output at all, so callers
// can keep everything else as diagnostic context.
func (p *ProgressParser) Feed(line string) (sample Sample, ok bool, progress bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Sample{}, false, false
	}

	if key, value, found := strings.Cut(line, "="); found && strings.Count(line, "=") == 1 && isProgressKey(key) {
		return p.feedKeyValue(key, strings.TrimSpace(value))
	}

	m := statsTimePattern.FindStringSubmatch(line)
	if m == nil {
		return Sample{}, false, strings.HasPrefix(line, "frame=") || strings.HasPrefix(line, "size=")
	}
	elapsed, valid := clockDuration(m[1], m[2], m[3])
	if !valid {
		return Sample{}, false, true
	}
	s := Sample{Elapsed: elapsed}
	if sm := statsSpeedPattern.FindStringSubmatch(line); sm != nil {
		s.Speed, _ = strconv.ParseFloat(sm[1], 64)
	}
	return s, true, true
}

func (p *ProgressParser) feedKeyValue(key, value string) (Sample, bool, bool) {
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.pending.Elapsed = time.Duration(us) * time.Microsecond
			p.hasPending = true
		}
	case "out_time":
		parts := strings.Split(value, ":")
		if len(parts) == 3 {
			if d, valid := clockDuration(parts[0], parts[1], parts[2]); valid {
				p.pending.Elapsed = d
				p.hasPending = true
			}
		}
	case "speed":
		if v, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil && v >= 0 {
			p.pending.Speed = v
		}
	case "progress":
		s := p.pending
		s.Final = value == "end"
		ready := p.hasPending || s.Final
		p.pending = Sample{}
		p.hasPending = false
		return s, ready, true
	}
	return Sample{}, false, true
}

var progressKeys = map[string]struct{}{
	"frame": {}, "fps": {}, "bitrate": {}, "total_size": {}, "out_time_us": {},
	"out_time_ms": {}, "out_time": {}, "dup_frames": {}, "drop_frames": {},
	"speed": {}, "progress": {},
}

func isProgressKey(key string) bool {
	if strings.HasPrefix(key, "stream_") {
		return true
	}
	_, ok := progressKeys[key]
	return ok
}

func clockDuration(h, m, s string) (time.Duration, bool) {
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	return d + time.Duration(secs*float64(time.Second)), true
}

// Fraction computes min(1, elapsed/expected). An unknown expected duration
// yields 0.
func Fraction(elapsed, expected time.Duration) float64 {
	if expected <= 0 || elapsed <= 0 {
		return 0
	}
	f := float64(elapsed) / float64(expected)
	if f > 1 {
		return 1
	}
	return f
}

// ETA estimates remaining wall time from the realtime multiplier.
func ETA(elapsed, expected time.Duration, speed float64) time.Duration {
	if speed <= 0 || expected <= 0 || elapsed >= expected {
		return 0
	}
	return time.Duration(float64(expected-elapsed) / speed).Round(time.Second)
}
