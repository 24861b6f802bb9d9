package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse reads "MM:SS" or "HH:MM:SS". The seconds field may carry a fraction
// ("01:02.5"). Seconds must be below 60 in both forms, and minutes below 60
// when hours are present.
func Parse(text string) (time.Duration, error) {
	raw := text
	text = strings.TrimSpace(text)
	parts := strings.Split(text, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, malformed(raw, "want MM:SS or HH:MM:SS")
	}

	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || !isDigits(strings.Replace(parts[len(parts)-1], ".", "", 1)) {
		return 0, malformed(raw, "seconds are not a number")
	}
	if secs >= 60 {
		return 0, malformed(raw, fmt.Sprintf("seconds must be 0-59, got %s", parts[len(parts)-1]))
	}

	var hours, minutes int
	if len(parts) == 3 {
		if hours, err = parseField(parts[0]); err != nil {
			return 0, malformed(raw, "hours are not a number")
		}
		if minutes, err = parseField(parts[1]); err != nil {
			return 0, malformed(raw, "minutes are not a number")
		}
		if minutes >= 60 {
			return 0, malformed(raw, fmt.Sprintf("minutes must be 0-59, got %d", minutes))
		}
	} else if minutes, err = parseField(parts[0]); err != nil {
		return 0, malformed(raw, "minutes are not a number")
	}

	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	total += time.Duration(secs * float64(time.Second))
	return total, nil
}

// Format renders d as "M:SS", or "H:MM:SS" from one hour up. Fractions of a
// second are kept to millisecond precision when present.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Millisecond)
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	secs := int(d % time.Minute / time.Second)
	millis := int(d % time.Second / time.Millisecond)

	var b strings.Builder
	if hours > 0 {
		fmt.Fprintf(&b, "%d:%02d:%02d", hours, minutes, secs)
	} else {
		fmt.Fprintf(&b, "%d:%02d", minutes, secs)
	}
	if millis > 0 {
		fmt.Fprintf(&b, ".%03d", millis)
	}
	return b.String()
}

// Token renders d as a filename-safe label such as "01m05s" or "1h02m03s".
func Token(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	secs := int(d % time.Minute / time.Second)
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%02dm%02ds", minutes, secs)
}

func parseField(s string) (int, error) {
	if !isDigits(s) {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func malformed(input, reason string) *ValidationError {
	return &ValidationError{Kind: KindMalformedTime, Input: input, Reason: reason}
}
