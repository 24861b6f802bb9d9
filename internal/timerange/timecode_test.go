package timerange_test

import (
	"testing"
	"time"

	"clipper/internal/timerange"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"0:00", 0},
		{"01:00", time.Minute},
		{"2:10", 130 * time.Second},
		{"75:30", 75*time.Minute + 30*time.Second},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{" 00:01.5 ", 1500 * time.Millisecond},
	}
	for _, tc := range tests {
		got, err := timerange.Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{1500 * time.Millisecond, "0:01.500"},
		{-time.Second, "0:00"},
	}
	for _, tc := range tests {
		if got := timerange.Format(tc.in); got != tc.want {
			t.Fatalf("Format(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{0, 59 * time.Second, 10 * time.Minute, 3*time.Hour + 59*time.Minute + 59*time.Second} {
		got, err := timerange.Parse(timerange.Format(d))
		if err != nil {
			t.Fatalf("Parse(Format(%v)): %v", d, err)
		}
		if got != d {
			t.Fatalf("round trip %v -> %v", d, got)
		}
	}
}

func TestToken(t *testing.T) {
	if got := timerange.Token(10 * time.Second); got != "00m10s" {
		t.Fatalf("Token = %q", got)
	}
	if got := timerange.Token(time.Hour + 2*time.Minute + 3500*time.Millisecond); got != "1h02m03s" {
		t.Fatalf("Token = %q", got)
	}
}
