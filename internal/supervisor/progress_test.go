package supervisor_test

import (
	"testing"
	"time"

	"clipper/internal/supervisor"
)

func TestProgressParserStatsLine(t *testing.T) {
	var p supervisor.ProgressParser
	s, ok, progress := p.Feed("frame=  100 fps=25 q=28.0 size=    1024kB time=00:01:02.50 bitrate= 134.2kbits/s speed=1.75x    ")
	if !ok || !progress {
		t.Fatalf("expected a sample (ok=%v progress=%v)", ok, progress)
	}
	if s.Elapsed != time.Minute+2500*time.Millisecond || s.Speed != 1.75 {
		t.Fatalf("unexpected sample %+v", s)
	}

	_, ok, progress = p.Feed("frame=    0 fps=0.0 q=0.0 size=       0kB time=N/A bitrate=N/A speed=N/A")
	if ok || !progress {
		t.Fatalf("N/A stats line: ok=%v progress=%v", ok, progress)
	}

	_, ok, progress = p.Feed("Stream #0:0: Video: h264 (High), yuv420p, 1920x1080")
	if ok || progress {
		t.Fatalf("diagnostic line: ok=%v progress=%v", ok, progress)
	}
}

func TestProgressParserKeyValueBlock(t *testing.T) {
	var p supervisor.ProgressParser
	lines := []string{"frame=10", "fps=0.00", "out_time_ms=1500000", "dup_frames=0", "speed=N/A"}
	for _, line := range lines {
		if _, ok, progress := p.Feed(line); ok || !progress {
			t.Fatalf("%q: ok=%v progress=%v", line, ok, progress)
		}
	}
	s, ok, _ := p.Feed("progress=continue")
	if !ok || s.Elapsed != 1500*time.Millisecond || s.Speed != 0 || s.Final {
		t.Fatalf("unexpected sample %+v ok=%v", s, ok)
	}

	s, ok, _ = p.Feed("progress=end")
	if !ok || !s.Final {
		t.Fatalf("expected final sample, got %+v ok=%v", s, ok)
	}
}

func TestFractionAndETA(t *testing.T) {
	if got := supervisor.Fraction(5*time.Second, 10*time.Second); got != 0.5 {
		t.Fatalf("Fraction = %v", got)
	}
	if got := supervisor.Fraction(20*time.Second, 10*time.Second); got != 1 {
		t.Fatalf("Fraction clamp = %v", got)
	}
	if got := supervisor.Fraction(time.Second, 0); got != 0 {
		t.Fatalf("Fraction unknown = %v", got)
	}
	if got := supervisor.ETA(4*time.Second, 10*time.Second, 2); got != 3*time.Second {
		t.Fatalf("ETA = %v", got)
	}
	if got := supervisor.ETA(4*time.Second, 10*time.Second, 0); got != 0 {
		t.Fatalf("ETA without speed = %v", got)
	}
}

func TestMatchWarning(t *testing.T) {
	if _, ok := supervisor.MatchWarning(supervisor.DefaultWarningRules, "[libass @ 0x1] fontselect: (Arial, 400, 0) -> DejaVuSans"); !ok {
		t.Fatal("expected fontselect warning")
	}
	if _, ok := supervisor.MatchWarning(supervisor.DefaultWarningRules, "Conversion failed!"); ok {
		t.Fatal("unexpected warning for fatal line")
	}
}
