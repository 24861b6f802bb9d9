package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "encode") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)
	steps := []struct {
		percent float64
		stage   string
		want    bool
	}{
		{0, "encode", true},
		{3, "encode", false},
		{5, "encode", true},
		{7, "encode", false},
		{10, "encode", true},
		{-1, "encode", false},
		{100, "encode", true},
		{105, "encode", false},
		{0, "upload", true},
		{10, "upload", true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.stage); got != step.want {
			t.Fatalf("step %d (%v%% %s): got %v want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerTrimsStage(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(0, "  encode  ")
	if s.lastStage != "encode" {
		t.Errorf("lastStage = %q, want encode", s.lastStage)
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "encode")
	s.Reset()
	if s.lastStage != "" || s.lastBucket != -1 {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	if !s.ShouldLog(50, "encode") {
		t.Error("should log after reset")
	}
}
