package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "processing") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(2, "processing") {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(5, "processing") {
		t.Fatal("new bucket should log")
	}
	if !s.ShouldLog(100, "processing") {
		t.Fatal("completion bucket should log")
	}
}

func TestProgressSamplerStageChange(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "downloading")
	if !s.ShouldLog(50, "uploading") {
		t.Fatal("stage change should log even with same percent")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "processing") {
		t.Fatal("first unknown-percent event should log on stage change")
	}
	if s.ShouldLog(-1, "processing") {
		t.Fatal("repeat unknown-percent event should not log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(95, "uploading")
	s.Reset()
	if !s.ShouldLog(0, "downloading") {
		t.Fatal("reset sampler should log the first event again")
	}
}
