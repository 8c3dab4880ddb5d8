package relay

import (
	"testing"
	"time"
)

func TestThrottleFirstEmissionAllowed(t *testing.T) {
	th := NewThrottle(250 * time.Millisecond)
	if !th.ShouldEmit("job-1", time.Now()) {
		t.Fatal("first emission should be allowed")
	}
}

func TestThrottleWindow(t *testing.T) {
	th := NewThrottle(250 * time.Millisecond)
	base := time.Now()

	th.RecordEmission("job-1", base)
	if th.ShouldEmit("job-1", base.Add(100*time.Millisecond)) {
		t.Fatal("emission inside the window should be dropped")
	}
	if !th.ShouldEmit("job-1", base.Add(250*time.Millisecond)) {
		t.Fatal("emission at the window boundary should be allowed")
	}
	if !th.ShouldEmit("job-1", base.Add(time.Second)) {
		t.Fatal("emission after the window should be allowed")
	}
}

func TestThrottleIsPerJob(t *testing.T) {
	th := NewThrottle(250 * time.Millisecond)
	base := time.Now()

	th.RecordEmission("job-1", base)
	if !th.ShouldEmit("job-2", base.Add(time.Millisecond)) {
		t.Fatal("another job must not share the window")
	}
}

func TestThrottleClearBoundsMemory(t *testing.T) {
	th := NewThrottle(250 * time.Millisecond)
	base := time.Now()

	th.RecordEmission("job-1", base)
	th.RecordEmission("job-2", base)
	if th.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", th.Len())
	}

	th.Clear("job-1")
	if th.Len() != 1 {
		t.Fatalf("expected 1 entry after clear, got %d", th.Len())
	}
	if !th.ShouldEmit("job-1", base.Add(time.Millisecond)) {
		t.Fatal("cleared job should emit immediately")
	}
}
