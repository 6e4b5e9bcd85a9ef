package control

import (
	"testing"
	"time"
)

// ============================================================================
// FLAG SEMANTICS
// ============================================================================

func resetState() {
	hot = 0
	stop = 0
	lastHot = 0
	cooldownNs = int64(1 * time.Second)
}

func TestSignalActivitySetsHot(t *testing.T) {
	resetState()

	_, hotPtr := Flags()
	if *hotPtr != 0 {
		t.Fatal("hot flag should start clear")
	}

	SignalActivity()
	if *hotPtr != 1 {
		t.Error("SignalActivity should raise the hot flag")
	}
	if lastHot == 0 {
		t.Error("SignalActivity should stamp the activity time")
	}
}

func TestPollCooldownExpiry(t *testing.T) {
	resetState()
	cooldownNs = int64(5 * time.Millisecond)

	SignalActivity()
	PollCooldown()
	if hot != 1 {
		t.Error("hot flag cleared inside the cooldown window")
	}

	time.Sleep(10 * time.Millisecond)
	PollCooldown()
	if hot != 0 {
		t.Error("hot flag should clear after the cooldown window")
	}

	// Reactivation works after expiry.
	SignalActivity()
	if hot != 1 {
		t.Error("hot flag should rise again on new activity")
	}
}

func TestPollCooldownColdSystem(t *testing.T) {
	resetState()
	PollCooldown()
	if hot != 0 {
		t.Error("PollCooldown must not activate an idle system")
	}
}

func TestShutdownLatches(t *testing.T) {
	resetState()

	if Stopping() {
		t.Fatal("should not be stopping initially")
	}
	Shutdown()
	if !Stopping() {
		t.Error("Shutdown should latch the stop flag")
	}
	Shutdown()
	if !Stopping() {
		t.Error("repeat Shutdown should keep the stop flag latched")
	}

	stopPtr, _ := Flags()
	if *stopPtr != 1 {
		t.Error("Flags should expose the latched stop flag")
	}
}

func TestFlagPointerStability(t *testing.T) {
	resetState()

	s1, h1 := Flags()
	s2, h2 := Flags()
	if s1 != s2 || h1 != h2 {
		t.Error("flag pointers must be stable across calls")
	}

	*h1 = 1
	if hot != 1 {
		t.Error("writes through the pointer must hit the global flag")
	}
}

func TestForceHot(t *testing.T) {
	resetState()
	ForceHot()
	if hot != 1 {
		t.Error("ForceHot should raise the hot flag")
	}
}

// ============================================================================
// ALLOCATION AND BENCHMARKS
// ============================================================================

func TestZeroAllocations(t *testing.T) {
	resetState()
	for _, tc := range []struct {
		name string
		fn   func()
	}{
		{"SignalActivity", SignalActivity},
		{"PollCooldown", PollCooldown},
		{"Shutdown", Shutdown},
		{"Stopping", func() { Stopping() }},
		{"Flags", func() { Flags() }},
	} {
		if allocs := testing.AllocsPerRun(100, tc.fn); allocs > 0 {
			t.Errorf("%s allocated: %.2f allocs/op", tc.name, allocs)
		}
	}
}

func BenchmarkSignalActivity(b *testing.B) {
	resetState()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SignalActivity()
	}
}

func BenchmarkPollCooldown(b *testing.B) {
	resetState()
	SignalActivity()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PollCooldown()
	}
}
