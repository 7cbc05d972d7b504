package ebr

import (
	"slices"
	"sync/atomic"
	"testing"
)

// stubState is a minimal GlobalState that records how often the thread
// state probes it.
type stubState struct {
	epoch     atomicEpoch
	due       bool
	dueChecks atomic.Int32
	cycles    atomic.Int32
}

func (s *stubState) CurrentEpoch() Epoch {
	return s.epoch.Load()
}

func (s *stubState) AdvanceDue() bool {
	s.dueChecks.Add(1)
	return s.due
}

func (s *stubState) TryCycle() {
	s.cycles.Add(1)
}

func TestThreadState_InitialEpoch(t *testing.T) {
	s := &stubState{}
	s.epoch.Store(5)
	ts := NewThreadState(s, 1)
	if !ts.IsIdle() {
		t.Fatalf("new thread state should be idle")
	}
	if got := ts.LocalEpoch(); got != 5 {
		t.Fatalf("LocalEpoch = %d, want 5", got)
	}
}

func TestThreadState_NestedEnterExit(t *testing.T) {
	s := &stubState{due: true}
	s.epoch.Store(5)
	// chance 1: the advance check fires on every transition to idle.
	ts := NewThreadStateChance(s, 1, 1)

	ts.Enter(s)
	if ts.IsIdle() {
		t.Fatalf("idle inside critical section")
	}
	if got := ts.LocalEpoch(); got != 5 {
		t.Fatalf("LocalEpoch after outermost Enter = %d, want 5", got)
	}

	// The global epoch moving must not disturb a nested entry.
	s.epoch.Store(6)
	ts.Enter(s)
	if got := ts.LocalEpoch(); got != 5 {
		t.Fatalf("LocalEpoch after nested Enter = %d, want 5", got)
	}

	ts.Exit(s)
	if ts.IsIdle() {
		t.Fatalf("idle with one entry outstanding")
	}
	if got := s.dueChecks.Load(); got != 0 {
		t.Fatalf("advance check before idle: dueChecks = %d, want 0", got)
	}

	ts.Exit(s)
	if !ts.IsIdle() {
		t.Fatalf("not idle after balanced exits")
	}
	if got := s.dueChecks.Load(); got != 1 {
		t.Fatalf("dueChecks = %d, want 1", got)
	}
	if got := s.cycles.Load(); got != 1 {
		t.Fatalf("cycles = %d, want 1", got)
	}

	// The next outermost Enter re-announces the moved epoch.
	ts.Enter(s)
	if got := ts.LocalEpoch(); got != 6 {
		t.Fatalf("LocalEpoch after re-Enter = %d, want 6", got)
	}
	ts.Exit(s)
}

func TestThreadState_NoCycleWhenNotDue(t *testing.T) {
	s := &stubState{due: false}
	ts := NewThreadStateChance(s, 1, 1)
	for range 32 {
		ts.Enter(s)
		ts.Exit(s)
	}
	if got := s.dueChecks.Load(); got != 32 {
		t.Fatalf("dueChecks = %d, want 32", got)
	}
	if got := s.cycles.Load(); got != 0 {
		t.Fatalf("cycles = %d, want 0", got)
	}
}

func TestThreadState_BalancedSequences(t *testing.T) {
	s := &stubState{}
	ts := NewThreadState(s, 3)
	for _, depth := range []int{1, 2, 5, 1, 7} {
		for range depth {
			ts.Enter(s)
		}
		if ts.IsIdle() {
			t.Fatalf("idle at depth %d", depth)
		}
		for range depth {
			ts.Exit(s)
		}
		if !ts.IsIdle() {
			t.Fatalf("not idle after %d balanced pairs", depth)
		}
	}
}

func TestThreadState_UnbalancedExitPanics(t *testing.T) {
	s := &stubState{}
	ts := NewThreadState(s, 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("Exit without Enter did not panic")
		}
	}()
	ts.Exit(s)
}

func TestThreadState_ZeroChancePanics(t *testing.T) {
	s := &stubState{}
	defer func() {
		if recover() == nil {
			t.Fatalf("chance 0 did not panic")
		}
	}()
	NewThreadStateChance(s, 1, 0)
}

func TestThreadState_SamplingDeterminism(t *testing.T) {
	run := func(id uint32) []int32 {
		s := &stubState{due: true}
		ts := NewThreadStateChance(s, id, 4)
		decisions := make([]int32, 0, 64)
		for range 64 {
			ts.Enter(s)
			ts.Exit(s)
			decisions = append(decisions, s.cycles.Load())
		}
		return decisions
	}
	a, b := run(7), run(7)
	if !slices.Equal(a, b) {
		t.Fatalf("same id produced different sampling sequences:\n%v\n%v", a, b)
	}
	if total := a[len(a)-1]; total == 0 || total == 64 {
		t.Fatalf("sampled cycles = %d over 64 exits, expected a proper subset", total)
	}
}

func BenchmarkEnterExit(b *testing.B) {
	s := &stubState{}
	ts := NewThreadState(s, 1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ts.Enter(s)
		ts.Exit(s)
	}
}

func BenchmarkEnterExitNested(b *testing.B) {
	s := &stubState{}
	ts := NewThreadState(s, 1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ts.Enter(s)
		ts.Enter(s)
		ts.Exit(s)
		ts.Exit(s)
	}
}
