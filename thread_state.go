package ebr

import (
	"math/rand/v2"
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/ebr/internal/opt"
)

// defaultAdvanceChance is the default 1-in-N sampling rate for probing
// the coordinator on the transition to idle.
const defaultAdvanceChance = 4

// ThreadState tracks one participating thread of the epoch-based
// reclamation scheme: a nesting counter for critical sections and the
// global epoch the thread last announced.
//
// Ownership is asymmetric:
//   - Enter, Exit, Pin and Protect must only be called by the owning
//     goroutine. They are the only paths that touch the sampling state,
//     which is how its single-writer guarantee is kept without a lock.
//   - IsIdle and LocalEpoch are safe from any goroutine; the coordinator
//     reads both during its advance scan.
//
// Liveness caveat: a thread that enters a critical section and never
// exits blocks epoch advancement for the whole system. That is inherent
// to this style of reclamation and is not detected here.
//
// The struct is padded to a cache line so that densely packed thread
// states do not false-share.
type ThreadState[G GlobalState] struct {
	_ noCopy

	// active counts nested critical-section entries. Zero means idle.
	active atomic.Uint64

	// epoch is the epoch this thread announced on its outermost Enter.
	// Written only on the 0->1 active transition, read by anyone.
	epoch atomicEpoch

	// rng drives advance-check sampling. Owner goroutine only; never
	// reachable through any shared accessor.
	rng rand.PCG

	// chance is the 1-in-N sampling rate. Fixed after construction.
	chance uint64

	_ [(opt.CacheLineSize_ - unsafe.Sizeof(struct {
		active atomic.Uint64
		epoch  atomicEpoch
		rng    rand.PCG
		chance uint64
	}{})%opt.CacheLineSize_) % opt.CacheLineSize_]byte
}

// NewThreadState creates the state for one participating thread. It
// snapshots g's current epoch as the initial local epoch and seeds the
// sampling generator from id, so equal ids produce identical sampling
// sequences (deterministic tests need no real randomness).
func NewThreadState[G GlobalState](g G, id uint32) *ThreadState[G] {
	return NewThreadStateChance(g, id, defaultAdvanceChance)
}

// NewThreadStateChance is NewThreadState with an explicit 1-in-chance
// sampling rate for advance checks. chance trades reclamation latency
// against the cost of probing the coordinator; it never affects safety.
//
// panic if chance == 0.
func NewThreadStateChance[G GlobalState](g G, id uint32, chance uint64) *ThreadState[G] {
	if chance == 0 {
		panic("ebr: advance chance must be positive")
	}
	ts := &ThreadState[G]{chance: chance}
	ts.epoch.Store(g.CurrentEpoch())
	// The golden-ratio scramble keeps distinct ids on distinct streams.
	ts.rng.Seed(uint64(id), uint64(id)*0x9e3779b97f4a7c15)
	return ts
}

// IsIdle reports whether the thread is outside any critical section.
func (ts *ThreadState[G]) IsIdle() bool {
	return ts.active.Load() == 0
}

// LocalEpoch returns the epoch this thread last announced. Safe from any
// goroutine.
func (ts *ThreadState[G]) LocalEpoch() Epoch {
	return ts.epoch.Load()
}

// Enter begins a critical section. Entries nest; only the outermost one
// re-announces the thread's epoch.
//
// The announcement uses an RMW swap rather than a plain store: the full
// barrier it implies keeps every read inside the critical section from
// being reordered ahead of the epoch publication. That ordering is the
// linchpin of the scheme: once the coordinator's scan has seen this
// thread on epoch E, anything retired strictly before E is provably
// unread here.
//
// Owner goroutine only.
func (ts *ThreadState[G]) Enter(g G) {
	if ts.active.Add(1) == 1 {
		ts.epoch.Swap(g.CurrentEpoch())
	}
}

// Exit ends a critical section. On the transition back to idle the
// thread occasionally (1-in-chance, see NewThreadStateChance) asks g
// whether an advance is due and, if so, requests a cycle. The sampling
// amortizes the cost of the global check; a skipped opportunity only
// delays reclamation.
//
// Calling Exit with no outstanding Enter is a caller bug and panics
// unconditionally: continuing would underflow the nesting counter and
// silently corrupt later epoch announcements.
//
// Owner goroutine only.
func (ts *ThreadState[G]) Exit(g G) {
	n := ts.active.Add(^uint64(0))
	if n == ^uint64(0) {
		panic("ebr: Exit without matching Enter")
	}
	if n == 0 && ts.shouldAdvance(g) {
		g.TryCycle()
	}
}

// shouldAdvance samples the generator first so the cheap local draw
// short-circuits the (comparatively expensive) coordinator heuristic.
func (ts *ThreadState[G]) shouldAdvance(g G) bool {
	return ts.rng.Uint64()%ts.chance == 0 && g.AdvanceDue()
}
