package ebr

// GlobalState is the capability a ThreadState needs from the global
// epoch coordinator. Any implementation can be plugged in; Collector is
// the one shipped with this package.
//
// All three operations must be safe to call from any goroutine.
type GlobalState interface {
	// CurrentEpoch returns the authoritative global epoch. Cheap,
	// many-reader safe.
	CurrentEpoch() Epoch

	// AdvanceDue reports whether an epoch advance looks worthwhile,
	// e.g. based on retired-object backlog. It is a heuristic with no
	// side effects; a false negative only delays reclamation.
	AdvanceDue() bool

	// TryCycle attempts one advance-and-reclaim cycle. It may scan
	// every registered thread, so it is comparatively expensive, but it
	// does bounded work and never blocks on another thread's progress.
	// When several goroutines race to cycle, at most one performs the
	// transition; the rest are no-ops.
	TryCycle()
}

// Resource is an object retired into the reclamation scheme. Release is
// invoked exactly once, by whichever goroutine wins the cycle that frees
// the resource's generation, after no reader can still hold a reference.
type Resource interface {
	Release()
}
