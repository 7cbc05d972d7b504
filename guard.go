package ebr

// Guard pairs one Enter with exactly one Unpin. It exists so the
// enter/exit balance is kept by construction on every exit path instead
// of by caller discipline.
//
// A Guard is owned by the goroutine that created it and must not be
// copied or handed to another goroutine.
type Guard[G GlobalState] struct {
	ts   *ThreadState[G]
	g    G
	done bool
}

// Pin enters a critical section and returns its guard.
//
//	gd := ts.Pin(c)
//	defer gd.Unpin()
//
// Owner goroutine only.
func (ts *ThreadState[G]) Pin(g G) Guard[G] {
	ts.Enter(g)
	return Guard[G]{ts: ts, g: g}
}

// Unpin exits the critical section entered by Pin. Unpinning twice is a
// caller bug and panics.
func (gd *Guard[G]) Unpin() {
	if gd.done {
		panic("ebr: Guard unpinned twice")
	}
	gd.done = true
	gd.ts.Exit(gd.g)
}

// Protect runs fn inside a critical section, exiting on every path out
// of fn, including a panic. Callers that stick to Protect cannot
// unbalance the nesting counter.
//
// Owner goroutine only.
func (ts *ThreadState[G]) Protect(g G, fn func()) {
	ts.Enter(g)
	defer ts.Exit(g)
	fn()
}
