package ebr

import (
	"sync/atomic"
)

// Epoch is a global generation counter used to bound how long a retired
// object must stay unfreed.
//
// Epochs are opaque: they support equality, wrap-aware ordering and
// advancing by one step. No other arithmetic is meaningful.
//
// The counter wraps at 64 bits. Sub and After treat the distance between
// two epochs as a signed quantity, so ordering stays correct across the
// wrap as long as live epochs never drift half the counter space apart
// (in practice they stay within the grace period of two).
type Epoch uint64

// Next returns the epoch one step ahead of e.
func (e Epoch) Next() Epoch {
	return e + 1
}

// Sub returns the signed number of steps from a to e.
func (e Epoch) Sub(a Epoch) int64 {
	return int64(e - a)
}

// After reports whether e is strictly ahead of a.
func (e Epoch) After(a Epoch) bool {
	return e.Sub(a) > 0
}

// atomicEpoch is a shared epoch cell.
//
// Load observes with acquire semantics, Store publishes with release
// semantics. Swap is a read-modify-write: on every Go platform it carries
// full (sequentially consistent) fence semantics, so it doubles as the
// "publish then fence" step where a plain release store is not enough.
// CAS is deliberately absent; advancing the global epoch is the
// coordinator's job and happens under its cycle gate.
type atomicEpoch struct {
	v atomic.Uint64
}

//go:nosplit
func (e *atomicEpoch) Load() Epoch {
	return Epoch(e.v.Load())
}

//go:nosplit
func (e *atomicEpoch) Store(new Epoch) {
	e.v.Store(uint64(new))
}

// Swap publishes new and returns the previous value. Unlike Store, the
// RMW acts as a full memory barrier: no later load or store by this
// goroutine can be reordered ahead of it, even on weakly ordered
// hardware.
//
//go:nosplit
func (e *atomicEpoch) Swap(new Epoch) Epoch {
	return Epoch(e.v.Swap(uint64(new)))
}
