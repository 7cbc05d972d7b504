package ebr

import (
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/pb"

	"github.com/llxisdsh/ebr/internal/opt"
)

// defaultAdvanceThreshold is the retired-object backlog at which
// AdvanceDue starts reporting true.
const defaultAdvanceThreshold = 64

// CollectorConfig defines configurable options for Collector
// initialization.
type CollectorConfig struct {
	// threshold is the retired-object backlog that makes AdvanceDue
	// report true. If zero or negative, the default is used.
	threshold int64

	// alloc is the allocator retired resources are binned into.
	// If nil, a BinAllocator is used.
	alloc Allocator

	// inspector, when set, observes every advance scan.
	inspector Inspector
}

// WithAdvanceThreshold configures the retired-object backlog at which
// the Collector starts signalling that an epoch advance is due.
func WithAdvanceThreshold(n int64) func(*CollectorConfig) {
	return func(c *CollectorConfig) {
		c.threshold = n
	}
}

// WithAllocator substitutes a custom Allocator for the default
// BinAllocator.
func WithAllocator(a Allocator) func(*CollectorConfig) {
	return func(c *CollectorConfig) {
		c.alloc = a
	}
}

// WithInspector attaches an Inspector to the Collector's advance scans.
func WithInspector(i Inspector) func(*CollectorConfig) {
	return func(c *CollectorConfig) {
		c.inspector = i
	}
}

// Inspector observes one advance scan at a time: Begin, one Inspect per
// registered thread, then End with the scan's verdict. Callbacks run on
// the cycling goroutine and should be cheap.
type Inspector interface {
	Begin()
	Inspect(id uint32, idle bool, local Epoch)
	End(advanced bool)
}

// Collector is the shipped GlobalState implementation: it owns the
// authoritative epoch, the registry of participating threads, and the
// allocator holding retired resources.
//
// Threads join through Register and each drives its own ThreadState;
// the Collector only ever reads thread states, during the advance scan.
type Collector struct {
	// epoch is the authoritative global generation. Padded so the one
	// word every reader hits on Enter does not share a line with
	// registry or cycle bookkeeping.
	epoch atomicEpoch
	_     [opt.CacheLineSize_ - unsafe.Sizeof(atomicEpoch{})]byte

	// cycling gates TryCycle: whichever caller CASes 0->1 performs the
	// scan, everyone else no-ops.
	cycling atomic.Uint32

	threshold int64
	alloc     Allocator
	inspector Inspector

	threads pb.MapOf[uint32, *ThreadState[*Collector]]
}

// NewCollector creates a Collector with an empty registry, the epoch at
// its initial generation and, unless overridden, a fresh BinAllocator.
func NewCollector(options ...func(*CollectorConfig)) *Collector {
	var cfg CollectorConfig
	for _, o := range options {
		o(&cfg)
	}
	if cfg.threshold <= 0 {
		cfg.threshold = defaultAdvanceThreshold
	}
	if cfg.alloc == nil {
		cfg.alloc = NewBinAllocator()
	}
	return &Collector{
		threshold: cfg.threshold,
		alloc:     cfg.alloc,
		inspector: cfg.inspector,
	}
}

// CurrentEpoch returns the authoritative global epoch.
func (c *Collector) CurrentEpoch() Epoch {
	return c.epoch.Load()
}

// AdvanceDue reports whether the retired backlog has reached the
// configured threshold. No side effects.
func (c *Collector) AdvanceDue() bool {
	return c.alloc.Pending() >= c.threshold
}

// Register creates and records the state for a new participating
// thread. The id must be unique among live registrations; reusing a
// live id is a caller bug and panics.
func (c *Collector) Register(id uint32) *ThreadState[*Collector] {
	ts := NewThreadState(c, id)
	if _, loaded := c.threads.LoadOrStore(id, ts); loaded {
		panic("ebr: thread id already registered")
	}
	return ts
}

// Deregister removes a thread from the registry. The thread must be
// idle: deregistering from inside a critical section would let the
// epoch advance over a live reader, so it panics. Unknown ids are
// ignored.
func (c *Collector) Deregister(id uint32) {
	ts, ok := c.threads.Load(id)
	if !ok {
		return
	}
	if !ts.IsIdle() {
		panic("ebr: Deregister inside critical section")
	}
	c.threads.Delete(id)
}

// Retire hands r to the allocator under the current epoch. The calling
// thread must be inside a critical section: pinning bounds how far the
// epoch can move between reading it and binning r, which is what keeps
// the grace period sufficient.
func (c *Collector) Retire(r Resource) {
	c.alloc.Retire(c.epoch.Load(), r)
}

// TryCycle attempts one advance-and-reclaim cycle. At most one caller
// wins the gate; losers return immediately (not an error, the next
// sampled exit retries). The winner scans every registered thread with
// acquire loads and advances only if each is idle or has announced the
// current epoch; a single lagging reader vetoes the advance. On success
// the allocator releases the generation whose grace period elapsed.
//
// The scan is bounded work and never waits on another thread.
func (c *Collector) TryCycle() {
	if !c.cycling.CompareAndSwap(0, 1) {
		return
	}
	defer c.cycling.Store(0)

	global := c.epoch.Load()
	insp := c.inspector
	advance := true

	if insp != nil {
		insp.Begin()
	}
	c.threads.Range(func(id uint32, ts *ThreadState[*Collector]) bool {
		idle := ts.IsIdle()
		local := ts.LocalEpoch()
		if insp != nil {
			insp.Inspect(id, idle, local)
		}
		if !idle && local != global {
			advance = false
			// keep walking only if someone is watching
			return insp != nil
		}
		return true
	})
	if insp != nil {
		insp.End(advance)
	}
	if !advance {
		return
	}

	next := global.Next()
	c.epoch.Store(next)
	c.alloc.Collect(next)
}
