package ebr

import (
	"sync/atomic"
)

// epochBins is the number of generation bins a BinAllocator rotates
// through: the current generation, the previous one still inside the
// grace period, and the one being drained.
const epochBins = 3

// Allocator bins retired resources by retirement epoch and frees a bin
// only once the global epoch has advanced at least two generations past
// it. It is consumed by the coordinator; thread states never call it.
type Allocator interface {
	// Retire records r as retired at epoch e. Safe for concurrent use.
	Retire(e Epoch, r Resource)

	// Collect releases every resource whose grace period elapsed when
	// the global epoch advanced to next. The coordinator calls it from
	// at most one goroutine at a time.
	Collect(next Epoch)

	// Pending returns the number of retired, not yet released
	// resources.
	Pending() int64
}

// BinAllocator is the default Allocator: three generation bins cycling
// under the advancing epoch. A resource retired at epoch E is pushed
// onto bin E%3; when the global epoch advances to N, bin (N+1)%3 holds
// exactly the resources retired at N-2 or earlier, whose grace period of
// two has elapsed, and is drained before that slot is reused for N+1.
//
// The grace period of two exists because a reader may have announced the
// previous epoch at retirement time and still be mid-read one advance
// later.
//
// Retire is a lock-free push. Collect assumes a single concurrent
// caller; the Collector's cycle gate provides that.
type BinAllocator struct {
	bins    [epochBins]retireBin
	pending atomic.Int64
}

// NewBinAllocator returns an empty BinAllocator.
func NewBinAllocator() *BinAllocator {
	return &BinAllocator{}
}

func (a *BinAllocator) Retire(e Epoch, r Resource) {
	a.bins[uint64(e)%epochBins].push(r)
	a.pending.Add(1)
}

func (a *BinAllocator) Collect(next Epoch) {
	if n := a.bins[(uint64(next)+1)%epochBins].drain(); n != 0 {
		a.pending.Add(-n)
	}
}

func (a *BinAllocator) Pending() int64 {
	return a.pending.Load()
}

type retiredNode struct {
	res  Resource
	next *retiredNode
}

// retireBin is a CAS push list. Producers push concurrently; a single
// consumer detaches the whole list at once.
type retireBin struct {
	head atomic.Pointer[retiredNode]
}

func (b *retireBin) push(r Resource) {
	n := &retiredNode{res: r}
	for {
		head := b.head.Load()
		n.next = head
		if b.head.CompareAndSwap(head, n) {
			return
		}
	}
}

// drain detaches the list and releases every resource on it, returning
// the count released.
func (b *retireBin) drain() int64 {
	var n int64
	for node := b.head.Swap(nil); node != nil; node = node.next {
		node.res.Release()
		n++
	}
	return n
}
