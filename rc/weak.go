package rc

// Weak is a non-owning reference to an allocation block. It keeps the block's
// bookkeeping alive but never the payload: once the last Shared handle is
// gone the payload is finalized regardless of how many Weak references
// remain, and Upgrade reports absence from then on.
//
// A Weak must never hand out the payload directly; Upgrade is the only door.
type Weak[T any] struct {
	b       *block[T]
	dropped bool
}

// NewWeak returns a weak reference attached to no block. Upgrade on it always
// reports absence. Useful as an initial value for back-edges that are wired
// up later.
func NewWeak[T any]() *Weak[T] {
	return &Weak[T]{}
}

// liveWeak panics if the weak reference was already dropped. An empty weak
// (NewWeak) is live with a nil block.
func (w *Weak[T]) liveWeak() *block[T] {
	if w.dropped {
		panic("rc: use of dropped Weak reference")
	}

	return w.b
}

// Clone returns another weak reference to the same block, incrementing only
// the weak count.
func (w *Weak[T]) Clone() *Weak[T] {
	b := w.liveWeak()
	if b == nil {
		return &Weak[T]{}
	}

	b.weak++

	return &Weak[T]{b: b}
}

// Upgrade attempts to produce an owning handle. It succeeds exactly when the
// strong count is still above zero; once the payload has been finalized the
// answer is absence, forever.
func (w *Weak[T]) Upgrade() (*Shared[T], bool) {
	b := w.liveWeak()
	if b == nil || b.strong == 0 {
		return nil, false
	}

	b.strong++

	return &Shared[T]{b: b}, true
}

// StrongCount returns the number of live owning handles, zero once the
// payload is gone.
func (w *Weak[T]) StrongCount() uint {
	b := w.liveWeak()
	if b == nil {
		return 0
	}

	return b.strong
}

// WeakCount returns the number of live weak references to the block.
func (w *Weak[T]) WeakCount() uint {
	b := w.liveWeak()
	if b == nil {
		return 0
	}

	return b.weak
}

// Drop releases this weak reference. The block's memory is returned to its
// allocator when this was the last reference of any kind. The reference must
// not be used afterward.
func (w *Weak[T]) Drop() {
	b := w.liveWeak()
	w.dropped = true
	w.b = nil

	if b == nil {
		return
	}

	b.weak--
	if b.weak == 0 && b.strong == 0 {
		b.mem.release()
	}
}
