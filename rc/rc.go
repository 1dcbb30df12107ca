// Package rc provides deterministic, single-threaded shared ownership for Go
// values. A Shared handle keeps its payload alive through a strong reference
// count; a Weak reference observes the payload without extending its life and
// is the tool for breaking reference cycles.
//
// Counters are plain integers and every operation runs synchronously to
// completion, so a given allocation block must only ever be touched from one
// goroutine at a time. Handing handles across goroutines without external
// synchronization is unsafe. Nothing here blocks or suspends.
//
// Go has no destructors, so dropping is explicit: each handle must be dropped
// exactly once via Drop (or consumed by TryUnwrap). Using a handle after it
// has been dropped is a programming error and panics.
package rc

import (
	"unsafe"

	"github.com/orizon-lang/rcell/alloc"
)

// block is the heap record shared by every handle to one payload. It pairs
// the two reference counters with the payload slot and the backing reservation
// in the external allocator.
//
// The payload is finalized exactly once, at the moment strong transitions from
// 1 to 0. The backing reservation is released exactly once, by whichever drop
// observes both counters at zero.
type block[T any] struct {
	strong   uint
	weak     uint
	value    T
	finalize func(T)
	dead     bool // payload finalized or moved out
	mem      reservation
}

// reservation records the raw memory this block holds in its allocator.
type reservation struct {
	allocator alloc.Allocator
	ptr       unsafe.Pointer
	size      uintptr
	align     uintptr
}

// release returns the backing memory to the allocator. Called exactly once,
// when both counters are zero.
func (r *reservation) release() {
	if r.allocator == nil || r.ptr == nil {
		return
	}

	r.allocator.Free(r.ptr, r.size, r.align)
	r.ptr = nil
}

// Config holds construction options for a Shared handle.
type Config[T any] struct {
	Allocator alloc.Allocator
	Finalizer func(T)
}

// Option adjusts a Config.
type Option[T any] func(*Config[T])

// WithAllocator reserves the block's footprint in the given allocator for the
// lifetime of the block. The reservation shows up in the allocator's stats
// and leak report until the block is freed.
func WithAllocator[T any](a alloc.Allocator) Option[T] {
	return func(c *Config[T]) { c.Allocator = a }
}

// WithFinalizer registers cleanup logic for the payload. It runs exactly
// once, synchronously, when the last strong reference goes away.
func WithFinalizer[T any](fn func(T)) Option[T] {
	return func(c *Config[T]) { c.Finalizer = fn }
}

// Shared is an owning handle to a reference-counted payload. Multiple handles
// to the same block may coexist; the payload stays initialized while at least
// one of them is live.
//
// Shared values must not be duplicated by assignment; Clone is the only way
// to create another owning handle.
type Shared[T any] struct {
	b       *block[T]
	dropped bool
}

// New allocates a block for value and returns the first handle to it, with a
// strong count of 1 and a weak count of 0.
func New[T any](value T, options ...Option[T]) *Shared[T] {
	var config Config[T]
	for _, opt := range options {
		opt(&config)
	}

	b := &block[T]{
		strong:   1,
		value:    value,
		finalize: config.Finalizer,
	}

	if config.Allocator != nil {
		size := unsafe.Sizeof(*b)
		align := unsafe.Alignof(*b)
		b.mem = reservation{
			allocator: config.Allocator,
			ptr:       config.Allocator.Alloc(size, align),
			size:      size,
			align:     align,
		}
	}

	return &Shared[T]{b: b}
}

// live returns the handle's block, panicking if the handle was already
// dropped or consumed.
func (s *Shared[T]) live() *block[T] {
	if s.dropped || s.b == nil {
		panic("rc: use of dropped Shared handle")
	}

	return s.b
}

// Clone returns a new owning handle to the same block. The payload is not
// copied; only the strong count is incremented. O(1).
func (s *Shared[T]) Clone() *Shared[T] {
	b := s.live()
	b.strong++

	return &Shared[T]{b: b}
}

// Get returns the payload value.
func (s *Shared[T]) Get() T {
	return s.live().value
}

// StrongCount returns the number of live owning handles.
func (s *Shared[T]) StrongCount() uint {
	return s.live().strong
}

// WeakCount returns the number of live weak references.
func (s *Shared[T]) WeakCount() uint {
	return s.live().weak
}

// Drop releases this handle's unit of ownership. If it was the last owning
// handle the payload is finalized immediately; the block itself is freed once
// no weak references remain either. The handle must not be used afterward.
func (s *Shared[T]) Drop() {
	b := s.live()
	s.dropped = true
	s.b = nil

	decStrong(b)
}

func decStrong[T any](b *block[T]) {
	b.strong--
	if b.strong > 0 {
		return
	}

	finalizePayload(b)

	if b.weak == 0 {
		b.mem.release()
	}
}

// finalizePayload runs the finalizer and clears the slot. Idempotent via the
// dead flag, but in a correct program it is only reached once.
func finalizePayload[T any](b *block[T]) {
	if b.dead {
		return
	}

	b.dead = true
	fin := b.finalize
	b.finalize = nil

	value := b.value
	var zero T
	b.value = zero

	if fin != nil {
		fin(value)
	}
}

// Downgrade creates a weak reference to the block. Only the weak count is
// incremented; the handle itself stays live.
func (s *Shared[T]) Downgrade() *Weak[T] {
	b := s.live()
	b.weak++

	return &Weak[T]{b: b}
}

// TryUnwrap attempts to take the payload out of the block. It succeeds only
// when this is the sole handle: strong count 1 and weak count 0. On success
// the handle is consumed, the block is freed, and the payload is returned
// without running the finalizer (ownership passes to the caller). Otherwise
// the handle is left untouched and ok is false; no data is lost.
func (s *Shared[T]) TryUnwrap() (value T, ok bool) {
	b := s.live()
	if b.strong != 1 || b.weak != 0 {
		return value, false
	}

	s.dropped = true
	s.b = nil

	value = b.value
	var zero T
	b.value = zero
	b.dead = true
	b.strong = 0
	b.mem.release()

	return value, true
}

// MakeMut arranges exclusive access to the payload and returns a pointer for
// direct mutation (copy-on-write).
//
// If other owning handles exist, the payload is duplicated with clone into a
// fresh block and this handle is rebound to it; the remaining handles keep the
// old payload. If this is the only owning handle but weak references exist,
// the payload is moved to a fresh block without running the finalizer and the
// weak references are disassociated; they can never observe it again. If the
// handle is already fully exclusive, the existing payload is returned as is.
//
// clone is only invoked in the first case; it must not be nil while ownership
// is shared.
func (s *Shared[T]) MakeMut(clone func(T) T) *T {
	b := s.live()

	switch {
	case b.strong > 1:
		if clone == nil {
			panic("rc: MakeMut needs a clone func while ownership is shared")
		}

		fresh := rebind(b, clone(b.value))
		b.strong--
		s.b = fresh

		return &fresh.value

	case b.weak > 0:
		value := b.value
		var zero T
		b.value = zero
		b.dead = true
		b.strong = 0

		fresh := rebind(b, value)
		b.finalize = nil
		s.b = fresh

		return &fresh.value

	default:
		return &b.value
	}
}

// rebind builds a fresh single-owner block carrying old's finalizer and a new
// reservation in old's allocator.
func rebind[T any](old *block[T], value T) *block[T] {
	fresh := &block[T]{
		strong:   1,
		value:    value,
		finalize: old.finalize,
	}

	if old.mem.allocator != nil {
		fresh.mem = reservation{
			allocator: old.mem.allocator,
			ptr:       old.mem.allocator.Alloc(old.mem.size, old.mem.align),
			size:      old.mem.size,
			align:     old.mem.align,
		}
	}

	return fresh
}

// Same reports whether both handles point at the same allocation block.
// Payload values are not compared.
func (s *Shared[T]) Same(other *Shared[T]) bool {
	return s.live() == other.live()
}

// PointerEqual reports whether a and b share one allocation block.
func PointerEqual[T any](a, b *Shared[T]) bool {
	return a.Same(b)
}
