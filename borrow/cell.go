// Package borrow provides a run-time enforced "many readers or one writer"
// container. A Cell wraps a value together with a signed borrow state; access
// goes through scoped guards, and incompatible access is a borrow conflict.
//
// Conflicts signal a logic error in the caller, so the plain Borrow and
// BorrowMut panic immediately at the point of conflict. The Try variants
// return a ConflictError instead, for callers that can recover. Silently
// granting a weaker access than requested is never an option.
//
// Like the rc package, a Cell is single-threaded: its state transitions are
// plain integer updates with no locking.
package borrow

// Borrow state encoding: 0 is unborrowed, a positive n is n outstanding read
// borrows, writing means one outstanding write borrow. No other values occur.
const writing = -1

// Cell wraps a value with run-time borrow tracking.
type Cell[T any] struct {
	state int
	value T
}

// NewCell returns an unborrowed cell holding value.
func NewCell[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// Borrow takes a read borrow. Any number of read borrows may be outstanding
// at once; panics if a write borrow is active.
func (c *Cell[T]) Borrow() *ReadGuard[T] {
	g, err := c.TryBorrow()
	if err != nil {
		panic(err.Error())
	}

	return g
}

// TryBorrow is the fallible form of Borrow. On conflict it returns a
// ConflictError and leaves the cell untouched.
func (c *Cell[T]) TryBorrow() (*ReadGuard[T], error) {
	if c.state == writing {
		return nil, &ConflictError{Requested: "read", State: c.state}
	}

	c.state++

	return &ReadGuard[T]{cell: c}, nil
}

// BorrowMut takes the write borrow. Panics if any borrow, read or write, is
// outstanding.
func (c *Cell[T]) BorrowMut() *WriteGuard[T] {
	g, err := c.TryBorrowMut()
	if err != nil {
		panic(err.Error())
	}

	return g
}

// TryBorrowMut is the fallible form of BorrowMut.
func (c *Cell[T]) TryBorrowMut() (*WriteGuard[T], error) {
	if c.state != 0 {
		return nil, &ConflictError{Requested: "write", State: c.state}
	}

	c.state = writing

	return &WriteGuard[T]{cell: c}, nil
}

// Replace stores value in the cell and returns the previous value. Counts as
// a momentary write borrow, so it conflicts with any outstanding guard.
func (c *Cell[T]) Replace(value T) T {
	g := c.BorrowMut()
	defer g.Release()

	old := c.value
	c.value = value

	return old
}

// Take moves the value out of the cell, leaving the zero value behind.
func (c *Cell[T]) Take() T {
	var zero T

	return c.Replace(zero)
}

// Swap exchanges the values of two cells. Both are momentarily write
// borrowed; swapping a cell with itself is therefore a borrow conflict.
func (c *Cell[T]) Swap(other *Cell[T]) {
	g1 := c.BorrowMut()
	defer g1.Release()
	g2 := other.BorrowMut()
	defer g2.Release()

	c.value, other.value = other.value, c.value
}

// ReadGuard is a scoped token for one read borrow. Dropping it is explicit:
// Release must be called exactly once, typically via defer.
type ReadGuard[T any] struct {
	cell     *Cell[T]
	released bool
}

// Get returns the borrowed value.
func (g *ReadGuard[T]) Get() T {
	if g.released {
		panic("borrow: use of released read guard")
	}

	return g.cell.value
}

// Release ends this read borrow, decrementing the cell's state by one. A
// second Release panics.
func (g *ReadGuard[T]) Release() {
	if g.released {
		panic("borrow: read guard released twice")
	}

	g.released = true
	g.cell.state--
}

// WriteGuard is a scoped token for the write borrow. While it is live the
// holder has exclusive access to the value.
type WriteGuard[T any] struct {
	cell     *Cell[T]
	released bool
}

// Get returns the borrowed value.
func (g *WriteGuard[T]) Get() T {
	return *g.Ptr()
}

// Set stores a new value through the write borrow.
func (g *WriteGuard[T]) Set(value T) {
	*g.Ptr() = value
}

// Ptr returns a pointer to the value for in-place mutation. The pointer must
// not outlive the guard.
func (g *WriteGuard[T]) Ptr() *T {
	if g.released {
		panic("borrow: use of released write guard")
	}

	return &g.cell.value
}

// Release ends the write borrow, returning the cell to the unborrowed state.
// A second Release panics.
func (g *WriteGuard[T]) Release() {
	if g.released {
		panic("borrow: write guard released twice")
	}

	g.released = true
	g.cell.state = 0
}
