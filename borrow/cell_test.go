package borrow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBorrows(t *testing.T) {
	c := NewCell(10)

	g1 := c.Borrow()
	g2 := c.Borrow()

	assert.Equal(t, 10, g1.Get())
	assert.Equal(t, 10, g2.Get())

	// Releases may happen in either order.
	g1.Release()
	g2.Release()

	// The cell is unborrowed again: a write borrow succeeds.
	w := c.BorrowMut()
	w.Set(11)
	w.Release()

	g := c.Borrow()
	assert.Equal(t, 11, g.Get())
	g.Release()
}

func TestWriteBorrow(t *testing.T) {
	c := NewCell("old")

	w := c.BorrowMut()
	assert.Equal(t, "old", w.Get())

	w.Set("new")
	assert.Equal(t, "new", w.Get())

	*w.Ptr() += "er"
	w.Release()

	g := c.Borrow()
	assert.Equal(t, "newer", g.Get())
	g.Release()
}

func TestConflicts(t *testing.T) {
	t.Run("WriteWhileReading", func(t *testing.T) {
		c := NewCell(1)
		g := c.Borrow()
		defer g.Release()

		assert.Panics(t, func() { c.BorrowMut() })

		_, err := c.TryBorrowMut()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConflict))

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "write", conflict.Requested)
		assert.Equal(t, 1, conflict.State)
	})

	t.Run("ReadWhileWriting", func(t *testing.T) {
		c := NewCell(1)
		w := c.BorrowMut()
		defer w.Release()

		assert.Panics(t, func() { c.Borrow() })

		_, err := c.TryBorrow()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConflict))
	})

	t.Run("WriteWhileWriting", func(t *testing.T) {
		c := NewCell(1)
		w := c.BorrowMut()
		defer w.Release()

		_, err := c.TryBorrowMut()
		assert.True(t, errors.Is(err, ErrConflict))
	})

	t.Run("WriteAfterAllReadsReleased", func(t *testing.T) {
		c := NewCell(1)

		g1 := c.Borrow()
		g2 := c.Borrow()
		g2.Release()

		_, err := c.TryBorrowMut()
		require.Error(t, err, "one read borrow is still outstanding")

		g1.Release()

		w, err := c.TryBorrowMut()
		require.NoError(t, err)
		w.Release()
	})
}

func TestGuardMisuse(t *testing.T) {
	c := NewCell(1)

	g := c.Borrow()
	g.Release()
	assert.Panics(t, func() { g.Release() }, "double release of a read guard")
	assert.Panics(t, func() { g.Get() }, "use of a released read guard")

	w := c.BorrowMut()
	w.Release()
	assert.Panics(t, func() { w.Release() }, "double release of a write guard")
	assert.Panics(t, func() { w.Ptr() }, "use of a released write guard")
}

func TestReplaceTakeSwap(t *testing.T) {
	t.Run("Replace", func(t *testing.T) {
		c := NewCell("a")

		old := c.Replace("b")
		assert.Equal(t, "a", old)

		g := c.Borrow()
		assert.Equal(t, "b", g.Get())
		g.Release()
	})

	t.Run("ReplaceWhileBorrowed", func(t *testing.T) {
		c := NewCell("a")
		g := c.Borrow()
		defer g.Release()

		assert.Panics(t, func() { c.Replace("b") })
	})

	t.Run("Take", func(t *testing.T) {
		c := NewCell(42)

		assert.Equal(t, 42, c.Take())

		g := c.Borrow()
		assert.Equal(t, 0, g.Get(), "Take leaves the zero value")
		g.Release()
	})

	t.Run("Swap", func(t *testing.T) {
		a := NewCell(1)
		b := NewCell(2)

		a.Swap(b)

		ga := a.Borrow()
		gb := b.Borrow()
		assert.Equal(t, 2, ga.Get())
		assert.Equal(t, 1, gb.Get())
		ga.Release()
		gb.Release()
	})

	t.Run("SwapWithSelf", func(t *testing.T) {
		c := NewCell(1)

		assert.Panics(t, func() { c.Swap(c) }, "self-swap needs two write borrows at once")
	})
}

// TestStateMachine walks the full transition diagram explicitly.
func TestStateMachine(t *testing.T) {
	c := NewCell(0)
	require.Equal(t, 0, c.state)

	g1 := c.Borrow()
	require.Equal(t, 1, c.state)

	g2 := c.Borrow()
	require.Equal(t, 2, c.state)

	g2.Release()
	require.Equal(t, 1, c.state)

	g1.Release()
	require.Equal(t, 0, c.state)

	w := c.BorrowMut()
	require.Equal(t, writing, c.state)

	w.Release()
	require.Equal(t, 0, c.state)
}
