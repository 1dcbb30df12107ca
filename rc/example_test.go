package rc_test

import (
	"fmt"

	"github.com/orizon-lang/rcell/borrow"
	"github.com/orizon-lang/rcell/rc"
)

func ExampleShared_Clone() {
	s := rc.New("config")
	c := s.Clone() // O(1): bumps the strong count, no payload copy

	fmt.Println(s.StrongCount(), rc.PointerEqual(s, c))

	c.Drop()
	s.Drop()
	// Output: 2 true
}

func ExampleWeak_Upgrade() {
	s := rc.New(99)
	w := s.Downgrade()

	if u, ok := w.Upgrade(); ok {
		fmt.Println("alive:", u.Get())
		u.Drop()
	}

	s.Drop()

	if _, ok := w.Upgrade(); !ok {
		fmt.Println("gone")
	}

	w.Drop()
	// Output:
	// alive: 99
	// gone
}

// A borrow-tracked cell nested in a shared payload: every owner can reach the
// value, mutation is still funneled through one writer at a time.
func ExampleShared_sharedMutableState() {
	counter := rc.New(borrow.NewCell(0))
	other := counter.Clone()

	w := other.Get().BorrowMut()
	w.Set(w.Get() + 1)
	w.Release()

	g := counter.Get().Borrow()
	fmt.Println(g.Get())
	g.Release()

	other.Drop()
	counter.Drop()
	// Output: 1
}
