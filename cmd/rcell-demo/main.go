// Command rcell-demo walks through the rcell primitives: shared handles with
// deterministic reference counting, weak back-edges breaking a parent/child
// cycle, a borrow-tracked counter, and the allocator leak report.
package main

import (
	"fmt"

	"github.com/orizon-lang/rcell/alloc"
	"github.com/orizon-lang/rcell/borrow"
	"github.com/orizon-lang/rcell/rc"
)

// node is a tree node. Children own their parent's subtree entries strongly;
// the back-edge to the parent is weak, so the tree cannot keep itself alive.
type node struct {
	name     string
	parent   *rc.Weak[*node]
	children []*rc.Shared[*node]
	visits   *borrow.Cell[int]
}

func newNode(a alloc.Allocator, name string, parent *rc.Weak[*node]) *rc.Shared[*node] {
	n := &node{
		name:   name,
		parent: parent,
		visits: borrow.NewCell(0),
	}

	return rc.New(n,
		rc.WithAllocator[*node](a),
		rc.WithFinalizer[*node](func(n *node) {
			fmt.Printf("finalizing %q\n", n.name)
			n.parent.Drop()
			for _, c := range n.children {
				c.Drop()
			}
		}))
}

func main() {
	allocator := alloc.NewSystemAllocator()

	root := newNode(allocator, "root", rc.NewWeak[*node]())

	left := newNode(allocator, "left", root.Downgrade())
	right := newNode(allocator, "right", root.Downgrade())
	root.Get().children = append(root.Get().children, left, right)

	fmt.Printf("root: strong=%d weak=%d\n", root.StrongCount(), root.WeakCount())

	// A child reaches its parent by upgrading the weak back-edge.
	if parent, ok := left.Get().parent.Upgrade(); ok {
		fmt.Printf("left's parent is %q\n", parent.Get().name)
		parent.Drop()
	}

	// Shared mutable state through the borrow-tracked cell.
	for i := 0; i < 3; i++ {
		w := left.Get().visits.BorrowMut()
		w.Set(w.Get() + 1)
		w.Release()
	}

	g := left.Get().visits.Borrow()
	fmt.Printf("left visited %d times\n", g.Get())
	g.Release()

	// A write request while reading is a borrow conflict.
	g = left.Get().visits.Borrow()
	if _, err := left.Get().visits.TryBorrowMut(); err != nil {
		fmt.Println("conflict:", err)
	}
	g.Release()

	fmt.Printf("allocator: %d blocks live\n", allocator.Stats().ActiveAllocations)

	// Dropping the root cascades: finalizers drop the owned child handles.
	root.Drop()

	fmt.Printf("allocator: %d blocks live after drop\n", allocator.Stats().ActiveAllocations)
	fmt.Println(alloc.FormatLeaks(allocator.CheckLeaks()))
}
