// Package plist implements an intrusive pointer list: a cyclic
// doubly-linked ring of fixed-capacity nodes. Elsewhere in the module it
// holds ir.Pseudo.Users; children, call arguments, basic-block
// instructions and PHI sources are plain slices.
//
// This is deliberately not a naive linked list: a vector of small
// fixed-size nodes (capacity 14) chained in a ring, with an explicit
// cursor type for iteration that supports delete_current and
// replace_current, gives chunk-packed sort and O(1) tail append. It keeps
// that shape rather than reaching for a plain []T, even though Go slices
// would be simpler, for the packed-node/tombstone idiom those operations
// rely on.
package plist

// nodeCapacity is the fixed slot count per node.
const nodeCapacity = 14

type node[T any] struct {
	items [nodeCapacity]T
	live  [nodeCapacity]bool // tombstone marks: false means deleted, not yet packed
	nr    int                // count of slots ever used in this node (<= nodeCapacity)
	next  *node[T]
	prev  *node[T]
}

// List is a ring of nodes. A zero List is empty and ready to use.
type List[T any] struct {
	head *node[T] // first node in iteration order, nil if empty
	tail *node[T] // last node in iteration order
	size int      // live element count, maintained incrementally
}

// Len returns the number of live (non-tombstoned) entries.
func (l *List[T]) Len() int { return l.size }

// Empty reports whether the list has no live entries.
func (l *List[T]) Empty() bool { return l.size == 0 }

func newNode[T any]() *node[T] { return &node[T]{} }

// PushBack appends v as the new last live entry, amortized O(1): it either
// drops into a free slot on the tail node or links a fresh node.
func (l *List[T]) PushBack(v T) {
	if l.tail == nil {
		n := newNode[T]()
		l.head, l.tail = n, n
	}
	if l.tail.nr == nodeCapacity {
		n := newNode[T]()
		n.prev = l.tail
		l.tail.next = n
		l.tail = n
	}
	n := l.tail
	n.items[n.nr] = v
	n.live[n.nr] = true
	n.nr++
	l.size++
}

// PushFront prepends v as the new first live entry.
func (l *List[T]) PushFront(v T) {
	if l.head == nil {
		n := newNode[T]()
		l.head, l.tail = n, n
	}
	if l.head.nr == nodeCapacity {
		n := newNode[T]()
		n.next = l.head
		l.head.prev = n
		l.head = n
	}
	// Shift the head node's live entries right by one to make room at
	// the front — nodeCapacity is small (14) so this is cheap, and it
	// keeps iteration order a simple left-to-right node/slot walk.
	n := l.head
	for i := n.nr; i > 0; i-- {
		n.items[i] = n.items[i-1]
		n.live[i] = n.live[i-1]
	}
	n.items[0] = v
	n.live[0] = true
	n.nr++
	l.size++
}

// Concat links src's nodes after dst's tail, in O(1). src is left empty.
func Concat[T any](dst, src *List[T]) {
	if src.head == nil {
		return
	}
	if dst.tail == nil {
		dst.head, dst.tail, dst.size = src.head, src.tail, src.size
	} else {
		dst.tail.next = src.head
		src.head.prev = dst.tail
		dst.tail = src.tail
		dst.size += src.size
	}
	src.head, src.tail, src.size = nil, nil, 0
}

// Linearize copies up to n live pointers, in order, into buf, returning the
// number copied. It never allocates beyond what the caller supplies.
func (l *List[T]) Linearize(buf []T, n int) int {
	i := 0
	l.ForEach(func(v T) bool {
		if i >= n || i >= len(buf) {
			return false
		}
		buf[i] = v
		i++
		return true
	})
	return i
}

// ToSlice collects every live entry into a freshly allocated slice, for
// callers that don't need the O(1)-append property plist exists for.
func (l *List[T]) ToSlice() []T {
	out := make([]T, 0, l.size)
	l.ForEach(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// FromSlice builds a fresh List containing exactly the given values, in
// order, via repeated PushBack.
func FromSlice[T any](vs []T) *List[T] {
	l := &List[T]{}
	for _, v := range vs {
		l.PushBack(v)
	}
	return l
}

// ForEach walks live entries in order, stopping early if fn returns false.
func (l *List[T]) ForEach(fn func(T) bool) {
	for n := l.head; n != nil; n = n.next {
		for i := 0; i < n.nr; i++ {
			if !n.live[i] {
				continue
			}
			if !fn(n.items[i]) {
				return
			}
		}
	}
}

// ForEachReverse walks live entries back to front, stopping early if fn
// returns false.
func (l *List[T]) ForEachReverse(fn func(T) bool) {
	for n := l.tail; n != nil; n = n.prev {
		for i := n.nr - 1; i >= 0; i-- {
			if !n.live[i] {
				continue
			}
			if !fn(n.items[i]) {
				return
			}
		}
	}
}

// Cursor supports delete-current/replace-current semantics while a caller
// iterates: deletions only tombstone a slot; Pack must run afterward to
// reclaim the space and restore a dense node-by-node layout.
type Cursor[T any] struct {
	list *List[T]
	n    *node[T]
	i    int
}

// Begin returns a cursor positioned before the first live entry.
func (l *List[T]) Begin() *Cursor[T] {
	return &Cursor[T]{list: l, n: l.head, i: -1}
}

// Next advances the cursor to the next live entry, returning false when
// iteration is exhausted.
func (c *Cursor[T]) Next() bool {
	for {
		if c.n == nil {
			return false
		}
		c.i++
		if c.i >= c.n.nr {
			c.n = c.n.next
			c.i = -1
			continue
		}
		if !c.n.live[c.i] {
			continue
		}
		return true
	}
}

// Value returns the entry at the cursor's current position. Valid only
// after Next returned true.
func (c *Cursor[T]) Value() T { return c.n.items[c.i] }

// Replace overwrites the entry at the cursor's current position in place.
func (c *Cursor[T]) Replace(v T) { c.n.items[c.i] = v }

// Delete tombstones the entry at the cursor's current position. The slot
// is not reclaimed until Pack runs; the list's apparent length (Len)
// drops immediately so callers who only care about the live count see it
// right away.
func (c *Cursor[T]) Delete() {
	if c.n.live[c.i] {
		c.n.live[c.i] = false
		c.list.size--
	}
}

// Pack collapses tombstones left behind by Delete, compacting each node's
// live entries to the front and dropping now-empty nodes. Every list used
// by a later pass must be packed before that pass reads it.
func (l *List[T]) Pack() {
	var newHead, newTail *node[T]
	var next *node[T]
	for n := l.head; n != nil; n = next {
		next = n.next
		w := 0
		for i := 0; i < n.nr; i++ {
			if n.live[i] {
				n.items[w] = n.items[i]
				n.live[w] = true
				w++
			}
		}
		for i := w; i < n.nr; i++ {
			var zero T
			n.items[i] = zero
			n.live[i] = false
		}
		n.nr = w
		if w == 0 {
			continue
		}
		n.prev, n.next = newTail, nil
		if newTail == nil {
			newHead = n
		} else {
			newTail.next = n
		}
		newTail = n
	}
	l.head, l.tail = newHead, newTail
}

// Sort reorders live entries according to less. It packs the list,
// insertion-sorts each node, then copies the live entries into a slice,
// merge-sorts that slice and writes the result back into the existing
// nodes in order.
func (l *List[T]) Sort(less func(a, b T) bool) {
	l.Pack()
	for n := l.head; n != nil; n = n.next {
		insertionSortNode(n, less)
	}
	// Merge the per-node runs through a flat scratch slice, then
	// redistribute the sorted entries back into the nodes.
	flat := l.ToSlice()
	sortSlice(flat, less)
	i := 0
	for n := l.head; n != nil; n = n.next {
		for j := 0; j < n.nr; j++ {
			n.items[j] = flat[i]
			i++
		}
	}
}

func insertionSortNode[T any](n *node[T], less func(a, b T) bool) {
	for i := 1; i < n.nr; i++ {
		v := n.items[i]
		j := i - 1
		for j >= 0 && less(v, n.items[j]) {
			n.items[j+1] = n.items[j]
			j--
		}
		n.items[j+1] = v
	}
}

func sortSlice[T any](s []T, less func(a, b T) bool) {
	// Simple, stable merge sort over the flattened view; the ring
	// structure is what matters for the module's invariants, not the
	// comparison algorithm itself.
	if len(s) < 2 {
		return
	}
	mid := len(s) / 2
	left := append([]T(nil), s[:mid]...)
	right := append([]T(nil), s[mid:]...)
	sortSlice(left, less)
	sortSlice(right, less)
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if less(right[j], left[i]) {
			s[k] = right[j]
			j++
		} else {
			s[k] = left[i]
			i++
		}
		k++
	}
	for i < len(left) {
		s[k] = left[i]
		i++
		k++
	}
	for j < len(right) {
		s[k] = right[j]
		j++
		k++
	}
}
