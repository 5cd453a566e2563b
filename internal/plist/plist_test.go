package plist

import "testing"

func TestPushBackOrder(t *testing.T) {
	var l List[int]
	for i := 0; i < 40; i++ {
		l.PushBack(i)
	}
	if l.Len() != 40 {
		t.Fatalf("expected 40 entries, got %d", l.Len())
	}
	got := l.ToSlice()
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
}

func TestPushFront(t *testing.T) {
	var l List[int]
	l.PushBack(2)
	l.PushBack(3)
	l.PushFront(1)
	l.PushFront(0)
	got := l.ToSlice()
	want := []int{0, 1, 2, 3}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDeleteCurrentAndPack(t *testing.T) {
	var l List[int]
	for i := 0; i < 30; i++ {
		l.PushBack(i)
	}
	c := l.Begin()
	for c.Next() {
		if c.Value()%2 == 0 {
			c.Delete()
		}
	}
	if l.Len() != 15 {
		t.Fatalf("expected 15 live entries after deleting evens, got %d", l.Len())
	}
	l.Pack()
	got := l.ToSlice()
	if len(got) != 15 {
		t.Fatalf("expected 15 entries post-pack, got %d", len(got))
	}
	for _, v := range got {
		if v%2 == 0 {
			t.Fatalf("found even value %d after deleting evens", v)
		}
	}
}

func TestReplaceCurrent(t *testing.T) {
	var l List[int]
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)
	c := l.Begin()
	for c.Next() {
		c.Replace(c.Value() * 10)
	}
	got := l.ToSlice()
	want := []int{10, 20, 30}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestConcat(t *testing.T) {
	a := FromSlice([]int{1, 2, 3})
	b := FromSlice([]int{4, 5, 6})
	Concat(a, b)
	got := a.ToSlice()
	want := []int{1, 2, 3, 4, 5, 6}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if !b.Empty() {
		t.Fatalf("expected src list to be emptied by concat")
	}
}

func TestLinearize(t *testing.T) {
	l := FromSlice([]int{1, 2, 3, 4, 5})
	buf := make([]int, 3)
	n := l.Linearize(buf, 3)
	if n != 3 {
		t.Fatalf("expected 3 copied, got %d", n)
	}
	want := []int{1, 2, 3}
	for i, v := range want {
		if buf[i] != v {
			t.Fatalf("got %v want %v", buf, want)
		}
	}
}

func TestSort(t *testing.T) {
	l := FromSlice([]int{5, 3, 1, 4, 1, 5, 9, 2, 6})
	l.Sort(func(a, b int) bool { return a < b })
	got := l.ToSlice()
	want := []int{1, 1, 2, 3, 4, 5, 5, 6, 9}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestForEachReverse(t *testing.T) {
	l := FromSlice([]int{1, 2, 3})
	var got []int
	l.ForEachReverse(func(v int) bool {
		got = append(got, v)
		return true
	})
	want := []int{3, 2, 1}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestSpansMultipleNodes(t *testing.T) {
	// nodeCapacity is 14; exercise a list spanning several nodes with
	// interleaved deletes to make sure cross-node iteration and packing
	// behave.
	var l List[int]
	for i := 0; i < 50; i++ {
		l.PushBack(i)
	}
	c := l.Begin()
	for c.Next() {
		if c.Value()%7 == 0 {
			c.Delete()
		}
	}
	l.Pack()
	l.ForEach(func(v int) bool {
		if v%7 == 0 {
			t.Fatalf("value %d should have been deleted", v)
		}
		return true
	})
}
