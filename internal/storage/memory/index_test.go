package memory

import (
	"slices"
	"testing"
)

func TestPositionIndex(t *testing.T) {
	idx := newPositionIndex(4)
	idx.add(0, "a", 0)
	idx.add(2, "a", 1)
	idx.add(2, "b", 2)

	if p, ok := idx.lookup(2, "a"); !ok || p != 1 {
		t.Fatalf("lookup(2, a) = %d, %v", p, ok)
	}
	if _, ok := idx.lookup(1, "a"); ok {
		t.Fatal("lookup(1, a) found an entry")
	}
	if idx.count(2) != 2 {
		t.Fatalf("count(2) = %d", idx.count(2))
	}

	idx.move(2, "b", 1)
	idx.remove(2, "a")
	if p, _ := idx.lookup(2, "b"); p != 1 {
		t.Fatalf("moved position = %d", p)
	}

	ids := idx.namespaces()
	slices.Sort(ids)
	if !slices.Equal(ids, []uint16{0, 2}) {
		t.Fatalf("namespaces = %v", ids)
	}

	idx.remove(2, "b")
	if idx.count(2) != 0 || slices.Contains(idx.namespaces(), 2) {
		t.Fatal("empty namespace still tracked")
	}

	idx.reset()
	if idx.count(0) != 0 {
		t.Fatal("reset kept counts")
	}
}
