package memory

// slotKey addresses one entry: keys are unique within a namespace only.
type slotKey struct {
	ns  uint16
	key string
}

// positionIndex maps entries to their position in the ordered table and
// tracks how many entries each namespace holds.
type positionIndex struct {
	pos    map[slotKey]int
	counts map[uint16]int
}

func newPositionIndex(capacity int) *positionIndex {
	return &positionIndex{
		pos:    make(map[slotKey]int, capacity),
		counts: make(map[uint16]int),
	}
}

func (i *positionIndex) lookup(ns uint16, key string) (int, bool) {
	p, ok := i.pos[slotKey{ns, key}]
	return p, ok
}

func (i *positionIndex) add(ns uint16, key string, p int) {
	i.pos[slotKey{ns, key}] = p
	i.counts[ns]++
}

func (i *positionIndex) remove(ns uint16, key string) {
	delete(i.pos, slotKey{ns, key})
	if i.counts[ns] <= 1 {
		delete(i.counts, ns)
		return
	}
	i.counts[ns]--
}

// move records a new position for an entry after compaction.
func (i *positionIndex) move(ns uint16, key string, p int) {
	i.pos[slotKey{ns, key}] = p
}

func (i *positionIndex) count(ns uint16) int {
	return i.counts[ns]
}

// namespaces returns the ids of namespaces holding at least one entry.
func (i *positionIndex) namespaces() []uint16 {
	ids := make([]uint16, 0, len(i.counts))
	for ns := range i.counts {
		ids = append(ids, ns)
	}
	return ids
}

func (i *positionIndex) reset() {
	clear(i.pos)
	clear(i.counts)
}
