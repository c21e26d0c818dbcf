package slotmap

import "errors"

// ErrFull is returned by Insert when every slot is occupied.
var ErrFull = errors.New("slotmap: capacity exhausted")

// Handle refers to a value stored in a Map. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

type slot[V any] struct {
	gen      uint32 // odd while occupied
	value    V
	occupied bool
}

// Map is a fixed-capacity arena of V values addressed by Handle.
type Map[V any] struct {
	slots []slot[V]
	free  []uint32
	count int
}

// New creates a map holding at most capacity values.
func New[V any](capacity int) *Map[V] {
	if capacity < 0 {
		capacity = 0
	}
	m := &Map[V]{
		slots: make([]slot[V], capacity),
		free:  make([]uint32, 0, capacity),
	}
	// Hand out low indexes first.
	for i := capacity - 1; i >= 0; i-- {
		m.free = append(m.free, uint32(i))
	}
	return m
}

// Insert stores v and returns its handle.
func (m *Map[V]) Insert(v V) (Handle, error) {
	if len(m.free) == 0 {
		return Handle{}, ErrFull
	}
	idx := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]

	s := &m.slots[idx]
	s.gen++
	s.value = v
	s.occupied = true
	m.count++

	return Handle{index: idx, gen: s.gen}, nil
}

// Get returns the value for h if h is still live.
func (m *Map[V]) Get(h Handle) (V, bool) {
	s, ok := m.lookup(h)
	if !ok {
		var zero V
		return zero, false
	}
	return s.value, true
}

// Remove deletes the value for h. It returns false for stale or zero handles.
func (m *Map[V]) Remove(h Handle) (V, bool) {
	s, ok := m.lookup(h)
	if !ok {
		var zero V
		return zero, false
	}
	v := s.value
	var zero V
	s.value = zero
	s.occupied = false
	s.gen++
	m.free = append(m.free, h.index)
	m.count--
	return v, true
}

// Len returns the number of live values.
func (m *Map[V]) Len() int {
	return m.count
}

// Cap returns the fixed capacity.
func (m *Map[V]) Cap() int {
	return len(m.slots)
}

// Range calls fn for each live value in slot order until fn returns false.
func (m *Map[V]) Range(fn func(h Handle, v V) bool) {
	for i := range m.slots {
		s := &m.slots[i]
		if !s.occupied {
			continue
		}
		if !fn(Handle{index: uint32(i), gen: s.gen}, s.value) {
			return
		}
	}
}

// Clear removes every value. Outstanding handles become stale.
func (m *Map[V]) Clear() {
	m.free = m.free[:0]
	for i := len(m.slots) - 1; i >= 0; i-- {
		s := &m.slots[i]
		if s.occupied {
			var zero V
			s.value = zero
			s.occupied = false
			s.gen++
		}
		m.free = append(m.free, uint32(i))
	}
	m.count = 0
}

func (m *Map[V]) lookup(h Handle) (*slot[V], bool) {
	if h.IsZero() || int(h.index) >= len(m.slots) {
		return nil, false
	}
	s := &m.slots[h.index]
	if !s.occupied || s.gen != h.gen {
		return nil, false
	}
	return s, true
}
