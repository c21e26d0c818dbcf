// Package slotmap provides a fixed-capacity arena with generation-checked handles.
//
// Handles are (index, generation) pairs. Removing a value bumps the slot's
// generation, so a handle kept past its removal is detected as stale instead
// of silently aliasing whatever value later reuses the slot.
//
// Usage:
//
//	m := slotmap.New[string](8)
//	h, err := m.Insert("payload")
//	v, ok := m.Get(h)
//	m.Remove(h)
//
// Thread Safety:
//
// A Map is not safe for concurrent use; owners guard it with their own lock.
package slotmap
