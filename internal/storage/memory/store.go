package memory

import (
	"slices"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

// DefaultMaxEntries is the default entry budget shared by all namespaces.
const DefaultMaxEntries = 128

// Store is an insertion-ordered table of entries with a fixed capacity.
type Store struct {
	entries    []domain.Entry
	index      *positionIndex
	maxEntries int
}

// Option configures the Store.
type Option func(*Store)

// WithMaxEntries sets the entry budget. Non-positive values are ignored.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// New creates a new entry store.
func New(opts ...Option) *Store {
	s := &Store{maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(s)
	}

	s.entries = make([]domain.Entry, 0, s.maxEntries)
	s.index = newPositionIndex(s.maxEntries)
	return s
}

// Get returns a copy of the entry stored under (ns, key).
func (s *Store) Get(ns uint16, key string) (domain.Entry, bool) {
	p, ok := s.index.lookup(ns, key)
	if !ok {
		return domain.Entry{}, false
	}
	return s.entries[p].Clone(), true
}

// Has reports whether (ns, key) is present.
func (s *Store) Has(ns uint16, key string) bool {
	_, ok := s.index.lookup(ns, key)
	return ok
}

// Put inserts or overwrites an entry.
//
// On overwrite the entry keeps its position and the previous entry is
// returned with existed set. Inserting beyond capacity fails with
// domain.ErrCapacityExceeded and leaves the store unchanged.
func (s *Store) Put(e domain.Entry) (old domain.Entry, existed bool, err error) {
	if e.Value == nil || !e.Value.Type().Valid() {
		return domain.Entry{}, false, domain.ErrInvalidParameter.WithDetails("entry has no value")
	}

	e = e.Clone()
	if p, ok := s.index.lookup(e.Namespace, e.Key); ok {
		old = s.entries[p]
		s.entries[p] = e
		return old, true, nil
	}

	if len(s.entries) >= s.maxEntries {
		return domain.Entry{}, false, domain.ErrCapacityExceeded.WithDetails("entry store is full")
	}

	s.index.add(e.Namespace, e.Key, len(s.entries))
	s.entries = append(s.entries, e)
	return domain.Entry{}, false, nil
}

// Delete removes (ns, key) and returns the removed entry.
func (s *Store) Delete(ns uint16, key string) (domain.Entry, bool) {
	p, ok := s.index.lookup(ns, key)
	if !ok {
		return domain.Entry{}, false
	}

	removed := s.entries[p]
	s.index.remove(ns, key)
	s.entries = slices.Delete(s.entries, p, p+1)
	for i := p; i < len(s.entries); i++ {
		s.index.move(s.entries[i].Namespace, s.entries[i].Key, i)
	}
	return removed, true
}

// ClearNamespace removes every entry of ns and returns how many were removed.
func (s *Store) ClearNamespace(ns uint16) int {
	removed := s.index.count(ns)
	if removed == 0 {
		return 0
	}

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Namespace == ns {
			s.index.remove(e.Namespace, e.Key)
			continue
		}
		s.index.move(e.Namespace, e.Key, len(kept))
		kept = append(kept, e)
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	return removed
}

// Clear removes every entry.
func (s *Store) Clear() {
	clear(s.entries)
	s.entries = s.entries[:0]
	s.index.reset()
}

// Len returns the number of entries across all namespaces.
func (s *Store) Len() int {
	return len(s.entries)
}

// CountNamespace returns the number of entries in ns.
func (s *Store) CountNamespace(ns uint16) int {
	return s.index.count(ns)
}

// Cap returns the entry budget.
func (s *Store) Cap() int {
	return s.maxEntries
}

// Free returns how many more entries fit.
func (s *Store) Free() int {
	return s.maxEntries - len(s.entries)
}

// Snapshot returns deep copies of the entries of ns in insertion order.
func (s *Store) Snapshot(ns uint16) []domain.Entry {
	out := make([]domain.Entry, 0, s.index.count(ns))
	for _, e := range s.entries {
		if e.Namespace == ns {
			out = append(out, e.Clone())
		}
	}
	return out
}

// SnapshotAll returns deep copies of every entry in insertion order.
func (s *Store) SnapshotAll() []domain.Entry {
	out := make([]domain.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Namespaces returns the ids of namespaces holding at least one entry, sorted.
func (s *Store) Namespaces() []uint16 {
	ids := s.index.namespaces()
	slices.Sort(ids)
	return ids
}
