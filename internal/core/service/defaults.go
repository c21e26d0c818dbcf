package service

import (
	"fmt"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

// defaultRegistry holds fallback values in registration order. It is
// independent of the entry store and only consulted by resets.
type defaultRegistry struct {
	max    int
	order  []string
	values map[string]domain.Value
}

func newDefaultRegistry(max int) *defaultRegistry {
	return &defaultRegistry{
		max:    max,
		values: make(map[string]domain.Value, max),
	}
}

func (r *defaultRegistry) set(key string, v domain.Value) error {
	if _, ok := r.values[key]; !ok {
		if len(r.order) >= r.max {
			return domain.ErrCapacityExceeded.WithDetails(fmt.Sprintf("default registry limit %d reached", r.max))
		}
		r.order = append(r.order, key)
	}
	r.values[key] = domain.Clone(v)
	return nil
}

func (r *defaultRegistry) get(key string) (domain.Value, bool) {
	v, ok := r.values[key]
	return domain.Clone(v), ok
}

func (r *defaultRegistry) all() []domain.Default {
	out := make([]domain.Default, len(r.order))
	for i, k := range r.order {
		out[i] = domain.Default{Key: k, Value: domain.Clone(r.values[k])}
	}
	return out
}

func (r *defaultRegistry) len() int {
	return len(r.order)
}

func (r *defaultRegistry) clear() {
	r.order = r.order[:0]
	clear(r.values)
}

// ============================================================================
// Registration
// ============================================================================

// SetDefaultI32 registers an i32 default for key, replacing any
// previous default. The live entry is untouched until a reset.
func (m *Manager) SetDefaultI32(key string, v int32) error {
	return m.setDefault("set_default_i32", key, domain.I32(v))
}

// SetDefaultU32 registers a u32 default for key.
func (m *Manager) SetDefaultU32(key string, v uint32) error {
	return m.setDefault("set_default_u32", key, domain.U32(v))
}

// SetDefaultI64 registers an i64 default for key.
func (m *Manager) SetDefaultI64(key string, v int64) error {
	return m.setDefault("set_default_i64", key, domain.I64(v))
}

// SetDefaultFloat registers a float default for key.
func (m *Manager) SetDefaultFloat(key string, v float32) error {
	return m.setDefault("set_default_float", key, domain.Float(v))
}

// SetDefaultBool registers a bool default for key.
func (m *Manager) SetDefaultBool(key string, v bool) error {
	return m.setDefault("set_default_bool", key, domain.Bool(v))
}

// SetDefaultStr registers a string default for key.
func (m *Manager) SetDefaultStr(key, v string) error {
	return m.setDefault("set_default_str", key, domain.Str(v))
}

// SetDefaultBlob registers a blob default for key.
func (m *Manager) SetDefaultBlob(key string, v []byte) error {
	return m.setDefault("set_default_blob", key, blobOf(v))
}

func (m *Manager) setDefault(op, key string, v domain.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}
	if err := m.validateKey(key); err != nil {
		return m.record(op, err)
	}
	if err := m.validateValue(v); err != nil {
		return m.record(op, err)
	}
	return m.record(op, m.defaults.set(key, v))
}

// RegisterDefaults registers every default in defs. The whole batch is
// validated first; on error nothing is registered. Later duplicates win.
func (m *Manager) RegisterDefaults(defs []domain.Default) error {
	const op = "register_defaults"
	if len(defs) == 0 {
		return m.record(op, domain.ErrInvalidParameter.WithDetails("no defaults given"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}

	fresh := make(map[string]struct{})
	for i, d := range defs {
		if err := m.validateKey(d.Key); err != nil {
			return m.record(op, err)
		}
		if err := m.validateValue(d.Value); err != nil {
			return m.record(op, domain.ErrInvalidParameter.WithDetails(fmt.Sprintf("default %d (%q): %v", i, d.Key, err)))
		}
		if _, ok := m.defaults.values[d.Key]; !ok {
			fresh[d.Key] = struct{}{}
		}
	}
	if m.defaults.len()+len(fresh) > m.defaults.max {
		return m.record(op, domain.ErrCapacityExceeded.WithDetails(
			fmt.Sprintf("registering %d defaults exceeds limit %d", len(fresh), m.defaults.max)))
	}

	for _, d := range defs {
		// Cannot fail: capacity was checked above.
		_ = m.defaults.set(d.Key, d.Value)
	}
	return m.record(op, nil)
}

// ============================================================================
// Reset
// ============================================================================

// ResetToDefault copies the registered default for key into the default
// namespace, creating the entry when absent. Callbacks are not invoked.
func (m *Manager) ResetToDefault(key string) error {
	const op = "reset_to_default"
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}
	if err := m.validateKey(key); err != nil {
		return m.record(op, err)
	}
	v, ok := m.defaults.get(key)
	if !ok {
		return m.record(op, domain.ErrNotFound.WithDetails(fmt.Sprintf("no default registered for %q", key)))
	}
	_, _, err := m.store.Put(domain.Entry{Key: key, Value: v, Namespace: domain.DefaultNamespace})
	return m.record(op, err)
}

// ResetAllToDefaults applies every registered default in registration
// order. If the new entries would not fit nothing is changed.
func (m *Manager) ResetAllToDefaults() error {
	const op = "reset_all_to_defaults"
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}

	defs := m.defaults.all()
	added := 0
	for _, d := range defs {
		if !m.store.Has(domain.DefaultNamespace, d.Key) {
			added++
		}
	}
	if added > m.store.Free() {
		return m.record(op, domain.ErrCapacityExceeded.WithDetails(
			fmt.Sprintf("%d defaults need new entries, %d free", added, m.store.Free())))
	}

	for _, d := range defs {
		if _, _, err := m.store.Put(domain.Entry{Key: d.Key, Value: d.Value, Namespace: domain.DefaultNamespace}); err != nil {
			return m.record(op, err)
		}
	}
	return m.record(op, nil)
}
