package service

import (
	"fmt"
	"sort"

	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/pkg/slotmap"
)

// Change describes one successful Set. Old is nil when the key was created.
// Values are private copies; encrypted writes carry plaintext.
type Change struct {
	Namespace string // "" for the default namespace
	Key       string
	Type      domain.Type
	Old       domain.Value
	New       domain.Value
}

// CallbackFunc receives change notifications. It runs without the manager
// lock held and may call any Manager method.
type CallbackFunc func(Change)

// CallbackHandle identifies a registration. The zero handle is never valid.
type CallbackHandle struct {
	slot  slotmap.Handle
	epoch uint64
}

// IsZero reports whether h is the zero handle.
func (h CallbackHandle) IsZero() bool {
	return h.slot.IsZero()
}

type registration struct {
	key      string
	wildcard bool
	fn       CallbackFunc
	seq      uint64
}

type callbackRegistry struct {
	slots *slotmap.Map[*registration]
	seq   uint64
}

func newCallbackRegistry(max int) *callbackRegistry {
	return &callbackRegistry{slots: slotmap.New[*registration](max)}
}

func (r *callbackRegistry) add(reg *registration) (slotmap.Handle, error) {
	r.seq++
	reg.seq = r.seq
	h, err := r.slots.Insert(reg)
	if err != nil {
		return slotmap.Handle{}, domain.ErrCapacityExceeded.WithDetails(
			fmt.Sprintf("callback limit %d reached", r.slots.Cap()))
	}
	return h, nil
}

// match returns the callbacks for key: exact matches first, then
// wildcards, each group in registration order.
func (r *callbackRegistry) match(key string) []CallbackFunc {
	var exact, wild []*registration
	r.slots.Range(func(_ slotmap.Handle, reg *registration) bool {
		switch {
		case reg.wildcard:
			wild = append(wild, reg)
		case reg.key == key:
			exact = append(exact, reg)
		}
		return true
	})
	if len(exact) == 0 && len(wild) == 0 {
		return nil
	}

	bySeq := func(regs []*registration) {
		sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })
	}
	bySeq(exact)
	bySeq(wild)

	out := make([]CallbackFunc, 0, len(exact)+len(wild))
	for _, reg := range exact {
		out = append(out, reg.fn)
	}
	for _, reg := range wild {
		out = append(out, reg.fn)
	}
	return out
}

func (r *callbackRegistry) len() int {
	return r.slots.Len()
}

func (r *callbackRegistry) clear() {
	r.slots.Clear()
	r.seq = 0
}

// ============================================================================
// Registration API
// ============================================================================

// RegisterCallback subscribes fn to changes of key in any namespace.
func (m *Manager) RegisterCallback(key string, fn CallbackFunc) (CallbackHandle, error) {
	return m.register("register_callback", &registration{key: key, fn: fn})
}

// RegisterWildcardCallback subscribes fn to every change.
func (m *Manager) RegisterWildcardCallback(fn CallbackFunc) (CallbackHandle, error) {
	return m.register("register_wildcard_callback", &registration{wildcard: true, fn: fn})
}

func (m *Manager) register(op string, reg *registration) (CallbackHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return CallbackHandle{}, m.record(op, err)
	}
	if reg.fn == nil {
		return CallbackHandle{}, m.record(op, domain.ErrInvalidParameter.WithDetails("callback function is nil"))
	}
	if !reg.wildcard {
		if err := m.validateKey(reg.key); err != nil {
			return CallbackHandle{}, m.record(op, err)
		}
	}
	h, err := m.callbacks.add(reg)
	if err != nil {
		return CallbackHandle{}, m.record(op, err)
	}
	return CallbackHandle{slot: h, epoch: m.epoch}, m.record(op, nil)
}

// UnregisterCallback removes the registration identified by h.
// A zero, stale or already removed handle fails with invalid-parameter.
func (m *Manager) UnregisterCallback(h CallbackHandle) error {
	const op = "unregister_callback"
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}
	if h.IsZero() || h.epoch != m.epoch {
		return m.record(op, domain.ErrInvalidParameter.WithDetails("invalid callback handle"))
	}
	if _, ok := m.callbacks.slots.Remove(h.slot); !ok {
		return m.record(op, domain.ErrInvalidParameter.WithDetails("callback handle already unregistered"))
	}
	return m.record(op, nil)
}

// ============================================================================
// Dispatch
// ============================================================================

// dispatch invokes every target with its own copy of c. Runs without m.mu.
// A panicking callback is logged and the remaining callbacks still run.
func (m *Manager) dispatch(targets []CallbackFunc, c Change) {
	for _, fn := range targets {
		m.invoke(fn, Change{
			Namespace: c.Namespace,
			Key:       c.Key,
			Type:      c.Type,
			Old:       domain.Clone(c.Old),
			New:       domain.Clone(c.New),
		})
	}
}

func (m *Manager) invoke(fn CallbackFunc, c Change) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.CallbackPanicked()
			m.logger.Error("config callback panicked",
				"key", c.Key,
				"namespace", c.Namespace,
				"panic", fmt.Sprint(r))
		}
	}()
	m.metrics.CallbackDispatched()
	fn(c)
}
