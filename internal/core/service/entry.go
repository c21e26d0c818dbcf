package service

import (
	"context"
	"fmt"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

// ============================================================================
// Setters
// ============================================================================

// SetI32 stores an int32 under key in the default namespace.
func (m *Manager) SetI32(key string, v int32) error {
	return m.setValue("set_i32", nil, key, domain.I32(v), false)
}

// SetU32 stores a uint32.
func (m *Manager) SetU32(key string, v uint32) error {
	return m.setValue("set_u32", nil, key, domain.U32(v), false)
}

// SetI64 stores an int64.
func (m *Manager) SetI64(key string, v int64) error {
	return m.setValue("set_i64", nil, key, domain.I64(v), false)
}

// SetFloat stores a float32.
func (m *Manager) SetFloat(key string, v float32) error {
	return m.setValue("set_float", nil, key, domain.Float(v), false)
}

// SetBool stores a bool.
func (m *Manager) SetBool(key string, v bool) error {
	return m.setValue("set_bool", nil, key, domain.Bool(v), false)
}

// SetStr stores a string of at most MaxValueSize bytes.
func (m *Manager) SetStr(key, v string) error {
	return m.setValue("set_str", nil, key, domain.Str(v), false)
}

// SetBlob stores a copy of v. A nil blob is stored as an empty one.
func (m *Manager) SetBlob(key string, v []byte) error {
	return m.setValue("set_blob", nil, key, blobOf(v), false)
}

func blobOf(v []byte) domain.Blob {
	if v == nil {
		return domain.Blob{}
	}
	return domain.Blob(v)
}

// setValue upserts key in the namespace of ns (nil for the default one),
// optionally sealing the payload, then auto-commits and dispatches.
func (m *Manager) setValue(op string, ns *Namespace, key string, v domain.Value, encrypt bool) error {
	m.mu.Lock()

	id, nsName, err := m.scope(ns)
	if err == nil {
		err = m.validateKey(key)
	}
	if err == nil {
		err = m.validateValue(v)
	}
	stored := v
	if err == nil && encrypt {
		stored, err = m.seal(key, v)
	}
	var (
		old     domain.Entry
		existed bool
	)
	if err == nil {
		old, existed, err = m.store.Put(domain.Entry{Key: key, Value: stored, Encrypted: encrypt, Namespace: id})
	}
	if err != nil {
		m.mu.Unlock()
		return m.record(op, err)
	}

	change := Change{Namespace: nsName, Key: key, Type: v.Type(), New: domain.Clone(v)}
	if existed {
		change.Old = m.plainValue(old)
	}
	targets := m.callbacks.match(key)
	autoCommit := m.autoCommit && m.backend != nil
	m.mu.Unlock()

	var commitErr error
	if autoCommit {
		commitErr = m.commit(context.Background(), "auto_commit")
	}
	m.dispatch(targets, change)
	return m.record(op, commitErr)
}

// ============================================================================
// Getters
// ============================================================================

// GetI32 returns the int32 stored under key, or def when the key is absent.
func (m *Manager) GetI32(key string, def int32) (int32, error) {
	v, err := getValue(m, "get_i32", nil, key, domain.I32(def))
	return int32(v), err
}

// GetU32 returns the uint32 stored under key, or def when absent.
func (m *Manager) GetU32(key string, def uint32) (uint32, error) {
	v, err := getValue(m, "get_u32", nil, key, domain.U32(def))
	return uint32(v), err
}

// GetI64 returns the int64 stored under key, or def when absent.
func (m *Manager) GetI64(key string, def int64) (int64, error) {
	v, err := getValue(m, "get_i64", nil, key, domain.I64(def))
	return int64(v), err
}

// GetFloat returns the float32 stored under key, or def when absent.
func (m *Manager) GetFloat(key string, def float32) (float32, error) {
	v, err := getValue(m, "get_float", nil, key, domain.Float(def))
	return float32(v), err
}

// GetBool returns the bool stored under key, or def when absent.
func (m *Manager) GetBool(key string, def bool) (bool, error) {
	v, err := getValue(m, "get_bool", nil, key, domain.Bool(def))
	return bool(v), err
}

// GetStr copies the string stored under key into buf and returns its
// length. When the key is absent def is copied instead. A short buffer
// fails with buffer-too-small and leaves buf untouched.
func (m *Manager) GetStr(key string, buf []byte, def string) (int, error) {
	return m.getStr("get_str", nil, key, buf, def)
}

// GetString returns the string stored under key, or def when absent.
func (m *Manager) GetString(key, def string) (string, error) {
	return m.getString("get_string", nil, key, def)
}

// GetBlob copies the blob stored under key into buf and returns its length.
// An absent key fails with not-found.
func (m *Manager) GetBlob(key string, buf []byte) (int, error) {
	return m.getBlob("get_blob", nil, key, buf)
}

// GetBlobBytes returns a copy of the blob stored under key.
func (m *Manager) GetBlobBytes(key string) ([]byte, error) {
	return m.getBlobBytes("get_blob_bytes", nil, key)
}

// StrLen returns the plaintext length of the string stored under key.
func (m *Manager) StrLen(key string) (int, error) {
	return m.payloadLen("str_len", nil, key, domain.TypeStr)
}

// BlobLen returns the plaintext length of the blob stored under key.
func (m *Manager) BlobLen(key string) (int, error) {
	return m.payloadLen("blob_len", nil, key, domain.TypeBlob)
}

func getValue[T domain.Value](m *Manager, op string, ns *Namespace, key string, def T) (T, error) {
	e, ok, err := m.lookup(ns, key)
	if err != nil {
		return def, m.record(op, err)
	}
	if !ok {
		return def, m.record(op, nil)
	}
	v, ok := e.Value.(T)
	if !ok {
		return def, m.record(op, typeMismatch(key, def.Type(), e.Type()))
	}
	return v, m.record(op, nil)
}

func (m *Manager) getStr(op string, ns *Namespace, key string, buf []byte, def string) (int, error) {
	data, found, err := m.readPayload(ns, key, domain.TypeStr)
	if err != nil {
		return 0, m.record(op, err)
	}
	if !found {
		data = []byte(def)
	}
	if len(buf) < len(data) {
		return 0, m.record(op, domain.ErrBufferTooSmall.WithDetails(
			fmt.Sprintf("need %d bytes, have %d", len(data), len(buf))))
	}
	return copy(buf, data), m.record(op, nil)
}

func (m *Manager) getString(op string, ns *Namespace, key, def string) (string, error) {
	data, found, err := m.readPayload(ns, key, domain.TypeStr)
	if err != nil {
		return def, m.record(op, err)
	}
	if !found {
		return def, m.record(op, nil)
	}
	return string(data), m.record(op, nil)
}

func (m *Manager) getBlob(op string, ns *Namespace, key string, buf []byte) (int, error) {
	data, found, err := m.readPayload(ns, key, domain.TypeBlob)
	if err == nil && !found {
		err = notFound(key)
	}
	if err != nil {
		return 0, m.record(op, err)
	}
	if len(buf) < len(data) {
		return 0, m.record(op, domain.ErrBufferTooSmall.WithDetails(
			fmt.Sprintf("need %d bytes, have %d", len(data), len(buf))))
	}
	return copy(buf, data), m.record(op, nil)
}

func (m *Manager) getBlobBytes(op string, ns *Namespace, key string) ([]byte, error) {
	data, found, err := m.readPayload(ns, key, domain.TypeBlob)
	if err == nil && !found {
		err = notFound(key)
	}
	if err != nil {
		return nil, m.record(op, err)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, m.record(op, nil)
}

func (m *Manager) payloadLen(op string, ns *Namespace, key string, want domain.Type) (int, error) {
	data, found, err := m.readPayload(ns, key, want)
	if err == nil && !found {
		err = notFound(key)
	}
	if err != nil {
		return 0, m.record(op, err)
	}
	return len(data), m.record(op, nil)
}

// lookup returns a copy of the entry stored under key.
func (m *Manager) lookup(ns *Namespace, key string) (domain.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _, err := m.scope(ns)
	if err != nil {
		return domain.Entry{}, false, err
	}
	if err := m.validateKey(key); err != nil {
		return domain.Entry{}, false, err
	}
	e, ok := m.store.Get(id, key)
	return e, ok, nil
}

// readPayload returns the plaintext payload of the str or blob entry under
// key, decrypting when needed. found is false when the key is absent.
func (m *Manager) readPayload(ns *Namespace, key string, want domain.Type) (data []byte, found bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _, err := m.scope(ns)
	if err != nil {
		return nil, false, err
	}
	if err := m.validateKey(key); err != nil {
		return nil, false, err
	}
	e, ok := m.store.Get(id, key)
	if !ok {
		return nil, false, nil
	}
	if e.Type() != want {
		return nil, true, typeMismatch(key, want, e.Type())
	}
	data = domain.Payload(e.Value)
	if e.Encrypted {
		data, err = m.open(key, data)
		if err != nil {
			return nil, true, err
		}
	}
	return data, true, nil
}

// ============================================================================
// Queries
// ============================================================================

// Exists reports whether key is stored in the default namespace.
func (m *Manager) Exists(key string) bool {
	return m.exists("exists", nil, key)
}

// GetType returns the type of the value stored under key.
func (m *Manager) GetType(key string) (domain.Type, error) {
	return m.getType("get_type", nil, key)
}

// Delete removes key from the default namespace. Callbacks are not invoked.
func (m *Manager) Delete(key string) error {
	return m.delete("delete", nil, key)
}

// Count returns the number of entries in the default namespace.
func (m *Manager) Count() int {
	n, _ := m.count("count", nil)
	return n
}

// Iterate calls fn for every entry of the default namespace in insertion
// order until fn returns false. Entries are snapshots taken before the
// first call; encrypted entries carry their ciphertext. fn may call back
// into the Manager.
func (m *Manager) Iterate(fn func(domain.Entry) bool) error {
	return m.iterate("iterate", nil, fn)
}

func (m *Manager) exists(op string, ns *Namespace, key string) bool {
	_, ok, err := m.lookup(ns, key)
	m.record(op, err)
	return ok
}

func (m *Manager) getType(op string, ns *Namespace, key string) (domain.Type, error) {
	e, ok, err := m.lookup(ns, key)
	if err == nil && !ok {
		err = notFound(key)
	}
	if err != nil {
		return domain.TypeUnspecified, m.record(op, err)
	}
	return e.Type(), m.record(op, nil)
}

func (m *Manager) delete(op string, ns *Namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _, err := m.scope(ns)
	if err == nil {
		err = m.validateKey(key)
	}
	if err != nil {
		return m.record(op, err)
	}
	if _, ok := m.store.Delete(id, key); !ok {
		return m.record(op, notFound(key))
	}
	return m.record(op, nil)
}

func (m *Manager) count(op string, ns *Namespace) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _, err := m.scope(ns)
	if err != nil {
		return 0, m.record(op, err)
	}
	return m.store.CountNamespace(id), m.record(op, nil)
}

func (m *Manager) iterate(op string, ns *Namespace, fn func(domain.Entry) bool) error {
	if fn == nil {
		return m.record(op, domain.ErrInvalidParameter.WithDetails("iterate function is nil"))
	}

	m.mu.Lock()
	id, _, err := m.scope(ns)
	if err != nil {
		m.mu.Unlock()
		return m.record(op, err)
	}
	entries := m.store.Snapshot(id)
	m.mu.Unlock()

	for _, e := range entries {
		if !fn(e) {
			break
		}
	}
	return m.record(op, nil)
}

// ============================================================================
// Error helpers
// ============================================================================

func notFound(key string) error {
	return domain.ErrNotFound.WithDetails(fmt.Sprintf("key %q", key))
}

func typeMismatch(key string, want, got domain.Type) error {
	return domain.ErrTypeMismatch.WithDetails(fmt.Sprintf("key %q holds %s, requested %s", key, got, want))
}
