package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/pkg/slotmap"
)

// maxNamespaceHandles bounds the number of simultaneously open handles.
const maxNamespaceHandles = 1024

type namespaceSlot struct {
	id   uint16
	name string
	refs int
}

// namespaceRegistry maps names to namespace ids and tracks open handles.
type namespaceRegistry struct {
	max     int
	byName  map[string]*namespaceSlot
	byID    map[uint16]*namespaceSlot
	lastID  uint16
	handles *slotmap.Map[*namespaceSlot]
}

func newNamespaceRegistry(max int) *namespaceRegistry {
	return &namespaceRegistry{
		max:     max,
		byName:  make(map[string]*namespaceSlot, max),
		byID:    make(map[uint16]*namespaceSlot, max),
		handles: slotmap.New[*namespaceSlot](maxNamespaceHandles),
	}
}

func (r *namespaceRegistry) lookup(name string) (*namespaceSlot, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// ensure returns the slot for name, creating it within the budget.
func (r *namespaceRegistry) ensure(name string) (*namespaceSlot, error) {
	if s, ok := r.byName[name]; ok {
		return s, nil
	}
	if len(r.byName) >= r.max {
		return nil, domain.ErrCapacityExceeded.WithDetails(
			fmt.Sprintf("namespace limit %d reached", r.max))
	}

	id := r.lastID
	for {
		id++
		if id == domain.DefaultNamespace {
			continue
		}
		if _, taken := r.byID[id]; !taken {
			break
		}
	}
	r.lastID = id

	s := &namespaceSlot{id: id, name: name}
	r.byName[name] = s
	r.byID[id] = s
	return s, nil
}

func (r *namespaceRegistry) remove(s *namespaceSlot) {
	delete(r.byName, s.name)
	delete(r.byID, s.id)
}

// nameOf returns the name of namespace id; the default namespace is "".
func (r *namespaceRegistry) nameOf(id uint16) string {
	if s, ok := r.byID[id]; ok {
		return s.name
	}
	return ""
}

// free returns how many more namespaces can be created.
func (r *namespaceRegistry) free() int {
	return r.max - len(r.byName)
}

func (r *namespaceRegistry) len() int {
	return len(r.byName)
}

func (r *namespaceRegistry) clear() {
	clear(r.byName)
	clear(r.byID)
	r.handles.Clear()
	r.lastID = 0
}

// ============================================================================
// Manager namespace operations
// ============================================================================

// Namespace is a handle to an isolated key space. Several handles may
// alias the same namespace. A handle is invalid after Close or Deinit.
type Namespace struct {
	m      *Manager
	name   string
	handle slotmap.Handle
	epoch  uint64
}

// OpenNamespace returns a new handle to the namespace name, creating the
// namespace on first use.
func (m *Manager) OpenNamespace(name string) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return nil, m.record("open_namespace", err)
	}
	if err := m.validateNamespaceName(name); err != nil {
		return nil, m.record("open_namespace", err)
	}
	if m.namespaces.handles.Len() >= m.namespaces.handles.Cap() {
		return nil, m.record("open_namespace", domain.ErrCapacityExceeded.WithDetails("too many open namespace handles"))
	}

	slot, err := m.namespaces.ensure(name)
	if err != nil {
		return nil, m.record("open_namespace", err)
	}
	h, err := m.namespaces.handles.Insert(slot)
	if err != nil {
		return nil, m.record("open_namespace", domain.ErrCapacityExceeded.WithCause(err))
	}
	slot.refs++

	return &Namespace{m: m, name: name, handle: h, epoch: m.epoch}, m.record("open_namespace", nil)
}

// EraseNamespace deletes every entry of the namespace name. Open handles
// stay valid; a namespace with no open handles is released.
func (m *Manager) EraseNamespace(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record("erase_namespace", err)
	}
	if err := m.validateNamespaceName(name); err != nil {
		return m.record("erase_namespace", err)
	}
	slot, ok := m.namespaces.lookup(name)
	if !ok {
		return m.record("erase_namespace", domain.ErrNotFound.WithDetails(fmt.Sprintf("namespace %q", name)))
	}

	removed := m.store.ClearNamespace(slot.id)
	if slot.refs == 0 {
		m.namespaces.remove(slot)
	}
	if removed == 0 {
		return m.record("erase_namespace", domain.ErrNotFound.WithDetails(fmt.Sprintf("namespace %q holds no entries", name)))
	}

	m.logger.Debug("namespace erased", "namespace", name, "entries", removed)
	return m.record("erase_namespace", nil)
}

func (m *Manager) validateNamespaceName(name string) error {
	if name == "" {
		return domain.ErrInvalidParameter.WithDetails("namespace name is empty")
	}
	if len(name) > m.cfg.MaxKeyLen {
		return domain.ErrKeyTooLong.WithDetails(fmt.Sprintf("namespace name length %d exceeds %d", len(name), m.cfg.MaxKeyLen))
	}
	if !utf8.ValidString(name) {
		return domain.ErrInvalidParameter.WithDetails("namespace name is not valid UTF-8")
	}
	return nil
}

// scope resolves the namespace targeted by ns; nil selects the default
// namespace. Caller holds m.mu.
func (m *Manager) scope(ns *Namespace) (id uint16, name string, err error) {
	if err := m.checkInit(); err != nil {
		return 0, "", err
	}
	if ns == nil {
		return domain.DefaultNamespace, "", nil
	}
	slot, err := m.resolve(ns)
	if err != nil {
		return 0, "", err
	}
	return slot.id, slot.name, nil
}

func (m *Manager) resolve(ns *Namespace) (*namespaceSlot, error) {
	if ns.m != m || ns.epoch != m.epoch {
		return nil, domain.ErrInvalidParameter.WithDetails("stale namespace handle")
	}
	slot, ok := m.namespaces.handles.Get(ns.handle)
	if !ok {
		return nil, domain.ErrInvalidParameter.WithDetails("namespace handle is closed")
	}
	return slot, nil
}

// ============================================================================
// Handle operations
// ============================================================================

var errNilNamespace = domain.ErrInvalidParameter.WithDetails("nil namespace handle")

func (n *Namespace) valid() error {
	if n == nil || n.m == nil {
		return errNilNamespace
	}
	return nil
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	if n == nil {
		return ""
	}
	return n.name
}

// Close invalidates the handle. Closing twice fails with invalid-parameter.
// Closing the last handle of a namespace that holds no entries releases
// its slot.
func (n *Namespace) Close() error {
	if err := n.valid(); err != nil {
		return err
	}
	m := n.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record("close_namespace", err)
	}
	slot, err := m.resolve(n)
	if err != nil {
		return m.record("close_namespace", err)
	}
	m.namespaces.handles.Remove(n.handle)
	slot.refs--
	if slot.refs == 0 && m.store.CountNamespace(slot.id) == 0 {
		m.namespaces.remove(slot)
	}
	return m.record("close_namespace", nil)
}

// SetI32 stores an i32 in this namespace.
func (n *Namespace) SetI32(key string, v int32) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_i32", n, key, domain.I32(v), false)
}

// SetU32 stores a u32 in this namespace.
func (n *Namespace) SetU32(key string, v uint32) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_u32", n, key, domain.U32(v), false)
}

// SetI64 stores an i64 in this namespace.
func (n *Namespace) SetI64(key string, v int64) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_i64", n, key, domain.I64(v), false)
}

// SetFloat stores a float in this namespace.
func (n *Namespace) SetFloat(key string, v float32) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_float", n, key, domain.Float(v), false)
}

// SetBool stores a bool in this namespace.
func (n *Namespace) SetBool(key string, v bool) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_bool", n, key, domain.Bool(v), false)
}

// SetStr stores a string in this namespace.
func (n *Namespace) SetStr(key, v string) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_str", n, key, domain.Str(v), false)
}

// SetBlob stores a copy of v in this namespace.
func (n *Namespace) SetBlob(key string, v []byte) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_blob", n, key, blobOf(v), false)
}

// SetStrEncrypted stores v sealed under the active encryption key.
func (n *Namespace) SetStrEncrypted(key, v string) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_str_encrypted", n, key, domain.Str(v), true)
}

// SetBlobEncrypted stores v sealed under the active encryption key.
func (n *Namespace) SetBlobEncrypted(key string, v []byte) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.setValue("ns_set_blob_encrypted", n, key, blobOf(v), true)
}

// GetI32 is Manager.GetI32 scoped to this namespace.
func (n *Namespace) GetI32(key string, def int32) (int32, error) {
	if err := n.valid(); err != nil {
		return def, err
	}
	v, err := getValue(n.m, "ns_get_i32", n, key, domain.I32(def))
	return int32(v), err
}

// GetU32 is Manager.GetU32 scoped to this namespace.
func (n *Namespace) GetU32(key string, def uint32) (uint32, error) {
	if err := n.valid(); err != nil {
		return def, err
	}
	v, err := getValue(n.m, "ns_get_u32", n, key, domain.U32(def))
	return uint32(v), err
}

// GetI64 is Manager.GetI64 scoped to this namespace.
func (n *Namespace) GetI64(key string, def int64) (int64, error) {
	if err := n.valid(); err != nil {
		return def, err
	}
	v, err := getValue(n.m, "ns_get_i64", n, key, domain.I64(def))
	return int64(v), err
}

// GetFloat is Manager.GetFloat scoped to this namespace.
func (n *Namespace) GetFloat(key string, def float32) (float32, error) {
	if err := n.valid(); err != nil {
		return def, err
	}
	v, err := getValue(n.m, "ns_get_float", n, key, domain.Float(def))
	return float32(v), err
}

// GetBool is Manager.GetBool scoped to this namespace.
func (n *Namespace) GetBool(key string, def bool) (bool, error) {
	if err := n.valid(); err != nil {
		return def, err
	}
	v, err := getValue(n.m, "ns_get_bool", n, key, domain.Bool(def))
	return bool(v), err
}

// GetStr copies the string value into buf, like Manager.GetStr.
func (n *Namespace) GetStr(key string, buf []byte, def string) (int, error) {
	if err := n.valid(); err != nil {
		return 0, err
	}
	return n.m.getStr("ns_get_str", n, key, buf, def)
}

// GetString is Manager.GetString scoped to this namespace.
func (n *Namespace) GetString(key, def string) (string, error) {
	if err := n.valid(); err != nil {
		return def, err
	}
	return n.m.getString("ns_get_string", n, key, def)
}

// GetBlob copies the blob value into buf, like Manager.GetBlob.
func (n *Namespace) GetBlob(key string, buf []byte) (int, error) {
	if err := n.valid(); err != nil {
		return 0, err
	}
	return n.m.getBlob("ns_get_blob", n, key, buf)
}

// GetBlobBytes returns a copy of the blob value.
func (n *Namespace) GetBlobBytes(key string) ([]byte, error) {
	if err := n.valid(); err != nil {
		return nil, err
	}
	return n.m.getBlobBytes("ns_get_blob_bytes", n, key)
}

// StrLen returns the byte length of a string value.
func (n *Namespace) StrLen(key string) (int, error) {
	if err := n.valid(); err != nil {
		return 0, err
	}
	return n.m.payloadLen("ns_str_len", n, key, domain.TypeStr)
}

// BlobLen returns the byte length of a blob value.
func (n *Namespace) BlobLen(key string) (int, error) {
	if err := n.valid(); err != nil {
		return 0, err
	}
	return n.m.payloadLen("ns_blob_len", n, key, domain.TypeBlob)
}

// Exists reports whether key is stored in this namespace. An invalid
// handle reports false.
func (n *Namespace) Exists(key string) bool {
	if n.valid() != nil {
		return false
	}
	return n.m.exists("ns_exists", n, key)
}

// GetType returns the type of the stored value.
func (n *Namespace) GetType(key string) (domain.Type, error) {
	if err := n.valid(); err != nil {
		return domain.TypeUnspecified, err
	}
	return n.m.getType("ns_get_type", n, key)
}

// IsEncrypted reports whether the entry is stored encrypted.
func (n *Namespace) IsEncrypted(key string) (bool, error) {
	if err := n.valid(); err != nil {
		return false, err
	}
	return n.m.isEncrypted("ns_is_encrypted", n, key)
}

// Delete removes key from this namespace. Callbacks are not notified.
func (n *Namespace) Delete(key string) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.delete("ns_delete", n, key)
}

// Count returns the number of entries in this namespace.
func (n *Namespace) Count() (int, error) {
	if err := n.valid(); err != nil {
		return 0, err
	}
	return n.m.count("ns_count", n)
}

// Iterate behaves like Manager.Iterate scoped to this namespace.
func (n *Namespace) Iterate(fn func(domain.Entry) bool) error {
	if err := n.valid(); err != nil {
		return err
	}
	return n.m.iterate("ns_iterate", n, fn)
}
