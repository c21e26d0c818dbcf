package service

import (
	"fmt"

	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/internal/storage/codec"
)

// maxSealOverhead bounds nonce plus tag of every supported AEAD.
const maxSealOverhead = 64

// ============================================================================
// Export
// ============================================================================

// ExportSize returns the exact length Export needs for the same arguments
// while the store is unchanged.
func (m *Manager) ExportSize(format codec.Format, flags codec.Flags) (int, error) {
	data, err := m.export(false, "", format, flags)
	return len(data), m.record("export_size", err)
}

// Export serializes the default namespace into buf and returns the number
// of bytes written. A short buffer fails with buffer-too-small and buf is
// left untouched.
func (m *Manager) Export(format codec.Format, flags codec.Flags, buf []byte) (int, error) {
	data, err := m.export(false, "", format, flags)
	if err != nil {
		return 0, m.record("export", err)
	}
	return m.copyOut("export", data, buf)
}

// ExportBytes serializes the default namespace into a new slice.
func (m *Manager) ExportBytes(format codec.Format, flags codec.Flags) ([]byte, error) {
	data, err := m.export(false, "", format, flags)
	return data, m.record("export", err)
}

// ExportNamespaceSize is ExportSize for the namespace name.
func (m *Manager) ExportNamespaceSize(name string, format codec.Format, flags codec.Flags) (int, error) {
	data, err := m.export(true, name, format, flags)
	return len(data), m.record("export_namespace_size", err)
}

// ExportNamespace is Export for the namespace name. An unknown namespace
// fails with not-found.
func (m *Manager) ExportNamespace(name string, format codec.Format, flags codec.Flags, buf []byte) (int, error) {
	data, err := m.export(true, name, format, flags)
	if err != nil {
		return 0, m.record("export_namespace", err)
	}
	return m.copyOut("export_namespace", data, buf)
}

// ExportNamespaceBytes is ExportBytes for the namespace name.
func (m *Manager) ExportNamespaceBytes(name string, format codec.Format, flags codec.Flags) ([]byte, error) {
	data, err := m.export(true, name, format, flags)
	return data, m.record("export_namespace", err)
}

func (m *Manager) copyOut(op string, data, buf []byte) (int, error) {
	if len(buf) < len(data) {
		return 0, m.record(op, domain.ErrBufferTooSmall.WithDetails(
			fmt.Sprintf("need %d bytes, have %d", len(data), len(buf))))
	}
	return copy(buf, data), m.record(op, nil)
}

// export snapshots one namespace under the lock and encodes it.
func (m *Manager) export(named bool, name string, format codec.Format, flags codec.Flags) ([]byte, error) {
	entries, err := m.exportSnapshot(named, name, flags)
	if err != nil {
		return nil, err
	}
	return codec.Encode(format, entries, flags)
}

func (m *Manager) exportSnapshot(named bool, name string, flags codec.Flags) ([]domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return nil, err
	}
	id := domain.DefaultNamespace
	if named {
		if err := m.validateNamespaceName(name); err != nil {
			return nil, err
		}
		slot, ok := m.namespaces.lookup(name)
		if !ok {
			return nil, domain.ErrNotFound.WithDetails(fmt.Sprintf("namespace %q", name))
		}
		id = slot.id
	}

	entries := m.store.Snapshot(id)
	if flags.Has(codec.FlagDecrypt) {
		return m.decryptEntries(entries)
	}
	return entries, nil
}

// ============================================================================
// Import
// ============================================================================

// Import parses data and writes its entries into the default namespace.
//
// Without FlagClear the import is merged: keys present in data overwrite,
// other keys are kept. FlagClear empties the namespace first.
// FlagSkipErrors drops malformed or non-fitting entries instead of
// rejecting the import. Import never invokes callbacks.
func (m *Manager) Import(format codec.Format, flags codec.Flags, data []byte) error {
	return m.record("import", m.importEntries(false, "", format, flags, data))
}

// ImportNamespace is Import into the namespace name, creating it if needed.
func (m *Manager) ImportNamespace(name string, format codec.Format, flags codec.Flags, data []byte) error {
	return m.record("import_namespace", m.importEntries(true, name, format, flags, data))
}

func (m *Manager) importEntries(named bool, name string, format codec.Format, flags codec.Flags, data []byte) error {
	if len(data) == 0 {
		return domain.ErrInvalidParameter.WithDetails("empty import data")
	}
	entries, err := codec.Decode(format, data, flags)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return err
	}
	if named {
		if err := m.validateNamespaceName(name); err != nil {
			return err
		}
	}

	n, err := m.apply(named, name, entries, flags.Has(codec.FlagClear), flags.Has(codec.FlagSkipErrors))
	if err != nil {
		return err
	}
	m.logger.Debug("entries imported", "namespace", name, "format", format.String(), "count", n)
	return nil
}

// apply writes entries into one namespace atomically. Invalid or
// non-fitting entries fail the whole batch unless skip is set. The target
// namespace is created only once the batch is known to fit. Caller holds
// m.mu.
func (m *Manager) apply(named bool, name string, entries []domain.Entry, clearFirst, skip bool) (int, error) {
	var (
		slot   *namespaceSlot
		exists = true
		id     = domain.DefaultNamespace
	)
	if named {
		slot, exists = m.namespaces.lookup(name)
		if exists {
			id = slot.id
		} else if m.namespaces.free() == 0 {
			return 0, domain.ErrCapacityExceeded.WithDetails(fmt.Sprintf("cannot create namespace %q", name))
		}
	}

	avail := m.store.Free()
	if clearFirst && exists {
		avail += m.store.CountNamespace(id)
	}

	accepted := make([]domain.Entry, 0, len(entries))
	added := 0
	for _, e := range entries {
		if err := m.validateImported(e); err != nil {
			if skip {
				continue
			}
			return 0, domain.ErrInvalidFormat.WithCause(err).WithDetails(fmt.Sprintf("entry %q rejected", e.Key))
		}
		isNew := clearFirst || !exists || !m.store.Has(id, e.Key)
		if isNew {
			if added == avail {
				if skip {
					continue
				}
				return 0, domain.ErrCapacityExceeded.WithDetails(
					fmt.Sprintf("import needs more than %d free entries", avail))
			}
			added++
		}
		accepted = append(accepted, e)
	}

	if named && !exists {
		created, err := m.namespaces.ensure(name)
		if err != nil {
			return 0, err
		}
		id = created.id
	}
	if clearFirst {
		m.store.ClearNamespace(id)
	}
	for _, e := range accepted {
		e.Namespace = id
		if _, _, err := m.store.Put(e); err != nil {
			return 0, err
		}
	}
	return len(accepted), nil
}

func (m *Manager) validateImported(e domain.Entry) error {
	if err := m.validateKey(e.Key); err != nil {
		return err
	}
	if !e.Encrypted {
		return m.validateValue(e.Value)
	}
	if e.Value == nil || (e.Type() != domain.TypeStr && e.Type() != domain.TypeBlob) {
		return domain.ErrInvalidParameter.WithDetails("encrypted entry must be str or blob")
	}
	if n := len(domain.Payload(e.Value)); n > m.cfg.MaxValueSize+maxSealOverhead {
		return domain.ErrInvalidParameter.WithDetails(fmt.Sprintf("ciphertext length %d too large", n))
	}
	return nil
}
