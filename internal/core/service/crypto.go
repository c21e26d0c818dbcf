package service

import (
	"bytes"

	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/pkg/crypto/adaptive"
)

// cryptoContext is the active encryption key. Every ciphertext is bound to
// its entry key name as additional data.
type cryptoContext struct {
	algo   adaptive.Algorithm
	key    []byte
	cipher adaptive.Cipher
}

func newCryptoContext(key []byte, algo adaptive.Algorithm) (*cryptoContext, error) {
	if len(key) == 0 {
		return nil, domain.ErrInvalidParameter.WithDetails("encryption key is empty")
	}
	material := bytes.Clone(key)
	c, err := adaptive.New(material, algo)
	if err != nil {
		adaptive.ZeroKey(material)
		return nil, domain.ErrInvalidParameter.WithCause(err).WithDetails(
			"key length must match " + algo.String())
	}
	return &cryptoContext{algo: algo, key: material, cipher: c}, nil
}

func (c *cryptoContext) zero() {
	adaptive.ZeroKey(c.key)
	c.cipher = nil
}

// SetEncryptionKey installs key for algo, replacing any active key.
// len(key) must equal algo.KeySize().
func (m *Manager) SetEncryptionKey(key []byte, algo adaptive.Algorithm) error {
	const op = "set_encryption_key"
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}
	ctx, err := newCryptoContext(key, algo)
	if err != nil {
		return m.record(op, err)
	}
	if m.crypto != nil {
		m.crypto.zero()
	}
	m.crypto = ctx

	m.logger.Info("encryption key installed", "algorithm", algo.String())
	return m.record(op, nil)
}

// RotateEncryptionKey replaces the active key. Stored ciphertext is not
// re-encrypted; entries sealed under the previous key no longer decrypt.
func (m *Manager) RotateEncryptionKey(key []byte, algo adaptive.Algorithm) error {
	const op = "rotate_encryption_key"
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}
	if m.crypto == nil {
		return m.record(op, domain.ErrNoEncryptionKey.WithDetails("rotation requires an active key"))
	}
	ctx, err := newCryptoContext(key, algo)
	if err != nil {
		return m.record(op, err)
	}
	from := m.crypto.algo
	m.crypto.zero()
	m.crypto = ctx

	m.logger.Info("encryption key rotated", "from", from.String(), "to", algo.String())
	return m.record(op, nil)
}

// ClearEncryptionKey zeroes and drops the active key.
func (m *Manager) ClearEncryptionKey() error {
	const op = "clear_encryption_key"
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInit(); err != nil {
		return m.record(op, err)
	}
	if m.crypto != nil {
		m.crypto.zero()
		m.crypto = nil
		m.logger.Info("encryption key cleared")
	}
	return m.record(op, nil)
}

// HasEncryptionKey reports whether a key is active.
func (m *Manager) HasEncryptionKey() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crypto != nil
}

// SetStrEncrypted stores v sealed under the active key.
func (m *Manager) SetStrEncrypted(key, v string) error {
	return m.setValue("set_str_encrypted", nil, key, domain.Str(v), true)
}

// SetBlobEncrypted stores v sealed under the active key.
func (m *Manager) SetBlobEncrypted(key string, v []byte) error {
	return m.setValue("set_blob_encrypted", nil, key, blobOf(v), true)
}

// IsEncrypted reports whether the entry under key is stored encrypted.
func (m *Manager) IsEncrypted(key string) (bool, error) {
	return m.isEncrypted("is_encrypted", nil, key)
}

func (m *Manager) isEncrypted(op string, ns *Namespace, key string) (bool, error) {
	e, ok, err := m.lookup(ns, key)
	if err == nil && !ok {
		err = notFound(key)
	}
	if err != nil {
		return false, m.record(op, err)
	}
	return e.Encrypted, m.record(op, nil)
}

// ============================================================================
// Sealing (callers hold m.mu)
// ============================================================================

func (m *Manager) seal(key string, v domain.Value) (domain.Value, error) {
	if m.crypto == nil {
		return nil, domain.ErrNoEncryptionKey
	}
	ct, err := m.crypto.cipher.Encrypt(domain.Payload(v), []byte(key))
	if err != nil {
		return nil, domain.ErrBackend.WithCause(err).WithDetails("encryption failed")
	}
	return domain.WithPayload(v.Type(), ct)
}

func (m *Manager) open(key string, ciphertext []byte) ([]byte, error) {
	if m.crypto == nil {
		return nil, domain.ErrNoEncryptionKey.WithDetails("key " + key + " is encrypted")
	}
	pt, err := m.crypto.cipher.Decrypt(ciphertext, []byte(key))
	if err != nil {
		m.logger.Warn("decrypt failed", "key", key, "algorithm", m.crypto.algo.String())
		return nil, domain.ErrDecryptFailed.WithCause(err)
	}
	return pt, nil
}

// plainValue returns the plaintext form of e's value, or the stored form
// when it cannot be decrypted.
func (m *Manager) plainValue(e domain.Entry) domain.Value {
	if !e.Encrypted {
		return e.Value
	}
	pt, err := m.open(e.Key, domain.Payload(e.Value))
	if err != nil {
		return e.Value
	}
	v, err := domain.WithPayload(e.Type(), pt)
	if err != nil {
		return e.Value
	}
	return v
}

// decryptEntries returns entries with every encrypted value replaced by
// its plaintext.
func (m *Manager) decryptEntries(entries []domain.Entry) ([]domain.Entry, error) {
	for i, e := range entries {
		if !e.Encrypted {
			continue
		}
		pt, err := m.open(e.Key, domain.Payload(e.Value))
		if err != nil {
			return nil, err
		}
		v, err := domain.WithPayload(e.Type(), pt)
		if err != nil {
			return nil, err
		}
		entries[i].Value = v
		entries[i].Encrypted = false
	}
	return entries, nil
}
