package service

import (
	"bytes"
	"testing"

	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/pkg/crypto/adaptive"
)

const (
	aes128 = adaptive.AES128
	aes256 = adaptive.AES256
)

func TestManager_EncryptedStringScenario(t *testing.T) {
	m := newTestManager(t, Config{})
	mustOK(t, m.SetEncryptionKey([]byte("0123456789abcdef"), aes128))

	mustOK(t, m.SetStrEncrypted("wifi.pw", "secret"))

	buf := make([]byte, 32)
	n, err := m.GetStr("wifi.pw", buf, "")
	if err != nil || string(buf[:n]) != "secret" {
		t.Fatalf("GetStr() = %q, %v", buf[:n], err)
	}
	if enc, err := m.IsEncrypted("wifi.pw"); err != nil || !enc {
		t.Fatalf("IsEncrypted() = %v, %v", enc, err)
	}

	mustOK(t, m.SetStr("plain", "x"))
	if enc, err := m.IsEncrypted("plain"); err != nil || enc {
		t.Fatalf("IsEncrypted(plain) = %v, %v", enc, err)
	}
	_, err = m.IsEncrypted("missing")
	wantStatus(t, err, domain.StatusNotFound)
}

func TestManager_EncryptionTransparency(t *testing.T) {
	algos := []adaptive.Algorithm{adaptive.AES128, adaptive.AES256, adaptive.ChaCha20Poly1305}
	for _, algo := range algos {
		t.Run(algo.String(), func(t *testing.T) {
			m := newTestManager(t, Config{})
			mustOK(t, m.SetEncryptionKey(bytes.Repeat([]byte{7}, algo.KeySize()), algo))

			blob := []byte{0, 1, 2, 3, 0xfe}
			mustOK(t, m.SetBlobEncrypted("blob", blob))
			mustOK(t, m.SetStrEncrypted("empty", ""))

			got, err := m.GetBlobBytes("blob")
			if err != nil || !bytes.Equal(got, blob) {
				t.Fatalf("GetBlobBytes() = %v, %v", got, err)
			}
			if n, err := m.BlobLen("blob"); err != nil || n != len(blob) {
				t.Fatalf("BlobLen() = %d, %v", n, err)
			}
			if s, err := m.GetString("empty", "x"); err != nil || s != "" {
				t.Fatalf("GetString(empty) = %q, %v", s, err)
			}
		})
	}
}

func TestManager_SetEncryptionKeyValidation(t *testing.T) {
	m := newTestManager(t, Config{})

	tests := []struct {
		name string
		key  []byte
		algo adaptive.Algorithm
	}{
		{"nil key", nil, aes128},
		{"short aes128", make([]byte, 15), aes128},
		{"aes256 with 16 bytes", make([]byte, 16), aes256},
		{"unknown algorithm", make([]byte, 16), adaptive.AlgorithmNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantStatus(t, m.SetEncryptionKey(tt.key, tt.algo), domain.StatusInvalidParameter)
			if m.HasEncryptionKey() {
				t.Fatal("key installed after failure")
			}
		})
	}
}

func TestManager_EncryptedWithoutKey(t *testing.T) {
	m := newTestManager(t, Config{})
	wantStatus(t, m.SetStrEncrypted("k", "v"), domain.StatusNoEncryptionKey)
	wantStatus(t, m.SetBlobEncrypted("k", []byte{1}), domain.StatusNoEncryptionKey)
	if m.Exists("k") {
		t.Fatal("entry stored without encryption key")
	}

	mustOK(t, m.SetEncryptionKey(make([]byte, 16), aes128))
	mustOK(t, m.SetStrEncrypted("k", "v"))
	mustOK(t, m.ClearEncryptionKey())
	if m.HasEncryptionKey() {
		t.Fatal("HasEncryptionKey() after clear")
	}
	_, err := m.GetString("k", "")
	wantStatus(t, err, domain.StatusNoEncryptionKey)
}

func TestManager_CallerKeyBufferIsCopied(t *testing.T) {
	m := newTestManager(t, Config{})
	key := bytes.Repeat([]byte{1}, 16)
	mustOK(t, m.SetEncryptionKey(key, aes128))
	mustOK(t, m.SetStrEncrypted("k", "v"))

	key[0] = 0xff
	if s, err := m.GetString("k", ""); err != nil || s != "v" {
		t.Fatalf("GetString() = %q, %v", s, err)
	}
}

func TestManager_RotateEncryptionKey(t *testing.T) {
	m := newTestManager(t, Config{})

	wantStatus(t, m.RotateEncryptionKey(make([]byte, 16), aes128), domain.StatusNoEncryptionKey)

	mustOK(t, m.SetEncryptionKey(bytes.Repeat([]byte{1}, 16), aes128))
	mustOK(t, m.SetStrEncrypted("old", "before"))

	wantStatus(t, m.RotateEncryptionKey(make([]byte, 5), aes256), domain.StatusInvalidParameter)
	mustOK(t, m.RotateEncryptionKey(bytes.Repeat([]byte{2}, 32), aes256))
	mustOK(t, m.SetStrEncrypted("new", "after"))

	if s, err := m.GetString("new", ""); err != nil || s != "after" {
		t.Fatalf("GetString(new) = %q, %v", s, err)
	}
	// Existing ciphertext is not re-encrypted on rotation.
	_, err := m.GetString("old", "")
	wantStatus(t, err, domain.StatusDecryptFailed)
	if enc, _ := m.IsEncrypted("old"); !enc {
		t.Fatal("old entry lost its encrypted flag")
	}
}

func TestManager_CiphertextBoundToKeyName(t *testing.T) {
	m := newTestManager(t, Config{})
	mustOK(t, m.SetEncryptionKey(make([]byte, 16), aes128))
	mustOK(t, m.SetStrEncrypted("a", "secret"))

	var stored domain.Entry
	mustOK(t, m.Iterate(func(e domain.Entry) bool {
		stored = e
		return false
	}))
	if !stored.Encrypted || stored.Value == domain.Str("secret") {
		t.Fatalf("stored entry = %+v", stored)
	}

	// Move the ciphertext under another key name.
	m.mu.Lock()
	stored.Key = "b"
	_, _, err := m.store.Put(stored)
	m.mu.Unlock()
	mustOK(t, err)

	_, err = m.GetString("b", "")
	wantStatus(t, err, domain.StatusDecryptFailed)
}
