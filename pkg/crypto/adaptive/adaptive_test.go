package adaptive

import (
	"bytes"
	"errors"
	"testing"
)

var (
	key16 = make([]byte, 16)
	key32 = make([]byte, 32)
)

func init() {
	for i := range key16 {
		key16[i] = byte(i)
	}
	for i := range key32 {
		key32[i] = byte(i)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		algo    Algorithm
		wantErr bool
	}{
		{"AES-128", key16, AES128, false},
		{"AES-256", key32, AES256, false},
		{"ChaCha20", key32, ChaCha20Poly1305, false},
		{"AES-128 with 32 bytes", key32, AES128, true},
		{"AES-256 with 16 bytes", key16, AES256, true},
		{"AES-256 with 24 bytes", make([]byte, 24), AES256, true},
		{"no algorithm", key16, AlgorithmNone, true},
		{"nil key", nil, AES128, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.key, tt.algo)
			if tt.wantErr {
				if err == nil {
					t.Error("New() should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if c.Algorithm() != tt.algo {
				t.Errorf("Algorithm() = %s, want %s", c.Algorithm(), tt.algo)
			}
		})
	}
}

func TestNew_KeySizeError(t *testing.T) {
	if _, err := New(make([]byte, 15), AES128); !errors.Is(err, ErrKeySize) {
		t.Errorf("New() error = %v, want ErrKeySize", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, algo := range []Algorithm{AES128, AES256, ChaCha20Poly1305} {
		got, err := ParseAlgorithm(algo.String())
		if err != nil || got != algo {
			t.Errorf("ParseAlgorithm(%q) = %v, %v", algo.String(), got, err)
		}
	}
	if got, err := ParseAlgorithm(" AES-128 "); err != nil || got != AES128 {
		t.Errorf("ParseAlgorithm(mixed case) = %v, %v", got, err)
	}
	if _, err := ParseAlgorithm("des"); err == nil {
		t.Error("ParseAlgorithm(des) should fail")
	}
}

func TestNewChaCha20_KeySize(t *testing.T) {
	if _, err := NewChaCha20(key16); err == nil {
		t.Error("NewChaCha20(16 bytes) should fail")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	for _, algo := range []Algorithm{AES128, AES256, ChaCha20Poly1305} {
		key := key32
		if algo == AES128 {
			key = key16
		}
		c, err := New(key, algo)
		if err != nil {
			t.Fatalf("New(%s): %v", algo, err)
		}
		t.Run(algo.String(), func(t *testing.T) {
			testEncryptDecrypt(t, c)
			testDecryptTampered(t, c)
		})
	}
}

func testEncryptDecrypt(t *testing.T, c Cipher) {
	tests := []struct {
		name           string
		plaintext      []byte
		additionalData []byte
	}{
		{"Empty", []byte{}, nil},
		{"Simple", []byte("hello world"), nil},
		{"With AAD", []byte("secret data"), []byte("wifi.pw")},
		{"Large", bytes.Repeat([]byte("A"), 1024), nil},
		{"Binary", []byte{0x00, 0xFF, 0x7F, 0x80}, []byte{0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := c.Encrypt(tt.plaintext, tt.additionalData)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(ciphertext) != SealedSize(c, len(tt.plaintext)) {
				t.Errorf("ciphertext length = %d, want %d", len(ciphertext), SealedSize(c, len(tt.plaintext)))
			}

			plaintext, err := c.Decrypt(ciphertext, tt.additionalData)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(plaintext, tt.plaintext) {
				t.Errorf("Decrypt() plaintext = %v, want %v", plaintext, tt.plaintext)
			}
		})
	}
}

func testDecryptTampered(t *testing.T, c Cipher) {
	plaintext := []byte("secret message")
	aad := []byte("wifi.pw")

	ciphertext, err := c.Encrypt(plaintext, aad)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := bytes.Clone(ciphertext)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := c.Decrypt(tampered, aad); err == nil {
		t.Error("Decrypt() should fail for tampered ciphertext")
	}

	if _, err := c.Decrypt(ciphertext, []byte("other.key")); err == nil {
		t.Error("Decrypt() should fail for different additional data")
	}

	if _, err := c.Decrypt(ciphertext[:c.NonceSize()], aad); err == nil {
		t.Error("Decrypt() should fail for truncated ciphertext")
	}
}

func TestEncrypt_UniqueNonces(t *testing.T) {
	c, err := New(key16, AES128)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, _ := c.Encrypt([]byte("same"), nil)
	b, _ := c.Encrypt([]byte("same"), nil)
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical output")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	other := bytes.Repeat([]byte{0xAA}, 16)
	c1, _ := New(key16, AES128)
	c2, _ := New(other, AES128)

	sealed, err := c1.Encrypt([]byte("secret"), nil)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := c2.Decrypt(sealed, nil); err == nil {
		t.Error("Decrypt() with a different key should fail")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltLength)

	k1, err := DeriveKey([]byte("correct horse"), salt, AES128)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	if len(k1) != 16 {
		t.Errorf("len = %d, want 16", len(k1))
	}
	k2, _ := DeriveKey([]byte("correct horse"), salt, AES128)
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKey() is not deterministic")
	}
	k3, _ := DeriveKey([]byte("correct horse"), salt, AES256)
	if len(k3) != 32 {
		t.Errorf("len = %d, want 32", len(k3))
	}

	if _, err := DeriveKey([]byte("short"), salt, AES128); !errors.Is(err, ErrPassphraseTooWeak) {
		t.Errorf("weak passphrase error = %v", err)
	}
	if _, err := DeriveKey([]byte("correct horse"), salt[:4], AES128); err == nil {
		t.Error("short salt should fail")
	}
	if _, err := DeriveKey([]byte("correct horse"), salt, AlgorithmNone); err == nil {
		t.Error("unsupported algorithm should fail")
	}
}

func TestGenerateSaltAndZeroKey(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	if len(salt) != SaltLength {
		t.Errorf("len = %d, want %d", len(salt), SaltLength)
	}

	key := bytes.Repeat([]byte{0xFF}, 32)
	ZeroKey(key)
	if !bytes.Equal(key, make([]byte, 32)) {
		t.Error("ZeroKey() left non-zero bytes")
	}
}
