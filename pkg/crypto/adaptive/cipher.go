package adaptive

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrKeySize is returned when key material does not match the algorithm.
var ErrKeySize = errors.New("adaptive: key length does not match algorithm")

// Algorithm identifies a supported AEAD construction.
type Algorithm uint8

const (
	AlgorithmNone Algorithm = iota
	AES128
	AES256
	ChaCha20Poly1305
)

// KeySize returns the exact key length the algorithm requires, or 0.
func (a Algorithm) KeySize() int {
	switch a {
	case AES128:
		return 16
	case AES256, ChaCha20Poly1305:
		return 32
	default:
		return 0
	}
}

// String returns the configuration name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AES128:
		return "aes-128-gcm"
	case AES256:
		return "aes-256-gcm"
	case ChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "none"
	}
}

// ParseAlgorithm resolves a configuration name. Matching is case-insensitive.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "aes-128-gcm", "aes-128", "aes128":
		return AES128, nil
	case "aes-256-gcm", "aes-256", "aes256", "aes-gcm":
		return AES256, nil
	case "chacha20-poly1305", "chacha20":
		return ChaCha20Poly1305, nil
	default:
		return AlgorithmNone, fmt.Errorf("adaptive: unknown algorithm %q", name)
	}
}

// Cipher provides authenticated encryption.
type Cipher interface {
	// Algorithm returns the construction in use.
	Algorithm() Algorithm

	// Encrypt encrypts plaintext with additional data.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt decrypts ciphertext with additional data.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the authentication tag size in bytes.
	Overhead() int
}

// New creates a cipher for algo. len(key) must equal algo.KeySize().
func New(key []byte, algo Algorithm) (Cipher, error) {
	if algo.KeySize() == 0 {
		return nil, fmt.Errorf("adaptive: unsupported algorithm %d", algo)
	}
	if len(key) != algo.KeySize() {
		return nil, ErrKeySize
	}

	switch algo {
	case ChaCha20Poly1305:
		return NewChaCha20(key)
	default:
		return NewAESGCM(key)
	}
}

// SealedSize returns the ciphertext length for a plaintext of n bytes.
func SealedSize(c Cipher, n int) int {
	return c.NonceSize() + n + c.Overhead()
}

// baseCipher provides common functionality for ciphers.
type baseCipher struct {
	aead cipher.AEAD
}

// NonceSize returns the nonce size in bytes.
func (c *baseCipher) NonceSize() int {
	return c.aead.NonceSize()
}

// Overhead returns the authentication tag size in bytes.
func (c *baseCipher) Overhead() int {
	return c.aead.Overhead()
}

func (c *baseCipher) encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Prepend nonce to ciphertext
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *baseCipher) decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, errors.New("adaptive: ciphertext too short")
	}

	nonce := ciphertext[:c.aead.NonceSize()]
	ciphertext = ciphertext[c.aead.NonceSize():]

	return c.aead.Open(nil, nonce, ciphertext, additionalData)
}
