package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
)

// AESGCM implements AES-GCM authenticated encryption.
type AESGCM struct {
	baseCipher
	algo Algorithm
}

// NewAESGCM creates a new AES-GCM cipher.
//
// Key must be 16 bytes (AES-128) or 32 bytes (AES-256).
func NewAESGCM(key []byte) (*AESGCM, error) {
	var algo Algorithm
	switch len(key) {
	case 16:
		algo = AES128
	case 32:
		algo = AES256
	default:
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &AESGCM{
		baseCipher: baseCipher{aead: aead},
		algo:       algo,
	}, nil
}

// Algorithm returns AES128 or AES256 depending on the key length.
func (c *AESGCM) Algorithm() Algorithm {
	return c.algo
}

// Encrypt encrypts plaintext with additional data.
func (c *AESGCM) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	return c.encrypt(plaintext, additionalData)
}

// Decrypt decrypts ciphertext with additional data.
func (c *AESGCM) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	return c.decrypt(ciphertext, additionalData)
}
