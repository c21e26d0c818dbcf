package adaptive

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// MinPassphraseLength is the minimum passphrase length accepted by DeriveKey.
	MinPassphraseLength = 8

	// SaltLength is the salt length produced by GenerateSalt.
	SaltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// ErrPassphraseTooWeak is returned for passphrases shorter than MinPassphraseLength.
var ErrPassphraseTooWeak = errors.New("adaptive: passphrase too weak (minimum 8 characters)")

// DeriveKey derives key material for algo from a passphrase using Argon2id.
// The same passphrase and salt always yield the same key.
func DeriveKey(passphrase, salt []byte, algo Algorithm) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) < SaltLength {
		return nil, fmt.Errorf("adaptive: salt must be at least %d bytes", SaltLength)
	}
	size := algo.KeySize()
	if size == 0 {
		return nil, fmt.Errorf("adaptive: unsupported algorithm %d", algo)
	}
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, uint32(size)), nil
}

// GenerateSalt returns SaltLength random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("adaptive: generate salt: %w", err)
	}
	return salt, nil
}

// ZeroKey overwrites key material in place.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
