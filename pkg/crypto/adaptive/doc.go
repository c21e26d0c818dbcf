// Package adaptive provides authenticated encryption for confmesh values.
//
// Supported Algorithms:
//
//   - AES-128-GCM: 16-byte keys
//   - AES-256-GCM: 32-byte keys
//   - ChaCha20-Poly1305: 32-byte keys, for targets without AES acceleration
//
// Every algorithm demands an exact key length; there is no padding or
// truncation of key material.
//
// Ciphertext layout is nonce || sealed(plaintext, tag). Nonces are random
// per call, so encrypting the same plaintext twice yields different bytes.
//
// Usage:
//
//	c, err := adaptive.New(key, adaptive.AES128)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
//
// Keys can be derived from passphrases with DeriveKey (Argon2id).
package adaptive
