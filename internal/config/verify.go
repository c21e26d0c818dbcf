package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/yndnr/confmesh-go/internal/telemetry/logger"
	"github.com/yndnr/confmesh-go/pkg/crypto/adaptive"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := cfg.Manager.ServiceConfig().Validate(); err != nil {
		return fmt.Errorf("manager: %w", err)
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if _, _, err := cfg.Security.KeyMaterial(); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case BackendRAM, BackendNone:
		return nil
	case BackendBadger:
	default:
		return fmt.Errorf("storage.backend must be ram, badger or none, got %q", cfg.Backend)
	}

	if cfg.Dir == "" {
		return errors.New("storage.dir is required for the badger backend")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create storage directory: " + err.Error())
	}
	if cfg.GCInterval < 0 {
		return errors.New("storage.gc_interval must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
	return nil
}

// KeyMaterial returns the configured encryption key. A nil key means
// encryption is not configured. A passphrase is stretched with Argon2id.
func (s SecuritySection) KeyMaterial() ([]byte, adaptive.Algorithm, error) {
	if s.EncryptionKey == "" && s.Passphrase == "" {
		return nil, adaptive.AlgorithmNone, nil
	}
	if s.EncryptionKey != "" && s.Passphrase != "" {
		return nil, adaptive.AlgorithmNone, errors.New("security.encryption_key and security.passphrase are mutually exclusive")
	}

	algo, err := adaptive.ParseAlgorithm(s.Algorithm)
	if err != nil {
		return nil, adaptive.AlgorithmNone, fmt.Errorf("security.algorithm: %w", err)
	}

	if s.EncryptionKey != "" {
		key, err := hex.DecodeString(s.EncryptionKey)
		if err != nil {
			return nil, adaptive.AlgorithmNone, fmt.Errorf("security.encryption_key is not hex: %w", err)
		}
		if len(key) != algo.KeySize() {
			return nil, adaptive.AlgorithmNone, fmt.Errorf("security.encryption_key must be %d bytes for %s, got %d",
				algo.KeySize(), algo, len(key))
		}
		return key, algo, nil
	}

	if s.Salt == "" {
		return nil, adaptive.AlgorithmNone, errors.New("security.salt is required with security.passphrase")
	}
	salt, err := hex.DecodeString(s.Salt)
	if err != nil {
		return nil, adaptive.AlgorithmNone, fmt.Errorf("security.salt is not hex: %w", err)
	}
	key, err := adaptive.DeriveKey([]byte(s.Passphrase), salt, algo)
	if err != nil {
		return nil, adaptive.AlgorithmNone, fmt.Errorf("security.passphrase: %w", err)
	}
	return key, algo, nil
}

// RestartRequired reports whether next differs from prev in any field
// that cannot be applied to a running instance. Only log.level and
// manager.auto_commit are hot-reloadable.
func RestartRequired(prev, next *Config) bool {
	a, b := *prev, *next
	a.Log.Level, b.Log.Level = "", ""
	a.Manager.AutoCommit, b.Manager.AutoCommit = false, false
	return a != b
}
