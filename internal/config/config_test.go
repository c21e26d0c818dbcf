package config

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/confmesh-go/internal/core/service"
	"github.com/yndnr/confmesh-go/pkg/crypto/adaptive"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Manager.MaxKeys != service.DefaultMaxKeys {
		t.Errorf("MaxKeys = %d, want %d", cfg.Manager.MaxKeys, service.DefaultMaxKeys)
	}
	if cfg.Manager.AutoCommit {
		t.Error("AutoCommit should be disabled by default")
	}
	if cfg.Storage.Backend != DefaultBackend {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, DefaultBackend)
	}
	if !cfg.Storage.CommitOnClose {
		t.Error("CommitOnClose should be enabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) = %v", err)
	}
}

func TestManagerSection_ServiceConfig(t *testing.T) {
	s := ManagerSection{MaxKeys: 10, MaxKeyLen: 16, MaxValueSize: 64, MaxNamespaces: 2, MaxCallbacks: 4, AutoCommit: true, CommitRateLimit: 5}
	got := s.ServiceConfig()
	want := service.Config{MaxKeys: 10, MaxKeyLen: 16, MaxValueSize: 64, MaxNamespaces: 2, MaxCallbacks: 4, AutoCommit: true, CommitRateLimit: 5}
	if got != want {
		t.Errorf("ServiceConfig() = %+v, want %+v", got, want)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative max keys", func(c *Config) { c.Manager.MaxKeys = -1 }, "manager"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }, "storage.backend"},
		{"none backend", func(c *Config) { c.Storage.Backend = BackendNone }, ""},
		{"badger without dir", func(c *Config) {
			c.Storage.Backend = BackendBadger
			c.Storage.Dir = ""
		}, "storage.dir"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad algorithm", func(c *Config) {
			c.Security.Algorithm = "rot13"
			c.Security.EncryptionKey = strings.Repeat("00", 32)
		}, "security.algorithm"},
		{"key and passphrase", func(c *Config) {
			c.Security.EncryptionKey = strings.Repeat("00", 32)
			c.Security.Passphrase = "long enough passphrase"
		}, "mutually exclusive"},
		{"key not hex", func(c *Config) { c.Security.EncryptionKey = "zz" }, "not hex"},
		{"key wrong size", func(c *Config) { c.Security.EncryptionKey = strings.Repeat("00", 16) }, "must be 32 bytes"},
		{"passphrase without salt", func(c *Config) { c.Security.Passphrase = "long enough passphrase" }, "security.salt"},
		{"short passphrase", func(c *Config) {
			c.Security.Passphrase = "short"
			c.Security.Salt = strings.Repeat("ab", adaptive.SaltLength)
		}, "security.passphrase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Verify() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_BadgerCreatesDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendBadger
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "a", "b")

	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify() = %v", err)
	}
}

func TestSecuritySection_KeyMaterial(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		key, algo, err := SecuritySection{Algorithm: DefaultAlgorithm}.KeyMaterial()
		if err != nil || key != nil || algo != adaptive.AlgorithmNone {
			t.Errorf("KeyMaterial() = %v, %v, %v", key, algo, err)
		}
	})

	t.Run("hex key", func(t *testing.T) {
		raw := []byte("0123456789abcdef")
		s := SecuritySection{Algorithm: "aes-128-gcm", EncryptionKey: hex.EncodeToString(raw)}
		key, algo, err := s.KeyMaterial()
		if err != nil {
			t.Fatalf("KeyMaterial() error = %v", err)
		}
		if string(key) != string(raw) || algo != adaptive.AES128 {
			t.Errorf("KeyMaterial() = %x, %v", key, algo)
		}
	})

	t.Run("passphrase is deterministic", func(t *testing.T) {
		s := SecuritySection{
			Algorithm:  "chacha20-poly1305",
			Passphrase: "correct horse battery",
			Salt:       strings.Repeat("5a", adaptive.SaltLength),
		}
		k1, algo, err := s.KeyMaterial()
		if err != nil {
			t.Fatalf("KeyMaterial() error = %v", err)
		}
		k2, _, _ := s.KeyMaterial()
		if len(k1) != adaptive.ChaCha20Poly1305.KeySize() || algo != adaptive.ChaCha20Poly1305 {
			t.Errorf("key len = %d, algo = %v", len(k1), algo)
		}
		if hex.EncodeToString(k1) != hex.EncodeToString(k2) {
			t.Error("same passphrase and salt produced different keys")
		}
	})
}

func TestRestartRequired(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   bool
	}{
		{"unchanged", func(*Config) {}, false},
		{"log level", func(c *Config) { c.Log.Level = "debug" }, false},
		{"auto commit", func(c *Config) { c.Manager.AutoCommit = true }, false},
		{"max keys", func(c *Config) { c.Manager.MaxKeys = 64 }, true},
		{"backend", func(c *Config) { c.Storage.Backend = BackendBadger }, true},
		{"log format", func(c *Config) { c.Log.Format = "text" }, true},
		{"key", func(c *Config) { c.Security.EncryptionKey = "00" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := Default()
			next := Default()
			tt.mutate(next)
			if got := RestartRequired(prev, next); got != tt.want {
				t.Errorf("RestartRequired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Security.EncryptionKey = "00112233445566778899aabbccddeeff"
	cfg.Security.Passphrase = "hunter2hunter2"

	sanitized := Sanitize(cfg)

	if cfg.Security.EncryptionKey != "00112233445566778899aabbccddeeff" {
		t.Error("Original config should not be modified")
	}
	if sanitized.Security.EncryptionKey == cfg.Security.EncryptionKey {
		t.Error("Sanitized config should mask the encryption key")
	}
	if len(sanitized.Security.EncryptionKey) != len(cfg.Security.EncryptionKey) {
		t.Errorf("Masked key length = %d, want %d", len(sanitized.Security.EncryptionKey), len(cfg.Security.EncryptionKey))
	}
	if !strings.HasPrefix(sanitized.Security.EncryptionKey, "00") || !strings.HasSuffix(sanitized.Security.EncryptionKey, "ff") {
		t.Errorf("Masked key = %q", sanitized.Security.EncryptionKey)
	}
	if sanitized.Security.Passphrase != "****" {
		t.Errorf("Passphrase = %q, want ****", sanitized.Security.Passphrase)
	}
}

func TestSanitize_EmptySecrets(t *testing.T) {
	sanitized := Sanitize(Default())
	if sanitized.Security.EncryptionKey != "" || sanitized.Security.Passphrase != "" {
		t.Error("Empty secrets should stay empty")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "****"},
		{"abcd", "****"},
		{"abcde", "ab*de"},
		{"secret-value", "se********ue"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
