package config

import (
	"time"

	"github.com/yndnr/confmesh-go/internal/core/service"
)

// Config is the root configuration of a confmesh instance.
type Config struct {
	Manager  ManagerSection  `koanf:"manager"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ManagerSection configures manager capacity budgets.
type ManagerSection struct {
	MaxKeys       int  `koanf:"max_keys"`
	MaxKeyLen     int  `koanf:"max_key_len"`
	MaxValueSize  int  `koanf:"max_value_size"`
	MaxNamespaces int  `koanf:"max_namespaces"`
	MaxCallbacks  int  `koanf:"max_callbacks"`
	AutoCommit    bool `koanf:"auto_commit"`

	// CommitRateLimit caps commits per second; 0 disables throttling.
	CommitRateLimit float64 `koanf:"commit_rate_limit"`
}

// ServiceConfig converts the section to a service.Config.
func (s ManagerSection) ServiceConfig() service.Config {
	return service.Config{
		MaxKeys:         s.MaxKeys,
		MaxKeyLen:       s.MaxKeyLen,
		MaxValueSize:    s.MaxValueSize,
		MaxNamespaces:   s.MaxNamespaces,
		MaxCallbacks:    s.MaxCallbacks,
		AutoCommit:      s.AutoCommit,
		CommitRateLimit: s.CommitRateLimit,
	}
}

// Storage backend kinds.
const (
	BackendRAM    = "ram"
	BackendBadger = "badger"
	BackendNone   = "none"
)

// StorageSection configures the persistence backend.
type StorageSection struct {
	// Backend is one of "ram", "badger" or "none".
	Backend    string        `koanf:"backend"`
	Dir        string        `koanf:"dir"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`

	// LoadOnOpen loads the last commit when the instance opens.
	LoadOnOpen bool `koanf:"load_on_open"`
	// CommitOnClose commits before the instance closes.
	CommitOnClose bool `koanf:"commit_on_close"`
}

// SecuritySection configures value encryption.
//
// Key material comes from either EncryptionKey (hex) or Passphrase plus
// Salt (hex), never both.
type SecuritySection struct {
	Algorithm     string `koanf:"algorithm"`
	EncryptionKey string `koanf:"encryption_key"`
	Passphrase    string `koanf:"passphrase"`
	Salt          string `koanf:"salt"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
