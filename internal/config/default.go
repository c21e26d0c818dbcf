package config

import (
	"time"

	"github.com/yndnr/confmesh-go/internal/core/service"
)

// Default configuration values.
const (
	DefaultBackend    = BackendRAM
	DefaultDir        = "/var/lib/confmesh"
	DefaultGCInterval = 10 * time.Minute
	DefaultAlgorithm  = "aes-256-gcm"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Manager: ManagerSection{
			MaxKeys:       service.DefaultMaxKeys,
			MaxKeyLen:     service.DefaultMaxKeyLen,
			MaxValueSize:  service.DefaultMaxValueSize,
			MaxNamespaces: service.DefaultMaxNamespaces,
			MaxCallbacks:  service.DefaultMaxCallbacks,
		},
		Storage: StorageSection{
			Backend:       DefaultBackend,
			Dir:           DefaultDir,
			SyncWrites:    true,
			GCInterval:    DefaultGCInterval,
			CommitOnClose: true,
		},
		Security: SecuritySection{
			Algorithm: DefaultAlgorithm,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
