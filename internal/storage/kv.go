package storage

import (
	"errors"
	"time"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

// Common errors
var (
	// ErrKeyNotFound is returned by Read for keys that are neither staged nor
	// committed. It matches domain.ErrNotFound under errors.Is.
	ErrKeyNotFound = domain.ErrNotFound.WithDetails("backend key not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("storage: backend closed")
)

// stagedOp is a pending change awaiting Commit.
type stagedOp struct {
	data  []byte
	erase bool
}

// Stats contains backend statistics.
type Stats struct {
	// StagedKeys is the number of uncommitted changes.
	StagedKeys int

	// Commits is the number of successful commits since open.
	Commits uint64

	// LSMSize is the LSM tree size (Badger only).
	LSMSize uint64

	// ValueLogSize is the value log size (Badger only).
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64

	// GCRuns is the number of value-log rewrites performed by GC.
	GCRuns uint64
}

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory (tests).
	InMemory bool

	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 8MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// SyncWrites fsyncs every commit.
	// Default: true
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
//
// Configuration images are small, so caches and value-log files are far
// below Badger's server-oriented defaults.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        8 << 20,  // 8MB
		ValueLogFileSize: 64 << 20, // 64MB
		SyncWrites:       true,
	}
}
