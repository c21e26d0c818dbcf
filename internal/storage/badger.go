package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/confmesh-go/pkg/cmap"
)

// BadgerBackend persists committed images in Badger v3.
//
// Writes and erases are staged in memory and flushed in a single Badger
// transaction by Commit, so a commit is all-or-nothing on disk.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	// mu excludes staging while a commit is flushed.
	mu     sync.RWMutex
	staged *cmap.Map[stagedOp]

	commits    atomic.Uint64
	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once

	// Prometheus metrics
	metricsLSMSize      prometheus.GaugeFunc
	metricsValueLogSize prometheus.GaugeFunc
	metricsGCRuns       prometheus.Counter

	// Shutdown
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerBackend opens (or creates) a Badger database.
func NewBadgerBackend(cfg BadgerConfig, logger *slog.Logger) (*BadgerBackend, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultBadgerConfig(cfg.Dir)
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = defaults.GCInterval
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = defaults.GCThreshold
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.ValueLogFileSize <= 0 {
		cfg.ValueLogFileSize = defaults.ValueLogFileSize
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.BlockCacheSize = cfg.CacheSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	b := &BadgerBackend{
		db:     db,
		cfg:    cfg,
		logger: logger,
		staged: cmap.New[stagedOp](),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	// Value-log GC does not apply to in-memory databases.
	if cfg.InMemory {
		close(b.doneCh)
	} else {
		go b.gcLoop()
	}

	logger.Info("badger backend started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"sync_writes", cfg.SyncWrites,
		"gc_interval", cfg.GCInterval)

	return b, nil
}

// Read returns the staged value of key, or the committed one.
func (b *BadgerBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if op, ok := b.staged.Get(key); ok {
		if op.erase {
			return nil, ErrKeyNotFound
		}
		return bytes.Clone(op.data), nil
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Write stages data under key.
func (b *BadgerBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if key == "" {
		return badger.ErrEmptyKey
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	b.staged.Set(key, stagedOp{data: bytes.Clone(data)})
	return nil
}

// Erase stages the removal of key. Erasing a missing key is not an error.
func (b *BadgerBackend) Erase(ctx context.Context, key string) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if key == "" {
		return badger.ErrEmptyKey
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	b.staged.Set(key, stagedOp{erase: true})
	return nil
}

// Commit flushes every staged change in one transaction.
//
// On failure the staged changes are kept so a later Commit can retry.
func (b *BadgerBackend) Commit(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ops := b.staged.Drain()
	if len(ops) == 0 {
		b.commits.Add(1)
		return nil
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for key, op := range ops {
			if err := ctx.Err(); err != nil {
				return err
			}
			if op.erase {
				if err := txn.Delete([]byte(key)); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set([]byte(key), op.data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for key, op := range ops {
			b.staged.Set(key, op)
		}
		return fmt.Errorf("badger: commit %d changes: %w", len(ops), err)
	}

	b.commits.Add(1)
	b.logger.Debug("badger commit applied", "changes", len(ops))
	return nil
}

// Keys returns the committed keys with the given prefix, in key order.
func (b *BadgerBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// GC runs value-log garbage collection until Badger finds nothing to rewrite.
// Returns the number of rewrites performed.
func (b *BadgerBackend) GC(ctx context.Context) (uint64, error) {
	if b.cfg.InMemory {
		return 0, nil
	}
	if err := b.check(ctx); err != nil {
		return 0, err
	}

	startTime := time.Now()
	var runs uint64
	for {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("badger: gc: %w", err)
		}
		runs++
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcRuns.Add(runs)
	if b.metricsGCRuns != nil {
		b.metricsGCRuns.Add(float64(runs))
	}

	b.logger.Debug("badger gc completed",
		"rewrites", runs,
		"elapsed", time.Since(startTime))

	return runs, nil
}

// Stats returns backend statistics.
func (b *BadgerBackend) Stats() Stats {
	lsm, vlog := b.db.Size()
	return Stats{
		StagedKeys:   b.staged.Count(),
		Commits:      b.commits.Load(),
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		LastGCTime:   b.lastGCTime.Load(),
		GCRuns:       b.gcRuns.Load(),
	}
}

// Close stops background work and closes the database. Staged changes that
// were never committed are discarded.
func (b *BadgerBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.logger.Info("shutting down badger backend", "discarded_changes", b.staged.Count())
		b.closed.Store(true)

		close(b.stopCh)
		<-b.doneCh

		b.mu.Lock()
		defer b.mu.Unlock()
		if cerr := b.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
		}
	})
	return err
}

// RegisterMetrics registers Badger size gauges and a GC counter.
//
// This should be called once during initialization.
// Returns the backend for method chaining.
func (b *BadgerBackend) RegisterMetrics(reg prometheus.Registerer) *BadgerBackend {
	b.metricsLSMSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "confmesh",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	}, func() float64 {
		lsm, _ := b.db.Size()
		return float64(lsm)
	})

	b.metricsValueLogSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "confmesh",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	}, func() float64 {
		_, vlog := b.db.Size()
		return float64(vlog)
	})

	b.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "confmesh",
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Total value-log rewrites performed by Badger garbage collection",
	})

	reg.MustRegister(b.metricsLSMSize, b.metricsValueLogSize, b.metricsGCRuns)
	return b
}

// gcLoop runs periodic garbage collection.
func (b *BadgerBackend) gcLoop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-b.stopCh:
			return
		}
	}
}

func (b *BadgerBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
