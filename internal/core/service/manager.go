package service

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/internal/storage/memory"
	"github.com/yndnr/confmesh-go/internal/telemetry/metric"
)

// Capacity defaults and bounds.
const (
	DefaultMaxKeys       = 128
	DefaultMaxKeyLen     = 32
	DefaultMaxValueSize  = 256
	DefaultMaxNamespaces = 8
	DefaultMaxCallbacks  = 16

	MinMaxKeys, MaxMaxKeys             = 32, 256
	MinMaxKeyLen, MaxMaxKeyLen         = 16, 64
	MinMaxValueSize, MaxMaxValueSize   = 64, 1024
	MinMaxNamespaces, MaxMaxNamespaces = 1, 64
	MinMaxCallbacks, MaxMaxCallbacks   = 1, 256
)

// Config holds the capacity budgets of a Manager. Zero fields take the
// defaults.
type Config struct {
	MaxKeys       int
	MaxKeyLen     int
	MaxValueSize  int
	MaxNamespaces int
	MaxCallbacks  int

	// AutoCommit commits to the backend after every successful Set.
	AutoCommit bool

	// CommitRateLimit caps commits per second; 0 means unlimited.
	// Commits over the limit wait rather than fail.
	CommitRateLimit float64
}

// DefaultConfig returns the default capacity configuration.
func DefaultConfig() Config {
	return Config{
		MaxKeys:       DefaultMaxKeys,
		MaxKeyLen:     DefaultMaxKeyLen,
		MaxValueSize:  DefaultMaxValueSize,
		MaxNamespaces: DefaultMaxNamespaces,
		MaxCallbacks:  DefaultMaxCallbacks,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxKeys == 0 {
		c.MaxKeys = d.MaxKeys
	}
	if c.MaxKeyLen == 0 {
		c.MaxKeyLen = d.MaxKeyLen
	}
	if c.MaxValueSize == 0 {
		c.MaxValueSize = d.MaxValueSize
	}
	if c.MaxNamespaces == 0 {
		c.MaxNamespaces = d.MaxNamespaces
	}
	if c.MaxCallbacks == 0 {
		c.MaxCallbacks = d.MaxCallbacks
	}
	return c
}

// Validate checks every bound. Zero fields are accepted as "use default".
func (c Config) Validate() error {
	c = c.withDefaults()
	checks := []struct {
		name     string
		val      int
		min, max int
	}{
		{"max_keys", c.MaxKeys, MinMaxKeys, MaxMaxKeys},
		{"max_key_len", c.MaxKeyLen, MinMaxKeyLen, MaxMaxKeyLen},
		{"max_value_size", c.MaxValueSize, MinMaxValueSize, MaxMaxValueSize},
		{"max_namespaces", c.MaxNamespaces, MinMaxNamespaces, MaxMaxNamespaces},
		{"max_callbacks", c.MaxCallbacks, MinMaxCallbacks, MaxMaxCallbacks},
	}
	for _, ch := range checks {
		if ch.val < ch.min || ch.val > ch.max {
			return domain.ErrInvalidParameter.WithDetails(
				fmt.Sprintf("%s must be in [%d, %d], got %d", ch.name, ch.min, ch.max, ch.val))
		}
	}
	if c.CommitRateLimit < 0 {
		return domain.ErrInvalidParameter.WithDetails("commit_rate_limit must not be negative")
	}
	return nil
}

// Stats summarizes the manager state.
type Stats struct {
	Entries          int
	MaxEntries       int
	Namespaces       int
	Defaults         int
	Callbacks        int
	EncryptionActive bool
	AutoCommit       bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the Prometheus instruments. nil disables metrics.
func WithMetrics(mt *metric.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// Manager is a configuration manager instance. Independent managers share
// no state. The zero value is not usable; call NewManager.
type Manager struct {
	mu          sync.Mutex
	initialized bool
	epoch       uint64 // bumped by Init so handles from earlier lifetimes go stale
	cfg         Config

	store      *memory.Store
	namespaces *namespaceRegistry
	defaults   *defaultRegistry
	callbacks  *callbackRegistry
	crypto     *cryptoContext
	autoCommit bool

	// backend outlives Init/Deinit.
	backend Backend

	// commitMu serializes backend I/O so images land in commit order.
	commitMu sync.Mutex
	limiter  *rate.Limiter

	last atomic.Value // result

	logger  *slog.Logger
	metrics *metric.Metrics
}

type result struct {
	err error
}

// NewManager creates an uninitialized manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.last.Store(result{})
	return m
}

// ============================================================================
// Lifecycle
// ============================================================================

// Init allocates every substructure with the budgets of cfg.
func (m *Manager) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return m.record("init", err)
	}
	cfg = cfg.withDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return m.record("init", domain.ErrAlreadyInitialized)
	}

	m.cfg = cfg
	m.epoch++
	m.store = memory.New(memory.WithMaxEntries(cfg.MaxKeys))
	m.namespaces = newNamespaceRegistry(cfg.MaxNamespaces)
	m.defaults = newDefaultRegistry(cfg.MaxKeys)
	m.callbacks = newCallbackRegistry(cfg.MaxCallbacks)
	m.crypto = nil
	m.autoCommit = cfg.AutoCommit
	m.limiter = nil
	if cfg.CommitRateLimit > 0 {
		burst := int(cfg.CommitRateLimit)
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.CommitRateLimit), burst)
	}
	m.initialized = true

	m.logger.Info("config manager initialized",
		"max_keys", cfg.MaxKeys,
		"max_key_len", cfg.MaxKeyLen,
		"max_value_size", cfg.MaxValueSize,
		"max_namespaces", cfg.MaxNamespaces,
		"max_callbacks", cfg.MaxCallbacks,
		"auto_commit", cfg.AutoCommit)

	return m.record("init", nil)
}

// Deinit releases every substructure and zeroes key material. The backend
// stays installed. The manager can be initialized again afterwards.
func (m *Manager) Deinit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return m.record("deinit", domain.ErrNotInitialized)
	}

	entries := m.store.Len()
	m.store.Clear()
	m.namespaces.clear()
	m.defaults.clear()
	m.callbacks.clear()
	if m.crypto != nil {
		m.crypto.zero()
		m.crypto = nil
	}
	m.store, m.namespaces, m.defaults, m.callbacks = nil, nil, nil, nil
	m.limiter = nil
	m.initialized = false

	m.logger.Info("config manager deinitialized", "dropped_entries", entries)
	return m.record("deinit", nil)
}

// IsInitialized reports whether Init succeeded and Deinit has not run since.
func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cfg
	c.AutoCommit = m.autoCommit
	return c
}

// SetAutoCommit toggles auto-commit at runtime.
func (m *Manager) SetAutoCommit(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return m.record("set_auto_commit", domain.ErrNotInitialized)
	}
	m.autoCommit = enabled
	return m.record("set_auto_commit", nil)
}

// Stats returns a summary of the manager state. An uninitialized manager
// reports zeros.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Stats{}
	}
	return Stats{
		Entries:          m.store.Len(),
		MaxEntries:       m.store.Cap(),
		Namespaces:       m.namespaces.len(),
		Defaults:         m.defaults.len(),
		Callbacks:        m.callbacks.len(),
		EncryptionActive: m.crypto != nil,
		AutoCommit:       m.autoCommit,
	}
}

// ============================================================================
// Error introspection
// ============================================================================

// LastError returns the error of the most recent operation, nil on success.
func (m *Manager) LastError() error {
	return m.last.Load().(result).err
}

// LastStatus returns the status of the most recent operation.
func (m *Manager) LastStatus() domain.Status {
	return domain.StatusOf(m.LastError())
}

// record stores err as the last result and counts the operation.
func (m *Manager) record(op string, err error) error {
	m.last.Store(result{err: err})
	m.metrics.ObserveOp(op, err)
	return err
}

// ============================================================================
// Validation helpers (callers hold m.mu)
// ============================================================================

func (m *Manager) checkInit() error {
	if !m.initialized {
		return domain.ErrNotInitialized
	}
	return nil
}

func (m *Manager) validateKey(key string) error {
	if len(key) == 0 {
		return domain.ErrKeyTooLong.WithDetails("key is empty")
	}
	if len(key) > m.cfg.MaxKeyLen {
		return domain.ErrKeyTooLong.WithDetails(fmt.Sprintf("key length %d exceeds %d", len(key), m.cfg.MaxKeyLen))
	}
	if !utf8.ValidString(key) {
		return domain.ErrInvalidParameter.WithDetails("key is not valid UTF-8")
	}
	return nil
}

func (m *Manager) validateValue(v domain.Value) error {
	if v == nil || !v.Type().Valid() {
		return domain.ErrInvalidParameter.WithDetails("value is nil")
	}
	if n := len(domain.Payload(v)); n > m.cfg.MaxValueSize {
		return domain.ErrInvalidParameter.WithDetails(
			fmt.Sprintf("value length %d exceeds %d", n, m.cfg.MaxValueSize))
	}
	if str, ok := v.(domain.Str); ok && !utf8.ValidString(string(str)) {
		return domain.ErrInvalidParameter.WithDetails("str value is not valid UTF-8")
	}
	return nil
}
