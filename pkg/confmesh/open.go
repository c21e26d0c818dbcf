package confmesh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/confmesh-go/internal/config"
	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/internal/core/service"
	"github.com/yndnr/confmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/confmesh-go/internal/infra/confloader"
	"github.com/yndnr/confmesh-go/internal/storage"
	"github.com/yndnr/confmesh-go/internal/telemetry/logger"
	"github.com/yndnr/confmesh-go/internal/telemetry/metric"
	"github.com/yndnr/confmesh-go/pkg/crypto/adaptive"
)

// DefaultWatchDebounce coalesces editor write bursts into one reload.
const DefaultWatchDebounce = 250 * time.Millisecond

// Option configures Open.
type Option func(*options)

type options struct {
	watch      bool
	debounce   time.Duration
	registerer prometheus.Registerer
	envPrefix  string
	logOutput  io.Writer
}

// WithWatch reloads hot-reloadable settings when the configuration file
// changes.
func WithWatch() Option {
	return func(o *options) {
		o.watch = true
	}
}

// WithWatchDebounce overrides DefaultWatchDebounce.
func WithWatchDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithRegisterer registers manager and backend metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithEnvPrefix overrides the CONFMESH_ environment prefix. An empty
// prefix ignores the environment.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithLogOutput sends log output to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// Instance is an opened configuration manager together with its backend
// and configuration watcher.
type Instance struct {
	*Manager

	mu      sync.Mutex
	cfg     *config.Config
	loader  *confloader.Loader
	backend io.Closer
	watcher *confloader.Watcher
	logger  *slog.Logger

	// opened is set once Open succeeds; a failed Open never commits.
	opened bool

	closeOnce sync.Once
	closeErr  error
}

// Open loads the configuration at path and returns an initialized
// Instance. An empty path configures from defaults and the environment.
func Open(path string, opts ...Option) (*Instance, error) {
	o := options{
		debounce:  DefaultWatchDebounce,
		envPrefix: confloader.DefaultEnvPrefix,
		logOutput: os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.watch && path == "" {
		return nil, errors.New("confmesh: watching requires a configuration file")
	}

	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithEnvPrefix(o.envPrefix),
	)
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("confmesh: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("confmesh: invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: o.logOutput,
	})

	inst := &Instance{
		cfg:    cfg,
		loader: loader,
		logger: log,
	}
	if err := inst.open(path, &o); err != nil {
		inst.Close()
		return nil, err
	}
	inst.opened = true

	sanitized := config.Sanitize(cfg)
	log.Info("confmesh opened",
		"version", buildinfo.String(),
		"config_file", path,
		"backend", sanitized.Storage.Backend,
		"max_keys", sanitized.Manager.MaxKeys,
		"encryption", cfg.Security.EncryptionKey != "" || cfg.Security.Passphrase != "",
		"watch", o.watch,
	)
	return inst, nil
}

func (i *Instance) open(path string, o *options) error {
	cfg := i.cfg

	backend, err := newBackend(&cfg.Storage, i.logger, o.registerer)
	if err != nil {
		return fmt.Errorf("confmesh: open backend: %w", err)
	}

	var mt *metric.Metrics
	if o.registerer != nil {
		mt = metric.New(o.registerer)
	}

	i.Manager = service.NewManager(service.WithLogger(i.logger), service.WithMetrics(mt))
	if err := i.Init(cfg.Manager.ServiceConfig()); err != nil {
		closeBackend(backend)
		return fmt.Errorf("confmesh: %w", err)
	}
	if backend != nil {
		i.SetBackend(backend)
		i.backend = backend
	}

	if o.registerer != nil {
		o.registerer.MustRegister(metric.NewCollector(i.snapshot))
	}

	key, algo, err := cfg.Security.KeyMaterial()
	if err != nil {
		return fmt.Errorf("confmesh: %w", err)
	}
	if key != nil {
		err := i.SetEncryptionKey(key, algo)
		adaptive.ZeroKey(key)
		if err != nil {
			return fmt.Errorf("confmesh: install encryption key: %w", err)
		}
	}

	if cfg.Storage.LoadOnOpen && backend != nil {
		if err := i.Load(context.Background()); err != nil && domain.StatusOf(err) != domain.StatusNotFound {
			return fmt.Errorf("confmesh: load committed configuration: %w", err)
		}
	}

	if o.watch {
		w, err := confloader.NewWatcher(
			confloader.WithWatcherLogger(i.logger),
			confloader.WithDebounce(o.debounce),
		)
		if err != nil {
			return fmt.Errorf("confmesh: create watcher: %w", err)
		}
		i.watcher = w
		if err := w.Watch(path); err != nil {
			return fmt.Errorf("confmesh: watch %s: %w", path, err)
		}
		w.OnChange(func(string) { i.Reload() })
		w.StartAsync()
	}
	return nil
}

// stagedCloser is a Backend that owns resources.
type stagedCloser interface {
	service.Backend
	io.Closer
}

func newBackend(cfg *config.StorageSection, log *slog.Logger, reg prometheus.Registerer) (stagedCloser, error) {
	switch cfg.Backend {
	case config.BackendRAM:
		return storage.NewRAMBackend(), nil
	case config.BackendBadger:
		bc := storage.DefaultBadgerConfig(cfg.Dir)
		bc.SyncWrites = cfg.SyncWrites
		if cfg.GCInterval > 0 {
			bc.GCInterval = cfg.GCInterval
		}
		b, err := storage.NewBadgerBackend(bc, log)
		if err != nil {
			return nil, err
		}
		if reg != nil {
			b.RegisterMetrics(reg)
		}
		return b, nil
	default:
		return nil, nil
	}
}

func closeBackend(b io.Closer) {
	if b != nil {
		b.Close()
	}
}

func (i *Instance) snapshot() metric.Snapshot {
	s := i.Stats()
	return metric.Snapshot{
		Entries:          s.Entries,
		Namespaces:       s.Namespaces,
		Defaults:         s.Defaults,
		Callbacks:        s.Callbacks,
		EncryptionActive: s.EncryptionActive,
	}
}

// Version returns the confmesh build information.
func Version() buildinfo.Info {
	return buildinfo.Get()
}

// Settings returns a sanitized copy of the active configuration.
func (i *Instance) Settings() *config.Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return config.Sanitize(i.cfg)
}

// Reload re-reads the configuration file and applies the hot-reloadable
// settings (log.level and manager.auto_commit). Other changes are logged
// and ignored until the instance is reopened.
func (i *Instance) Reload() error {
	next := config.Default()
	if err := i.loader.Reload(next); err != nil {
		i.logger.Warn("configuration reload failed", "error", err)
		return err
	}
	if err := config.Verify(next); err != nil {
		i.logger.Warn("reloaded configuration rejected", "error", err)
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if config.RestartRequired(i.cfg, next) {
		i.logger.Warn("configuration changes other than log.level and manager.auto_commit require a restart")
	}
	if next.Log.Level != i.cfg.Log.Level {
		logger.SetLevel(next.Log.Level)
		i.cfg.Log.Level = next.Log.Level
	}
	if next.Manager.AutoCommit != i.cfg.Manager.AutoCommit {
		if err := i.SetAutoCommit(next.Manager.AutoCommit); err != nil {
			return err
		}
		i.cfg.Manager.AutoCommit = next.Manager.AutoCommit
	}

	i.logger.Info("configuration reloaded",
		"log_level", i.cfg.Log.Level,
		"auto_commit", i.cfg.Manager.AutoCommit,
	)
	return nil
}

// Close commits when storage.commit_on_close is set, deinitializes the
// manager, stops the watcher and closes the backend. Close is idempotent.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		var errs []error

		if i.watcher != nil {
			if err := i.watcher.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop watcher: %w", err))
			}
		}

		if i.Manager != nil && i.IsInitialized() {
			if i.opened && i.cfg.Storage.CommitOnClose && i.backend != nil {
				if err := i.Commit(context.Background()); err != nil {
					errs = append(errs, fmt.Errorf("commit: %w", err))
				}
			}
			if err := i.Deinit(); err != nil {
				errs = append(errs, fmt.Errorf("deinit: %w", err))
			}
		}

		if i.backend != nil {
			if err := i.backend.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close backend: %w", err))
			}
		}

		i.closeErr = errors.Join(errs...)
		if i.closeErr != nil {
			i.logger.Error("confmesh close failed", "error", i.closeErr)
		} else {
			i.logger.Info("confmesh closed")
		}
	})
	return i.closeErr
}
