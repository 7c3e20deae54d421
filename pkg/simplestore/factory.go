package simplestore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/maxiofs/simplestore/internal/config"
	"github.com/maxiofs/simplestore/internal/metrics"
	"github.com/maxiofs/simplestore/internal/registry"
	"github.com/maxiofs/simplestore/internal/storage"
	"github.com/maxiofs/simplestore/pkg/compression"
	"github.com/maxiofs/simplestore/pkg/encryption"
	"github.com/maxiofs/simplestore/pkg/executors"
)

// Options configures a Factory.
type Options struct {
	// DataDir and CacheDir feed the default RootDirectoryProvider; they are
	// ignored when Provider is set.
	DataDir  string
	CacheDir string
	Provider DirectoryProvider

	// Engine is one of "filesystem" (default), "badger" or "pebble".
	Engine     string
	SyncWrites bool

	// Compression is "none" (default) or "snappy"; values shorter than
	// CompressionThreshold are stored as is.
	Compression          string
	CompressionThreshold int
	// EncryptionKey enables AES-GCM sealing of stored values. Keys that are
	// not 32 bytes long are stretched with PBKDF2.
	EncryptionKey string

	// IOExecutor runs storage work. When nil the factory starts its own
	// pool of Workers goroutines with a queue of QueueSize.
	IOExecutor executors.Executor
	Workers    int
	QueueSize  int

	// CallbackExecutor delivers future callbacks. When nil the factory
	// starts a serial executor, so callbacks never run on IO goroutines.
	CallbackExecutor executors.Executor

	EnableMetrics    bool
	MetricsNamespace string

	Logger *logrus.Logger
}

// Factory opens Stores and enforces one open Store per namespace.
type Factory struct {
	provider  DirectoryProvider
	registry  *registry.Registry
	io        executors.Executor
	callbacks executors.Executor
	metrics   metrics.Manager
	logger    *logrus.Logger
	storage   storage.Options

	// Executors started by the factory and stopped by Close
	pool   *executors.Pool
	serial *executors.Serial

	mu      sync.Mutex
	handles map[string]*store
	// Handles closed by their owner but not yet released, by namespace.
	pending map[string]*store
	closed  bool
}

// NewFactory builds a Factory from opts.
func NewFactory(opts Options) (*Factory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	provider := opts.Provider
	if provider == nil {
		if opts.DataDir == "" {
			return nil, fmt.Errorf("simplestore: a data directory or directory provider is required")
		}
		provider = NewRootDirectoryProvider(opts.DataDir, opts.CacheDir)
	}

	storageOpts := storage.Options{
		Engine:     opts.Engine,
		SyncWrites: opts.SyncWrites,
		Logger:     logger,
	}
	switch storageOpts.Engine {
	case "", storage.EngineFilesystem, storage.EngineBadger, storage.EnginePebble:
	default:
		return nil, fmt.Errorf("simplestore: %w", storage.ErrUnsupportedEngine)
	}

	if opts.Compression != "" && opts.Compression != compression.AlgorithmNone {
		compressor, err := compression.NewCompressor(&compression.CompressionConfig{
			Algorithm: opts.Compression,
			MinSize:   opts.CompressionThreshold,
		})
		if err != nil {
			return nil, fmt.Errorf("simplestore: %w", err)
		}
		storageOpts.Compressor = compressor
	}

	if opts.EncryptionKey != "" {
		sealer, err := encryption.NewAESGCMSealer([]byte(opts.EncryptionKey), encryption.DefaultEncryptionConfig())
		if err != nil {
			return nil, fmt.Errorf("simplestore: %w", err)
		}
		storageOpts.Sealer = sealer
	}

	f := &Factory{
		provider:  provider,
		registry:  registry.New(),
		io:        opts.IOExecutor,
		callbacks: opts.CallbackExecutor,
		metrics: metrics.NewManager(config.MetricsConfig{
			Enable:    opts.EnableMetrics,
			Namespace: opts.MetricsNamespace,
		}),
		logger:  logger,
		storage: storageOpts,
		handles: make(map[string]*store),
		pending: make(map[string]*store),
	}

	if f.io == nil {
		f.pool = executors.NewPool(executors.PoolConfig{
			Name:      "simplestore-io",
			Workers:   opts.Workers,
			QueueSize: opts.QueueSize,
			Logger:    logger,
		})
		if err := f.pool.Start(); err != nil {
			return nil, err
		}
		f.io = f.pool
	}
	if f.callbacks == nil {
		f.serial = executors.NewSerial()
		f.callbacks = f.serial
	}

	return f, nil
}

// FromConfig builds a Factory from loaded configuration.
func FromConfig(cfg *config.Config, logger *logrus.Logger) (*Factory, error) {
	return NewFactory(Options{
		DataDir:              cfg.DataDir,
		CacheDir:             cfg.CacheDir,
		Engine:               cfg.Storage.Engine,
		SyncWrites:           cfg.Storage.SyncWrites,
		Compression:          cfg.Storage.Compression,
		CompressionThreshold: cfg.Storage.CompressionThreshold,
		EncryptionKey:        cfg.Storage.EncryptionKey,
		Workers:              cfg.Executor.Workers,
		QueueSize:            cfg.Executor.QueueSize,
		EnableMetrics:        cfg.Metrics.Enable,
		MetricsNamespace:     cfg.Metrics.Namespace,
		Logger:               logger,
	})
}

// Open returns the Store for namespace. It panics with an error matching
// ErrAlreadyOpen if the namespace already has an open Store: two handles on
// one namespace would lose updates. A Store that is still closing is waited
// for.
func (f *Factory) Open(namespace string, cfg NamespaceConfig) (Store, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	f.mu.Lock()
	for {
		if f.closed {
			f.mu.Unlock()
			return nil, fmt.Errorf("simplestore: factory is closed")
		}
		prev, ok := f.pending[namespace]
		if !ok {
			break
		}
		f.mu.Unlock()
		<-prev.done
		f.mu.Lock()
	}
	defer f.mu.Unlock()

	token := f.registry.MustRegister(namespace)

	dir, err := f.provider.Resolve(namespace, cfg)
	if err != nil {
		f.unregister(token)
		return nil, err
	}

	opts := f.storage
	opts.Dir = dir
	switch cfg {
	case NamespaceConfigCache:
		opts.SyncWrites = false
	case NamespaceConfigCritical:
		opts.SyncWrites = true
	}

	backend, err := storage.NewBackend(opts)
	if err != nil {
		f.unregister(token)
		return nil, &IOError{Op: "open", Namespace: namespace, Err: err}
	}

	s := newStore(f, token, cfg, dir, backend)
	f.handles[namespace] = s

	f.metrics.HandleOpened()
	s.log.WithFields(logrus.Fields{
		"config": cfg.String(),
		"dir":    dir,
	}).Debug("Namespace opened")

	return s, nil
}

func (f *Factory) unregister(token registry.Token) {
	if err := f.registry.Unregister(token); err != nil {
		f.logger.WithError(err).WithField("namespace", token.Namespace).Error("Failed to release namespace")
	}
}

// MustOpen is Open for namespaces known to be valid.
func (f *Factory) MustOpen(namespace string, cfg NamespaceConfig) Store {
	s, err := f.Open(namespace, cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// AssertNoneOpen returns an error matching ErrLeaked that lists every
// namespace still open. Tests and shutdown paths use it to catch leaks.
// Stores already closing are waited for first.
func (f *Factory) AssertNoneOpen() error {
	f.mu.Lock()
	closing := make([]*store, 0, len(f.pending))
	for _, s := range f.pending {
		closing = append(closing, s)
	}
	f.mu.Unlock()

	for _, s := range closing {
		<-s.done
	}
	return f.registry.AssertNoneOpen()
}

// Metrics exposes the factory's metrics.
func (f *Factory) Metrics() metrics.Manager {
	return f.metrics
}

// Close stops the executors the factory started. Stores still open are
// logged and left usable only until their queued work drains.
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	err := f.AssertNoneOpen()
	if err != nil {
		f.logger.WithError(err).WithField("open", f.registry.Len()).Warn("Closing factory with open namespaces")
	}

	if f.pool != nil {
		f.pool.Stop()
	}
	if f.serial != nil {
		f.serial.Stop()
	}
	return err
}

// closing records that s stops taking operations and will be released.
func (f *Factory) closing(s *store) {
	f.mu.Lock()
	f.pending[s.namespace] = s
	f.mu.Unlock()
}

// release forgets s once it has closed.
func (f *Factory) release(s *store) {
	f.mu.Lock()
	if f.handles[s.namespace] == s {
		delete(f.handles, s.namespace)
	}
	if f.pending[s.namespace] == s {
		delete(f.pending, s.namespace)
	}
	f.unregister(s.token)
	f.mu.Unlock()

	f.metrics.HandleClosed()
	close(s.done)
}

// openChildren returns the open handles whose directories lie below s,
// ordered by namespace.
func (f *Factory) openChildren(s *store) []*store {
	names := f.registry.OpenChildren(s.namespace)

	f.mu.Lock()
	defer f.mu.Unlock()

	children := make([]*store, 0, len(names))
	for _, name := range names {
		child, ok := f.handles[name]
		if !ok || !isWithin(child.dir, s.dir) {
			continue
		}
		children = append(children, child)
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].namespace < children[j].namespace
	})
	return children
}
