package simplestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/maxiofs/simplestore/internal/registry"
	"github.com/maxiofs/simplestore/internal/storage"
	"github.com/maxiofs/simplestore/pkg/executors"
	"github.com/maxiofs/simplestore/pkg/future"
	"github.com/maxiofs/simplestore/pkg/primitive"
)

// store is the Store handed out by Factory.Open.
//
// Operations run in submission order on a per-handle sequence borrowed from
// the factory's IO executor, so a read always observes every write issued
// before it. Different namespaces run in parallel.
type store struct {
	factory   *Factory
	namespace string
	config    NamespaceConfig
	dir       string
	backend   storage.Backend
	token     registry.Token
	seq       *executors.Sequential
	log       *logrus.Entry

	// barrier is read-held by every operation and write-held by Clear and
	// DeleteAllNow, including a parent's DeleteAllNow.
	barrier sync.RWMutex

	// Memory cache; a nil value records a known absent key.
	cacheMu sync.Mutex
	cache   map[string][]byte

	stateMu sync.Mutex
	closed  bool
	// released is set by the close task; operations that lost the race
	// with Close and were queued behind it fail with ErrClosed.
	released atomic.Bool
	// done is closed once the namespace has been released.
	done chan struct{}
}

func newStore(f *Factory, token registry.Token, cfg NamespaceConfig, dir string, backend storage.Backend) *store {
	return &store{
		factory:   f,
		namespace: token.Namespace,
		config:    cfg,
		dir:       dir,
		backend:   backend,
		token:     token,
		seq:       executors.NewSequential(f.io),
		log:       f.logger.WithField("namespace", token.Namespace),
		cache:     make(map[string][]byte),
		done:      make(chan struct{}),
	}
}

func (s *store) Namespace() string {
	return s.namespace
}

func (s *store) Config() NamespaceConfig {
	return s.config
}

func (s *store) Get(key string) *future.Future[[]byte] {
	return submit(s, "get", key, func(ctx context.Context) ([]byte, error) {
		return s.read(ctx, key)
	})
}

func (s *store) Put(key string, value []byte) *future.Future[[]byte] {
	// The caller may reuse value once Put returns.
	var owned []byte
	if value != nil {
		owned = append(make([]byte, 0, len(value)), value...)
	}
	return submit(s, "put", key, func(ctx context.Context) ([]byte, error) {
		if err := s.write(ctx, key, owned); err != nil {
			return nil, err
		}
		return clone(owned), nil
	})
}

func (s *store) Remove(key string) *future.Future[struct{}] {
	return submit(s, "remove", key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.write(ctx, key, nil)
	})
}

func (s *store) Contains(key string) *future.Future[bool] {
	return submit(s, "contains", key, func(ctx context.Context) (bool, error) {
		value, err := s.read(ctx, key)
		return value != nil, err
	})
}

func (s *store) Keys() *future.Future[[]string] {
	return submit(s, "keys", "", func(ctx context.Context) ([]string, error) {
		s.barrier.RLock()
		defer s.barrier.RUnlock()

		keys, err := s.backend.Keys(ctx)
		if err != nil {
			return nil, s.ioError("list", "", err)
		}
		sort.Strings(keys)
		return keys, nil
	})
}

func (s *store) GetString(key string) *future.Future[string] {
	return future.Map(s.Get(key), primitive.DecodeString)
}

func (s *store) PutString(key, value string) *future.Future[string] {
	return future.Map(s.Put(key, primitive.EncodeString(value)), func([]byte) string { return value })
}

func (s *store) Clear() *future.Future[struct{}] {
	return submit(s, "clear", "", func(ctx context.Context) (struct{}, error) {
		s.barrier.Lock()
		defer s.barrier.Unlock()

		err := s.backend.Clear(ctx)
		s.dropCache()
		if err != nil {
			return struct{}{}, s.ioError("clear", "", err)
		}
		return struct{}{}, nil
	})
}

func (s *store) DeleteAllNow() *future.Future[struct{}] {
	return submit(s, "delete_all", "", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deleteAll(ctx)
	})
}

// deleteAll fences every open child handle, then destroys the subtree.
// Barriers are taken in namespace order, and a parent sorts before its
// children, so overlapping calls cannot deadlock.
func (s *store) deleteAll(ctx context.Context) error {
	children := s.factory.openChildren(s)

	s.barrier.Lock()
	defer s.barrier.Unlock()
	for _, child := range children {
		child.barrier.Lock()
		defer child.barrier.Unlock()
	}

	var result *multierror.Error
	for _, child := range children {
		child.dropCache()
		// Closes any embedded database living inside the subtree.
		if err := child.backend.Destroy(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("namespace '%s': %w", child.namespace, err))
		}
	}

	s.dropCache()
	if err := s.backend.Destroy(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return s.ioError("delete", "", err)
	}
	s.log.WithField("children", len(children)).Debug("Namespace deleted")
	return nil
}

// Close queues the release of the namespace behind every operation
// already submitted. It never blocks, so it may be called from a callback.
func (s *store) Close() *future.Future[struct{}] {
	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		s.log.WithField("operation", "close").Error("Operation on closed namespace")
		return future.FailedOn[struct{}](s.factory.callbacks, ErrClosed)
	}
	s.closed = true
	s.factory.closing(s)
	s.stateMu.Unlock()

	s.log.WithField("queued", s.seq.Len()).Debug("Namespace closing")

	p := future.NewPromiseOn[struct{}](s.factory.callbacks)
	s.seq.Execute(func() {
		_, err := guard("close", func(context.Context) (struct{}, error) {
			return struct{}{}, s.finish()
		})
		p.Complete(struct{}{}, err)
	})
	return p.Future()
}

// finish closes the engine and releases the namespace.
func (s *store) finish() error {
	s.released.Store(true)
	defer s.factory.release(s)

	// Wait out a parent's DeleteAllNow that may be using the backend.
	s.barrier.Lock()
	err := s.backend.Close()
	s.barrier.Unlock()

	s.dropCache()
	s.log.Debug("Namespace closed")

	if err != nil {
		return s.ioError("close", "", err)
	}
	return nil
}

// read serves key from the cache or from storage.
func (s *store) read(ctx context.Context, key string) ([]byte, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	if value, ok := s.cached(key); ok {
		s.factory.metrics.RecordCacheHit()
		return clone(value), nil
	}
	s.factory.metrics.RecordCacheMiss()

	value, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrCorrupted) {
			s.factory.metrics.RecordCorruption(s.namespace)
			if s.config == NamespaceConfigCache {
				s.log.WithError(err).WithField("key", key).Warn("Discarding corrupted cache entry")
				return nil, nil
			}
		}
		return nil, s.ioError("read", key, err)
	}

	s.remember(key, value)
	if value != nil {
		s.factory.metrics.RecordValueSize("get", len(value))
	}
	return clone(value), nil
}

// write stores value, or deletes key when value is nil.
func (s *store) write(ctx context.Context, key string, value []byte) error {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	var err error
	if value == nil {
		err = s.backend.Delete(ctx, key)
	} else {
		err = s.backend.Put(ctx, key, value)
	}
	if err != nil {
		// What reached the disk is unknown.
		s.forget(key)
		return s.ioError("write", key, err)
	}

	s.remember(key, value)
	if value != nil {
		s.factory.metrics.RecordValueSize("put", len(value))
	}
	return nil
}

func (s *store) cached(key string) ([]byte, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	value, ok := s.cache[key]
	return value, ok
}

func (s *store) remember(key string, value []byte) {
	s.cacheMu.Lock()
	s.cache[key] = value
	s.cacheMu.Unlock()
}

func (s *store) forget(key string) {
	s.cacheMu.Lock()
	delete(s.cache, key)
	s.cacheMu.Unlock()
}

func (s *store) dropCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string][]byte)
	s.cacheMu.Unlock()
}

func (s *store) ioError(op, key string, err error) error {
	if errors.Is(err, storage.ErrInvalidKey) {
		return err
	}
	return &IOError{Op: op, Namespace: s.namespace, Key: key, Err: err}
}

// submit queues fn on the handle's sequence and returns its future.
func submit[T any](s *store, op, key string, fn func(ctx context.Context) (T, error)) *future.Future[T] {
	s.stateMu.Lock()
	closed := s.closed
	s.stateMu.Unlock()

	if closed {
		s.log.WithFields(logrus.Fields{
			"operation": op,
			"key":       key,
		}).Error("Operation on closed namespace")
		return future.FailedOn[T](s.factory.callbacks, ErrClosed)
	}

	p := future.NewPromiseOn[T](s.factory.callbacks)
	queued := time.Now()
	s.factory.metrics.TaskQueued()

	s.seq.Execute(func() {
		var v T
		err := ErrClosed
		if !s.released.Load() {
			v, err = guard(op, fn)
		}
		s.factory.metrics.TaskFinished()
		s.factory.metrics.RecordOperation(op, err == nil, time.Since(queued))

		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"operation": op,
				"key":       key,
			}).Warn("Store operation failed")
		}
		p.Complete(v, err)
	})

	return p.Future()
}

func guard[T any](op string, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplestore: %s panicked: %v", op, r)
		}
	}()
	return fn(context.Background())
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
