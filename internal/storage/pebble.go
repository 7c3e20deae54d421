package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/sirupsen/logrus"

	"github.com/maxiofs/simplestore/internal/logging"
)

const pebbleDirName = entryPrefix + "pebble"

// pebbleBackend keeps a namespace's entries in a Pebble DB under the
// namespace directory, opened lazily like badgerBackend.
type pebbleBackend struct {
	dir       string
	path      string
	writeOpts *pebble.WriteOptions
	logger    *logrus.Logger

	mu     sync.Mutex
	db     *pebble.DB
	closed bool
}

func newPebbleBackend(opts Options) *pebbleBackend {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	writeOpts := pebble.NoSync
	if opts.SyncWrites {
		writeOpts = pebble.Sync
	}
	return &pebbleBackend{
		dir:       opts.Dir,
		path:      filepath.Join(opts.Dir, pebbleDirName),
		writeOpts: writeOpts,
		logger:    logger,
	}
}

func (p *pebbleBackend) handle(create bool) (*pebble.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.db != nil {
		return p.db, nil
	}
	if !create {
		exists, err := dirExists(p.path)
		if err != nil || !exists {
			return nil, err
		}
	}

	if err := os.MkdirAll(p.path, 0755); err != nil {
		return nil, NewErrorWithCause("CreateDirectory", "Failed to create namespace directory", err)
	}

	db, err := pebble.Open(p.path, &pebble.Options{
		Logger: logging.NewPebbleLogger(p.logger),
	})
	if err != nil {
		return nil, NewErrorWithCause("OpenDatabase", "Failed to open pebble db", err)
	}
	p.db = db
	p.logger.WithField("path", p.path).Debug("Pebble namespace store opened")
	return db, nil
}

func (p *pebbleBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	db, err := p.handle(false)
	if err != nil || db == nil {
		return nil, err
	}

	val, closer, err := db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewErrorWithCause("ReadEntry", "Failed to read entry", err)
	}
	data := make([]byte, len(val))
	copy(data, val)
	_ = closer.Close()
	return data, nil
}

func (p *pebbleBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	db, err := p.handle(true)
	if err != nil {
		return err
	}
	if err := db.Set([]byte(key), value, p.writeOpts); err != nil {
		return NewErrorWithCause("WriteEntry", "Failed to write entry", err)
	}
	return nil
}

func (p *pebbleBackend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	db, err := p.handle(false)
	if err != nil || db == nil {
		return err
	}
	if err := db.Delete([]byte(key), p.writeOpts); err != nil {
		return NewErrorWithCause("DeleteEntry", "Failed to delete entry", err)
	}
	return nil
}

func (p *pebbleBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	db, err := p.handle(false)
	if err != nil || db == nil {
		return false, err
	}

	_, closer, err := db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, NewErrorWithCause("ReadEntry", "Failed to read entry", err)
	}
	_ = closer.Close()
	return true, nil
}

func (p *pebbleBackend) Keys(ctx context.Context) ([]string, error) {
	db, err := p.handle(false)
	if err != nil || db == nil {
		return nil, err
	}

	iter, err := db.NewIter(nil)
	if err != nil {
		return nil, NewErrorWithCause("ListEntries", "Failed to create iterator", err)
	}
	defer iter.Close() //nolint:errcheck

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	return keys, nil
}

// Clear deletes every key in one batch so the namespace empties atomically.
func (p *pebbleBackend) Clear(ctx context.Context) error {
	keys, err := p.Keys(ctx)
	if err != nil || len(keys) == 0 {
		return err
	}
	db, err := p.handle(false)
	if err != nil || db == nil {
		return err
	}

	batch := db.NewBatch()
	defer batch.Close() //nolint:errcheck
	for _, k := range keys {
		if err := batch.Delete([]byte(k), nil); err != nil {
			return NewErrorWithCause("ClearDatabase", "Failed to stage delete", err)
		}
	}
	if err := batch.Commit(p.writeOpts); err != nil {
		return NewErrorWithCause("ClearDatabase", "Failed to drop entries", err)
	}
	return nil
}

func (p *pebbleBackend) Destroy(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		if err := p.db.Close(); err != nil {
			p.logger.WithError(err).WithField("path", p.path).Warn("Failed to close pebble db before destroy")
		}
		p.db = nil
	}
	if err := os.RemoveAll(p.dir); err != nil {
		return NewErrorWithCause("RemoveDirectory", "Failed to remove namespace directory", err)
	}
	return nil
}

func (p *pebbleBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
