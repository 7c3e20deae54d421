package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/maxiofs/simplestore/internal/logging"
)

const badgerDirName = entryPrefix + "badger"

// badgerBackend keeps a namespace's entries in a BadgerDB under the
// namespace directory. The DB is opened on first write, or on first read
// once it exists.
type badgerBackend struct {
	dir        string
	path       string
	syncWrites bool
	logger     *logrus.Logger

	mu     sync.Mutex
	db     *badger.DB
	closed bool
}

func newBadgerBackend(opts Options) *badgerBackend {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &badgerBackend{
		dir:        opts.Dir,
		path:       filepath.Join(opts.Dir, badgerDirName),
		syncWrites: opts.SyncWrites,
		logger:     logger,
	}
}

// handle returns the open DB. With create false it returns nil when the DB
// has never been written.
func (b *badgerBackend) handle(create bool) (*badger.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.db != nil {
		return b.db, nil
	}
	if !create {
		exists, err := dirExists(b.path)
		if err != nil || !exists {
			return nil, err
		}
	}

	if err := os.MkdirAll(b.path, 0755); err != nil {
		return nil, NewErrorWithCause("CreateDirectory", "Failed to create namespace directory", err)
	}

	badgerOpts := badger.DefaultOptions(b.path).
		WithLogger(logging.NewBadgerLogger(b.logger)).
		WithSyncWrites(b.syncWrites).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(64 << 20).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, NewErrorWithCause("OpenDatabase", "Failed to open badger db", err)
	}
	b.db = db
	b.logger.WithField("path", b.path).Debug("BadgerDB namespace store opened")
	return db, nil
}

func (b *badgerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	db, err := b.handle(false)
	if err != nil || db == nil {
		return nil, err
	}

	var value []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		if err == nil && value == nil {
			value = []byte{}
		}
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewErrorWithCause("ReadEntry", "Failed to read entry", err)
	}
	return value, nil
}

func (b *badgerBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	db, err := b.handle(true)
	if err != nil {
		return err
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return NewErrorWithCause("WriteEntry", "Failed to write entry", err)
	}
	return nil
}

func (b *badgerBackend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	db, err := b.handle(false)
	if err != nil || db == nil {
		return err
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return NewErrorWithCause("DeleteEntry", "Failed to delete entry", err)
	}
	return nil
}

func (b *badgerBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	db, err := b.handle(false)
	if err != nil || db == nil {
		return false, err
	}

	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, NewErrorWithCause("ReadEntry", "Failed to read entry", err)
	}
	return true, nil
}

func (b *badgerBackend) Keys(ctx context.Context) ([]string, error) {
	db, err := b.handle(false)
	if err != nil || db == nil {
		return nil, err
	}

	var keys []string
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, NewErrorWithCause("ListEntries", "Failed to list entries", err)
	}
	return keys, nil
}

func (b *badgerBackend) Clear(ctx context.Context) error {
	db, err := b.handle(false)
	if err != nil || db == nil {
		return err
	}
	if err := db.DropAll(); err != nil {
		return NewErrorWithCause("ClearDatabase", "Failed to drop entries", err)
	}
	return nil
}

func (b *badgerBackend) Destroy(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			b.logger.WithError(err).WithField("path", b.path).Warn("Failed to close badger db before destroy")
		}
		b.db = nil
	}
	if err := os.RemoveAll(b.dir); err != nil {
		return NewErrorWithCause("RemoveDirectory", "Failed to remove namespace directory", err)
	}
	return nil
}

func (b *badgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
