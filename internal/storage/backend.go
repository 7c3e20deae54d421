package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend persists the entries of a single namespace directory. Get, Put,
// Delete, Exists and Keys are safe for concurrent use, but callers serialize
// writes to the same key and run Clear, Destroy and Close exclusively.
type Backend interface {
	// Get returns nil when key is absent and a non-nil slice otherwise.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put atomically replaces the value of key. value must not be nil.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key; deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Keys lists the keys of this namespace only, not of child namespaces.
	Keys(ctx context.Context) ([]string, error)

	// Clear removes every entry of this namespace.
	Clear(ctx context.Context) error
	// Destroy removes the namespace directory and everything under it,
	// child namespaces included. The backend stays usable and recreates
	// the directory on the next write.
	Destroy(ctx context.Context) error

	Close() error
}

// NewBackend creates the backend selected by opts.Engine, wrapped in the
// entry envelope.
func NewBackend(opts Options) (Backend, error) {
	if opts.Dir == "" {
		return nil, NewError("InvalidDirectory", "Namespace directory is required")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, NewErrorWithCause("InvalidDirectory", "Failed to resolve namespace directory", err)
	}
	opts.Dir = dir

	var engine Backend
	switch opts.Engine {
	case EngineFilesystem, "":
		engine = newFilesystemBackend(opts)
	case EngineBadger:
		engine = newBadgerBackend(opts)
	case EnginePebble:
		engine = newPebbleBackend(opts)
	default:
		return nil, NewErrorWithCause(ErrUnsupportedEngine.Code, ErrUnsupportedEngine.Message,
			fmt.Errorf("unsupported storage engine: %s", opts.Engine))
	}

	return newEnvelopeBackend(engine, opts.Compressor, opts.Sealer), nil
}

func dirExists(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, NewErrorWithCause("StatDirectory", "Failed to stat directory", err)
	}
	return info.IsDir(), nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
