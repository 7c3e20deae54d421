package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// filesystemBackend stores one file per key in the namespace directory
type filesystemBackend struct {
	dir        string
	syncWrites bool
	logger     *logrus.Entry
}

func newFilesystemBackend(opts Options) *filesystemBackend {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &filesystemBackend{
		dir:        opts.Dir,
		syncWrites: opts.SyncWrites,
		logger:     logger.WithFields(logrus.Fields{"engine": EngineFilesystem, "dir": opts.Dir}),
	}
}

// Get reads the file for key
func (fs *filesystemBackend) Get(ctx context.Context, key string) ([]byte, error) {
	name, err := entryFileName(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(fs.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, NewErrorWithCause("ReadFile", "Failed to read entry", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Put writes value to a temp file and renames it over the entry file
func (fs *filesystemBackend) Put(ctx context.Context, key string, value []byte) error {
	name, err := entryFileName(key)
	if err != nil {
		return err
	}

	// Created lazily on first write.
	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return NewErrorWithCause("CreateDirectory", "Failed to create namespace directory", err)
	}

	tempPath := filepath.Join(fs.dir, tempPrefix+uuid.NewString())
	tempFile, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return NewErrorWithCause("CreateTempFile", "Failed to create temporary file", err)
	}
	committed := false
	defer func() {
		if !committed {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(value); err != nil {
		return NewErrorWithCause("WriteData", "Failed to write data", err)
	}
	if fs.syncWrites {
		if err := tempFile.Sync(); err != nil {
			return NewErrorWithCause("SyncData", "Failed to sync data", err)
		}
	}
	if err := tempFile.Close(); err != nil {
		return NewErrorWithCause("CloseTempFile", "Failed to close temporary file", err)
	}

	// Atomic move
	if err := os.Rename(tempPath, filepath.Join(fs.dir, name)); err != nil {
		return NewErrorWithCause("AtomicMove", "Failed to move file to final location", err)
	}
	committed = true

	if fs.syncWrites {
		fs.syncDir()
	}
	return nil
}

// Delete removes the entry file
func (fs *filesystemBackend) Delete(ctx context.Context, key string) error {
	name, err := entryFileName(key)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(fs.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return NewErrorWithCause("DeleteFile", "Failed to delete entry", err)
	}
	if err == nil && fs.syncWrites {
		fs.syncDir()
	}
	return nil
}

// Exists checks whether the entry file exists
func (fs *filesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	name, err := entryFileName(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(filepath.Join(fs.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, NewErrorWithCause("StatFile", "Failed to stat entry", err)
	}
	return true, nil
}

// Keys lists the entry files of the namespace directory
func (fs *filesystemBackend) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, NewErrorWithCause("ReadDirectory", "Failed to list namespace directory", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), entryPrefix) {
			continue
		}
		key, err := UnescapeKey(entry.Name())
		if err != nil {
			fs.logger.WithError(err).WithField("file", entry.Name()).Warn("Skipping unrecognized entry file")
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Clear removes every entry file and leftover temp file. Child namespace
// directories are left alone.
func (fs *filesystemBackend) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(fs.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return NewErrorWithCause("ReadDirectory", "Failed to list namespace directory", err)
	}

	var result *multierror.Error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasPrefix(name, entryPrefix) || strings.HasPrefix(name, tempPrefix)) {
			continue
		}
		if err := os.Remove(filepath.Join(fs.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return NewErrorWithCause("ClearDirectory", "Failed to remove every entry", err)
	}

	// Only succeeds when no child namespace lives below.
	os.Remove(fs.dir)
	return nil
}

// Destroy removes the namespace directory tree
func (fs *filesystemBackend) Destroy(ctx context.Context) error {
	if err := os.RemoveAll(fs.dir); err != nil {
		return NewErrorWithCause("RemoveDirectory", "Failed to remove namespace directory", err)
	}
	return nil
}

// Close closes the filesystem backend
func (fs *filesystemBackend) Close() error {
	// Filesystem backend doesn't need explicit cleanup
	return nil
}

// syncDir makes a rename or unlink durable
func (fs *filesystemBackend) syncDir() {
	d, err := os.Open(fs.dir)
	if err != nil {
		fs.logger.WithError(err).Debug("Failed to open directory for sync")
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		fs.logger.WithError(err).Debug("Failed to sync directory")
	}
}
