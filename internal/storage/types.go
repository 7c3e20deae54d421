package storage

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/maxiofs/simplestore/pkg/compression"
	"github.com/maxiofs/simplestore/pkg/encryption"
)

// Supported engines
const (
	EngineFilesystem = "filesystem"
	EngineBadger     = "badger"
	EnginePebble     = "pebble"
)

// Options configures the backend for one namespace directory.
type Options struct {
	Engine string
	Dir    string

	// SyncWrites fsyncs every write before it is acknowledged.
	SyncWrites bool

	// Compressor and Sealer are applied to every stored value; nil disables them.
	Compressor compression.Compressor
	Sealer     encryption.Sealer

	Logger *logrus.Logger
}

// Common storage errors
var (
	ErrInvalidKey        = NewError("InvalidKey", "The specified key is invalid")
	ErrCorrupted         = NewError("Corrupted", "Stored value failed verification")
	ErrUnsupportedEngine = NewError("UnsupportedEngine", "The specified storage engine is not supported")
	ErrClosed            = NewError("BackendClosed", "Storage backend is closed")
)

// StorageError represents a storage-specific error
type StorageError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is matches storage errors by code so wrapped sentinels still compare equal.
func (e *StorageError) Is(target error) bool {
	var other *StorageError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewError creates a new storage error
func NewError(code, message string) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new storage error with underlying cause
func NewErrorWithCause(code, message string, cause error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
