// Package simplestore provides durable key/value storage split into
// independent namespaces.
//
// A namespace is a "/"-separated path such as "main/nest". Each namespace
// maps to its own directory subtree and may have at most one open Store at a
// time; opening a second one is a programming error and panics. Every Store
// operation runs on the factory's IO executor and returns a future whose
// callbacks are delivered on the factory's callback executor.
package simplestore

import (
	"errors"
	"fmt"

	"github.com/maxiofs/simplestore/internal/registry"
	"github.com/maxiofs/simplestore/internal/storage"
	"github.com/maxiofs/simplestore/pkg/future"
)

// Store is an open handle over one namespace.
//
// A value read back as nil is absent; a present value is never nil, even
// when empty. Put with a nil value removes the key.
type Store interface {
	Namespace() string
	Config() NamespaceConfig

	Get(key string) *future.Future[[]byte]
	// Put resolves to the value written.
	Put(key string, value []byte) *future.Future[[]byte]
	Remove(key string) *future.Future[struct{}]
	Contains(key string) *future.Future[bool]
	// Keys lists the keys of this namespace in sorted order. Child
	// namespaces are not included.
	Keys() *future.Future[[]string]

	// GetString decodes a UTF-16BE value; absent keys read as "".
	GetString(key string) *future.Future[string]
	// PutString stores value as UTF-16BE; "" removes the key.
	PutString(key, value string) *future.Future[string]

	// Clear removes every entry of this namespace. Child namespaces are
	// kept.
	Clear() *future.Future[struct{}]
	// DeleteAllNow removes the namespace directory and every child
	// namespace below it, including the entries of open child handles.
	DeleteAllNow() *future.Future[struct{}]

	// Close releases the namespace once every operation queued before it
	// has run. Operations on a closed Store fail with ErrClosed, and Open
	// of the same namespace waits for the release.
	Close() *future.Future[struct{}]
}

// NamespaceConfig selects the durability and caching trade-offs of a handle.
type NamespaceConfig int

const (
	// NamespaceConfigDefault writes with the factory's durability setting.
	NamespaceConfigDefault NamespaceConfig = iota
	// NamespaceConfigCache keeps the namespace under the cache directory,
	// skips fsync and reads corrupted entries as misses.
	NamespaceConfigCache
	// NamespaceConfigCritical always fsyncs, whatever the factory setting.
	NamespaceConfigCritical
)

func (c NamespaceConfig) String() string {
	switch c {
	case NamespaceConfigDefault:
		return "default"
	case NamespaceConfigCache:
		return "cache"
	case NamespaceConfigCritical:
		return "critical"
	default:
		return fmt.Sprintf("NamespaceConfig(%d)", int(c))
	}
}

// Errors
var (
	// ErrClosed fails every operation issued after Close.
	ErrClosed = errors.New("simplestore: store is closed")
	// ErrInvalidNamespace rejects malformed namespace paths.
	ErrInvalidNamespace = errors.New("simplestore: invalid namespace")
	// ErrAlreadyOpen is the error carried by the Open panic on a live namespace.
	ErrAlreadyOpen = registry.ErrAlreadyOpen
	// ErrLeaked is returned by AssertNoneOpen.
	ErrLeaked = registry.ErrLeaked
	// ErrCorrupted marks a stored value that failed verification.
	ErrCorrupted = storage.ErrCorrupted
	// ErrInvalidKey rejects empty keys and keys too long to store.
	ErrInvalidKey = storage.ErrInvalidKey
)

// IOError reports a failure of the underlying storage.
type IOError struct {
	Op        string
	Namespace string
	Key       string
	Err       error
}

func (e *IOError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("simplestore: %s %q in namespace '%s': %v", e.Op, e.Key, e.Namespace, e.Err)
	}
	return fmt.Sprintf("simplestore: %s namespace '%s': %v", e.Op, e.Namespace, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
