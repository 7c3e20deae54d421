package primitive

import (
	"github.com/maxiofs/simplestore/pkg/future"
)

// ByteStore is the raw byte store the typed accessors sit on.
type ByteStore interface {
	Namespace() string
	Get(key string) *future.Future[[]byte]
	Put(key string, value []byte) *future.Future[[]byte]
	Remove(key string) *future.Future[struct{}]
	Contains(key string) *future.Future[bool]
	Keys() *future.Future[[]string]
	Clear() *future.Future[struct{}]
	DeleteAllNow() *future.Future[struct{}]
	Close() *future.Future[struct{}]
}

// Store adds typed accessors to a ByteStore. It has no state of its own;
// closing it closes the underlying store.
//
// Contains forwards to the ByteStore, so it reports false for any key whose
// value is the zero value of its type.
type Store struct {
	ByteStore
}

// Wrap returns typed accessors over s.
func Wrap(s ByteStore) *Store {
	return &Store{ByteStore: s}
}

// GetInt32 resolves to 0 when key is absent.
func (s *Store) GetInt32(key string) *future.Future[int32] {
	return future.Map(s.Get(key), DecodeInt32)
}

// PutInt32 resolves to v once written. Writing 0 removes key.
func (s *Store) PutInt32(key string, v int32) *future.Future[int32] {
	return written(s.Put(key, EncodeInt32(v)), v)
}

// GetInt64 resolves to 0 when key is absent.
func (s *Store) GetInt64(key string) *future.Future[int64] {
	return future.Map(s.Get(key), DecodeInt64)
}

// PutInt64 resolves to v once written. Writing 0 removes key.
func (s *Store) PutInt64(key string, v int64) *future.Future[int64] {
	return written(s.Put(key, EncodeInt64(v)), v)
}

// GetFloat64 resolves to 0.0 when key is absent.
func (s *Store) GetFloat64(key string) *future.Future[float64] {
	return future.Map(s.Get(key), DecodeFloat64)
}

// PutFloat64 resolves to v once written. Writing +0.0 removes key.
func (s *Store) PutFloat64(key string, v float64) *future.Future[float64] {
	return written(s.Put(key, EncodeFloat64(v)), v)
}

// GetBool resolves to false when key is absent.
func (s *Store) GetBool(key string) *future.Future[bool] {
	return future.Map(s.Get(key), DecodeBool)
}

// PutBool resolves to v once written. Writing false removes key.
func (s *Store) PutBool(key string, v bool) *future.Future[bool] {
	return written(s.Put(key, EncodeBool(v)), v)
}

// GetString resolves to "" when key is absent.
func (s *Store) GetString(key string) *future.Future[string] {
	return future.Map(s.Get(key), DecodeString)
}

// PutString resolves to v once written. Writing "" removes key.
func (s *Store) PutString(key string, v string) *future.Future[string] {
	return written(s.Put(key, EncodeString(v)), v)
}

func written[T any](f *future.Future[[]byte], v T) *future.Future[T] {
	return future.Map(f, func([]byte) T { return v })
}
