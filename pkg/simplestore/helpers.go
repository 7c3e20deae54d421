package simplestore

import (
	"sync/atomic"

	"github.com/maxiofs/simplestore/pkg/future"
)

// Prefetch reads keys into the memory cache of s. The returned future
// resolves once every read has finished; read errors are ignored.
func Prefetch(s Store, keys ...string) *future.Future[struct{}] {
	if len(keys) == 0 {
		return future.Resolved(struct{}{})
	}

	p := future.NewPromise[struct{}]()
	remaining := int32(len(keys))
	for _, key := range keys {
		s.Get(key).OnComplete(nil, func([]byte, error) {
			if atomic.AddInt32(&remaining, -1) == 0 {
				p.Resolve(struct{}{})
			}
		})
	}
	return p.Future()
}
