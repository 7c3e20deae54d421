package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Run("Register and unregister", func(t *testing.T) {
		r := New()

		token, err := r.Register("main")
		require.NoError(t, err)
		assert.Equal(t, "main", token.Namespace)
		assert.Equal(t, 1, r.Len())

		require.NoError(t, r.Unregister(token))
		assert.Equal(t, 0, r.Len())
		assert.NoError(t, r.AssertNoneOpen())
	})

	t.Run("Second register fails while first is live", func(t *testing.T) {
		r := New()

		first, err := r.Register("main")
		require.NoError(t, err)

		_, err = r.Register("main")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAlreadyOpen))

		var openErr *AlreadyOpenError
		require.True(t, errors.As(err, &openErr))
		assert.Equal(t, "main", openErr.Namespace)

		require.NoError(t, r.Unregister(first))

		second, err := r.Register("main")
		require.NoError(t, err)
		require.NoError(t, r.Unregister(second))
	})

	t.Run("MustRegister panics on double open", func(t *testing.T) {
		r := New()
		token := r.MustRegister("main")
		defer r.Unregister(token)

		assert.PanicsWithError(t, "namespace 'main' already open", func() {
			r.MustRegister("main")
		})
	})

	t.Run("Nested namespaces are independent", func(t *testing.T) {
		r := New()
		parent := r.MustRegister("main")
		child := r.MustRegister("main/nest")

		require.NoError(t, r.Unregister(parent))
		require.NoError(t, r.Unregister(child))
	})

	t.Run("Concurrent registers admit exactly one", func(t *testing.T) {
		r := New()

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := r.Register("contended"); err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		assert.Equal(t, 1, r.Len())
	})
}

func TestUnregister(t *testing.T) {
	t.Run("Stale token cannot release a newer registration", func(t *testing.T) {
		r := New()

		stale := r.MustRegister("main")
		require.NoError(t, r.Unregister(stale))
		fresh := r.MustRegister("main")

		err := r.Unregister(stale)
		assert.True(t, errors.Is(err, ErrUnknownToken))
		assert.Equal(t, 1, r.Len())

		require.NoError(t, r.Unregister(fresh))
	})

	t.Run("Zero token is rejected", func(t *testing.T) {
		r := New()
		assert.ErrorIs(t, r.Unregister(Token{}), ErrUnknownToken)
	})
}

func TestAssertNoneOpen(t *testing.T) {
	r := New()
	assert.NoError(t, r.AssertNoneOpen())

	b := r.MustRegister("b")
	a := r.MustRegister("a")

	err := r.AssertNoneOpen()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeaked))
	assert.False(t, errors.Is(err, ErrAlreadyOpen))

	var leak *LeakError
	require.True(t, errors.As(err, &leak))
	assert.Equal(t, []string{"a", "b"}, leak.Namespaces)

	require.NoError(t, r.Unregister(a))
	require.NoError(t, r.Unregister(b))
	assert.NoError(t, r.AssertNoneOpen())
}

func TestOpenChildren(t *testing.T) {
	r := New()
	root := r.MustRegister("")
	parent := r.MustRegister("parent")
	child := r.MustRegister("parent/child")
	leaf := r.MustRegister("leaf")
	lookalike := r.MustRegister("parentless")

	assert.Empty(t, r.OpenChildren("leaf"))
	assert.Empty(t, r.OpenChildren("parent/child"))
	assert.Equal(t, []string{"parent/child"}, r.OpenChildren("parent"))
	assert.Equal(t, []string{"leaf", "parent", "parent/child", "parentless"}, r.OpenChildren(""))

	for _, tok := range []Token{root, parent, child, leaf, lookalike} {
		require.NoError(t, r.Unregister(tok))
	}
}
