package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxiofs/simplestore/pkg/executors"
)

// manualExecutor queues tasks until the test runs them.
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (m *manualExecutor) Execute(task func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

func (m *manualExecutor) runAll() int {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, task := range tasks {
		task()
	}
	return len(tasks)
}

func TestPromiseResolve(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()

	select {
	case <-f.Done():
		t.Fatal("future completed before resolve")
	default:
	}

	assert.True(t, p.Resolve(42))
	assert.False(t, p.Resolve(7), "second completion must be ignored")
	assert.False(t, p.Reject(errors.New("late")))

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPromiseReject(t *testing.T) {
	boom := errors.New("boom")
	f := Failed[string](boom)

	_, err := f.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestGetHonoursContext(t *testing.T) {
	p := NewPromise[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Future().Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The future itself is untouched.
	assert.False(t, p.Future().IsCancelled())
	assert.True(t, p.Resolve(1))
}

func TestOnCompleteRunsOnGivenExecutor(t *testing.T) {
	exec := &manualExecutor{}
	p := NewPromise[int]()

	var got int
	p.Future().OnComplete(exec, func(v int, err error) {
		require.NoError(t, err)
		got = v
	})

	p.Resolve(5)
	assert.Equal(t, 0, got, "callback must wait for its executor")
	assert.Equal(t, 1, exec.runAll())
	assert.Equal(t, 5, got)

	// Registering after completion still goes through the executor.
	p.Future().OnComplete(exec, func(v int, err error) { got = v * 2 })
	assert.Equal(t, 5, got)
	exec.runAll()
	assert.Equal(t, 10, got)
}

func TestOnCompleteDefaultExecutor(t *testing.T) {
	exec := &manualExecutor{}
	p := NewPromiseOn[int](exec)

	called := false
	p.Future().OnComplete(nil, func(int, error) { called = true })
	p.Resolve(1)

	assert.False(t, called)
	exec.runAll()
	assert.True(t, called)
}

func TestCancelDropsCallbacks(t *testing.T) {
	exec := &manualExecutor{}
	p := NewPromise[int]()
	f := p.Future()

	called := false
	f.OnComplete(exec, func(int, error) { called = true })

	assert.True(t, f.Cancel())
	assert.False(t, f.Cancel())
	assert.True(t, f.IsCancelled())
	assert.False(t, p.Resolve(1), "resolve after cancel must lose")

	assert.Equal(t, 0, exec.runAll())
	assert.False(t, called)

	_, err := f.Wait()
	assert.ErrorIs(t, err, ErrCancelled)

	f.OnComplete(executors.Direct(), func(int, error) { called = true })
	assert.False(t, called, "cancelled futures deliver nothing")
}

func TestCancelAfterCompletion(t *testing.T) {
	f := Resolved("done")
	assert.False(t, f.Cancel())
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

var goroutines = executors.ExecutorFunc(func(task func()) { go task() })

func TestGo(t *testing.T) {
	t.Run("Value", func(t *testing.T) {
		f := Go(goroutines, func() (int, error) { return 3, nil })
		v, err := f.Wait()
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("Panic becomes error", func(t *testing.T) {
		f := Go(goroutines, func() (int, error) { panic("kaboom") })
		_, err := f.Wait()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("Cancelled before start skips work", func(t *testing.T) {
		exec := &manualExecutor{}
		var ran atomic.Bool
		f := Go(exec, func() (int, error) {
			ran.Store(true)
			return 1, nil
		})
		f.Cancel()
		exec.runAll()
		assert.False(t, ran.Load())
	})

	t.Run("Callbacks on separate executor", func(t *testing.T) {
		work := &manualExecutor{}
		callbacks := &manualExecutor{}
		f := GoOn(work, callbacks, func() (int, error) { return 9, nil })

		got := 0
		f.OnComplete(nil, func(v int, err error) { got = v })

		work.runAll()
		assert.Equal(t, 0, got)
		callbacks.runAll()
		assert.Equal(t, 9, got)
	})
}

func TestThen(t *testing.T) {
	t.Run("Chains values", func(t *testing.T) {
		p := NewPromise[int]()
		doubled := Map(p.Future(), func(v int) int { return v * 2 })
		asString := Then(doubled, func(v int) (string, error) {
			if v > 10 {
				return "", errors.New("too big")
			}
			return "ok", nil
		})

		p.Resolve(4)
		v, err := doubled.Wait()
		require.NoError(t, err)
		assert.Equal(t, 8, v)

		s, err := asString.Wait()
		require.NoError(t, err)
		assert.Equal(t, "ok", s)
	})

	t.Run("Errors skip the transform", func(t *testing.T) {
		boom := errors.New("boom")
		called := false
		f := Then(Failed[int](boom), func(int) (int, error) {
			called = true
			return 0, nil
		})
		_, err := f.Wait()
		assert.ErrorIs(t, err, boom)
		assert.False(t, called)
	})

	t.Run("Cancel propagates upstream", func(t *testing.T) {
		p := NewPromise[int]()
		chained := Map(p.Future(), func(v int) int { return v })

		assert.True(t, chained.Cancel())
		assert.True(t, p.Future().IsCancelled())
	})
}

func TestConcurrentCompletion(t *testing.T) {
	p := NewPromise[int]()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if p.Resolve(i) {
					wins.Add(1)
				}
			} else if p.Future().Cancel() {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
