// Package executors provides the schedulers simplestore runs work and
// completions on.
package executors

import (
	"sync"
)

// Executor runs a unit of work, usually asynchronously.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func())

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) {
	f(task)
}

type directExecutor struct{}

func (directExecutor) Execute(task func()) {
	task()
}

// Direct returns an Executor that runs tasks inline on the calling goroutine.
func Direct() Executor {
	return directExecutor{}
}

// Serial runs tasks one at a time in submission order on a dedicated
// goroutine. Execute never blocks; the backlog is unbounded.
type Serial struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	stopped bool
	done    chan struct{}
}

// NewSerial creates and starts a Serial executor.
func NewSerial() *Serial {
	s := &Serial{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// Execute queues task. Tasks queued after Stop run on their own goroutine.
func (s *Serial) Execute(task func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		go task()
		return
	}
	s.pending = append(s.pending, task)
	s.mu.Unlock()
	s.cond.Signal()
}

// Stop drains the queued tasks and stops the goroutine.
func (s *Serial) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.mu.Unlock()
	s.cond.Signal()
	<-s.done
}

func (s *Serial) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if len(s.pending) == 0 && s.stopped {
			s.mu.Unlock()
			return
		}
		task := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()

		task()
	}
}
