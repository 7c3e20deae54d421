package executors

import "sync"

// maxBatch bounds how many tasks one drain runs before yielding the
// underlying executor to other sequences.
const maxBatch = 64

// Sequential runs tasks one at a time in submission order on top of
// another executor. Tasks of different Sequential executors sharing one
// pool run in parallel.
type Sequential struct {
	parent Executor

	mu      sync.Mutex
	pending []func()
	running bool
}

// NewSequential returns a Sequential executor that borrows goroutines from
// parent.
func NewSequential(parent Executor) *Sequential {
	return &Sequential{parent: parent}
}

// Execute queues task behind every task submitted before it.
func (s *Sequential) Execute(task func()) {
	s.mu.Lock()
	s.pending = append(s.pending, task)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.parent.Execute(s.drain)
}

// Len returns the number of tasks not yet started.
func (s *Sequential) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Sequential) drain() {
	for i := 0; i < maxBatch; i++ {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		task := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.run(task)
	}

	// Still running; hand the rest to a fresh parent task.
	s.parent.Execute(s.drain)
}

func (s *Sequential) run(task func()) {
	// Keep the sequence moving if task panics.
	defer func() {
		if r := recover(); r != nil {
			s.parent.Execute(s.drain)
			panic(r)
		}
	}()
	task()
}
