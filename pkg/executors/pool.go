package executors

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// PoolConfig configures a worker Pool.
type PoolConfig struct {
	Name      string
	Workers   int
	QueueSize int
	Logger    *logrus.Logger
}

// Pool is a bounded set of worker goroutines fed from a queue. Execute never
// blocks the caller: when the queue is full the hand-off is parked on a
// goroutine until a slot frees up.
type Pool struct {
	config   PoolConfig
	queue    chan func()
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	stopped  bool
	log      *logrus.Entry
}

// NewPool creates a worker pool. Call Start before submitting work.
func NewPool(config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Name == "" {
		config.Name = "io"
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	return &Pool{
		config:   config,
		queue:    make(chan func(), config.QueueSize),
		stopChan: make(chan struct{}),
		log:      config.Logger.WithField("pool", config.Name),
	}
}

// Start launches the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pool %s already running", p.config.Name)
	}
	if p.stopped {
		return fmt.Errorf("pool %s already stopped", p.config.Name)
	}

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.work(id)
		}(i)
	}

	p.running = true
	p.log.WithField("workers", p.config.Workers).Debug("Worker pool started")
	return nil
}

// Stop runs every queued task and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()

	// Anything parked by a full queue may have landed after the workers drained.
	for {
		select {
		case task := <-p.queue:
			p.run(-1, task)
		default:
			p.log.Debug("Worker pool stopped")
			return
		}
	}
}

// Execute queues task for a worker. Tasks submitted to a pool that is not
// running get their own goroutine so no completion is ever lost.
func (p *Pool) Execute(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		go task()
		return
	}

	select {
	case p.queue <- task:
		return
	default:
	}

	// Queue full.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case p.queue <- task:
		case <-p.stopChan:
			task()
		}
	}()
}

func (p *Pool) work(id int) {
	for {
		select {
		case task := <-p.queue:
			p.run(id, task)
		case <-p.stopChan:
			for {
				select {
				case task := <-p.queue:
					p.run(id, task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"worker_id": id,
				"panic":     r,
			}).Error("Task panicked")
		}
	}()
	task()
}
