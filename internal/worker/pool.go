// Package worker provides a bounded background task pool for
// fire-and-forget side effects (audit writes, remediation requests) so a
// slow or failing side effect can never block the request path.
package worker

import (
	"sync"

	"github.com/assistdeck/gateway/internal/logging"
)

// Pool runs submitted tasks on a fixed set of goroutines behind a bounded
// queue. When the queue is full, Submit drops the task and reports it;
// the request path never blocks on the pool.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *logging.Logger

	closeOnce sync.Once
}

// NewPool creates a pool with the given number of workers and queue size.
func NewPool(workers, queueSize int, logger *logging.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	p := &Pool{
		tasks:  make(chan func(), queueSize),
		logger: logger,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.safeRun(task)
	}
}

func (p *Pool) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(map[string]interface{}{"panic": r}).
				Error("background task panicked")
		}
	}()
	task()
}

// Submit enqueues a task. It returns false when the queue is full and the
// task was dropped.
func (p *Pool) Submit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		p.logger.Warn("background queue full, task dropped")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
