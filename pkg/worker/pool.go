package worker

import (
	"sync"
)

// Pool is a bounded task pool. The notification service pushes best-effort
// publish work through it so slow transports never hold up the caller's
// business transaction.
type Pool struct {
	tasks    chan func()
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool starts workers goroutines draining a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task. When the queue is full the task runs inline on the
// caller's goroutine rather than being dropped; delivery work is best-effort
// but should still be attempted. Returns false if it ran inline.
func (p *Pool) Submit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		task()
		return false
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
