// Package dispatcher runs enforcement off the event path: a worker pool
// for platform calls issued through the session, and a direct HTTP fast
// path for bans, where latency decides how much damage a nuke does.
package dispatcher

import (
	"sync"

	"go-theoprotect/internal/logging"
)

// Pool is the enforcement worker pool. Tasks are fire-and-forget; when
// the queue is full the task is dropped and logged rather than blocking
// the detection path.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Pool{tasks: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Do enqueues a task. Never blocks.
func (p *Pool) Do(task func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	select {
	case p.tasks <- task:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		logging.Warn("dispatcher queue full, dropping enforcement task")
	}
}

// Close stops intake and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// QueueDepth reports tasks waiting, for health reporting.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}
