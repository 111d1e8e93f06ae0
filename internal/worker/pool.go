package worker

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Pool is a bounded background execution service for fire-and-forget
// work. Submitted tasks run off the caller's goroutine on a fixed set
// of workers; a buffered queue absorbs bursts and a full queue blocks
// the submitter, which is the pool's only backpressure.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewPool starts size workers with a queue of queueDepth pending tasks.
func NewPool(size, queueDepth int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}

	p := &Pool{tasks: make(chan func(), queueDepth)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.invoke(task)
	}
}

// invoke isolates task panics: a failing unit of work must never take
// down a worker or the process.
func (p *Pool) invoke(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("background task panicked")
		}
	}()
	task()
}

// Submit hands a unit of work to the pool and returns without waiting
// for it to run. Submitting to a closed pool drops the task with a
// warning instead of panicking.
func (p *Pool) Submit(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		log.Warn().Msg("background task dropped: worker pool closed")
		return
	}
	p.tasks <- task
}

// Close stops accepting work, drains the queue, and waits for in-flight
// tasks to finish. Safe to call more than once.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
