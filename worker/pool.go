package worker

import (
	"context"
	"log"
	"runtime"
	"sync"
)

// Task is one unit of port/adapter I/O. It receives the session context and
// is responsible for posting its own completion back to the caller.
type Task func(ctx context.Context)

// Pool is a fixed-size task pool with a 1-slot input queue (strict
// back-pressure). The orchestrator issues at most one task per session, so
// a full queue signals a logic error rather than load.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	ctx  context.Context
	task Task
}

// New creates a pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				if j.ctx.Err() != nil {
					log.Printf("Worker: skipping task, context already done: %v", j.ctx.Err())
					continue
				}
				j.task(j.ctx)
			}
		}()
	}
}

// Submit enqueues a task if the single-slot queue is free. Returns false if
// dropped.
func (p *Pool) Submit(ctx context.Context, task Task) bool {
	select {
	case p.jobs <- job{ctx: ctx, task: task}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
