// Package worker provides a bounded worker pool and keyed rate limiting
package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	idx int
	job Job
}

type indexedResult struct {
	idx    int
	result Result
}

// Pool runs jobs on a fixed number of workers. Results come back in
// submission order regardless of completion order
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	results    chan indexedResult
	collected  map[int]Result
	submitted  atomic.Int64
	wg         sync.WaitGroup
	collectWG  sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	queueOnce  sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers;
// jobs that never ran leave a nil slot in the results
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		results:    make(chan indexedResult, workers*2),
		collected:  make(map[int]Result),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go p.collect()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			// the collector always drains, so this send cannot block forever
			p.results <- indexedResult{idx: ij.idx, result: ij.job.Execute(p.ctx)}
		}
	}
}

func (p *Pool) collect() {
	defer p.collectWG.Done()
	for r := range p.results {
		p.collected[r.idx] = r.result
	}
}

// Submit queues a job and returns its result slot, or -1 when the pool
// has been shut down
func (p *Pool) Submit(job Job) int {
	if p.ctx.Err() != nil {
		return -1
	}
	idx := int(p.submitted.Add(1)) - 1
	select {
	case <-p.ctx.Done():
		return -1
	case p.jobQueue <- indexedJob{idx: idx, job: job}:
		return idx
	}
}

// Wait closes the queue, waits for the workers and returns one entry per
// submitted job in submission order. The pool is released afterwards
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
	defer p.cancelFunc()

	out := make([]Result, p.submitted.Load())
	for idx, r := range p.collected {
		out[idx] = r
	}
	return out
}

// Shutdown stops the pool immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
}

func (p *Pool) closeQueue() {
	p.queueOnce.Do(func() {
		close(p.jobQueue)
	})
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
