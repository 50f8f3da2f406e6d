// Package workers runs indexed tasks on a bounded ants pool.
package workers

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Pool runs batches of indexed tasks. A pool of size 1 runs tasks inline, in index order.
type Pool struct {
	size int
	pool *ants.Pool
}

// New creates a pool running at most size tasks at once. size < 1 is treated as 1.
func New(size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size}
	if size == 1 {
		return p, nil
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int {
	return p.size
}

// Run calls task(i) for every i in [0, n) and waits for all of them. Callers write results
// into slot i of a pre-sized slice so output order never depends on scheduling.
func (p *Pool) Run(n int, task func(i int)) error {
	if p.pool == nil {
		for i := 0; i < n; i++ {
			task(i)
		}
		return nil
	}

	var wg sync.WaitGroup
	var submitErr error
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			task(i)
		}); err != nil {
			wg.Done()
			// pool closed or overloaded: run inline
			submitErr = err
			task(i)
		}
	}
	wg.Wait()
	if submitErr != nil {
		return fmt.Errorf("submit task: %w", submitErr)
	}
	return nil
}

// Release frees the pool's goroutines.
func (p *Pool) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
