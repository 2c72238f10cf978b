package scheduler

import (
	"fmt"
	"os"
	"sync"
)

// pool runs submitted tasks on a bounded number of goroutines. A panic
// in one task is logged and never reaches siblings or the caller.
type pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func newPool(size int) *pool {
	if size <= 0 {
		size = 10
	}
	return &pool{sem: make(chan struct{}, size)}
}

// submit schedules fn without blocking the caller, so tasks may safely
// submit follow-up tasks.
func (p *pool) submit(name string, fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "task %s panicked: %v\n", name, r)
			}
		}()
		fn()
	}()
}

func (p *pool) wait() {
	p.wg.Wait()
}
