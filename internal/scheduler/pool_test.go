package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsEverything(t *testing.T) {
	p := newPool(4)
	var n atomic.Int64
	for i := 0; i < 100; i++ {
		p.submit("task", func() { n.Add(1) })
	}
	p.wait()
	if n.Load() != 100 {
		t.Errorf("ran %d tasks, want 100", n.Load())
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := newPool(size)

	var mu sync.Mutex
	running, peak := 0, 0
	for i := 0; i < 30; i++ {
		p.submit("task", func() {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	p.wait()

	if peak > size {
		t.Errorf("peak concurrency %d exceeds pool size %d", peak, size)
	}
}

// A task must be able to submit follow-up work even when every worker
// slot is busy; the fan-out pattern depends on it.
func TestPool_TasksCanSubmit(t *testing.T) {
	p := newPool(1)
	var n atomic.Int64

	p.submit("parent", func() {
		for i := 0; i < 5; i++ {
			p.submit("child", func() { n.Add(1) })
		}
	})

	done := make(chan struct{})
	go func() {
		p.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool deadlocked on nested submit")
	}
	if n.Load() != 5 {
		t.Errorf("ran %d children, want 5", n.Load())
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	p := newPool(2)
	var n atomic.Int64

	p.submit("boom", func() { panic("boom") })
	p.submit("fine", func() { n.Add(1) })
	p.wait()

	if n.Load() != 1 {
		t.Error("sibling task did not run after a panic")
	}
}
