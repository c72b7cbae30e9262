package channel

import (
	"sync"
	"sync/atomic"

	"github.com/southbear-club/ars-go/loop"
)

// LoopThreadPool runs N independent *loop.Loop instances, each on its
// own goroutine, and hands callers the next one round-robin. Grounded
// on ars/sdk/evpp/EventLoopThreadPool.hpp: thread_num_, next_loop_idx_,
// start/stop/join, minus the C++ shared_ptr bookkeeping.
type LoopThreadPool struct {
	loops []*loop.Loop
	next  atomic.Uint64

	wg      sync.WaitGroup
	started bool
}

// NewLoopThreadPool constructs n loops (using opts for each) without
// starting them; n <= 0 defaults to 1.
func NewLoopThreadPool(n int, opts ...loop.Option) (*LoopThreadPool, error) {
	if n <= 0 {
		n = 1
	}
	p := &LoopThreadPool{loops: make([]*loop.Loop, 0, n)}
	for i := 0; i < n; i++ {
		l, err := loop.New(opts...)
		if err != nil {
			return nil, err
		}
		p.loops = append(p.loops, l)
	}
	return p, nil
}

// Size returns the number of loops in the pool.
func (p *LoopThreadPool) Size() int { return len(p.loops) }

// NextLoop returns the next loop round-robin, or nil if the pool is empty.
func (p *LoopThreadPool) NextLoop() *loop.Loop {
	if len(p.loops) == 0 {
		return nil
	}
	idx := p.next.Add(1) % uint64(len(p.loops))
	return p.loops[idx]
}

// Loop returns the loop at idx, or the next round-robin loop if idx is
// out of range (mirrors EventLoopThreadPool::loop's idx<0 fallback).
func (p *LoopThreadPool) Loop(idx int) *loop.Loop {
	if idx >= 0 && idx < len(p.loops) {
		return p.loops[idx]
	}
	return p.NextLoop()
}

// Start runs every loop's Run method on its own goroutine. pre, if
// non-nil, is invoked with each loop before it starts running.
func (p *LoopThreadPool) Start(pre func(*loop.Loop)) {
	if p.started {
		return
	}
	p.started = true
	for _, l := range p.loops {
		l := l
		if pre != nil {
			pre(l)
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			_ = l.Run()
		}()
	}
}

// Stop requests every loop to terminate; safe to call from any
// goroutine (loop.Loop.Stop is itself cross-thread safe).
func (p *LoopThreadPool) Stop() {
	for _, l := range p.loops {
		l.Stop()
	}
}

// Join blocks until every loop's Run has returned.
func (p *LoopThreadPool) Join() {
	p.wg.Wait()
}
