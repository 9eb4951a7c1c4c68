package pool

import "sync"

type fixed struct {
	mu        sync.Mutex // serializes the create-or-reuse path of Get
	available chan any
	all       chan any
	newFn     func() any
}

// NewFixed returns a pool holding at most capacity invokers. Once capacity
// invokers exist, Get reuses an existing one instead of creating more.
func NewFixed(capacity uint, newFn func() any) Pool {
	return &fixed{
		available: make(chan any, capacity),
		all:       make(chan any, capacity),
		newFn:     newFn,
	}
}

func (p *fixed) Get() any {
	select {
	case el := <-p.available:
		return el

	default:
		p.mu.Lock()
		defer p.mu.Unlock()
		if len(p.all) < cap(p.all) {
			el := p.newFn()
			p.all <- el
			return el
		}

		el := <-p.all
		p.all <- el
		return el
	}
}

// Put makes el available to later Gets. Because Get may hand the same
// invoker to several callers, more Puts than capacity can arrive; a Put
// that finds the pool full drops el instead of blocking.
func (p *fixed) Put(el any) {
	select {
	case p.available <- el:
	default:
	}
}
