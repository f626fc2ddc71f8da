package memory

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed object pool with allocation counters.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)

	gets atomic.Uint64
	puts atomic.Uint64
	news atomic.Uint64
}

// NewPool builds a pool. reset, if non-nil, runs on every Put so that
// recycled values never leak state into their next owner.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	pool := &Pool[T]{reset: reset}
	pool.p = &sync.Pool{
		New: func() any {
			pool.news.Add(1)
			return ctor()
		},
	}
	return pool
}

func (p *Pool[T]) Get() *T {
	p.gets.Add(1)
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.puts.Add(1)
	p.p.Put(v)
}

// Stats is a point-in-time copy of the pool counters.
type Stats struct {
	Gets uint64
	Puts uint64
	News uint64
}

// Outstanding is the number of values handed out and not returned.
func (s Stats) Outstanding() uint64 {
	if s.Puts > s.Gets {
		return 0
	}
	return s.Gets - s.Puts
}

func (p *Pool[T]) Stats() Stats {
	return Stats{
		Gets: p.gets.Load(),
		Puts: p.puts.Load(),
		News: p.news.Load(),
	}
}
