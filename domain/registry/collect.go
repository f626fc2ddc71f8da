package registry

import (
	"fmt"
	"time"
)

// CollectStats summarises one Collect call.
type CollectStats struct {
	// Swept counts zero-count members destroyed by the sweep phase.
	Swept int
	// YoungToMiddle and MiddleToOld count promotions per edge. Objects
	// promoted from young are included in MiddleToOld.
	YoungToMiddle int
	MiddleToOld   int
	// Sizes holds the generation sizes after the call.
	Sizes    [NumGenerations]int
	Duration time.Duration
}

func (s CollectStats) String() string {
	return fmt.Sprintf("swept=%d young->middle=%d middle->old=%d sizes=%v took=%s",
		s.Swept, s.YoungToMiddle, s.MiddleToOld, s.Sizes, s.Duration)
}

// Collect sweeps zero-count members from every generation, then moves
// young into middle and middle into old. Old is never swept of live
// objects; it only shrinks through Release or Cleanup.
func (r *Registry) Collect() CollectStats {
	start := time.Now()
	var st CollectStats

	for g := Young; g < NumGenerations; g++ {
		st.Swept += r.sweep(g)
	}

	st.YoungToMiddle = r.promote(Young, Middle)
	st.MiddleToOld = r.promote(Middle, Old)

	for g := range r.gens {
		st.Sizes[g] = r.gens[g].size
	}
	st.Duration = time.Since(start)

	r.emit(Event{Kind: EventCollected, Count: st.Swept})
	return st
}

func (r *Registry) sweep(g Generation) int {
	n := 0
	for i := r.gens[g].head; i != nilIndex; {
		next := r.slots[i].next
		if r.slots[i].obj.RefCount() == 0 {
			r.unlink(i)
			r.destroy(i, g, ReasonSwept)
			n++
		}
		i = next
	}
	return n
}

func (r *Registry) promote(from, to Generation) int {
	src := &r.gens[from]
	n := src.size
	if n == 0 {
		return 0
	}
	for i := src.head; i != nilIndex; i = r.slots[i].next {
		s := &r.slots[i]
		s.gen = to
		r.emit(Event{
			Kind:       EventPromoted,
			Handle:     makeHandle(uint32(i), s.version),
			Generation: to,
			RefCount:   s.obj.RefCount(),
		})
	}
	r.gens[to].appendAll(r.slots, src)
	return n
}

// Cleanup destroys every tracked object regardless of its count and
// empties all generations. It returns the number destroyed. Objects
// allocated but never registered are not touched.
func (r *Registry) Cleanup() int {
	n := 0
	for g := Young; g < NumGenerations; g++ {
		for i := r.gens[g].head; i != nilIndex; {
			next := r.slots[i].next
			r.unlink(i)
			r.destroy(i, g, ReasonCleanup)
			n++
			i = next
		}
		r.gens[g] = newGenList()
	}
	r.emit(Event{Kind: EventCleanedUp, Count: n})
	return n
}
