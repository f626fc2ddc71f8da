package registry

import "fmt"

// Verify walks every generation and checks the structural invariants:
// links are consistent, every member is live and tagged with the list
// it sits in, sizes match, and no registered slot is missing from its
// list. It is meant for tests and debug endpoints.
func (r *Registry) Verify() error {
	seen := make([]bool, len(r.slots))

	for g := Young; g < NumGenerations; g++ {
		l := &r.gens[g]
		count := 0
		prev := nilIndex
		for i := l.head; i != nilIndex; i = r.slots[i].next {
			if i < 0 || i >= len(r.slots) {
				return fmt.Errorf("%v: index %d out of range", g, i)
			}
			s := &r.slots[i]
			if seen[i] {
				return fmt.Errorf("%v: slot %d listed twice", g, i)
			}
			seen[i] = true
			if !s.live {
				return fmt.Errorf("%v: slot %d is not live", g, i)
			}
			if s.gen != g {
				return fmt.Errorf("%v: slot %d tagged %v", g, i, s.gen)
			}
			if s.prev != prev {
				return fmt.Errorf("%v: slot %d prev=%d, want %d", g, i, s.prev, prev)
			}
			if s.obj.RefCount() < 0 {
				return fmt.Errorf("%v: slot %d negative count %d", g, i, s.obj.RefCount())
			}
			if s.condemned && (r.policy != Deferred || s.obj.RefCount() != 0) {
				return fmt.Errorf("%v: slot %d condemned with count %d", g, i, s.obj.RefCount())
			}
			prev = i
			count++
		}
		if l.tail != prev {
			return fmt.Errorf("%v: tail=%d, want %d", g, l.tail, prev)
		}
		if l.size != count {
			return fmt.Errorf("%v: size=%d, counted %d", g, l.size, count)
		}
	}

	for i := range r.slots {
		s := &r.slots[i]
		if s.live && s.gen != unregistered && !seen[i] {
			return fmt.Errorf("slot %d tagged %v but not listed", i, s.gen)
		}
		if !s.live && s.gen != unregistered {
			return fmt.Errorf("free slot %d tagged %v", i, s.gen)
		}
	}
	return nil
}
