package registry

import (
	"errors"
	"fmt"

	"tiergc/domain/object"
)

// ErrNotEmpty is returned by Restore on a registry already in use.
var ErrNotEmpty = errors.New("registry: restore into non-empty registry")

// Checkpoint is a copy of the arena: slot versions, the free list and
// the order of every generation. A registry restored from it hands out
// the same handles, in the same order, as the one it was taken from.
type Checkpoint struct {
	Slots []SlotState
	Free  []int
	Order [NumGenerations][]int
}

// SlotState is one arena slot. Gen is meaningful only for live slots.
type SlotState struct {
	Version   uint32
	Live      bool
	Gen       Generation
	Condemned bool
	RefCount  int
}

// Checkpoint copies the arena. visit is called with every live payload.
func (r *Registry) Checkpoint(visit func(Handle, object.Payload)) Checkpoint {
	c := Checkpoint{
		Slots: make([]SlotState, len(r.slots)),
		Free:  append([]int(nil), r.free...),
	}
	for i := range r.slots {
		s := &r.slots[i]
		c.Slots[i] = SlotState{
			Version:   s.version,
			Live:      s.live,
			Gen:       s.gen,
			Condemned: s.condemned,
			RefCount:  s.obj.RefCount(),
		}
		if s.live && visit != nil {
			visit(makeHandle(uint32(i), s.version), s.obj.Payload())
		}
	}
	for g := range r.gens {
		order := make([]int, 0, r.gens[g].size)
		for i := r.gens[g].head; i != nilIndex; i = r.slots[i].next {
			order = append(order, i)
		}
		c.Order[g] = order
	}
	return c
}

// Restore loads a checkpoint into an empty registry. payload supplies
// the payload of every live slot. No events are emitted. The result is
// checked with Verify.
func (r *Registry) Restore(c Checkpoint, payload func(Handle) object.Payload) error {
	if len(r.slots) > 0 || r.Tracked() > 0 {
		return ErrNotEmpty
	}

	slots := make([]slot, len(c.Slots))
	for i, st := range c.Slots {
		if st.Version == 0 {
			return fmt.Errorf("restore slot %d: zero version", i)
		}
		s := &slots[i]
		s.version = st.Version
		s.gen = unregistered
		s.prev = nilIndex
		s.next = nilIndex
		if !st.Live {
			continue
		}
		obj, err := object.Restore(payload(makeHandle(uint32(i), st.Version)), st.RefCount)
		if err != nil {
			return fmt.Errorf("restore slot %d: %w", i, err)
		}
		s.obj = obj
		s.live = true
		s.condemned = st.Condemned
	}

	r.slots = slots
	r.free = r.free[:0]
	for _, i := range c.Free {
		if i < 0 || i >= len(slots) || slots[i].live {
			return r.abortRestore(fmt.Errorf("restore: bad free slot %d", i))
		}
		r.free = append(r.free, i)
	}
	for g := range c.Order {
		for _, i := range c.Order[g] {
			if i < 0 || i >= len(slots) || !slots[i].live || slots[i].gen != unregistered || c.Slots[i].Gen != Generation(g) {
				return r.abortRestore(fmt.Errorf("restore: bad %v member %d", Generation(g), i))
			}
			slots[i].gen = Generation(g)
			r.gens[g].pushBack(r.slots, i)
		}
	}

	dead := 0
	for i, st := range c.Slots {
		if !st.Live {
			dead++
			continue
		}
		if slots[i].gen != st.Gen {
			return r.abortRestore(fmt.Errorf("restore: slot %d tagged %v but listed as %v", i, st.Gen, slots[i].gen))
		}
		if st.Condemned && st.Gen == unregistered {
			return r.abortRestore(fmt.Errorf("restore: slot %d condemned outside a generation", i))
		}
	}
	if dead != len(r.free) {
		return r.abortRestore(fmt.Errorf("restore: %d free slots, %d on the free list", dead, len(r.free)))
	}

	if err := r.Verify(); err != nil {
		return r.abortRestore(err)
	}
	return nil
}

func (r *Registry) abortRestore(err error) error {
	r.slots = r.slots[:0]
	r.free = r.free[:0]
	for i := range r.gens {
		r.gens[i] = newGenList()
	}
	return err
}
