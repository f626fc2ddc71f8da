package registry

import (
	"errors"
	"fmt"

	"tiergc/domain/object"
)

var (
	// ErrStaleHandle marks use of a handle whose object was destroyed,
	// is awaiting a deferred sweep, or never existed.
	ErrStaleHandle = errors.New("registry: stale handle")

	// ErrAlreadyRegistered marks a second Register of a tracked object.
	ErrAlreadyRegistered = errors.New("registry: object already registered")

	// ErrInvalidGeneration marks a generation outside young..old.
	ErrInvalidGeneration = errors.New("registry: invalid generation")
)

type slot struct {
	obj     object.Object
	version uint32
	live    bool
	gen     Generation

	// condemned is set under the Deferred policy once the count hit
	// zero; the slot waits for a sweep and rejects further use.
	condemned bool

	prev int
	next int
}

// Registry holds the arena of object slots and the three generations.
type Registry struct {
	slots  []slot
	free   []int
	gens   [NumGenerations]genList
	policy Policy
	obs    Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy selects eager (default) or deferred destruction.
func WithPolicy(p Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithObserver installs a lifecycle event observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.obs = o }
}

// WithCapacity preallocates room for n slots.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.slots = make([]slot, 0, n)
		}
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for i := range r.gens {
		r.gens[i] = newGenList()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the destruction policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// ──────────────────────────────────────────────────────────
// Construction and registration
// ──────────────────────────────────────────────────────────

// Alloc places a payload in a fresh slot with a zero count. The object
// belongs to no generation until Register.
func (r *Registry) Alloc(p object.Payload) Handle {
	var i int
	if n := len(r.free); n > 0 {
		i = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		i = len(r.slots) - 1
		r.slots[i].version = 1
	}

	s := &r.slots[i]
	s.obj = object.New(p)
	s.live = true
	s.gen = unregistered
	s.condemned = false
	s.prev = nilIndex
	s.next = nilIndex
	return makeHandle(uint32(i), s.version)
}

// Register inserts the object into gen.
func (r *Registry) Register(h Handle, gen Generation) error {
	if !gen.Valid() {
		return fmt.Errorf("register %v: %w", h, ErrInvalidGeneration)
	}
	s, i, err := r.lookup(h)
	if err != nil {
		return fmt.Errorf("register %v: %w", h, err)
	}
	if s.gen != unregistered {
		return fmt.Errorf("register %v in %v: %w (member of %v)", h, gen, ErrAlreadyRegistered, s.gen)
	}
	s.gen = gen
	r.gens[gen].pushBack(r.slots, i)
	r.emit(Event{Kind: EventRegistered, Handle: h, Generation: gen, RefCount: s.obj.RefCount()})
	return nil
}

// Track allocates and registers in one step, the way a payload that
// registers itself on construction would.
func (r *Registry) Track(p object.Payload, gen Generation) (Handle, error) {
	if !gen.Valid() {
		return 0, fmt.Errorf("track: %w", ErrInvalidGeneration)
	}
	h := r.Alloc(p)
	if err := r.Register(h, gen); err != nil {
		return 0, err
	}
	return h, nil
}

// Remove erases the object from every generation. Absent objects are
// a no-op. The object stays alive and may be registered again.
func (r *Registry) Remove(h Handle) error {
	s, i, err := r.lookup(h)
	if err != nil {
		return fmt.Errorf("remove %v: %w", h, err)
	}
	if s.gen == unregistered {
		return nil
	}
	gen := s.gen
	r.unlink(i)
	r.emit(Event{Kind: EventRemoved, Handle: h, Generation: gen, RefCount: s.obj.RefCount()})
	return nil
}

// ──────────────────────────────────────────────────────────
// Reference counting
// ──────────────────────────────────────────────────────────

// AddRef increments the count and returns the new value.
func (r *Registry) AddRef(h Handle) (int, error) {
	s, _, err := r.lookup(h)
	if err != nil {
		return 0, fmt.Errorf("add ref %v: %w", h, err)
	}
	return s.obj.AddRef()
}

// Release decrements the count and returns the new value. When it
// reaches zero the object is removed from its generation and destroyed
// before Release returns, unless the policy is Deferred and the object
// is registered, in which case the next Collect sweeps it. Either way
// the handle is dead once Release reports zero.
func (r *Registry) Release(h Handle) (int, error) {
	s, i, err := r.lookup(h)
	if err != nil {
		return 0, fmt.Errorf("release %v: %w", h, err)
	}
	d, err := s.obj.Release()
	if err != nil {
		return s.obj.RefCount(), fmt.Errorf("release %v: %w", h, err)
	}
	if d == object.Retain {
		return s.obj.RefCount(), nil
	}

	if r.policy == Deferred && s.gen != unregistered {
		s.condemned = true
		return 0, nil
	}
	r.reclaim(i, ReasonReleased)
	return 0, nil
}

// ──────────────────────────────────────────────────────────
// Inspection
// ──────────────────────────────────────────────────────────

// RefCount returns the current count of a live object.
func (r *Registry) RefCount(h Handle) (int, error) {
	s, _, err := r.lookup(h)
	if err != nil {
		return 0, err
	}
	return s.obj.RefCount(), nil
}

// GenerationOf returns the tier holding h; ok is false when the object
// is alive but unregistered.
func (r *Registry) GenerationOf(h Handle) (gen Generation, ok bool, err error) {
	s, _, err := r.lookup(h)
	if err != nil {
		return 0, false, err
	}
	if s.gen == unregistered {
		return 0, false, nil
	}
	return s.gen, true, nil
}

// Payload returns the payload of a live object.
func (r *Registry) Payload(h Handle) (object.Payload, error) {
	s, _, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.obj.Payload(), nil
}

// Contains reports whether h is a member of gen. Condemned objects
// still count as members until the sweep.
func (r *Registry) Contains(gen Generation, h Handle) bool {
	i := h.index()
	if !gen.Valid() || h == 0 || i < 0 || i >= len(r.slots) {
		return false
	}
	s := &r.slots[i]
	return s.live && s.version == h.version() && s.gen == gen
}

// Len returns the size of one generation.
func (r *Registry) Len(gen Generation) int {
	if !gen.Valid() {
		return 0
	}
	return r.gens[gen].size
}

// Tracked returns the number of objects across all generations.
func (r *Registry) Tracked() int {
	n := 0
	for i := range r.gens {
		n += r.gens[i].size
	}
	return n
}

// Live returns the number of allocated slots, registered or not.
func (r *Registry) Live() int {
	return len(r.slots) - len(r.free)
}

// Members lists a generation in insertion order.
func (r *Registry) Members(gen Generation) []Handle {
	if !gen.Valid() {
		return nil
	}
	out := make([]Handle, 0, r.gens[gen].size)
	for i := r.gens[gen].head; i != nilIndex; i = r.slots[i].next {
		out = append(out, makeHandle(uint32(i), r.slots[i].version))
	}
	return out
}

// ──────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────

func (r *Registry) lookup(h Handle) (*slot, int, error) {
	i := h.index()
	if h == 0 || i < 0 || i >= len(r.slots) {
		return nil, 0, ErrStaleHandle
	}
	s := &r.slots[i]
	if !s.live || s.condemned || s.version != h.version() {
		return nil, 0, ErrStaleHandle
	}
	return s, i, nil
}

func (r *Registry) unlink(i int) {
	s := &r.slots[i]
	r.gens[s.gen].remove(r.slots, i)
	s.gen = unregistered
}

// reclaim removes slot i from its generation, destroys the object and
// returns the slot to the free list.
func (r *Registry) reclaim(i int, why Reason) {
	s := &r.slots[i]
	h := makeHandle(uint32(i), s.version)
	gen := s.gen
	if gen != unregistered {
		r.unlink(i)
		r.emit(Event{Kind: EventRemoved, Handle: h, Generation: gen, RefCount: s.obj.RefCount()})
	}
	r.destroy(i, gen, why)
}

// destroy must only see slots already out of every generation.
func (r *Registry) destroy(i int, gen Generation, why Reason) {
	s := &r.slots[i]
	h := makeHandle(uint32(i), s.version)
	refs := s.obj.RefCount()
	_ = s.obj.Destroy()

	s.obj = object.Object{}
	s.live = false
	s.condemned = false
	s.gen = unregistered
	s.prev = nilIndex
	s.next = nilIndex
	s.version++
	if s.version == 0 {
		s.version = 1
	}
	r.free = append(r.free, i)

	r.emit(Event{Kind: EventDestroyed, Handle: h, Generation: gen, RefCount: refs, Reason: why})
}

func (r *Registry) emit(e Event) {
	if r.obs != nil {
		r.obs.Observe(e)
	}
}
