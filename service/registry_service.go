package service

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"tiergc/domain/demo"
	"tiergc/domain/registry"
	"tiergc/infra/census"
	"tiergc/infra/journal"
	"tiergc/infra/memory"
	"tiergc/infra/sequence"
	"tiergc/infra/wal"
)

// ErrLogFailed is returned by every mutation after a WAL append has
// failed. The registry may hold one change the log does not, so the
// service refuses further writes until it is restarted from the log.
var ErrLogFailed = errors.New("service: write-ahead log failed")

/*
RegistryService wires the domain registry to infrastructure.

Mutations are applied to the registry first and logged to the WAL
only when they succeed, all under the same lock, so the log order is
the apply order and replay never meets a rejected operation.
*/
type RegistryService struct {
	mu sync.Mutex

	reg    *registry.Registry
	values *demo.Factory
	seq    *sequence.Sequencer

	wal     *wal.WAL
	journal *journal.Journal
	census  *census.Store
	log     *log.Logger

	replaying  bool
	currentSeq uint64
	walErr     error

	// restoredSeq is the last sequence covered by a loaded snapshot.
	restoredSeq uint64

	collections uint64
	destroyed   uint64
	journalErrs uint64
}

// Options configures the registry owned by the service.
type Options struct {
	Policy   registry.Policy
	Capacity int
	// Verbose logs every value construction and destruction.
	Verbose  bool
}

// Deps are optional collaborators. Nil members are skipped.
type Deps struct {
	WAL     *wal.WAL
	Journal *journal.Journal
	Census  *census.Store
	Seq     *sequence.Sequencer
	Logger  *log.Logger
}

// NewRegistryService wires all dependencies. No globals.
func NewRegistryService(opts Options, deps Deps) *RegistryService {
	s := &RegistryService{
		seq:     deps.Seq,
		wal:     deps.WAL,
		journal: deps.Journal,
		census:  deps.Census,
		log:     deps.Logger,
	}
	if s.seq == nil {
		s.seq = sequence.New(0)
	}
	if s.log == nil {
		s.log = log.Default()
	}
	if opts.Verbose {
		s.values = demo.NewFactory(demo.WithLogger(s.log))
	} else {
		s.values = demo.NewFactory()
	}
	s.reg = registry.New(
		registry.WithPolicy(opts.Policy),
		registry.WithCapacity(opts.Capacity),
		registry.WithObserver(registry.ObserverFunc(s.observe)),
	)
	return s
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Create constructs a demo value, registers it into gen and takes one
// reference on behalf of the caller, so the object survives collection
// until the caller releases it.
func (s *RegistryService) Create(value int64, gen registry.Generation) (registry.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return 0, err
	}
	s.begin()
	h, err := s.values.New(s.reg, value, gen)
	if err != nil {
		return 0, err
	}
	if _, err := s.reg.AddRef(h); err != nil {
		return 0, err
	}
	payload := fmt.Sprintf("%d|%d|%d", uint64(h), value, gen)
	if err := s.append(wal.RecordCreate, payload); err != nil {
		s.discard(h)
		return 0, err
	}
	return h, nil
}

func (s *RegistryService) AddRef(h registry.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return 0, err
	}
	s.begin()
	n, err := s.reg.AddRef(h)
	if err != nil {
		return n, err
	}
	return n, s.append(wal.RecordAddRef, h.String())
}

func (s *RegistryService) Release(h registry.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return 0, err
	}
	s.begin()
	n, err := s.reg.Release(h)
	if err != nil {
		return n, err
	}
	return n, s.append(wal.RecordRelease, h.String())
}

func (s *RegistryService) Remove(h registry.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return err
	}
	s.begin()
	if err := s.reg.Remove(h); err != nil {
		return err
	}
	return s.append(wal.RecordRemove, h.String())
}

// Collect runs one sweep-and-promote pass and records it in the census.
func (s *RegistryService) Collect() (registry.CollectStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return registry.CollectStats{}, err
	}
	s.begin()
	if !s.replaying {
		s.log.Printf("[registry] starting garbage collection...")
	}
	st := s.reg.Collect()
	s.collections++

	if err := s.append(wal.RecordCollect, ""); err != nil {
		return st, err
	}
	if s.census != nil && !s.replaying {
		if _, err := s.census.Record(s.currentSeq, st); err != nil {
			return st, fmt.Errorf("census: %w", err)
		}
	}
	return st, nil
}

// Cleanup destroys everything still tracked.
func (s *RegistryService) Cleanup() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return 0, err
	}
	s.begin()
	if !s.replaying {
		s.log.Printf("[registry] cleaning up all objects...")
	}
	n := s.reg.Cleanup()
	return n, s.append(wal.RecordCleanup, "")
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Stats is a consistent snapshot of service counters.
type Stats struct {
	Policy      string
	Sizes       [registry.NumGenerations]int
	Tracked     int
	Live        int
	Collections uint64
	Destroyed   uint64
	JournalErrs uint64
	Seq         uint64
	Pool        memory.Stats
}

func (s *RegistryService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Policy:      s.reg.Policy().String(),
		Tracked:     s.reg.Tracked(),
		Live:        s.reg.Live(),
		Collections: s.collections,
		Destroyed:   s.destroyed,
		JournalErrs: s.journalErrs,
		Seq:         s.seq.Current(),
		Pool:        s.values.Pool(),
	}
	for g := registry.Young; g < registry.NumGenerations; g++ {
		st.Sizes[g] = s.reg.Len(g)
	}
	return st
}

// Members lists one generation in insertion order.
func (s *RegistryService) Members(gen registry.Generation) []registry.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Members(gen)
}

// ObjectInfo describes one live object.
type ObjectInfo struct {
	Handle     registry.Handle
	Value      int64
	RefCount   int
	Generation string
}

func (s *RegistryService) Describe(h registry.Handle) (ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.reg.RefCount(h)
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{Handle: h, RefCount: n, Generation: "unregistered"}
	if gen, ok, _ := s.reg.GenerationOf(h); ok {
		info.Generation = gen.String()
	}
	if p, _ := s.reg.Payload(h); p != nil {
		if v, ok := p.(*demo.Value); ok {
			info.Value = v.N
		}
	}
	return info, nil
}

// Verify checks registry invariants.
func (s *RegistryService) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Verify()
}

// RecentCollections reads the census; nil census returns nothing.
func (s *RegistryService) RecentCollections(limit int) ([]census.Collection, error) {
	if s.census == nil {
		return nil, nil
	}
	return s.census.Recent(limit)
}

// CollectionTotals aggregates the census; nil census returns zeros.
func (s *RegistryService) CollectionTotals() (census.Totals, error) {
	if s.census == nil {
		return census.Totals{}, nil
	}
	return s.census.Totals()
}

//
// ──────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────
//

func (s *RegistryService) begin() {
	if !s.replaying {
		s.currentSeq = s.seq.Next()
	}
}

func (s *RegistryService) writable() error {
	if s.walErr != nil {
		return fmt.Errorf("%w: %v", ErrLogFailed, s.walErr)
	}
	return nil
}

func (s *RegistryService) append(t wal.RecordType, payload string) error {
	if s.wal == nil || s.replaying {
		return nil
	}
	if err := s.wal.Append(wal.NewRecord(t, s.currentSeq, []byte(payload))); err != nil {
		s.walErr = fmt.Errorf("wal %v: %w", t, err)
		s.log.Printf("[registry] %v, rejecting further writes", s.walErr)
		return s.walErr
	}
	return nil
}

// discard undoes a Create the log never saw. Dropping the object from
// its generation first makes the final release destroy it under either
// policy.
func (s *RegistryService) discard(h registry.Handle) {
	if err := s.reg.Remove(h); err != nil {
		s.log.Printf("[registry] rollback remove %v: %v", h, err)
	}
	if _, err := s.reg.Release(h); err != nil {
		s.log.Printf("[registry] rollback release %v: %v", h, err)
	}
}

func parseHandle(data []byte) (registry.Handle, error) {
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: %w", data, err)
	}
	return registry.Handle(v), nil
}
