package service

import (
	"context"
	"fmt"
	"time"

	"tiergc/domain/demo"
	"tiergc/domain/object"
	"tiergc/domain/registry"
	"tiergc/snapshot"
)

// Snapshot writes a checkpoint of the registry and drops WAL segments
// it fully covers. It returns the covered sequence.
func (s *RegistryService) Snapshot(w *snapshot.Writer) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &snapshot.Snapshot{
		Seq:     s.seq.Current(),
		Created: time.Now(),
		Values:  make(map[uint64]int64, s.reg.Live()),
	}
	snap.Checkpoint = s.reg.Checkpoint(func(h registry.Handle, p object.Payload) {
		if v, ok := p.(*demo.Value); ok {
			snap.Values[uint64(h)] = v.N
		}
	})
	if err := w.Write(snap); err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}

	if s.wal != nil {
		n, err := s.wal.TruncateBefore(snap.Seq)
		if err != nil {
			return snap.Seq, fmt.Errorf("wal truncate: %w", err)
		}
		if n > 0 {
			s.log.Printf("[snapshot] removed %d wal segments", n)
		}
	}
	s.log.Printf("[snapshot] written at seq=%d (%d objects)", snap.Seq, len(snap.Values))
	return snap.Seq, nil
}

// Restore loads a snapshot into a fresh service. It must run before
// ReplayFromWAL, which then skips records the snapshot covers.
func (s *RegistryService) Restore(snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.reg.Restore(snap.Checkpoint, func(h registry.Handle) object.Payload {
		return s.values.Value(snap.Values[uint64(h)])
	})
	if err != nil {
		return err
	}
	s.restoredSeq = snap.Seq
	s.seq.Reset(snap.Seq)
	s.log.Printf("[snapshot] restored seq=%d (%d objects)", snap.Seq, s.reg.Live())
	return nil
}

// StartSnapshotJob writes a snapshot every interval until ctx is done.
func (s *RegistryService) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	w := &snapshot.Writer{Dir: dir}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if s.seq.Current() == last {
				continue
			}
			seq, err := s.Snapshot(w)
			if err != nil {
				s.log.Printf("[snapshot] %v", err)
				continue
			}
			last = seq
		}
	}()
}
