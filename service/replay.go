package service

import (
	"fmt"
	"strconv"
	"strings"

	"tiergc/domain/registry"
	"tiergc/infra/wal"
)

/*
ReplayFromWAL rebuilds registry state from the mutation log.

IMPORTANT:
- This MUST run before accepting traffic
- The journal and census are NOT written during replay
- Records covered by a restored snapshot are skipped
- Handles are deterministic, so every Create must reproduce the
  handle that was logged; a mismatch means the log and the code
  disagree and replay stops
*/
func ReplayFromWAL(dir string, s *RegistryService) (uint64, error) {
	s.mu.Lock()
	s.replaying = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.replaying = false
		s.mu.Unlock()
	}()

	count := 0
	lastSeq, err := wal.Replay(dir, func(rec *wal.Record) error {
		if rec.Seq <= s.restoredSeq {
			return nil
		}
		count++
		if err := s.apply(rec); err != nil {
			return fmt.Errorf("replay seq %d (%v): %w", rec.Seq, rec.Type, err)
		}
		return nil
	})
	if err != nil {
		return lastSeq, err
	}

	s.seq.Reset(lastSeq)
	s.log.Printf("[replay] WAL replay completed: %d records (last seq = %d)", count, lastSeq)
	return lastSeq, nil
}

func (s *RegistryService) apply(rec *wal.Record) error {
	switch rec.Type {
	case wal.RecordCreate:
		// Payload format:
		// handle|value|generation
		parts := strings.Split(string(rec.Data), "|")
		if len(parts) != 3 {
			return fmt.Errorf("invalid create payload: %s", rec.Data)
		}
		want, err := parseHandle([]byte(parts[0]))
		if err != nil {
			return err
		}
		value, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return err
		}
		gen, err := strconv.Atoi(parts[2])
		if err != nil {
			return err
		}
		got, err := s.Create(value, registry.Generation(gen))
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("handle mismatch: logged %v, replayed %v", want, got)
		}
		return nil

	case wal.RecordAddRef, wal.RecordRelease, wal.RecordRemove:
		h, err := parseHandle(rec.Data)
		if err != nil {
			return err
		}
		switch rec.Type {
		case wal.RecordAddRef:
			_, err = s.AddRef(h)
		case wal.RecordRelease:
			_, err = s.Release(h)
		default:
			err = s.Remove(h)
		}
		return err

	case wal.RecordCollect:
		_, err := s.Collect()
		return err

	case wal.RecordCleanup:
		_, err := s.Cleanup()
		return err

	default:
		return fmt.Errorf("unknown record type %d", rec.Type)
	}
}
