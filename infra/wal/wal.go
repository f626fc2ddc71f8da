package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	defaultSegmentSize     = 4 << 20
	defaultSegmentDuration = 10 * time.Minute
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// SyncEveryWrite fsyncs after each Append.
	SyncEveryWrite bool
}

// WAL is an append-only segmented log. Appends are serialised.
type WAL struct {
	mu         sync.Mutex
	cfg        Config
	current    *segment
	lastRotate time.Time
}

// Open creates the directory if needed and continues the newest
// existing segment.
func Open(cfg Config) (*WAL, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wal: empty dir")
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = defaultSegmentSize
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = defaultSegmentDuration
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}

	files, err := segmentFiles(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		newest := files[len(files)-1]
		if index, err = segmentIndex(newest); err != nil {
			return nil, fmt.Errorf("wal: parse segment name: %w", err)
		}
		// new frames must start on a frame boundary, or replay would
		// read them as part of the torn frame and drop them
		if _, err := trimTornTail(newest); err != nil {
			return nil, fmt.Errorf("wal: repair tail: %w", err)
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, fmt.Errorf("wal: open segment: %w", err)
	}
	return &WAL{cfg: cfg, current: seg, lastRotate: time.Now()}, nil
}

// Append frames and writes one record.
func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.append(encode(r)); err != nil {
		return fmt.Errorf("wal: append seq %d: %w", r.Seq, err)
	}
	if w.cfg.SyncEveryWrite {
		if err := w.current.sync(); err != nil {
			return fmt.Errorf("wal: sync: %w", err)
		}
	}
	if w.current.offset >= w.cfg.SegmentSize || time.Since(w.lastRotate) >= w.cfg.SegmentDuration {
		return w.rotate()
	}
	return nil
}

func encode(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	end := headerSize + int(payloadLen)
	binary.BigEndian.PutUint32(buf[end:], checksum(buf[:end]))
	return buf
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()

	seg, err := openSegment(w.cfg.Dir, w.current.index+1)
	if err != nil {
		return fmt.Errorf("wal: rotate: %w", err)
	}
	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.current.sync(); err != nil {
		return err
	}
	return w.current.close()
}

// Dir returns the log directory.
func (w *WAL) Dir() string {
	return w.cfg.Dir
}

// TruncateBefore deletes closed segments whose records all have
// seq <= the given value. The active segment is kept.
func (w *WAL) TruncateBefore(seq uint64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := segmentFiles(w.cfg.Dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range files {
		idx, err := segmentIndex(path)
		if err != nil || idx == w.current.index {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
