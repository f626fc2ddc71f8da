// Package journal is the durable outbox of registry lifecycle events.
// The service appends one entry per event; the broadcaster drains NEW
// entries to the message broker and marks them ACKED.
package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Entry --------------------

// Entry is one outbox row.
type Entry struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

var ErrBadEntry = errors.New("journal: invalid entry encoding")

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
const entryHeader = 1 + 4 + 8

func encodeEntry(e Entry) []byte {
	buf := make([]byte, entryHeader+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[entryHeader:], e.Payload)
	return buf
}

func decodeEntry(seq uint64, b []byte) (Entry, error) {
	if len(b) < entryHeader {
		return Entry{}, ErrBadEntry
	}
	payload := make([]byte, len(b)-entryHeader)
	copy(payload, b[entryHeader:])
	return Entry{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- Journal --------------------

type Options struct {
	// InMemory keeps everything in a pebble memory filesystem. Tests.
	InMemory bool
	// NoSync skips fsync on writes.
	NoSync bool
}

type Journal struct {
	db   *pebble.DB
	next atomic.Uint64
	wo   *pebble.WriteOptions
}

func Open(dir string, opts Options) (*Journal, error) {
	po := &pebble.Options{}
	if opts.InMemory {
		po.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", dir, err)
	}
	j := &Journal{db: db, wo: pebble.Sync}
	if opts.NoSync {
		j.wo = pebble.NoSync
	}

	last, err := j.lastSeq()
	if err != nil {
		db.Close()
		return nil, err
	}
	j.next.Store(last)
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores a NEW entry and returns its journal sequence.
func (j *Journal) Append(payload []byte) (uint64, error) {
	seq := j.next.Add(1)
	e := Entry{Seq: seq, State: StateNew, Payload: payload}
	if err := j.db.Set(keyFor(seq), encodeEntry(e), j.wo); err != nil {
		return 0, fmt.Errorf("journal: append: %w", err)
	}
	return seq, nil
}

func (j *Journal) Get(seq uint64) (Entry, error) {
	val, closer, err := j.db.Get(keyFor(seq))
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()
	return decodeEntry(seq, val)
}

// MarkSent records a publish attempt.
func (j *Journal) MarkSent(seq uint64) error {
	return j.update(seq, func(e *Entry) {
		e.State = StateSent
		e.LastAttempt = time.Now().UnixNano()
	})
}

func (j *Journal) MarkAcked(seq uint64) error {
	return j.update(seq, func(e *Entry) { e.State = StateAcked })
}

// MarkRetry puts the entry back to NEW with one more retry counted.
func (j *Journal) MarkRetry(seq uint64) error {
	return j.update(seq, func(e *Entry) {
		e.State = StateNew
		e.Retries++
	})
}

func (j *Journal) MarkFailed(seq uint64) error {
	return j.update(seq, func(e *Entry) { e.State = StateFailed })
}

func (j *Journal) update(seq uint64, fn func(*Entry)) error {
	e, err := j.Get(seq)
	if err != nil {
		return fmt.Errorf("journal: get %d: %w", seq, err)
	}
	fn(&e)
	return j.db.Set(keyFor(seq), encodeEntry(e), j.wo)
}

// -------------------- Scan --------------------

// ScanByState visits every entry in the given state in seq order.
func (j *Journal) ScanByState(state State, fn func(Entry) error) error {
	return j.scan(func(e Entry) error {
		if e.State != state {
			return nil
		}
		return fn(e)
	})
}

// Counts returns the number of entries per state.
func (j *Journal) Counts() (map[State]int, error) {
	out := map[State]int{}
	err := j.scan(func(e Entry) error {
		out[e.State]++
		return nil
	})
	return out, err
}

// PruneAcked deletes every ACKED entry and returns how many.
func (j *Journal) PruneAcked() (int, error) {
	var seqs []uint64
	if err := j.ScanByState(StateAcked, func(e Entry) error {
		seqs = append(seqs, e.Seq)
		return nil
	}); err != nil {
		return 0, err
	}

	b := j.db.NewBatch()
	defer b.Close()
	for _, seq := range seqs {
		if err := b.Delete(keyFor(seq), nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(j.wo); err != nil {
		return 0, err
	}
	return len(seqs), nil
}

func (j *Journal) scan(fn func(Entry) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		e, err := decodeEntry(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (j *Journal) lastSeq() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
