package wal

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestWAL_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	const n = 100
	for i := 1; i <= n; i++ {
		rec := NewRecord(RecordCreate, uint64(i), []byte(fmt.Sprintf("%d|young", i)))
		if err := w.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	count := 0
	last, err := Replay(dir, func(r *Record) error {
		count++
		if r.Type != RecordCreate {
			t.Fatalf("unexpected record type: %v", r.Type)
		}
		if want := fmt.Sprintf("%d|young", r.Seq); string(r.Data) != want {
			t.Fatalf("payload = %q, want %q", r.Data, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != n || last != n {
		t.Fatalf("replayed %d records, last seq %d; want %d", count, last, n)
	}
}

func TestWAL_ReopenContinues(t *testing.T) {
	dir := t.TempDir()

	w, _ := Open(Config{Dir: dir})
	_ = w.Append(NewRecord(RecordCollect, 1, nil))
	_ = w.Close()

	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = w.Append(NewRecord(RecordCleanup, 2, nil))
	_ = w.Close()

	var types []RecordType
	if _, err := Replay(dir, func(r *Record) error {
		types = append(types, r.Type)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(types) != 2 || types[0] != RecordCollect || types[1] != RecordCleanup {
		t.Fatalf("types = %v", types)
	}
}

func TestWAL_RotationAndTruncate(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	for i := 1; i <= 10; i++ {
		if err := w.Append(NewRecord(RecordAddRef, uint64(i), []byte("0123456789"))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	files, _ := segmentFiles(dir)
	if len(files) < 3 {
		t.Fatalf("expected several segments, found %d", len(files))
	}

	removed, err := w.TruncateBefore(6)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if removed == 0 {
		t.Fatal("expected old segments removed")
	}
	_ = w.Close()

	first := uint64(0)
	if _, err := Replay(dir, func(r *Record) error {
		if first == 0 {
			first = r.Seq
		}
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first == 0 || first > 7 {
		t.Fatalf("first surviving seq = %d", first)
	}
}

func TestWAL_CRCIntegrity(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	_ = w.Append(NewRecord(RecordCreate, 1, []byte("valid-record")))
	_ = w.Close()

	f, err := os.OpenFile(segmentPath(dir, 0), os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	// corrupt the payload to break the CRC
	_, _ = f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, headerSize)
	f.Close()

	_, err = Replay(dir, func(*Record) error { return nil })
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected crc mismatch, got %v", err)
	}
}

func TestWAL_TornTailIgnored(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	_ = w.Append(NewRecord(RecordCreate, 1, []byte("a")))
	_ = w.Append(NewRecord(RecordCreate, 2, []byte("b")))
	_ = w.Close()

	path := segmentPath(dir, 0)
	st, _ := os.Stat(path)
	if err := os.Truncate(path, st.Size()-3); err != nil {
		t.Fatal(err)
	}

	last, err := Replay(dir, func(*Record) error { return nil })
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != 1 {
		t.Fatalf("last = %d, want 1", last)
	}
}

func TestWAL_AppendAfterTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	if err := w.Append(NewRecord(RecordCreate, 1, []byte("a"))); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = w.Close()

	// a crash mid-write leaves part of a header behind
	path := segmentPath(dir, 0)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{byte(RecordAddRef), 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := Replay(dir, func(*Record) error { return nil }); err != nil {
		t.Fatalf("replay torn log: %v", err)
	}

	w, err = Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w.Append(NewRecord(RecordAddRef, 2, []byte("b"))); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	_ = w.Close()

	var seqs []uint64
	last, err := Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != 2 || len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("replayed seqs=%v last=%d, want [1 2] last=2", seqs, last)
	}
}

func TestWAL_OpenRejectsCorruptTail(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	_ = w.Append(NewRecord(RecordCreate, 1, []byte("abc")))
	_ = w.Close()

	path := segmentPath(dir, 0)
	data, _ := os.ReadFile(path)
	data[headerSize] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(Config{Dir: dir}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("open corrupt segment: %v, want ErrCorrupt", err)
	}
}

func TestWAL_OutOfOrderRejected(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	_ = w.Append(NewRecord(RecordCreate, 5, nil))
	_ = w.Append(NewRecord(RecordCreate, 3, nil))
	_ = w.Close()

	_, err := Replay(dir, func(*Record) error { return nil })
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
}

func TestReplayMissingDir(t *testing.T) {
	last, err := Replay(t.TempDir()+"/absent", func(*Record) error { return nil })
	if err != nil || last != 0 {
		t.Fatalf("replay missing dir = %d, %v", last, err)
	}
}
