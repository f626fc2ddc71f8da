package wal

import (
	"hash/crc32"
	"time"
)

// RecordType names the logged mutation.
type RecordType uint8

const (
	RecordCreate RecordType = iota + 1
	RecordAddRef
	RecordRelease
	RecordRemove
	RecordCollect
	RecordCleanup
)

func (t RecordType) String() string {
	switch t {
	case RecordCreate:
		return "create"
	case RecordAddRef:
		return "add_ref"
	case RecordRelease:
		return "release"
	case RecordRemove:
		return "remove"
	case RecordCollect:
		return "collect"
	case RecordCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Record is an immutable log entry.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

const headerSize = 1 + 8 + 8 + 4

func checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
