// Package wal is the registry mutation log. Every state change the
// service applies is appended here first so a restarted process can
// rebuild the exact same registry by replaying the log in order.
//
// Records are framed as
//
//	[type:1][seq:8][time:8][len:4][payload][crc:4]
//
// in fixed-size segments named segment-NNNNNN.wal.
package wal
