// Package snapshot persists registry checkpoints so the mutation WAL
// can be truncated. A snapshot holds the arena checkpoint, the demo
// payload values and the last sequence it covers; replay skips every
// WAL record at or below that sequence.
package snapshot
