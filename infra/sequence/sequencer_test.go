package sequence

import (
	"sync"
	"testing"
)

func TestSequencerMonotonic(t *testing.T) {
	s := New(10)
	if got := s.Next(); got != 11 {
		t.Fatalf("next = %d, want 11", got)
	}
	if s.Current() != 11 {
		t.Fatalf("current = %d, want 11", s.Current())
	}

	s.Reset(5)
	if s.Current() != 11 {
		t.Fatalf("reset moved backwards to %d", s.Current())
	}
	s.Reset(100)
	if got := s.Next(); got != 101 {
		t.Fatalf("next after reset = %d, want 101", got)
	}
}

func TestSequencerConcurrent(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	seen := make(chan uint64, 1000)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				seen <- s.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	uniq := map[uint64]bool{}
	for v := range seen {
		if uniq[v] {
			t.Fatalf("duplicate id %d", v)
		}
		uniq[v] = true
	}
	if s.Current() != 1000 {
		t.Fatalf("current = %d, want 1000", s.Current())
	}
}
