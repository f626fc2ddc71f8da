package memory

import "testing"

type item struct {
	n int
}

func TestPoolCountsAndResets(t *testing.T) {
	p := NewPool(func() *item { return &item{} }, func(it *item) { it.n = 0 })

	a := p.Get()
	a.n = 42
	b := p.Get()

	st := p.Stats()
	if st.Gets != 2 || st.Outstanding() != 2 {
		t.Fatalf("stats = %+v", st)
	}
	if st.News < 1 {
		t.Fatalf("expected constructor calls, got %d", st.News)
	}

	p.Put(a)
	if a.n != 0 {
		t.Fatalf("reset not applied: n=%d", a.n)
	}
	p.Put(b)
	p.Put(nil)

	st = p.Stats()
	if st.Puts != 2 || st.Outstanding() != 0 {
		t.Fatalf("stats after put = %+v", st)
	}
}
