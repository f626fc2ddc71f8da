package demo

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"tiergc/domain/registry"
)

func TestValueLifecycle(t *testing.T) {
	var buf bytes.Buffer
	var destroyed []int64
	f := NewFactory(
		WithLogger(log.New(&buf, "", 0)),
		OnDestroy(func(n int64) { destroyed = append(destroyed, n) }),
	)
	reg := registry.New()

	h1, err := f.New(reg, 1, registry.Young)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	h2, err := f.New(reg, 2, registry.Young)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	reg.AddRef(h1)
	reg.AddRef(h2)
	reg.Release(h1)
	reg.Release(h2)
	reg.Collect()
	reg.Cleanup()

	if len(destroyed) != 2 || destroyed[0] != 1 || destroyed[1] != 2 {
		t.Fatalf("destroyed = %v, want [1 2]", destroyed)
	}
	out := buf.String()
	for _, want := range []string{"value created: 1", "value created: 2", "value destroyed: 1", "value destroyed: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
	if st := f.Pool(); st.Outstanding() != 0 {
		t.Errorf("outstanding = %d, want 0", st.Outstanding())
	}
}

func TestValuePayloadReadable(t *testing.T) {
	f := NewFactory()
	reg := registry.New()
	h, _ := f.New(reg, 99, registry.Old)

	p, err := reg.Payload(h)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if v, ok := p.(*Value); !ok || v.N != 99 {
		t.Fatalf("payload = %#v", p)
	}
}

func TestNewRejectsInvalidGeneration(t *testing.T) {
	f := NewFactory()
	reg := registry.New()
	if _, err := f.New(reg, 1, registry.Generation(9)); err == nil {
		t.Fatal("expected error")
	}
	if st := f.Pool(); st.Outstanding() != 0 {
		t.Fatalf("outstanding = %d after failed new", st.Outstanding())
	}
}
