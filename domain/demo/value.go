// Package demo holds the sample payload used by the CLI, the service
// and the benchmark: an integer value that registers itself with a
// registry when constructed and reports its own destruction.
package demo

import (
	"log"

	"tiergc/domain/registry"
	"tiergc/infra/memory"
)

// Value is a pooled integer payload.
type Value struct {
	N int64

	factory *Factory
}

// Destroy returns the value to its factory pool.
func (v *Value) Destroy() {
	f := v.factory
	if f == nil {
		return
	}
	if f.logger != nil {
		f.logger.Printf("[demo] value destroyed: %d", v.N)
	}
	if f.onDestroy != nil {
		f.onDestroy(v.N)
	}
	f.pool.Put(v)
}

// Factory builds Values from a shared pool.
type Factory struct {
	pool      *memory.Pool[Value]
	logger    *log.Logger
	onDestroy func(int64)
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger logs construction and destruction lines.
func WithLogger(l *log.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// OnDestroy registers a callback with the destroyed value.
func OnDestroy(fn func(int64)) FactoryOption {
	return func(f *Factory) { f.onDestroy = fn }
}

func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{}
	f.pool = memory.NewPool(
		func() *Value { return &Value{} },
		func(v *Value) { *v = Value{} },
	)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Value takes an untracked value from the pool.
func (f *Factory) Value(n int64) *Value {
	v := f.pool.Get()
	v.N = n
	v.factory = f
	return v
}

// New constructs a value and registers it into gen.
func (f *Factory) New(reg *registry.Registry, n int64, gen registry.Generation) (registry.Handle, error) {
	v := f.Value(n)

	h, err := reg.Track(v, gen)
	if err != nil {
		v.factory = nil
		f.pool.Put(v)
		return 0, err
	}
	if f.logger != nil {
		f.logger.Printf("[demo] value created: %d (handle %v, %v)", n, h, gen)
	}
	return h, nil
}

// Pool exposes the pool counters.
func (f *Factory) Pool() memory.Stats {
	return f.pool.Stats()
}
