// Package bench compares the cost of tracking objects through the
// registry against plain Go pointers.
package bench

import (
	"fmt"
	"strings"
	"time"

	"tiergc/domain/demo"
	"tiergc/domain/registry"
)

// DefaultObjects matches the historical report size.
const DefaultObjects = 100000

type Result struct {
	Objects  int
	Baseline time.Duration
	Tracked  time.Duration
	// Ratio is Baseline/Tracked. Above 1 means the registry was faster.
	Ratio float64
	// Remaining is the number of live slots after the run. Always 0
	// unless the registry leaks.
	Remaining int
}

// Run times both strategies over n objects.
func Run(n int) (Result, error) {
	if n <= 0 {
		n = DefaultObjects
	}
	res := Result{Objects: n}
	res.Baseline = baseline(n)

	var err error
	if res.Tracked, res.Remaining, err = tracked(n); err != nil {
		return res, err
	}
	if res.Tracked > 0 {
		res.Ratio = float64(res.Baseline) / float64(res.Tracked)
	}
	return res, nil
}

var sink []*demo.Value

func baseline(n int) time.Duration {
	start := time.Now()
	objects := make([]*demo.Value, 0, n)
	for i := 0; i < n; i++ {
		objects = append(objects, &demo.Value{N: int64(i)})
	}
	sink = objects
	return time.Since(start)
}

// tracked constructs, references and releases every object, then runs
// one collection pass.
func tracked(n int) (time.Duration, int, error) {
	start := time.Now()
	reg := registry.New(registry.WithCapacity(n))
	values := demo.NewFactory()

	handles := make([]registry.Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := values.New(reg, int64(i), registry.Young)
		if err != nil {
			return 0, 0, fmt.Errorf("bench: create object %d: %w", i, err)
		}
		if _, err := reg.AddRef(h); err != nil {
			return 0, 0, fmt.Errorf("bench: %w", err)
		}
		handles = append(handles, h)
	}
	if err := releaseAll(reg, handles); err != nil {
		return 0, 0, err
	}
	reg.Collect()
	return time.Since(start), reg.Live(), nil
}

func releaseAll(reg *registry.Registry, handles []registry.Handle) error {
	for _, h := range handles {
		if _, err := reg.Release(h); err != nil {
			return fmt.Errorf("bench: %w", err)
		}
	}
	return nil
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.3f ms", float64(d)/float64(time.Millisecond))
}

func (r Result) String() string {
	var b strings.Builder
	b.WriteString("=== Benchmark Results ===\n")
	fmt.Fprintf(&b, "objects: %d\n", r.Objects)
	fmt.Fprintf(&b, "native pointers: %s\n", ms(r.Baseline))
	fmt.Fprintf(&b, "tiergc registry: %s\n", ms(r.Tracked))
	fmt.Fprintf(&b, "tiergc is %.2fx faster/slower\n", r.Ratio)
	return b.String()
}
