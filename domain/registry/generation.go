package registry

import (
	"fmt"
	"strings"
)

// Generation is an age tier.
type Generation uint8

const (
	Young Generation = iota
	Middle
	Old
)

// NumGenerations is the number of age tiers.
const NumGenerations = 3

// unregistered marks a live slot that belongs to no generation.
const unregistered Generation = 0xFF

// Valid reports whether g names one of the three tiers.
func (g Generation) Valid() bool {
	return g < NumGenerations
}

func (g Generation) String() string {
	switch g {
	case Young:
		return "young"
	case Middle:
		return "middle"
	case Old:
		return "old"
	case unregistered:
		return "unregistered"
	default:
		return fmt.Sprintf("generation(%d)", uint8(g))
	}
}

// ParseGeneration accepts "young", "middle" or "old" in any case.
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "young", "":
		return Young, nil
	case "middle":
		return Middle, nil
	case "old":
		return Old, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGeneration, s)
}

// Policy selects when a zero-count object is destroyed.
type Policy uint8

const (
	// Eager destroys an object inside the Release that drops it to zero.
	Eager Policy = iota
	// Deferred leaves it registered until the next Collect sweep.
	Deferred
)

func (p Policy) String() string {
	switch p {
	case Eager:
		return "eager"
	case Deferred:
		return "deferred"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy accepts "eager" or "deferred".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eager", "":
		return Eager, nil
	case "deferred":
		return Deferred, nil
	}
	return 0, fmt.Errorf("registry: unknown policy %q", s)
}
