package object

import "errors"

var (
	// ErrOverRelease is returned when Release is called on a zero count.
	ErrOverRelease = errors.New("object: release on zero reference count")

	// ErrDestroyed is returned when a destroyed object is used again.
	ErrDestroyed = errors.New("object: already destroyed")
)

// Payload is the polymorphic part of an object. Destroy is called
// exactly once, after the object left every generation.
type Payload interface {
	Destroy()
}

// Disposition tells the owner what a Release requires.
type Disposition uint8

const (
	// Retain means references are still outstanding.
	Retain Disposition = iota
	// Reclaim means the count reached zero and the object must be
	// deregistered and destroyed.
	Reclaim
)

func (d Disposition) String() string {
	switch d {
	case Retain:
		return "retain"
	case Reclaim:
		return "reclaim"
	default:
		return "unknown"
	}
}

// Object is a reference-counted payload holder.
// The zero value is unusable; construct with New.
type Object struct {
	refCount  int
	payload   Payload
	destroyed bool
}

// New wraps a payload with a zero reference count.
func New(p Payload) Object {
	return Object{payload: p}
}

// Restore wraps a payload with a known count, as read from a
// checkpoint. Negative counts are rejected.
func Restore(p Payload, refCount int) (Object, error) {
	if refCount < 0 {
		return Object{}, ErrOverRelease
	}
	return Object{payload: p, refCount: refCount}, nil
}

// RefCount returns the current count.
func (o *Object) RefCount() int {
	return o.refCount
}

// Payload returns the wrapped payload.
func (o *Object) Payload() Payload {
	return o.payload
}

// Destroyed reports whether Destroy already ran.
func (o *Object) Destroyed() bool {
	return o.destroyed
}

// AddRef increments the count and returns the new value.
func (o *Object) AddRef() (int, error) {
	if o.destroyed {
		return 0, ErrDestroyed
	}
	o.refCount++
	return o.refCount, nil
}

// Release decrements the count. Reaching zero yields Reclaim.
func (o *Object) Release() (Disposition, error) {
	if o.destroyed {
		return Retain, ErrDestroyed
	}
	if o.refCount == 0 {
		return Retain, ErrOverRelease
	}
	o.refCount--
	if o.refCount == 0 {
		return Reclaim, nil
	}
	return Retain, nil
}

// Destroy runs the payload destructor once and drops the payload.
func (o *Object) Destroy() error {
	if o.destroyed {
		return ErrDestroyed
	}
	o.destroyed = true
	if o.payload != nil {
		o.payload.Destroy()
	}
	o.payload = nil
	return nil
}
