package registry

// EventKind classifies registry lifecycle events.
type EventKind uint8

const (
	EventRegistered EventKind = iota
	EventRemoved
	EventPromoted
	EventDestroyed
	EventCollected
	EventCleanedUp
)

func (k EventKind) String() string {
	switch k {
	case EventRegistered:
		return "registered"
	case EventRemoved:
		return "removed"
	case EventPromoted:
		return "promoted"
	case EventDestroyed:
		return "destroyed"
	case EventCollected:
		return "collected"
	case EventCleanedUp:
		return "cleaned_up"
	default:
		return "unknown"
	}
}

// Reason says why an object was destroyed.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonReleased
	ReasonSwept
	ReasonCleanup
)

func (r Reason) String() string {
	switch r {
	case ReasonReleased:
		return "released"
	case ReasonSwept:
		return "swept"
	case ReasonCleanup:
		return "cleanup"
	default:
		return ""
	}
}

// Event describes one lifecycle transition. Generation is the tier the
// object was in (for Promoted, the tier it moved to). Collected and
// CleanedUp carry no handle; Count holds the number of objects affected.
type Event struct {
	Kind       EventKind
	Handle     Handle
	Generation Generation
	RefCount   int
	Reason     Reason
	Count      int
}

// Observer receives events synchronously, inside the registry call
// that produced them. It must not call back into the registry.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
