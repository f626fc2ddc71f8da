// Package registry implements the generational reference-counting
// registry: three ordered generation sets (young, middle, old) over an
// arena of object slots addressed by versioned handles.
//
// Objects enter the young generation on registration. Collect sweeps
// zero-count members and then ages every survivor one generation
// forward; old members stay old until their count drops to zero.
// Cleanup destroys everything still tracked.
//
// Reclamation is pure reference counting. Reference cycles are never
// collected.
//
// # Thread Safety
//
// Registry is NOT safe for concurrent use. Every operation runs to
// completion without locking; callers that share a registry across
// goroutines must serialise access (service.RegistryService does).
package registry
