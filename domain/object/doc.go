// Package object defines the trackable unit managed by the registry:
// a reference count paired with a destructible payload.
//
// An Object never destroys itself. Release reports a Disposition and
// the owning registry performs deregistration and destruction.
package object
