// Package memory provides typed object pools used to recycle payload
// storage once the registry has destroyed an object.
//
// Pools are safe for concurrent use; the counters they keep are meant
// for diagnostics and benchmark reports.
package memory
