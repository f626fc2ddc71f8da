// Package service orchestrates the registry and its supporting
// infrastructure: the mutation WAL, the lifecycle journal, the
// collection census and the payload pool.
//
// RegistryService is the only write entry point. It serialises every
// registry operation behind one mutex, so transports (gRPC, HTTP) and
// background jobs can share it safely.
package service
