// Package registry owns the two node stores of a frame graph: the resource
// registry (resources, their version history and backing instances) and the
// task registry (tasks, their declared accesses and run callbacks).
//
// # Resources
//
// Every resource is identified by a ResourceID assigned in creation/import
// order, starting at 1 for each generation. A resource carries an append-only
// list of versions. Writing version k produces version k+1 and a fresh Handle;
// the handle for version k is stale from then on and any further read or
// write through it fails with a StaleHandleError.
//
// Transient resources are realized lazily through a host-supplied factory
// (see Factories) and released once the compiled plan says they are past their
// last use. Retained resources are borrowed from the host: they are bound to
// an external instance at import time and never destroyed by the registry.
//
// # Tasks
//
// A TaskNode records the handles its declaration created, read and wrote,
// together with an opaque payload and the run callback. The Culled flag is
// owned by the compiler.
//
// # Thread-Safety
//
// Neither store is safe for concurrent use. The frame graph owns both
// exclusively and drives them from a single goroutine.
package registry
