// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

// Interest is the set of readiness conditions a Register call watches
// for. Exactly one of Readable or Writable (or both) must be set.
type Interest uint8

const (
	// Readable watches for the descriptor becoming ready to read.
	Readable Interest = 1 << iota
	// Writable watches for the descriptor becoming ready to write.
	Writable
)

// Token identifies one pending registration inside a ReadinessReactor.
// It is opaque to callers beyond comparing it for a later Cancel.
type Token uint32

// parkedEntry is what a reactor's token slab stores per live
// registration: the parked fiber to re-enqueue, and (on platforms that
// require it) the registered fd, used only to issue an explicit
// deregister on wakeup.
type parkedEntry struct {
	handle FiberHandle
	fd     int
}
