// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package net provides blocking-style TCP and UDP I/O for code running
// inside a fiberrt.Fiber, layered directly on non-blocking
// golang.org/x/sys/unix sockets via the fiber park/wake protocol
// (fiberrt.Fiber.ParkOn). It deliberately does not implement net.Conn:
// doing so would invite wiring stdlib net/http or a goroutine-per-
// connection server on top, both of which manage their own goroutines
// outside this scheduler's control and would silently break the
// assumption that a fiber's current worker never escapes past a
// suspension point on a goroutine the scheduler doesn't know about.
package net
