// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package fiberrt implements an M:N cooperative scheduling runtime: many
// stackful fibers multiplexed over a small pool of OS-thread-bound workers.
//
// A Fiber runs ordinary blocking-style code. Whenever it performs I/O that
// would block, the net subpackage parks it against a per-worker readiness
// reactor (epoll on Linux, kqueue on Darwin) and hands the worker back to
// the scheduler so other runnable fibers can make progress. When the
// underlying descriptor becomes ready, the fiber is re-queued onto the
// shared GlobalQueue and eventually resumed — possibly on a different
// worker than the one it last ran on.
//
// The runtime does not implement work stealing, priority scheduling,
// preemption, or timers: fibers yield cooperatively, the global queue is
// plain FIFO, and wakeups are driven purely by readiness, never deadlines.
package fiberrt
