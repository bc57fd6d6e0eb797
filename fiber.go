// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"runtime/debug"
	"sync/atomic"
)

var fiberIDGen atomic.Int64

// PanicHandler is invoked (on the worker that was resuming the fiber) when
// a fiber's entry closure panics. The default, installed via Options, logs
// the panic and its stack via the package Logger.
type PanicHandler func(fiber *Fiber, recovered any, stack []byte)

// Fiber is a single lightweight, stackful, cooperatively-scheduled task.
// Its "stack" is the Go stack of its own backing goroutine; everything
// else about it — lifecycle state, saved Context, entry closure — is an
// ordinary heap-allocated value owned, at any instant, by exactly one of:
// the GlobalQueue (queued), a Worker (running), or a ReadinessReactor
// (parked). See state.go for the full transition table.
type Fiber struct { // betteralign:ignore
	id        int64
	name      string
	stackSize int

	state *fastState
	ctx   *Context

	// owner records which Worker is currently resuming this fiber, set
	// immediately before Worker.resume's yieldTo and cleared immediately
	// after control returns — so any lookup of "my current worker" from
	// inside fiber code cannot outlive a single suspension point.
	owner atomic.Pointer[Worker]

	entry func(f *Fiber)

	panicHandler PanicHandler
	panicValue   any
	panicStack   []byte
}

// FiberHandle is the reference type moved between the GlobalQueue, a
// Worker, and a ReadinessReactor. It is simply a *Fiber: Fiber carries its
// own interior-mutable state, so no separate wrapper is needed, but the
// distinct name documents intent at call sites (queue.go, reactor.go).
type FiberHandle = *Fiber

// ID returns the fiber's process-unique identifier, assigned at spawn
// time.
func (f *Fiber) ID() int64 { return f.id }

// Name returns the fiber's optional diagnostic name.
func (f *Fiber) Name() string { return f.name }

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() FiberState { return f.state.Load() }

// spawnFiber allocates a Fiber and launches its backing goroutine. The
// goroutine parks immediately, waiting for its first resume; the returned
// Fiber is in StateSuspended and must be enqueued by the caller.
func spawnFiber(entry func(f *Fiber), opts *resolvedOptions) *Fiber {
	f := &Fiber{
		id:           fiberIDGen.Add(1),
		name:         opts.name,
		stackSize:    opts.stackSize,
		state:        newFastState(StateSuspended),
		ctx:          newContext(),
		entry:        entry,
		panicHandler: opts.panicHandler,
	}

	go f.trampoline()

	return f
}

// trampoline is the body of a Fiber's backing goroutine. It waits for its
// first resume, runs the entry closure with panic recovery, and yields a
// terminal result back to whichever worker resumed it last.
func (f *Fiber) trampoline() {
	f.ctx.wait()
	f.state.Store(StateRunning)

	func() {
		defer func() {
			if r := recover(); r != nil {
				f.panicValue = r
				f.panicStack = debug.Stack()
				f.state.Store(StatePanicked)
			}
		}()
		f.entry(f)
		if f.state.Load() != StatePanicked {
			f.state.Store(StateFinished)
		}
	}()

	w := f.owner.Load()
	if w != nil {
		w.finish(f, f.state.Load())
	}
}

// Yield suspends the calling fiber cooperatively, allowing other runnable
// fibers to make progress before it is resumed again. It must be called
// from within f's own backing goroutine (i.e. from code reachable from
// f's entry closure).
func (f *Fiber) Yield() {
	w := f.owner.Load()
	if w == nil {
		return
	}
	f.state.Store(StateSuspended)
	w.yieldWith(f, StateSuspended)
}

// ParkOn registers fd for interest with the ReadinessReactor belonging to
// the worker currently resuming f, then blocks f until that registration
// fires (or fails to register at all). It is the primitive net-adapter
// operations (TcpStream.Read, TcpListener.Accept, ...) build their
// retry-until-ready loops on; see net/tcp.go and net/udp.go.
//
// Must be called from within f's own backing goroutine.
func (f *Fiber) ParkOn(fd int, interest Interest) error {
	w := f.owner.Load()
	if w == nil {
		return ErrNotOnWorker
	}
	if _, err := w.reactor.Register(fd, interest, f); err != nil {
		return wrapErr("register", err)
	}
	f.state.Store(StateBlocked)
	w.yieldWith(f, StateBlocked)
	return nil
}
