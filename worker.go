// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"runtime"
	"time"
)

// idleBackoff is the soft sleep a Worker falls back to when it has no
// runnable fiber, no parked fiber, but outstanding work still exists
// elsewhere in the scheduler. The eventfd/self-pipe wake mechanism
// (wakeup_linux.go / wakeup_darwin.go) keeps workers blocked in a kernel
// poll responsive; only a fully idle worker pays this sleep.
const idleBackoff = 100 * time.Millisecond

// pollTimeoutMs bounds how long a Worker blocks inside PollOnce when it
// has parked fibers but nothing runnable, so it periodically rechecks
// scheduler shutdown even without an explicit Wake.
const pollTimeoutMs = 100

// Worker is a single scheduling loop bound to one OS thread via
// runtime.LockOSThread. A *Worker never escapes its own call stack: it
// is held purely in the local variable of the goroutine running
// Worker.run, and the only place another goroutine (a fiber's
// trampoline) can observe "its" worker is through Fiber.owner, set
// immediately before resume's yieldTo and cleared immediately after.
type Worker struct {
	id      int64
	ctx     *Context
	queue   *GlobalQueue
	reactor *ReadinessReactor
	sched   *Scheduler

	current    *Fiber
	lastResult *FiberState
}

func newWorker(id int64, sched *Scheduler) (*Worker, error) {
	reactor, err := newReadinessReactor(sched.opts.maxTokens)
	if err != nil {
		return nil, wrapErr("new reactor", err)
	}
	return &Worker{
		id:      id,
		ctx:     newContext(),
		queue:   sched.queue,
		reactor: reactor,
		sched:   sched,
	}, nil
}

// run pins the calling goroutine to its OS thread and drives the
// scheduling loop until no fiber remains outstanding anywhere in the
// scheduler.
func (w *Worker) run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer w.reactor.Close()

	logDebug("worker", "worker loop started", w.id, 0)
	defer logDebug("worker", "worker loop exited", w.id, 0)

	for {
		if h, ok := w.queue.Pop(); ok {
			state, err := w.resume(h)
			switch {
			case err != nil:
				logError("worker", "fiber resume failed", w.id, h.ID(), err)
				w.sched.fiberDone(h)
			case state == StateSuspended:
				for !w.queue.Push(h) {
				}
			case state == StateBlocked:
				// ownership transferred to whichever reactor the fiber
				// registered with inside its own net-adapter call
			case state == StateFinished || state == StatePanicked:
				if state == StatePanicked && h.panicHandler != nil {
					h.panicHandler(h, h.panicValue, h.panicStack)
				}
				w.sched.fiberDone(h)
			}
			// A fiber that keeps yielding keeps the queue non-empty, so
			// fibers parked on this worker's reactor are also checked with
			// a non-blocking poll after every resume.
			if w.reactor.HasParked() {
				if _, err := w.reactor.PollOnce(w.queue, 0); err != nil {
					logError("worker", "poll failed", w.id, 0, err)
				}
			}
			continue
		}

		if w.reactor.HasParked() {
			if _, err := w.reactor.PollOnce(w.queue, pollTimeoutMs); err != nil {
				logError("worker", "poll failed", w.id, 0, err)
			}
			continue
		}

		if w.sched.Outstanding() == 0 {
			return nil
		}

		time.Sleep(idleBackoff)
	}
}

// resume transfers control to h's backing goroutine and blocks until it
// yields back.
func (w *Worker) resume(h FiberHandle) (FiberState, error) {
	w.current = h
	w.lastResult = nil
	h.state.TryTransition(StateSuspended, StateRunning)
	h.owner.Store(w)

	w.ctx.yieldTo(h.ctx)

	h.owner.Store(nil)
	w.current = nil

	if w.lastResult == nil {
		return StateSuspended, nil
	}
	return *w.lastResult, nil
}

// yieldWith is called from inside a fiber's own backing goroutine (via
// Fiber.Yield / Fiber.ParkOn) to record the fiber's next state and hand
// control back to the worker that resumed it, then block until resumed
// again.
func (w *Worker) yieldWith(f *Fiber, state FiberState) {
	w.lastResult = &state
	f.ctx.yieldTo(w.ctx)
}

// finish is called from inside a fiber's trampoline exactly once, after
// its entry closure has returned or panicked. Unlike yieldWith it only
// signals the worker and returns — the backing goroutine is about to
// exit and must not block waiting to be resumed again.
func (w *Worker) finish(f *Fiber, state FiberState) {
	w.lastResult = &state
	f.ctx.signal(w.ctx)
}
