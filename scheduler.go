// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Scheduler is the process-wide façade over the fiber runtime: the
// shared GlobalQueue plus outstanding-fiber accounting. It is an
// explicit value rather than a lazily-initialized package singleton so a
// process can run more than one independently-configured runtime if it
// needs to.
type Scheduler struct {
	opts        resolvedOptions
	queue       *GlobalQueue
	outstanding atomic.Int64
	started     atomic.Bool

	// reactors is the per-worker reactor set, published once by Run
	// before any worker starts. Ready consults it to kick workers blocked
	// in a kernel poll instead of letting them wait out the poll timeout.
	reactors atomic.Pointer[[]*ReadinessReactor]
}

// NewScheduler constructs a Scheduler. Options affect the shared
// GlobalQueue capacity, each Worker's token slab size, and the defaults
// applied to fibers spawned without their own per-spawn options.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := resolveOptions(opts)
	return &Scheduler{
		opts:  cfg,
		queue: NewGlobalQueue(cfg.globalQueueCapacity),
	}
}

// Outstanding returns the number of fibers spawned but not yet Finished
// or Panicked.
func (s *Scheduler) Outstanding() int64 {
	return s.outstanding.Load()
}

// Spawn allocates and enqueues a new Fiber, returning its handle. entry
// receives that same handle, so code running inside the fiber can call
// f.Yield() or perform net-adapter operations on itself.
//
// Spawn does not yield the calling fiber: it is callable from outside
// any fiber (main, a CLI entry point), where there is no caller to
// yield. A fiber that wants enqueue-then-yield behaviour calls f.Yield()
// itself right after Spawn.
func (s *Scheduler) Spawn(entry func(f *Fiber), opts ...Option) *Fiber {
	cfg := s.opts
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}

	f := spawnFiber(entry, &cfg)
	s.outstanding.Add(1)
	s.Ready(f)
	return f
}

// Ready enqueues handle onto the GlobalQueue, retrying until it succeeds.
// Spawn uses it; a ReadinessReactor re-enqueues woken fibers with
// GlobalQueue.Push directly. Workers blocked in a kernel poll are woken
// so the new handle is picked up promptly rather than after the poll
// timeout.
func (s *Scheduler) Ready(handle FiberHandle) {
	for !s.queue.Push(handle) {
	}
	if reactors := s.reactors.Load(); reactors != nil {
		for _, r := range *reactors {
			if r.Polling() {
				r.Wake()
			}
		}
	}
}

func (s *Scheduler) fiberDone(h FiberHandle) {
	s.outstanding.Add(-1)
}

// Run starts nWorkers scheduling loops (each pinned to its own OS thread)
// and blocks until every spawned fiber has finished or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, nWorkers int) error {
	if nWorkers < 1 {
		nWorkers = 1
	}
	if !s.started.CompareAndSwap(false, true) {
		return wrapErr("scheduler run", ErrSchedulerStopped)
	}

	workers := make([]*Worker, nWorkers)
	for i := range workers {
		w, err := newWorker(int64(i), s)
		if err != nil {
			return wrapErr("new worker", err)
		}
		workers[i] = w
	}

	reactors := make([]*ReadinessReactor, len(workers))
	for i, w := range workers {
		reactors[i] = w.reactor
	}
	s.reactors.Store(&reactors)

	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.run()
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Run returns early; per this package's design the running
		// workers are not cancelled — they keep draining outstanding
		// fibers in the background until none remain.
		return nil
	}
}
