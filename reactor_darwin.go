// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package fiberrt

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ReadinessReactor multiplexes fd readiness for one Worker using kqueue.
// The slab is indexed directly by fd, growing on demand.
//
// kqueue's EV_ONESHOT flag makes registrations inherently one-shot and
// auto-removing — there is no Darwin analogue to epoll's explicit
// EPOLL_CTL_DEL requirement.
type ReadinessReactor struct {
	kq        int
	maxTokens int

	mu    sync.Mutex
	slots []parkedEntry
	live  []bool
	count int

	wakeReadFd  int
	wakeWriteFd int

	// polling is set for the duration of the kernel wait inside PollOnce,
	// so Scheduler.Ready only pays the wake-pipe write for workers
	// actually blocked in the kernel. A wake racing the flag is merely
	// missed; the poll timeout bounds the resulting latency.
	polling atomic.Bool

	eventBuf []unix.Kevent_t
}

func newReadinessReactor(maxTokens int) (*ReadinessReactor, error) {
	if maxTokens < MinMaxTokens {
		maxTokens = MinMaxTokens
	}

	kq, err := unix.Kqueue()
	if err != nil {
		return nil, wrapErr("kqueue", err)
	}
	unix.CloseOnExec(kq)

	r := &ReadinessReactor{
		kq:        kq,
		maxTokens: maxTokens,
		slots:     make([]parkedEntry, 1, 256),
		live:      make([]bool, 1, 256),
		eventBuf:  make([]unix.Kevent_t, 256),
	}

	readFd, writeFd, err := createWakeFd(0, 0)
	if err != nil {
		unix.Close(kq)
		return nil, wrapErr("create wake fd", err)
	}
	r.wakeReadFd = readFd
	r.wakeWriteFd = writeFd

	var wakeEv unix.Kevent_t
	unix.SetKevent(&wakeEv, readFd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wakeEv}, nil, nil); err != nil {
		closeWakeFd(readFd, writeFd)
		unix.Close(kq)
		return nil, wrapErr("register wake fd", err)
	}

	return r, nil
}

func (r *ReadinessReactor) ensureCapacity(fd int) {
	if fd < len(r.slots) {
		return
	}
	newSize := fd*2 + 1
	newSlots := make([]parkedEntry, newSize)
	newLive := make([]bool, newSize)
	copy(newSlots, r.slots)
	copy(newLive, r.live)
	r.slots = newSlots
	r.live = newLive
}

// Register arranges for handle to be re-enqueued the next time fd
// reports interest readiness. kqueue registrations here are always
// EV_ONESHOT, so the kernel removes them automatically after firing.
func (r *ReadinessReactor) Register(fd int, interest Interest, handle FiberHandle) (Token, error) {
	if fd < 0 || fd >= r.maxTokens {
		return 0, ErrTokenExhausted
	}

	r.mu.Lock()
	r.ensureCapacity(fd)
	if r.live[fd] {
		r.mu.Unlock()
		return 0, ErrTokenExhausted
	}
	r.slots[fd] = parkedEntry{handle: handle, fd: fd}
	r.live[fd] = true
	r.count++
	r.mu.Unlock()

	changes := make([]unix.Kevent_t, 0, 2)
	if interest&Readable != 0 {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
		changes = append(changes, ev)
	}
	if interest&Writable != 0 {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
		changes = append(changes, ev)
	}

	if _, err := unix.Kevent(r.kq, changes, nil, nil); err != nil {
		r.mu.Lock()
		r.live[fd] = false
		r.slots[fd] = parkedEntry{}
		r.count--
		r.mu.Unlock()
		return 0, wrapErr("kevent register", err)
	}

	return Token(fd), nil
}

// HasParked reports whether any registrations are currently pending.
func (r *ReadinessReactor) HasParked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}

// PollOnce blocks until at least one registered fd reports readiness (or
// timeoutMs elapses), re-enqueuing every woken fiber onto queue.
func (r *ReadinessReactor) PollOnce(queue *GlobalQueue, timeoutMs int) (int, error) {
	var timeout *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1_000_000)
		timeout = &ts
	}

	r.polling.Store(true)
	n, err := unix.Kevent(r.kq, nil, r.eventBuf, timeout)
	r.polling.Store(false)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErr("kevent wait", err)
	}

	woken := 0
	for i := 0; i < n; i++ {
		fd := int(r.eventBuf[i].Ident)
		if fd == r.wakeReadFd {
			drainWakeFd(r.wakeReadFd)
			continue
		}

		r.mu.Lock()
		if fd >= len(r.live) || !r.live[fd] {
			r.mu.Unlock()
			continue
		}
		entry := r.slots[fd]
		r.live[fd] = false
		r.slots[fd] = parkedEntry{}
		r.count--
		r.mu.Unlock()

		entry.handle.state.TryTransition(StateBlocked, StateSuspended)
		for !queue.Push(entry.handle) {
		}
		woken++
	}
	return woken, nil
}

// Cancel removes a pending registration before it fires, deleting the
// kevent filters for the fd and returning the parked handle so the
// caller can decide its fate. It reports false if tok is not live
// (already woken or already cancelled); a live entry is removed exactly
// once, by whichever of Cancel or PollOnce gets there first.
func (r *ReadinessReactor) Cancel(tok Token) (FiberHandle, bool) {
	fd := int(tok)

	r.mu.Lock()
	if fd >= len(r.live) || !r.live[fd] {
		r.mu.Unlock()
		return nil, false
	}
	entry := r.slots[fd]
	r.live[fd] = false
	r.slots[fd] = parkedEntry{}
	r.count--
	r.mu.Unlock()

	// EV_ONESHOT registrations self-remove on fire, but an unfired one
	// must be deleted explicitly. ENOENT for the filter that was never
	// added is expected and ignored.
	var rd, wr unix.Kevent_t
	unix.SetKevent(&rd, fd, unix.EVFILT_READ, unix.EV_DELETE)
	unix.SetKevent(&wr, fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	_, _ = unix.Kevent(r.kq, []unix.Kevent_t{rd}, nil, nil)
	_, _ = unix.Kevent(r.kq, []unix.Kevent_t{wr}, nil, nil)

	entry.handle.state.TryTransition(StateBlocked, StateSuspended)
	return entry.handle, true
}

// Wake unblocks a concurrent PollOnce immediately.
func (r *ReadinessReactor) Wake() {
	wakeWakeFd(r.wakeWriteFd)
}

// Polling reports whether the owning worker is currently blocked in
// PollOnce's kernel wait.
func (r *ReadinessReactor) Polling() bool {
	return r.polling.Load()
}

// Close releases the kqueue instance and wake pipe.
func (r *ReadinessReactor) Close() error {
	closeWakeFd(r.wakeReadFd, r.wakeWriteFd)
	return unix.Close(r.kq)
}
