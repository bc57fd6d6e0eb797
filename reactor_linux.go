// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package fiberrt

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// wakeToken is a reserved token identifying the idle-wake eventfd's own
// registration; events on it carry no parked fiber.
const wakeToken Token = 0

// ReadinessReactor multiplexes fd readiness for one Worker using epoll.
//
// Registration is always edge-triggered one-shot (EPOLLET|EPOLLONESHOT),
// and a wakeup always issues an explicit EPOLL_CTL_DEL — a fired
// EPOLLONESHOT registration stays attached to the epoll instance until
// deleted, and the fd must be deregistered before it can be registered
// again.
type ReadinessReactor struct {
	epfd      int
	maxTokens int

	mu    sync.Mutex
	slots []parkedEntry
	live  []bool
	free  []Token
	count int

	wakeFd      int
	wakeWriteFd int

	// polling is set for the duration of the kernel wait inside PollOnce,
	// so Scheduler.Ready only pays the wake-fd write for workers actually
	// blocked in the kernel. A wake racing the flag is merely missed; the
	// poll timeout bounds the resulting latency.
	polling atomic.Bool

	eventBuf []unix.EpollEvent
}

// newReadinessReactor creates and initializes a reactor backed by a fresh
// epoll instance, plus an eventfd registered under wakeToken for idle
// wakeups.
func newReadinessReactor(maxTokens int) (*ReadinessReactor, error) {
	if maxTokens < MinMaxTokens {
		maxTokens = MinMaxTokens
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, wrapErr("epoll_create1", err)
	}

	r := &ReadinessReactor{
		epfd:      epfd,
		maxTokens: maxTokens,
		slots:     make([]parkedEntry, 1, 256),
		live:      make([]bool, 1, 256),
		eventBuf:  make([]unix.EpollEvent, 256),
	}

	wakeFd, wakeWriteFd, err := createWakeFd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, wrapErr("create wake fd", err)
	}
	r.wakeFd = wakeFd
	r.wakeWriteFd = wakeWriteFd

	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeToken)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, ev); err != nil {
		closeWakeFd(wakeFd, wakeWriteFd)
		unix.Close(epfd)
		return nil, wrapErr("register wake fd", err)
	}

	return r, nil
}

// Register arranges for handle to be re-enqueued the next time fd
// reports interest readiness, using edge-triggered one-shot semantics.
func (r *ReadinessReactor) Register(fd int, interest Interest, handle FiberHandle) (Token, error) {
	r.mu.Lock()
	tok, err := r.allocate(handle, fd)
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}

	ev := &unix.EpollEvent{
		Events: interestToEpoll(interest) | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(tok),
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		r.mu.Lock()
		r.release(tok)
		r.mu.Unlock()
		return 0, wrapErr("epoll_ctl add", err)
	}
	return tok, nil
}

func (r *ReadinessReactor) allocate(handle FiberHandle, fd int) (Token, error) {
	if n := len(r.free); n > 0 {
		tok := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[tok] = parkedEntry{handle: handle, fd: fd}
		r.live[tok] = true
		r.count++
		return tok, nil
	}

	if len(r.slots) >= r.maxTokens {
		return 0, ErrTokenExhausted
	}

	tok := Token(len(r.slots))
	r.slots = append(r.slots, parkedEntry{handle: handle, fd: fd})
	r.live = append(r.live, true)
	r.count++
	return tok, nil
}

func (r *ReadinessReactor) release(tok Token) {
	if int(tok) >= len(r.live) || !r.live[tok] {
		return
	}
	r.live[tok] = false
	r.slots[tok] = parkedEntry{}
	r.free = append(r.free, tok)
	r.count--
}

// HasParked reports whether any registrations are currently pending.
func (r *ReadinessReactor) HasParked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}

// PollOnce blocks until at least one registered fd reports readiness (or
// timeoutMs elapses), re-enqueuing every woken fiber onto queue. It
// returns the number of fibers re-enqueued.
func (r *ReadinessReactor) PollOnce(queue *GlobalQueue, timeoutMs int) (int, error) {
	r.polling.Store(true)
	n, err := unix.EpollWait(r.epfd, r.eventBuf, timeoutMs)
	r.polling.Store(false)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErr("epoll_wait", err)
	}

	woken := 0
	for i := 0; i < n; i++ {
		tok := Token(r.eventBuf[i].Fd)
		if tok == wakeToken {
			drainWakeFd(r.wakeFd)
			continue
		}

		r.mu.Lock()
		if int(tok) >= len(r.live) || !r.live[tok] {
			r.mu.Unlock()
			continue
		}
		entry := r.slots[tok]
		r.release(tok)
		r.mu.Unlock()

		// Explicit deregister: a fired EPOLLONESHOT registration stays
		// attached until deleted, and the fd must be deregistered before
		// it can be registered again.
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, entry.fd, nil)

		entry.handle.state.TryTransition(StateBlocked, StateSuspended)
		for !queue.Push(entry.handle) {
		}
		woken++
	}
	return woken, nil
}

// Cancel removes a pending registration before it fires, deregistering
// the fd from epoll and returning the parked handle so the caller can
// decide its fate. It reports false if tok is not live (already woken or
// already cancelled); a live entry is removed exactly once, by whichever
// of Cancel or PollOnce gets there first.
func (r *ReadinessReactor) Cancel(tok Token) (FiberHandle, bool) {
	r.mu.Lock()
	if tok == wakeToken || int(tok) >= len(r.live) || !r.live[tok] {
		r.mu.Unlock()
		return nil, false
	}
	entry := r.slots[tok]
	r.release(tok)
	r.mu.Unlock()

	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, entry.fd, nil)

	entry.handle.state.TryTransition(StateBlocked, StateSuspended)
	return entry.handle, true
}

// Wake unblocks a concurrent PollOnce immediately, even if no registered
// fd is ready, so a sibling worker's Ready call is observed promptly
// instead of waiting out the poll timeout.
func (r *ReadinessReactor) Wake() {
	wakeWakeFd(r.wakeWriteFd)
}

// Polling reports whether the owning worker is currently blocked in
// PollOnce's kernel wait.
func (r *ReadinessReactor) Polling() bool {
	return r.polling.Load()
}

// Close releases the epoll instance and wake fd. It does not close any
// fd registered by Register — those are owned by the net package.
func (r *ReadinessReactor) Close() error {
	closeWakeFd(r.wakeFd, r.wakeWriteFd)
	return unix.Close(r.epfd)
}

func interestToEpoll(i Interest) uint32 {
	var e uint32
	if i&Readable != 0 {
		e |= unix.EPOLLIN
	}
	if i&Writable != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}
