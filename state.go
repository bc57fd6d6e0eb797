// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import "sync/atomic"

// FiberState is the lifecycle state of a Fiber.
//
// State machine:
//
//	Suspended --resume--> Running
//	Running   --yield--> Suspended
//	Running   --park--> Blocked
//	Running   --return--> Finished     (terminal)
//	Running   --panic--> Panicked      (terminal)
//	Blocked   --ready-wakeup--> Suspended
type FiberState uint64

const (
	// StateSuspended means the fiber is runnable but not currently on a
	// worker; its handle is either in the GlobalQueue or about to be
	// pushed there.
	StateSuspended FiberState = iota
	// StateRunning means a worker is currently resuming this fiber.
	StateRunning
	// StateBlocked means the fiber is parked in a ReadinessReactor
	// awaiting an I/O readiness wakeup.
	StateBlocked
	// StateFinished is terminal: the entry closure returned normally.
	StateFinished
	// StatePanicked is terminal: the entry closure panicked.
	StatePanicked
)

// String returns a human-readable state name.
func (s FiberState) String() string {
	switch s {
	case StateSuspended:
		return "Suspended"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateFinished:
		return "Finished"
	case StatePanicked:
		return "Panicked"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free, cache-line-padded state machine.
// TryTransition uses CAS and Store sets the state unconditionally;
// neither validates whether a requested transition is legal, matching
// the fiber state machine's small, fully enumerated transition table
// (callers only ever request valid edges).
type fastState struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

func newFastState(initial FiberState) *fastState {
	s := &fastState{}
	s.v.Store(uint64(initial))
	return s
}

// Load returns the current state.
func (s *fastState) Load() FiberState {
	return FiberState(s.v.Load())
}

// Store unconditionally sets the state. A fiber's backing goroutine uses
// it for the transitions it makes on itself (Running on first resume,
// Suspended on Yield, Blocked on ParkOn, Finished or Panicked on exit),
// each while its worker is blocked waiting for it to yield back.
func (s *fastState) Store(state FiberState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts an atomic from->to transition.
func (s *fastState) TryTransition(from, to FiberState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
