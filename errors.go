// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the scheduler and its collaborators.
var (
	// ErrQueueFull indicates a bounded enqueue found no free slot.
	// GlobalQueue.Push reports this condition as a false return and the
	// in-tree policy is to retry (Scheduler.Ready); the sentinel exists
	// for callers that need to surface the condition as an error instead.
	ErrQueueFull = errors.New("fiberrt: global queue full")

	// ErrTokenExhausted is returned by ReadinessReactor.Register when the
	// reactor's token slab has reached MaxTokens.
	ErrTokenExhausted = errors.New("fiberrt: readiness reactor token slab exhausted")

	// ErrSchedulerStopped is returned by Scheduler.Run when Run has
	// already been called on the same Scheduler.
	ErrSchedulerStopped = errors.New("fiberrt: scheduler stopped")

	// ErrNotOnWorker is returned by Fiber.ParkOn (and surfaced through
	// the net adapters) when called while the fiber is not being resumed
	// by any worker.
	ErrNotOnWorker = errors.New("fiberrt: operation requires an active fiber context")

	// errWouldBlock names the would-block condition. No function returns
	// it: the net adapters detect would-block by checking for unix.EAGAIN
	// directly, so it never escapes this module's public API.
	errWouldBlock = errors.New("fiberrt: operation would block")
)

// PanicError records a fiber entry closure's recovered panic, so a
// PanicHandler can inspect both the original value and the stack at the
// point of the panic.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("fiberrt: fiber panicked: %v", e.Value)
}

// Unwrap returns the recovered value if it is itself an error, enabling
// errors.Is/errors.As to reach through a fiber panic to its cause.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// wrapErr prefixes err with op, preserving the cause chain for errors.Is
// and errors.As.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
