// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

// Context is a rendezvous point backing a single goroutine — either a
// Worker's scheduling goroutine or a Fiber's backing goroutine. Its only
// operation, yieldTo, hands control to another Context and blocks until
// that (or some other) Context yields back.
//
// This stands in for the hand-rolled, register-level stackful context
// switch this runtime's design is otherwise specified around: Go gives no
// safe, portable way to swap raw machine contexts between two goroutine
// stacks, so each Context here is backed by its own goroutine, and
// "switching context" means sending on the target's channel and then
// parking on this Context's own channel — symmetric, and with no
// distinguished "main" context, exactly as the lower-level primitive this
// replaces requires.
type Context struct {
	resume chan struct{}
}

// newContext allocates a Context ready to receive its first yieldTo.
func newContext() *Context {
	return &Context{resume: make(chan struct{})}
}

// yieldTo hands control to other and blocks until some other Context
// yields back to c. The caller's next statement after yieldTo returns
// executes only once it has been resumed again.
func (c *Context) yieldTo(other *Context) {
	other.resume <- struct{}{}
	<-c.resume
}

// wait blocks until some other Context yields to c. Used by a Fiber's
// trampoline to park for its very first resume, before it has anything
// meaningful to yield back from.
func (c *Context) wait() {
	<-c.resume
}

// signal hands control to other without waiting to be resumed back. Used
// only for a Fiber's terminal transitions (Finished/Panicked), where the
// backing goroutine is about to exit and must not block again.
func (c *Context) signal(other *Context) {
	other.resume <- struct{}{}
}
