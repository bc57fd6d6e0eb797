// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestContextYieldToSymmetric verifies the symmetric handoff contract:
// yieldTo(other) blocks the caller until some other Context yields back,
// and execution resumes exactly at the point after the call.
func TestContextYieldToSymmetric(t *testing.T) {
	a := newContext()
	b := newContext()

	var trace []string
	done := make(chan struct{})

	go func() {
		b.wait()
		trace = append(trace, "b:resumed")
		b.yieldTo(a)
		trace = append(trace, "b:resumed-again")
		close(done)
	}()

	trace = append(trace, "a:yield-to-b")
	a.yieldTo(b)
	trace = append(trace, "a:resumed")
	a.signal(b)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for goroutine b")
	}

	require.Equal(t, []string{"a:yield-to-b", "b:resumed", "a:resumed", "b:resumed-again"}, trace)
}

func TestContextSignalDoesNotBlock(t *testing.T) {
	a := newContext()
	b := newContext()

	recvDone := make(chan struct{})
	go func() {
		b.wait()
		close(recvDone)
	}()

	finished := make(chan struct{})
	go func() {
		a.signal(b)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("signal blocked unexpectedly")
	}
	select {
	case <-recvDone:
	case <-time.After(time.Second):
		t.Fatal("receiver never observed the signal")
	}
}
