// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestParkLivenessOnReadiness: a fiber that parks on a pipe's read end,
// with the write end written to only after some delay, is woken and
// resumed once the OS reports readability — even across two workers, so
// the wakeup must cross the worker that parked it, and even with a
// busy-yielding sibling fiber competing for worker time.
func TestParkLivenessOnReadiness(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	readFd, writeFd := fds[0], fds[1]
	require.NoError(t, unix.SetNonblock(readFd, true))
	require.NoError(t, unix.SetNonblock(writeFd, true))
	defer unix.Close(writeFd)

	sched := NewScheduler()

	var resumed atomic.Bool
	var spin atomic.Bool

	// A spinning fiber must not starve the parked one.
	stop := make(chan struct{})
	sched.Spawn(func(f *Fiber) {
		spin.Store(true)
		for {
			select {
			case <-stop:
				return
			default:
				f.Yield()
			}
		}
	})

	sched.Spawn(func(f *Fiber) {
		buf := make([]byte, 1)
		for {
			n, err := unix.Read(readFd, buf)
			if err == nil && n == 1 {
				resumed.Store(true)
				close(stop)
				return
			}
			if err != nil && err != unix.EAGAIN {
				close(stop)
				return
			}
			if perr := f.ParkOn(readFd, Readable); perr != nil {
				close(stop)
				return
			}
		}
	})

	go func() {
		time.Sleep(150 * time.Millisecond)
		unix.Write(writeFd, []byte{1})
	}()

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background(), 2) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not terminate — parked fiber was never woken")
	}

	require.True(t, spin.Load(), "spinning fiber never got scheduled alongside the parked one")
	require.True(t, resumed.Load())
	require.EqualValues(t, 0, sched.Outstanding())
}

