// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFiberStateString(t *testing.T) {
	cases := map[FiberState]string{
		StateSuspended: "Suspended",
		StateRunning:   "Running",
		StateBlocked:   "Blocked",
		StateFinished:  "Finished",
		StatePanicked:  "Panicked",
		FiberState(99): "Unknown",
	}
	for state, want := range cases {
		require.Equal(t, want, state.String())
	}
}

func TestFastStateLoadStore(t *testing.T) {
	s := newFastState(StateSuspended)
	require.Equal(t, StateSuspended, s.Load())

	s.Store(StateFinished)
	require.Equal(t, StateFinished, s.Load())
}

func TestFastStateTryTransition(t *testing.T) {
	s := newFastState(StateSuspended)

	require.False(t, s.TryTransition(StateRunning, StateSuspended), "transition from the wrong current state must fail")
	require.Equal(t, StateSuspended, s.Load())

	require.True(t, s.TryTransition(StateSuspended, StateRunning))
	require.Equal(t, StateRunning, s.Load())
}

// TestFastStateTryTransitionConcurrentExclusivity: many goroutines race
// the same Suspended->Running edge, and exactly one must observe success
// — the property that keeps two workers from resuming one fiber.
func TestFastStateTryTransitionConcurrentExclusivity(t *testing.T) {
	const racers = 64
	s := newFastState(StateSuspended)

	var successes atomic.Int64
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			if s.TryTransition(StateSuspended, StateRunning) {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
}
