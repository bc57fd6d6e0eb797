// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFiber(id int64) *Fiber {
	return &Fiber{id: id, state: newFastState(StateSuspended)}
}

func TestGlobalQueueCapacityRounding(t *testing.T) {
	q := NewGlobalQueue(1)
	require.Equal(t, MinGlobalQueueCapacity, q.Cap())

	q = NewGlobalQueue(5000)
	require.Equal(t, 8192, q.Cap())
}

// TestGlobalQueueFIFO verifies pushes from a single producer observed by
// a single consumer pop in the order they were pushed.
func TestGlobalQueueFIFO(t *testing.T) {
	q := NewGlobalQueue(MinGlobalQueueCapacity)

	h1, h2 := newTestFiber(1), newTestFiber(2)
	require.True(t, q.Push(h1))
	require.True(t, q.Push(h2))

	got1, ok := q.Pop()
	require.True(t, ok)
	require.Same(t, h1, got1)

	got2, ok := q.Pop()
	require.True(t, ok)
	require.Same(t, h2, got2)

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestGlobalQueuePopEmpty(t *testing.T) {
	q := NewGlobalQueue(MinGlobalQueueCapacity)
	h, ok := q.Pop()
	require.False(t, ok)
	require.Nil(t, h)
}

// TestGlobalQueuePushFullReturnsFalse exercises the backpressure
// contract: Push never blocks or drops, it reports failure so the caller
// can retry.
func TestGlobalQueuePushFullReturnsFalse(t *testing.T) {
	q := NewGlobalQueue(MinGlobalQueueCapacity) // rounds to a power of two
	cap := q.Cap()

	for i := 0; i < cap; i++ {
		require.True(t, q.Push(newTestFiber(int64(i))), "push %d should succeed within capacity", i)
	}
	require.False(t, q.Push(newTestFiber(int64(cap))), "push beyond capacity must fail, not block or drop")

	// draining one slot makes room for exactly one more push
	_, ok := q.Pop()
	require.True(t, ok)
	require.True(t, q.Push(newTestFiber(int64(cap))))
}

// TestGlobalQueueConcurrentMPMC is a stress exercise of the ring's
// multi-producer multi-consumer contract: every pushed handle is popped
// by exactly one consumer, with no loss or duplication, under concurrent
// access from many producers and many consumers.
func TestGlobalQueueConcurrentMPMC(t *testing.T) {
	const (
		producers   = 8
		consumers   = 8
		perProducer = 2000
	)
	q := NewGlobalQueue(MinGlobalQueueCapacity)

	var produced sync.WaitGroup
	produced.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				h := newTestFiber(int64(p*perProducer + i))
				for !q.Push(h) {
					// bounded queue: retry on capacity rejection
				}
			}
		}(p)
	}

	seen := make(chan int64, producers*perProducer)
	var consumed sync.WaitGroup
	stop := make(chan struct{})
	consumed.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumed.Done()
			for {
				if h, ok := q.Pop(); ok {
					seen <- h.id
					continue
				}
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}

	produced.Wait()

	// Drain whatever remains before signalling consumers to stop, since
	// Pop is non-blocking and a consumer may race ahead of a late push.
	total := producers * perProducer
	got := make(map[int64]bool, total)
	for len(got) < total {
		select {
		case id := <-seen:
			got[id] = true
		default:
			// keep looping; consumers are still draining
		}
	}
	close(stop)
	consumed.Wait()

	require.Len(t, got, total)
	for p := 0; p < producers; p++ {
		for i := 0; i < perProducer; i++ {
			require.True(t, got[int64(p*perProducer+i)])
		}
	}
}
