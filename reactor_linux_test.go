// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package fiberrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReactorTokenExhaustion covers the resource-exhaustion path: once
// the epoll reactor's token slab is full, Register surfaces ErrTokenExhausted
// rather than silently dropping the registration. allocate() never
// touches the kernel poller, so exercising the slab directly avoids
// registering a real fd for every token.
func TestReactorTokenExhaustion(t *testing.T) {
	small := &ReadinessReactor{
		maxTokens: 2,
		slots:     make([]parkedEntry, 1, 4),
		live:      make([]bool, 1, 4),
	}

	h := &Fiber{id: 1, state: newFastState(StateSuspended)}
	_, err := small.allocate(h, -1)
	require.NoError(t, err)
	_, err = small.allocate(h, -1)
	require.ErrorIs(t, err, ErrTokenExhausted)
}

// TestReactorCancelRemovesEntry covers the explicit-cancellation removal
// path: a live entry is removed exactly once, the parked handle is handed
// back to the caller, and a second Cancel of the same token (or of the
// reserved wake token) reports false. epfd is invalid on purpose — the
// deregister syscall's failure is ignored, and the slab semantics under
// test never touch the kernel.
func TestReactorCancelRemovesEntry(t *testing.T) {
	r := &ReadinessReactor{
		epfd:      -1,
		maxTokens: 8,
		slots:     make([]parkedEntry, 1, 4),
		live:      make([]bool, 1, 4),
	}

	h := &Fiber{id: 1, state: newFastState(StateBlocked)}
	tok, err := r.allocate(h, -1)
	require.NoError(t, err)
	require.True(t, r.HasParked())

	got, ok := r.Cancel(tok)
	require.True(t, ok)
	require.Same(t, h, got)
	require.False(t, r.HasParked())

	_, ok = r.Cancel(tok)
	require.False(t, ok)

	_, ok = r.Cancel(wakeToken)
	require.False(t, ok)
}
