// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package net_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/fiberrt"
	fnet "github.com/joeycumines/fiberrt/net"
)

// TestUDPEcho: a server fiber loops RecvFrom/SendTo; a client fiber
// sends [1,2,3] and expects the same bytes back from the server's bound
// address.
func TestUDPEcho(t *testing.T) {
	sched := fiberrt.NewScheduler()

	server, err := fnet.BindUDP("127.0.0.1:0")
	require.NoError(t, err)

	received := make(chan []byte, 1)
	serverErrs := make(chan error, 1)
	clientErrs := make(chan error, 1)

	sched.Spawn(func(f *fiberrt.Fiber) {
		defer server.Close()
		buf := make([]byte, 64)
		n, from, err := server.RecvFrom(f, buf)
		if err != nil {
			serverErrs <- err
			return
		}
		serverErrs <- server.SendTo(f, buf[:n], from)
	})

	sched.Spawn(func(f *fiberrt.Fiber) {
		client, err := fnet.BindUDP("127.0.0.1:0")
		if err != nil {
			clientErrs <- err
			return
		}
		defer client.Close()

		if err := client.SendTo(f, []byte{1, 2, 3}, server.LocalAddr()); err != nil {
			clientErrs <- err
			return
		}

		buf := make([]byte, 64)
		n, _, err := client.RecvFrom(f, buf)
		if err != nil {
			clientErrs <- err
			return
		}
		got := make([]byte, n)
		copy(got, buf[:n])
		received <- got
		clientErrs <- nil
	})

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background(), 2) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not terminate")
	}

	require.NoError(t, <-serverErrs)
	require.NoError(t, <-clientErrs)

	select {
	case got := <-received:
		require.Equal(t, []byte{1, 2, 3}, got)
	default:
		t.Fatal("client fiber never received the echoed datagram")
	}

	require.EqualValues(t, 0, sched.Outstanding())
}
