// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package fiberrt

import "golang.org/x/sys/unix"

// createWakeFd creates a non-blocking self-pipe for idle-wake
// notifications (Darwin has no eventfd equivalent, so a pipe stands in
// for it).
func createWakeFd(_ uint, _ int) (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}

	cleanup := func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	}

	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])

	if err := unix.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return 0, 0, err
	}

	return fds[0], fds[1], nil
}

func closeWakeFd(readFd, writeFd int) error {
	if readFd >= 0 {
		_ = unix.Close(readFd)
	}
	if writeFd >= 0 && writeFd != readFd {
		_ = unix.Close(writeFd)
	}
	return nil
}

func drainWakeFd(fd int) {
	var buf [64]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}

func wakeWakeFd(fd int) {
	var buf [1]byte
	_, _ = unix.Write(fd, buf[:])
}
