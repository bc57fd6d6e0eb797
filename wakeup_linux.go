// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package fiberrt

import "golang.org/x/sys/unix"

// createWakeFd creates an eventfd used for idle-wake notifications. The
// same fd serves as both read and write end.
func createWakeFd(initval uint, flags int) (int, int, error) {
	fd, err := unix.Eventfd(initval, flags)
	return fd, fd, err
}

func closeWakeFd(wakeFd, wakeWriteFd int) error {
	if wakeFd >= 0 {
		_ = unix.Close(wakeFd)
	}
	return nil
}

// drainWakeFd consumes the eventfd's counter so it doesn't keep reporting
// readable.
func drainWakeFd(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}

// wakeWakeFd increments the eventfd counter, which epoll reports as a
// readability event on wakeToken.
func wakeWakeFd(fd int) {
	var buf [8]byte
	buf[0] = 1
	_, _ = unix.Write(fd, buf[:])
}
