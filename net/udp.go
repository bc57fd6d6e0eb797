// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package net

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/fiberrt"
)

// UdpSocket is a connectionless, non-blocking UDP socket driven through
// the fiber park/wake protocol.
type UdpSocket struct {
	fd   int
	addr Addr
}

// BindUDP creates a non-blocking UDP socket bound to address.
func BindUDP(address string) (*UdpSocket, error) {
	resolved, err := resolveUDP(address)
	if err != nil {
		return nil, fmt.Errorf("net: resolve %q: %w", address, err)
	}
	sa, domain := sockaddrFromUDP(resolved)

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("net: socket: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("net: bind %s: %w", address, err)
	}

	local, err := getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("net: getsockname: %w", err)
	}

	return &UdpSocket{fd: fd, addr: local}, nil
}

// LocalAddr returns the address the socket is bound to.
func (s *UdpSocket) LocalAddr() Addr { return s.addr }

// RecvFrom blocks the calling fiber until a datagram arrives, returning
// its payload length and sender address.
func (s *UdpSocket) RecvFrom(f *fiberrt.Fiber, buf []byte) (int, Addr, error) {
	for {
		n, sa, err := unix.Recvfrom(s.fd, buf, 0)
		if err == nil {
			return n, addrFromSockaddr(sa), nil
		}
		if errors.Is(err, unix.EAGAIN) {
			if perr := f.ParkOn(s.fd, fiberrt.Readable); perr != nil {
				return 0, Addr{}, perr
			}
			continue
		}
		return 0, Addr{}, fmt.Errorf("net: recvfrom: %w", err)
	}
}

// SendTo sends buf as a single datagram to addr, parking the calling
// fiber if the socket send buffer is momentarily full.
func (s *UdpSocket) SendTo(f *fiberrt.Fiber, buf []byte, addr Addr) error {
	udpAddr := addrAsUDP(addr)
	sa, _ := sockaddrFromUDP(&udpAddr)
	for {
		err := unix.Sendto(s.fd, buf, 0, sa)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EAGAIN) {
			if perr := f.ParkOn(s.fd, fiberrt.Writable); perr != nil {
				return perr
			}
			continue
		}
		return fmt.Errorf("net: sendto: %w", err)
	}
}

// Close releases the socket.
func (s *UdpSocket) Close() error {
	return unix.Close(s.fd)
}
