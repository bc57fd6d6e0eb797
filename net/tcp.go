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

// TcpListener accepts inbound TCP connections. Bind never blocks; Accept
// blocks (in the fiber sense — it parks the calling Fiber) until a
// connection arrives.
type TcpListener struct {
	fd   int
	addr Addr
}

// BindTCP creates a non-blocking listening socket on address
// ("host:port").
func BindTCP(address string) (*TcpListener, error) {
	resolved, err := resolveTCP(address)
	if err != nil {
		return nil, fmt.Errorf("net: resolve %q: %w", address, err)
	}
	sa, domain := sockaddrFromTCP(resolved)

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("net: socket: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("net: bind %s: %w", address, err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("net: listen: %w", err)
	}

	local, err := getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("net: getsockname: %w", err)
	}

	return &TcpListener{fd: fd, addr: local}, nil
}

// LocalAddr returns the address the listener is bound to.
func (l *TcpListener) LocalAddr() Addr { return l.addr }

// Accept blocks the calling fiber until a connection is ready, then
// returns a TcpStream for it.
func (l *TcpListener) Accept(f *fiberrt.Fiber) (*TcpStream, error) {
	for {
		connFd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == nil {
			return &TcpStream{fd: connFd}, nil
		}
		if !errors.Is(err, unix.EAGAIN) {
			return nil, fmt.Errorf("net: accept: %w", err)
		}
		if perr := f.ParkOn(l.fd, fiberrt.Readable); perr != nil {
			return nil, perr
		}
	}
}

// Close releases the listening socket.
func (l *TcpListener) Close() error {
	return unix.Close(l.fd)
}

// TcpStream is a connected TCP socket. Every blocking-style operation
// parks the calling Fiber instead of the OS thread it happens to be
// running on.
type TcpStream struct {
	fd int
}

// ConnectTCP dials address, parking the calling fiber until the
// connection completes (or fails).
func ConnectTCP(f *fiberrt.Fiber, address string) (*TcpStream, error) {
	resolved, err := resolveTCP(address)
	if err != nil {
		return nil, fmt.Errorf("net: resolve %q: %w", address, err)
	}
	sa, domain := sockaddrFromTCP(resolved)

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("net: socket: %w", err)
	}

	err = unix.Connect(fd, sa)
	if err != nil && !errors.Is(err, unix.EINPROGRESS) {
		unix.Close(fd)
		return nil, fmt.Errorf("net: connect %s: %w", address, err)
	}
	if errors.Is(err, unix.EINPROGRESS) {
		if perr := f.ParkOn(fd, fiberrt.Writable); perr != nil {
			unix.Close(fd)
			return nil, perr
		}
		errno, serr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if serr != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("net: getsockopt SO_ERROR: %w", serr)
		}
		if errno != 0 {
			unix.Close(fd)
			return nil, fmt.Errorf("net: connect %s: %w", address, unix.Errno(errno))
		}
	}

	return &TcpStream{fd: fd}, nil
}

// Read fills buf with available bytes, parking the calling fiber while
// none are available. A zero-length, nil-error result indicates the peer
// closed its end.
func (s *TcpStream) Read(f *fiberrt.Fiber, buf []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, buf)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, unix.EAGAIN) {
			if perr := f.ParkOn(s.fd, fiberrt.Readable); perr != nil {
				return 0, perr
			}
			continue
		}
		return 0, fmt.Errorf("net: read: %w", err)
	}
}

// Write sends all of buf, parking the calling fiber whenever the socket
// buffer is full.
func (s *TcpStream) Write(f *fiberrt.Fiber, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(s.fd, buf[total:])
		if err == nil {
			total += n
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			if perr := f.ParkOn(s.fd, fiberrt.Writable); perr != nil {
				return total, perr
			}
			continue
		}
		return total, fmt.Errorf("net: write: %w", err)
	}
	return total, nil
}

// Flush is a no-op: this stream never buffers writes internally. It
// exists so callers written against a buffered-writer contract need no
// special casing.
func (s *TcpStream) Flush() error { return nil }

// Shutdown shuts down part or all of a full-duplex connection; how is
// one of unix.SHUT_RD, unix.SHUT_WR, unix.SHUT_RDWR.
func (s *TcpStream) Shutdown(how int) error {
	return unix.Shutdown(s.fd, how)
}

// Close releases the stream's socket.
func (s *TcpStream) Close() error {
	return unix.Close(s.fd)
}

// LocalAddr returns the local end of the connection.
func (s *TcpStream) LocalAddr() (Addr, error) { return getsockname(s.fd) }

// PeerAddr returns the remote end of the connection.
func (s *TcpStream) PeerAddr() (Addr, error) { return getpeername(s.fd) }

// TryClone duplicates the underlying file descriptor so the stream can be
// driven from two independently-parking fibers (e.g. one reading, one
// writing).
func (s *TcpStream) TryClone() (*TcpStream, error) {
	fd, err := unix.Dup(s.fd)
	if err != nil {
		return nil, fmt.Errorf("net: dup: %w", err)
	}
	return &TcpStream{fd: fd}, nil
}
