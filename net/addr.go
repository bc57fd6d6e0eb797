// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package net

import (
	"fmt"
	stdnet "net"

	"golang.org/x/sys/unix"
)

// Addr is a minimal IP address/port pair, returned by LocalAddr/PeerAddr
// in place of stdlib's net.Addr — this package does not implement
// net.Conn, so there is no obligation to satisfy net.Addr either (see
// doc.go).
type Addr struct {
	IP   stdnet.IP
	Port int
}

// String renders the address as "host:port".
func (a Addr) String() string {
	return stdnet.JoinHostPort(a.IP.String(), fmt.Sprintf("%d", a.Port))
}

func resolveTCP(address string) (*stdnet.TCPAddr, error) {
	return stdnet.ResolveTCPAddr("tcp", address)
}

func resolveUDP(address string) (*stdnet.UDPAddr, error) {
	return stdnet.ResolveUDPAddr("udp", address)
}

func addrAsUDP(a Addr) stdnet.UDPAddr {
	return stdnet.UDPAddr{IP: a.IP, Port: a.Port}
}

func sockaddrFromTCP(a *stdnet.TCPAddr) (unix.Sockaddr, int) {
	if ip4 := a.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = a.Port
		copy(sa.Addr[:], ip4)
		return &sa, unix.AF_INET
	}
	var sa unix.SockaddrInet6
	sa.Port = a.Port
	copy(sa.Addr[:], a.IP.To16())
	return &sa, unix.AF_INET6
}

func sockaddrFromUDP(a *stdnet.UDPAddr) (unix.Sockaddr, int) {
	if ip4 := a.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = a.Port
		copy(sa.Addr[:], ip4)
		return &sa, unix.AF_INET
	}
	var sa unix.SockaddrInet6
	sa.Port = a.Port
	copy(sa.Addr[:], a.IP.To16())
	return &sa, unix.AF_INET6
}

func addrFromSockaddr(sa unix.Sockaddr) Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(stdnet.IP, 4)
		copy(ip, v.Addr[:])
		return Addr{IP: ip, Port: v.Port}
	case *unix.SockaddrInet6:
		ip := make(stdnet.IP, 16)
		copy(ip, v.Addr[:])
		return Addr{IP: ip, Port: v.Port}
	default:
		return Addr{}
	}
}

func getsockname(fd int) (Addr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return Addr{}, err
	}
	return addrFromSockaddr(sa), nil
}

func getpeername(fd int) (Addr, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return Addr{}, err
	}
	return addrFromSockaddr(sa), nil
}
