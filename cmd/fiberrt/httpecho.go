// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joeycumines/fiberrt"
	fnet "github.com/joeycumines/fiberrt/net"
)

// newHTTPEchoCommand builds the http-echo subcommand. It deliberately does
// not depend on net/http (see net/doc.go): HTTP/1.1 request framing is
// parsed by hand directly off a *fnet.TcpStream inside a spawned fiber, so
// every blocking point stays on the fiber park/wake protocol instead of
// escaping into goroutines net/http would spawn on its own.
func newHTTPEchoCommand() *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "http-echo",
		Short: "Serve a minimal HTTP/1.1 echo server on the fiberrt scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			setupLogging(level)

			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadFileConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := writePidfile(mustString(cmd, "pidfile")); err != nil {
				return err
			}

			sched := fiberrt.NewScheduler(
				fiberrt.WithGlobalQueueCapacity(cfg.GlobalQueueCapacity),
				fiberrt.WithMaxTokens(cfg.MaxTokens),
			)

			sched.Spawn(func(f *fiberrt.Fiber) {
				runHTTPEchoServer(f, sched, bind)
			})

			return sched.Run(context.Background(), resolveWorkerCount(cmd, cfg.Workers))
		},
	}

	cmd.Flags().StringVarP(&bind, "bind", "b", "127.0.0.1:0", "address to listen on")
	return cmd
}

func runHTTPEchoServer(f *fiberrt.Fiber, sched *fiberrt.Scheduler, bind string) {
	listener, err := fnet.BindTCP(bind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fiberrt: http-echo: %v\n", err)
		return
	}
	defer listener.Close()

	fmt.Fprintf(os.Stdout, "http-echo listening on %s\n", listener.LocalAddr())

	for {
		conn, err := listener.Accept(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fiberrt: http-echo accept: %v\n", err)
			return
		}

		sched.Spawn(func(f *fiberrt.Fiber) {
			handleHTTPEchoConn(f, conn)
		})
	}
}

// httpEchoMaxRequest bounds how many bytes this handler will buffer while
// looking for the end of a request's header block, guarding against a
// peer that never sends one. The body is read up to its Content-Length
// and is not bounded by this limit.
const httpEchoMaxRequest = 1 << 20

// handleHTTPEchoConn serves one keep-alive HTTP/1.1 connection, echoing
// each request's body back as the response body.
func handleHTTPEchoConn(f *fiberrt.Fiber, conn *fnet.TcpStream) {
	defer conn.Close()

	var pending bytes.Buffer
	readBuf := make([]byte, 4096)

	for {
		req, rest, err := readHTTPRequest(f, conn, &pending, readBuf)
		if err != nil {
			return
		}
		pending.Reset()
		pending.Write(rest)

		resp := fmt.Sprintf(
			"HTTP/1.1 200 OK\r\nContent-Length: %d\r\nContent-Type: text/plain\r\nConnection: keep-alive\r\n\r\n%s",
			len(req.body), req.body,
		)
		if _, err := conn.Write(f, []byte(resp)); err != nil {
			return
		}
		if req.close {
			return
		}
	}
}

type httpEchoRequest struct {
	method string
	path   string
	body   string
	close  bool
}

// readHTTPRequest reads and parses one HTTP/1.1 request from conn,
// buffering any bytes read past the request boundary in pending so the
// next call on the same connection can pick up where this one left off.
func readHTTPRequest(f *fiberrt.Fiber, conn *fnet.TcpStream, pending *bytes.Buffer, readBuf []byte) (httpEchoRequest, []byte, error) {
	data := pending.Bytes()

	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	for headerEnd == -1 {
		if len(data) > httpEchoMaxRequest {
			return httpEchoRequest{}, nil, fmt.Errorf("net: request header too large")
		}
		n, err := conn.Read(f, readBuf)
		if err != nil {
			return httpEchoRequest{}, nil, err
		}
		if n == 0 {
			return httpEchoRequest{}, nil, fmt.Errorf("net: connection closed mid-request")
		}
		pending.Write(readBuf[:n])
		data = pending.Bytes()
		headerEnd = bytes.Index(data, []byte("\r\n\r\n"))
	}

	headerBlock := string(data[:headerEnd])
	lines := strings.Split(headerBlock, "\r\n")
	if len(lines) == 0 {
		return httpEchoRequest{}, nil, fmt.Errorf("net: empty request")
	}

	requestLine := strings.Fields(lines[0])
	if len(requestLine) < 2 {
		return httpEchoRequest{}, nil, fmt.Errorf("net: malformed request line %q", lines[0])
	}

	contentLength := 0
	closeConn := false
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "content-length":
			contentLength, _ = strconv.Atoi(strings.TrimSpace(value))
		case "connection":
			closeConn = strings.EqualFold(strings.TrimSpace(value), "close")
		}
	}

	bodyStart := headerEnd + 4
	for len(data)-bodyStart < contentLength {
		n, err := conn.Read(f, readBuf)
		if err != nil {
			return httpEchoRequest{}, nil, err
		}
		if n == 0 {
			return httpEchoRequest{}, nil, fmt.Errorf("net: connection closed mid-body")
		}
		pending.Write(readBuf[:n])
		data = pending.Bytes()
	}

	body := string(data[bodyStart : bodyStart+contentLength])
	rest := append([]byte(nil), data[bodyStart+contentLength:]...)

	return httpEchoRequest{
		method: requestLine[0],
		path:   requestLine[1],
		body:   body,
		close:  closeConn,
	}, rest, nil
}
