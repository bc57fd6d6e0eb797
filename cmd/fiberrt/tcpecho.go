// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joeycumines/fiberrt"
	fnet "github.com/joeycumines/fiberrt/net"
)

func newTCPEchoCommand() *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "tcp-echo",
		Short: "Serve a TCP echo server on the fiberrt scheduler",
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
				runTCPEchoServer(f, sched, bind)
			})

			return sched.Run(context.Background(), resolveWorkerCount(cmd, cfg.Workers))
		},
	}

	cmd.Flags().StringVarP(&bind, "bind", "b", "127.0.0.1:0", "address to listen on")
	return cmd
}

func runTCPEchoServer(f *fiberrt.Fiber, sched *fiberrt.Scheduler, bind string) {
	listener, err := fnet.BindTCP(bind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fiberrt: tcp-echo: %v\n", err)
		return
	}
	defer listener.Close()

	fmt.Fprintf(os.Stdout, "tcp-echo listening on %s\n", listener.LocalAddr())

	for {
		conn, err := listener.Accept(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fiberrt: tcp-echo accept: %v\n", err)
			return
		}

		sched.Spawn(func(f *fiberrt.Fiber) {
			handleTCPEchoConn(f, conn)
		})
	}
}

func handleTCPEchoConn(f *fiberrt.Fiber, conn *fnet.TcpStream) {
	defer conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(f, buf)
		if err != nil {
			return
		}
		if n == 0 {
			return // peer closed
		}
		if _, err := conn.Write(f, buf[:n]); err != nil {
			return
		}
	}
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
