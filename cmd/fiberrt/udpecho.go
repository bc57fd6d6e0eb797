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

func newUDPEchoCommand() *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "udp-echo",
		Short: "Serve a UDP echo server on the fiberrt scheduler",
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
				runUDPEchoServer(f, bind)
			})

			return sched.Run(context.Background(), resolveWorkerCount(cmd, cfg.Workers))
		},
	}

	cmd.Flags().StringVarP(&bind, "bind", "b", "127.0.0.1:0", "address to listen on")
	return cmd
}

func runUDPEchoServer(f *fiberrt.Fiber, bind string) {
	server, err := fnet.BindUDP(bind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fiberrt: udp-echo: %v\n", err)
		return
	}
	defer server.Close()

	fmt.Fprintf(os.Stdout, "udp-echo listening on %s\n", server.LocalAddr())

	buf := make([]byte, 1500)
	for {
		n, peer, err := server.RecvFrom(f, buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fiberrt: udp-echo recv: %v\n", err)
			return
		}
		if err := server.SendTo(f, buf[:n], peer); err != nil {
			fmt.Fprintf(os.Stderr, "fiberrt: udp-echo send: %v\n", err)
		}
	}
}
