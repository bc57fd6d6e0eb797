// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/joeycumines/fiberrt"
)

var (
	version = "0.1.0-dev"
	commit  = "dev"
)

// fileConfig is the optional TOML configuration file accepted via
// --config. The worker count can be overridden by --workers; the queue
// and token-slab capacities have no flag.
type fileConfig struct {
	Workers             int `toml:"workers"`
	GlobalQueueCapacity int `toml:"global_queue_capacity"`
	MaxTokens           int `toml:"max_tokens"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}

func writePidfile(path string) error {
	if path == "" {
		return nil
	}
	return renameio.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644)
}

func main() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "fiberrt: maxprocs: %v\n", err)
	}
	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		fmt.Fprintf(os.Stderr, "fiberrt: memlimit: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:     "fiberrt",
		Short:   "Example servers built on the fiberrt M:N fiber scheduler",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
	}

	rootCmd.PersistentFlags().String("config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().String("pidfile", "", "write the process id to this path on startup")
	rootCmd.PersistentFlags().Int("workers", 0, "number of OS-thread workers (0 = one per GOMAXPROCS)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn, or error")

	rootCmd.AddCommand(newTCPEchoCommand())
	rootCmd.AddCommand(newUDPEchoCommand())
	rootCmd.AddCommand(newHTTPEchoCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl := fiberrt.LevelInfo
	switch level {
	case "debug":
		lvl = fiberrt.LevelDebug
	case "warn":
		lvl = fiberrt.LevelWarn
	case "error":
		lvl = fiberrt.LevelError
	}
	fiberrt.SetLogger(fiberrt.NewDefaultLogger(lvl))
}

func resolveWorkerCount(cmd *cobra.Command, fileWorkers int) int {
	flagWorkers, _ := cmd.Flags().GetInt("workers")
	switch {
	case flagWorkers > 0:
		return flagWorkers
	case fileWorkers > 0:
		return fileWorkers
	default:
		return runtime.GOMAXPROCS(0)
	}
}
