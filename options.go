// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"github.com/pbnjay/memory"
)

// DefaultStackSize is the logical stack-accounting size used when no
// explicit Options override is supplied. It does not pre-allocate a Go
// stack (goroutine stacks grow on demand from 2KiB); the value is only
// recorded on each spawned Fiber, and nothing is sized from it.
const DefaultStackSize = 32 * 1024

// DefaultMaxTokens is the default ReadinessReactor token slab capacity.
const DefaultMaxTokens = 65536

// MinMaxTokens is the smallest token slab capacity honored.
const MinMaxTokens = 65536

// resolvedOptions is the fully-resolved configuration produced by
// resolveOptions; individual fields are read directly by spawnFiber,
// NewScheduler, and ReadinessReactor construction.
type resolvedOptions struct {
	stackSize           int
	name                string
	panicHandler        PanicHandler
	globalQueueCapacity int
	maxTokens           int
}

// Option configures a spawned Fiber or a Scheduler.
type Option interface {
	apply(*resolvedOptions)
}

type optionFunc func(*resolvedOptions)

func (f optionFunc) apply(o *resolvedOptions) { f(o) }

// WithStackSize overrides the logical stack-accounting size for a
// spawned Fiber.
func WithStackSize(size int) Option {
	return optionFunc(func(o *resolvedOptions) {
		if size > 0 {
			o.stackSize = size
		}
	})
}

// WithName sets a Fiber's diagnostic name, returned by Fiber.Name.
func WithName(name string) Option {
	return optionFunc(func(o *resolvedOptions) {
		o.name = name
	})
}

// WithPanicHandler overrides the handler invoked when a fiber's entry
// closure panics. The default logs via the package Logger.
func WithPanicHandler(h PanicHandler) Option {
	return optionFunc(func(o *resolvedOptions) {
		if h != nil {
			o.panicHandler = h
		}
	})
}

// WithGlobalQueueCapacity overrides a Scheduler's GlobalQueue capacity.
// Only meaningful when passed to NewScheduler.
func WithGlobalQueueCapacity(capacity int) Option {
	return optionFunc(func(o *resolvedOptions) {
		if capacity > 0 {
			o.globalQueueCapacity = capacity
		}
	})
}

// WithMaxTokens overrides each Worker's ReadinessReactor token slab
// capacity. Only meaningful when passed to NewScheduler.
func WithMaxTokens(n int) Option {
	return optionFunc(func(o *resolvedOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	})
}

// defaultPanicHandler logs a recovered fiber panic via the package
// Logger; installed unless overridden with WithPanicHandler.
func defaultPanicHandler(fiber *Fiber, recovered any, stack []byte) {
	getLogger().Log(LogEntry{
		Level:    LevelError,
		Category: "fiber",
		FiberID:  fiber.ID(),
		Message:  "fiber panicked",
		Err:      &PanicError{Value: recovered, Stack: stack},
	})
}

// defaultOptions returns a resolvedOptions populated with this runtime's
// defaults, scaled by host memory via github.com/pbnjay/memory the same
// way a capacity-sizing decision would be made for any resource pool
// whose default should not be identical on a 1GiB container and a
// 512GiB host.
func defaultOptions() resolvedOptions {
	capacity := DefaultGlobalQueueCapacity
	if total := memory.TotalMemory(); total > 0 {
		// Scale up one doubling per whole 8GiB of total memory, capped
		// well below any practical risk of unbounded growth.
		for extra := total / (8 << 30); extra > 0 && capacity < 1<<20; extra-- {
			capacity *= 2
		}
	}

	return resolvedOptions{
		stackSize:           DefaultStackSize,
		panicHandler:        defaultPanicHandler,
		globalQueueCapacity: capacity,
		maxTokens:           DefaultMaxTokens,
	}
}

func resolveOptions(opts []Option) resolvedOptions {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&cfg)
	}
	return cfg
}
