// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiberrt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	entries []LogEntry
}

func (r *recordingLogger) Log(entry LogEntry)      { r.entries = append(r.entries, entry) }
func (r *recordingLogger) IsEnabled(LogLevel) bool { return true }

func TestSetLoggerRoutesEntries(t *testing.T) {
	rec := &recordingLogger{}
	SetLogger(rec)
	t.Cleanup(func() { SetLogger(nil) })

	logError("worker", "fiber resume failed", 3, 7, ErrQueueFull)

	want := []LogEntry{{
		Level:    LevelError,
		Category: "worker",
		WorkerID: 3,
		FiberID:  7,
		Message:  "fiber resume failed",
		Err:      ErrQueueFull,
	}}

	// Timestamp isn't set by logError itself (that's DefaultLogger's
	// job), so compare everything else with go-cmp, ignoring it. Errors
	// are matched via errors.Is rather than structurally — sentinel
	// errors carry unexported fields cmp would refuse to walk.
	diff := cmp.Diff(want, rec.entries,
		cmpopts.IgnoreFields(LogEntry{}, "Timestamp"),
		cmpopts.EquateErrors())
	require.Empty(t, diff)
}

func TestSetLoggerNilRestoresNoOp(t *testing.T) {
	SetLogger(&recordingLogger{})
	SetLogger(nil)
	require.IsType(t, noOpLogger{}, getLogger())
}

func TestDefaultLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger(LevelWarn)
	l.Out = &buf

	l.Log(LogEntry{Level: LevelInfo, Message: "should not appear"})
	require.Empty(t, buf.String())

	l.Log(LogEntry{Level: LevelError, Message: "should appear", Err: ErrQueueFull})
	require.True(t, strings.Contains(buf.String(), "should appear"))
	require.True(t, strings.Contains(buf.String(), ErrQueueFull.Error()))
}
