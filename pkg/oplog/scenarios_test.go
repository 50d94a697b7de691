/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog_test

import (
	"testing"

	"github.com/firefly-oss/oplog/internal/clock"
	"github.com/firefly-oss/oplog/pkg/oplog"
	"github.com/firefly-oss/oplog/pkg/stringsnap"
)

func newLog(t *testing.T, logID, actor string) *oplog.Log[string, string] {
	t.Helper()
	return oplog.New[string, string](logID, actor, clock.StrategyMonotonic, stringsnap.Empty())
}

func snapString(l *oplog.Log[string, string]) string {
	return string(l.Snapshot().(stringsnap.Snapshot))
}

// S1 - append/reduce.
func TestScenarioAppend(t *testing.T) {
	log := newLog(t, "1", "A")
	log.Append(stringsnap.Append('A'))
	log.Append(stringsnap.Append('B'))
	log.Append(stringsnap.Append('C'))

	if got := snapString(log); got != "ABC" {
		t.Fatalf("snapshot = %q, want ABC", got)
	}
	if len(log.Operations()) != 3 {
		t.Fatalf("operations.len = %d, want 3", len(log.Operations()))
	}
	if log.Summary().OperationCount != 3 {
		t.Fatalf("summary.operationCount = %d, want 3", log.Summary().OperationCount)
	}
	if !log.CanUndo() {
		t.Fatal("canUndo = false, want true")
	}
	if log.CanRedo() {
		t.Fatal("canRedo = true, want false")
	}
}

// S2 - merge.
func TestScenarioMerge(t *testing.T) {
	logA := newLog(t, "1", "A")
	logB := newLog(t, "1", "B")

	logA.Append(stringsnap.Append('A'))
	logA.Append(stringsnap.Append('B'))
	logA.Append(stringsnap.Append('C'))
	logB.Append(stringsnap.Append('D'))

	if err := logB.Merge(logA); err != nil {
		t.Fatalf("logB.Merge(logA) failed: %v", err)
	}
	if err := logB.Merge(logB); err != nil {
		t.Fatalf("logB.Merge(logB) failed: %v", err)
	}
	if got := snapString(logB); got != "ABCD" {
		t.Fatalf("logB.snapshot = %q, want ABCD", got)
	}

	logA.Append(stringsnap.Append('E'))
	logA.Append(stringsnap.Append('F'))
	logB.Append(stringsnap.Append('G'))
	logB.Append(stringsnap.Append('H'))
	logA.Append(stringsnap.Append('I'))
	logB.Append(stringsnap.Append('J'))

	if err := logA.Merge(logB); err != nil {
		t.Fatalf("logA.Merge(logB) failed: %v", err)
	}
	if err := logB.Merge(logA); err != nil {
		t.Fatalf("logB.Merge(logA) failed: %v", err)
	}

	if snapString(logA) != snapString(logB) {
		t.Fatalf("replicas diverged: logA=%q logB=%q", snapString(logA), snapString(logB))
	}
}

// S3 - undo/redo.
func TestScenarioUndoRedo(t *testing.T) {
	log := newLog(t, "1", "A")
	log.Append(stringsnap.Append('A'))
	log.Append(stringsnap.Append('B'))

	log.Undo()
	if got := snapString(log); got != "A" {
		t.Fatalf("after first undo: snapshot = %q, want A", got)
	}

	log.Redo()
	if got := snapString(log); got != "AB" {
		t.Fatalf("after redo: snapshot = %q, want AB", got)
	}

	log.Undo()
	log.Undo()
	log.Undo() // third undo is a no-op: nothing left to undo
	if got := snapString(log); got != "" {
		t.Fatalf("after three undos: snapshot = %q, want empty", got)
	}

	log.Redo()
	log.Redo()
	log.Redo() // third redo is a no-op
	if got := snapString(log); got != "AB" {
		t.Fatalf("after three redos: snapshot = %q, want AB", got)
	}

	if got := len(log.Operations()); got != 8 {
		t.Fatalf("operations.len = %d, want 8", got)
	}
}

// S4 - serialize round-trip.
func TestScenarioSerializeRoundTrip(t *testing.T) {
	log := newLog(t, "1", "A")
	log.Append(stringsnap.Append('A'))
	log.Append(stringsnap.Append('B'))
	log.Append(stringsnap.Append('C'))

	data, err := log.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	log2, err := oplog.FromBytes[string, string]("A", data, stringsnap.DecodeOp, stringsnap.DecodeSnapshot)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	if snapString(log2) != snapString(log) {
		t.Fatalf("log2.snapshot = %q, want %q", snapString(log2), snapString(log))
	}
	if log2.LogID() != log.LogID() {
		t.Fatalf("log2.logID = %q, want %q", log2.LogID(), log.LogID())
	}

	log.Append(stringsnap.Append('X'))
	log2.Append(stringsnap.Append('X'))
	log.Undo()
	log2.Undo()
	log.Redo()
	log2.Redo()

	if snapString(log) != snapString(log2) {
		t.Fatalf("post round-trip divergence: log=%q log2=%q", snapString(log), snapString(log2))
	}
}

// S5 - reduce cutoff and reject past insert.
func TestScenarioReduceRejectsPastInsert(t *testing.T) {
	logA := newLog(t, "1", "A")
	logB := newLog(t, "1", "B")

	logA.Append(stringsnap.Append('A'))
	logA.Append(stringsnap.Append('B'))
	if err := logB.Merge(logA); err != nil {
		t.Fatalf("logB.Merge(logA) failed: %v", err)
	}

	logB.Append(stringsnap.Append('X'))
	logA.Append(stringsnap.Append('C'))

	cutoffID := logA.Operations()[2].ID()
	if err := logA.Reduce(oplog.UntilUUID[string](cutoffID)); err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if got := len(logA.Operations()); got != 0 {
		t.Fatalf("logA.operations.len = %d, want 0", got)
	}
	if got := snapString(logA); got != "ABC" {
		t.Fatalf("logA.snapshot = %q, want ABC", got)
	}

	bOp := logB.Operations()[2]
	if err := logA.Insert([]oplog.LoggedOperation[string]{bOp}); err == nil {
		t.Fatal("expected Insert of a pre-baseline operation to fail")
	}
}

// S6 - reduce then merge.
func TestScenarioReduceThenMerge(t *testing.T) {
	logA := newLog(t, "1", "A")
	logB := newLog(t, "1", "B")

	logA.Append(stringsnap.Append('A'))
	logA.Append(stringsnap.Append('B'))
	if err := logB.Merge(logA); err != nil {
		t.Fatalf("logB.Merge(logA) failed: %v", err)
	}

	logB.Append(stringsnap.Append('X'))
	logA.Append(stringsnap.Append('C'))

	cutoffID := logA.Operations()[1].ID()
	if err := logA.Reduce(oplog.UntilUUID[string](cutoffID)); err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if got := len(logA.Operations()); got != 1 {
		t.Fatalf("logA.operations.len = %d, want 1", got)
	}

	if err := logA.Merge(logB); err != nil {
		t.Fatalf("logA.Merge(logB) failed: %v", err)
	}
	if got := snapString(logA); got != "ABXC" {
		t.Fatalf("logA.snapshot = %q, want ABXC", got)
	}

	if err := logB.Merge(logA); err != nil {
		t.Fatalf("logB.Merge(logA) failed: %v", err)
	}
	if got := snapString(logB); got != "ABXC" {
		t.Fatalf("logB.snapshot = %q, want ABXC", got)
	}
	if got := len(logB.Operations()); got != 4 {
		t.Fatalf("logB.operations.len = %d, want 4", got)
	}
}
