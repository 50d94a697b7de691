/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"github.com/google/uuid"

	"github.com/firefly-oss/oplog/internal/clock"
)

// undoEntry pairs an undo/redo operation with the UUID of the
// LoggedOperation it reverts: these are plain operations, not yet
// timestamped and not yet part of the log.
type undoEntry struct {
	revertingOperationID uuid.UUID
	operation            Operation
}

// Log is an OperationLog: a totally-ordered, replicated sequence of
// operations authored by possibly many actors, folded onto a baseline to
// produce a derived Snapshot. A Log is a value-oriented owner of mutable
// state (see the package doc comment) — it is not safe for concurrent
// use without external synchronization.
type Log[A ID, L ID] struct {
	logID   L
	actorID A

	baseline       Baseline[A]
	initialSummary Summary[A]

	operations []LoggedOperation[A] // total-order-ascending

	provider *clock.Provider[A]

	snapshot Snapshot
	summary  Summary[A]
	undo     []undoEntry
	redo     []undoEntry

	opDecoder   OperationDecoder
	snapDecoder SnapshotDecoder
}

// New returns a fresh Log for logID/actorID with an empty baseline: the
// caller-supplied empty snapshot, a zero hash, and no clock.
func New[A ID, L ID](logID L, actorID A, strategy clock.Strategy, empty Snapshot) *Log[A, L] {
	summary := newSummary[A](strategy)
	summary.Actors[actorID] = struct{}{}

	return &Log[A, L]{
		logID:          logID,
		actorID:        actorID,
		baseline:       emptyBaseline[A](empty),
		initialSummary: summary,
		provider:       clock.NewProvider[A](actorID, strategy),
		snapshot:       empty,
		summary:        summary.clone(),
	}
}

// LogID returns the log's identifier.
func (l *Log[A, L]) LogID() L { return l.logID }

// ActorID returns the local actor's identifier.
func (l *Log[A, L]) ActorID() A { return l.actorID }

// Snapshot returns the current derived state.
func (l *Log[A, L]) Snapshot() Snapshot { return l.snapshot }

// Summary returns the current accumulated summary.
func (l *Log[A, L]) Summary() Summary[A] { return l.summary }

// Operations returns a read-only view of the operation sequence since the
// baseline, total-order-ascending.
func (l *Log[A, L]) Operations() []LoggedOperation[A] {
	out := make([]LoggedOperation[A], len(l.operations))
	copy(out, l.operations)
	return out
}

// Baseline returns the log's current baseline.
func (l *Log[A, L]) Baseline() Baseline[A] { return l.baseline }

// clone returns a deep, independent copy of l, used internally by Merge
// to explore a reduction of a "working copy" without mutating the
// caller's log unless the reconciliation actually succeeds.
func (l *Log[A, L]) clone() *Log[A, L] {
	ops := make([]LoggedOperation[A], len(l.operations))
	copy(ops, l.operations)
	undo := make([]undoEntry, len(l.undo))
	copy(undo, l.undo)
	redo := make([]undoEntry, len(l.redo))
	copy(redo, l.redo)

	return &Log[A, L]{
		logID:          l.logID,
		actorID:        l.actorID,
		baseline:       l.baseline,
		initialSummary: l.initialSummary.clone(),
		operations:     ops,
		provider:       clock.Seed(l.provider.Actor(), l.provider.Current()),
		snapshot:       l.snapshot,
		summary:        l.summary.clone(),
		undo:           undo,
		redo:           redo,
		opDecoder:      l.opDecoder,
		snapDecoder:    l.snapDecoder,
	}
}

// CanUndo reports whether Undo would have any effect.
func (l *Log[A, L]) CanUndo() bool { return len(l.undo) > 0 }

// CanRedo reports whether Redo would have any effect.
func (l *Log[A, L]) CanRedo() bool { return len(l.redo) > 0 }

// applyOp mints a fresh clock, wraps op as a LoggedOperation, appends it
// to the sequence, and folds it into the live snapshot and summary. It is
// the shared mechanics behind Append, Undo, and Redo; the caller decides
// what, if anything, happens to the undo/redo stacks.
func (l *Log[A, L]) applyOp(op Operation) (LoggedOperation[A], Outcome) {
	c := l.provider.Next()
	lo := newLoggedOperation(l.actorID, c, op)
	l.operations = append(l.operations, lo)

	newSnap, outcome := l.snapshot.Apply(op)
	l.snapshot = newSnap
	l.summary = l.summary.record(lo, outcome)
	return lo, outcome
}

// Append folds op into the log as a new local operation. Append is
// infallible: a Skipped outcome is recorded in the summary rather than
// rejected. Append always clears the redo stack.
func (l *Log[A, L]) Append(op Operation) {
	lo, outcome := l.applyOp(op)
	if outcome.Kind == Full || outcome.Kind == Partial {
		l.undo = append(l.undo, undoEntry{revertingOperationID: lo.ID(), operation: outcome.Undo})
	}
	l.redo = nil
}

// Undo pops the top of the undo stack and replays it through applyOp,
// minting a fresh clock so peers see it as an ordinary operation. The
// undo produced by *that* application is pushed onto the redo stack.
// No-op if the undo stack is empty.
func (l *Log[A, L]) Undo() {
	if len(l.undo) == 0 {
		return
	}
	n := len(l.undo) - 1
	entry := l.undo[n]
	l.undo = l.undo[:n]

	lo, outcome := l.applyOp(entry.operation)
	if outcome.Kind == Full || outcome.Kind == Partial {
		l.redo = append(l.redo, undoEntry{revertingOperationID: lo.ID(), operation: outcome.Undo})
	}
}

// Redo is the symmetric counterpart of Undo: pops the redo stack, replays
// it through applyOp, and pushes the resulting undo back onto the undo
// stack. No-op if the redo stack is empty.
func (l *Log[A, L]) Redo() {
	if len(l.redo) == 0 {
		return
	}
	n := len(l.redo) - 1
	entry := l.redo[n]
	l.redo = l.redo[:n]

	lo, outcome := l.applyOp(entry.operation)
	if outcome.Kind == Full || outcome.Kind == Partial {
		l.undo = append(l.undo, undoEntry{revertingOperationID: lo.ID(), operation: outcome.Undo})
	}
}
