/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"slices"

	"github.com/firefly-oss/oplog/internal/clock"
	operrors "github.com/firefly-oss/oplog/internal/errors"
)

// Insert merge-sorts a batch of remote LoggedOperations into the local
// sequence, deduplicating by UUID, then rebuilds the derived snapshot,
// summary, and undo stack if anything actually changed. It fails
// MergeNotPossible if the incoming batch is not strictly newer than the
// local baseline — i.e. the sender's history has already been compacted
// away here.
func (l *Log[A, L]) Insert(ops []LoggedOperation[A]) error {
	if len(ops) == 0 {
		return nil
	}

	descending := make([]LoggedOperation[A], len(ops))
	copy(descending, ops)
	slices.SortFunc(descending, func(a, b LoggedOperation[A]) int {
		switch a.Clock().TotalOrder(b.Clock()) {
		case clock.Ascending:
			return 1
		case clock.Descending:
			return -1
		default:
			return 0
		}
	})

	latest := descending[0].Clock()
	earliest := descending[len(descending)-1].Clock()

	if l.baseline.Clock != nil && earliest.TotalOrder(*l.baseline.Clock) != clock.Descending {
		return operrors.MergeNotPossible("incoming operations are not strictly newer than the local baseline")
	}

	l.provider.Merge(latest)

	if len(l.operations) == 0 {
		l.operations = make([]LoggedOperation[A], len(descending))
		for i, op := range descending {
			l.operations[len(descending)-1-i] = op
		}
		l.recomputeFromBaseline()
		return nil
	}

	before := len(l.operations)
	searchStart := len(l.operations) - 1

	for _, op := range descending {
		for i := searchStart; ; i-- {
			if l.operations[i].ID() == op.ID() {
				searchStart = i
				break
			}
			if l.operations[i].Clock().TotalOrder(op.Clock()) == clock.Ascending {
				l.operations = slices.Insert(l.operations, i+1, op)
				searchStart = i
				break
			}
			if i == 0 {
				l.operations = slices.Insert(l.operations, 0, op)
				searchStart = 0
				break
			}
		}
	}

	if len(l.operations) == before {
		return nil
	}

	l.recomputeFromBaseline()
	return nil
}

// recomputeFromBaseline resets the derived snapshot, summary, and undo
// stack back to the baseline and replays every operation in order,
// clearing the redo stack.
func (l *Log[A, L]) recomputeFromBaseline() {
	l.snapshot = l.baseline.Snapshot
	l.summary = l.initialSummary.clone()
	l.undo = nil
	l.redo = nil

	for _, lo := range l.operations {
		newSnap, outcome := l.snapshot.Apply(lo.Operation())
		l.snapshot = newSnap
		l.summary = l.summary.record(lo, outcome)
		if outcome.Kind == Full || outcome.Kind == Partial {
			l.undo = append(l.undo, undoEntry{revertingOperationID: lo.ID(), operation: outcome.Undo})
		}
	}
}
