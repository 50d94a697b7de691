/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"github.com/google/uuid"

	"github.com/firefly-oss/oplog/internal/clock"
	operrors "github.com/firefly-oss/oplog/internal/errors"
)

// PredicateFunc is the arbitrary third form of Cutoff: it receives each
// LoggedOperation in fold order together with the running hash after
// folding that operation, and reports whether reduction should stop
// here.
type PredicateFunc[A ID] func(op LoggedOperation[A], runningHash [32]byte) bool

type cutoffMode int

const (
	cutoffUUID cutoffMode = iota
	cutoffHash
	cutoffPredicate
)

// Cutoff selects where Reduce stops folding operations into a new
// baseline: a target operation UUID, a target 32-byte hash-chain value,
// or an arbitrary predicate.
type Cutoff[A ID] struct {
	mode      cutoffMode
	uuid      uuid.UUID
	hash      [32]byte
	predicate PredicateFunc[A]
}

// UntilUUID stops reduction at the operation with the given UUID.
func UntilUUID[A ID](id uuid.UUID) Cutoff[A] {
	return Cutoff[A]{mode: cutoffUUID, uuid: id}
}

// UntilHash stops reduction the moment the running hash chain equals
// hash.
func UntilHash[A ID](hash [32]byte) Cutoff[A] {
	return Cutoff[A]{mode: cutoffHash, hash: hash}
}

// UntilPredicate stops reduction at the first operation for which pred
// returns true.
func UntilPredicate[A ID](pred PredicateFunc[A]) Cutoff[A] {
	return Cutoff[A]{mode: cutoffPredicate, predicate: pred}
}

func (c Cutoff[A]) matches(lo LoggedOperation[A], runningHash [32]byte) bool {
	switch c.mode {
	case cutoffUUID:
		return lo.ID() == c.uuid
	case cutoffHash:
		return runningHash == c.hash
	case cutoffPredicate:
		return c.predicate(lo, runningHash)
	default:
		return false
	}
}

// Reduce collapses the prefix of operations up to and including the
// first one matching cutoff into a new baseline, identified by the
// SHA-256 hash chain accumulated while folding. It fails
// ReduceNotPossible, leaving the log untouched, if cutoff never matches.
func (l *Log[A, L]) Reduce(cutoff Cutoff[A]) error {
	snap := l.baseline.Snapshot
	summary := l.initialSummary.clone()
	runningHash := l.baseline.SHA256
	var lastClock clock.Clock[A]
	cutoffIndex := -1

	for i, lo := range l.operations {
		newSnap, outcome := snap.Apply(lo.Operation())
		snap = newSnap
		summary = summary.record(lo, outcome)
		runningHash = nextHash(runningHash, [16]byte(lo.ID()))
		lastClock = lo.Clock()

		if cutoff.matches(lo, runningHash) {
			cutoffIndex = i
			break
		}
	}

	if cutoffIndex == -1 {
		return operrors.ReduceNotPossible()
	}

	lc := lastClock
	l.baseline = Baseline[A]{Snapshot: snap, SHA256: runningHash, Clock: &lc}
	l.initialSummary = summary
	l.operations = append([]LoggedOperation[A]{}, l.operations[cutoffIndex+1:]...)
	l.recomputeFromBaseline()
	return nil
}
