/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"github.com/google/uuid"

	"github.com/firefly-oss/oplog/internal/clock"
)

// ApplyType mirrors OutcomeKind for the subset that gets recorded in a
// Summary (every outcome is recorded, including Skipped, so that a
// Summary can account for every operation the log has ever seen,
// including those already folded into its baseline).
type ApplyType int

const (
	ApplyFull ApplyType = iota
	ApplyPartial
	ApplySkipped
)

func (a ApplyType) String() string {
	switch a {
	case ApplyFull:
		return "Full"
	case ApplyPartial:
		return "Partial"
	case ApplySkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// AppliedOperation records the apply-time outcome of one operation,
// indexed by its position in the log's whole history (operations folded
// into the baseline included).
type AppliedOperation[A ID] struct {
	ID        uuid.UUID
	Index     uint64
	Actor     A
	ApplyType ApplyType
	Reason    string // populated for Partial and Skipped
}

// Summary accumulates metadata about the operations folded into a Log:
// which actors have been seen, the latest clock observed, how many
// operations have been applied, and a per-operation apply outcome. A
// Log's live summary starts from its initialSummary (the summary at the
// baseline), so it covers operations folded into the baseline as well as
// those after it.
type Summary[A ID] struct {
	Actors         map[A]struct{}
	LatestClock    clock.Clock[A]
	OperationCount uint64
	Infos          []AppliedOperation[A]
}

// newSummary returns an empty summary seeded with a fresh clock of the
// given strategy (used both as the very first summary of a fresh log, and
// as the template a reduce folds forward from).
func newSummary[A ID](strategy clock.Strategy) Summary[A] {
	return Summary[A]{
		Actors:      map[A]struct{}{},
		LatestClock: clock.New[A](strategy),
	}
}

// clone returns a deep copy, so that appending to a Summary never
// mutates one still referenced elsewhere (e.g. a Log's initialSummary
// while building its live summary).
func (s Summary[A]) clone() Summary[A] {
	actors := make(map[A]struct{}, len(s.Actors))
	for a := range s.Actors {
		actors[a] = struct{}{}
	}
	infos := make([]AppliedOperation[A], len(s.Infos))
	copy(infos, s.Infos)
	return Summary[A]{
		Actors:         actors,
		LatestClock:    s.LatestClock,
		OperationCount: s.OperationCount,
		Infos:          infos,
	}
}

// record returns a new summary reflecting one more applied operation.
func (s Summary[A]) record(lo LoggedOperation[A], outcome Outcome) Summary[A] {
	next := s.clone()
	next.Actors[lo.Actor()] = struct{}{}
	next.LatestClock = lo.Clock()
	next.OperationCount++

	info := AppliedOperation[A]{
		ID:    lo.ID(),
		Index: next.OperationCount - 1,
		Actor: lo.Actor(),
	}
	switch outcome.Kind {
	case Full:
		info.ApplyType = ApplyFull
	case Partial:
		info.ApplyType = ApplyPartial
		info.Reason = outcome.Reason
	case Skipped:
		info.ApplyType = ApplySkipped
		info.Reason = outcome.Reason
	}
	next.Infos = append(next.Infos, info)
	return next
}
