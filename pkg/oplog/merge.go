/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"fmt"

	"github.com/firefly-oss/oplog/internal/clock"
	operrors "github.com/firefly-oss/oplog/internal/errors"
)

// Merge folds other's operations into l. If the two logs' baseline
// hashes already agree, this reduces to Insert(other.Operations()). If
// they disagree, one replica has compacted further than the other: a
// working copy of the less-compacted replica is reduced until its hash
// matches the more-compacted replica's baseline, re-aligning the two
// before the insert proceeds. Fails NonMatchingLogIDs across different
// logical logs, or MergeNotPossible if the baselines cannot be
// reconciled.
func (l *Log[A, L]) Merge(other *Log[A, L]) error {
	if l.logID != other.logID {
		return operrors.NonMatchingLogIDs(fmt.Sprintf("%v", l.logID), fmt.Sprintf("%v", other.logID))
	}

	if l.baseline.SHA256 == other.baseline.SHA256 {
		return l.Insert(other.Operations())
	}

	lIsNewer := l.initialSummary.LatestClock.TotalOrder(other.initialSummary.LatestClock) == clock.Descending

	if lIsNewer {
		// l's baseline has compacted further than other's: other's raw
		// operations still include a prefix l already folded away, which
		// would trip Insert's baseline precondition. Align a working copy
		// of other to l's baseline first, then insert only what remains.
		aligned := other.clone()
		if err := aligned.Reduce(UntilHash[A](l.baseline.SHA256)); err != nil || aligned.baseline.SHA256 != l.baseline.SHA256 {
			return operrors.MergeNotPossible("baselines diverged along different compaction paths")
		}
		return l.Insert(aligned.Operations())
	}

	// l's own baseline has not compacted as far as other's: l already
	// holds every operation other's baseline folded in, so other's
	// (already-truncated) operations can be inserted directly. Reducing a
	// working copy of l to other's baseline hash here is a pure
	// reconciliation check — it confirms the two histories actually share
	// a common path before committing to the insert.
	aligned := l.clone()
	if err := aligned.Reduce(UntilHash[A](other.baseline.SHA256)); err != nil || aligned.baseline.SHA256 != other.baseline.SHA256 {
		return operrors.MergeNotPossible("baselines diverged along different compaction paths")
	}
	return l.Insert(other.Operations())
}
