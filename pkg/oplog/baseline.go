/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"crypto/sha256"

	"github.com/firefly-oss/oplog/internal/clock"
)

// Baseline is the reduction point a Log folds forward from: a snapshot,
// the SHA-256 hash of the operation sequence that produced it, and the
// clock observed at that point (absent for an empty log). Two logs with
// equal baselines and equal tails of operations after the baseline are
// guaranteed to converge.
type Baseline[A ID] struct {
	Snapshot Snapshot
	SHA256   [32]byte
	Clock    *clock.Clock[A] // nil for an empty log's baseline
}

// emptyBaseline returns the baseline of a freshly-constructed log with no
// operations folded in: a zero hash and no clock.
func emptyBaseline[A ID](snap Snapshot) Baseline[A] {
	return Baseline[A]{Snapshot: snap, SHA256: [32]byte{}}
}

// nextHash extends a running hash chain with one more operation's UUID,
// SHA256(runningHash || uuid.bytes_be).
func nextHash(running [32]byte, opID [16]byte) [32]byte {
	h := sha256.New()
	h.Write(running[:])
	h.Write(opID[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
