/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/firefly-oss/oplog/internal/clock"
)

// LoggedOperation pairs a user Operation with the metadata it was
// assigned on entry to a Log: a stable random UUID, the actor that
// authored it, and the clock it was minted with. Once constructed it is
// immutable.
//
// Two LoggedOperations are equal iff their clocks are equal: under the single-actor-per-Provider, monotonic
// discipline this package enforces, two distinct LoggedOperations never
// share a clock, so clock equality and UUID equality coincide in
// practice. Insert recognizes an incoming duplicate by its UUID.
type LoggedOperation[A ID] struct {
	id        uuid.UUID
	actor     A
	clock     clock.Clock[A]
	operation Operation
}

// newLoggedOperation constructs a LoggedOperation with a fresh random
// UUID.
func newLoggedOperation[A ID](actor A, c clock.Clock[A], op Operation) LoggedOperation[A] {
	return LoggedOperation[A]{
		id:        uuid.New(),
		actor:     actor,
		clock:     c,
		operation: op,
	}
}

// ID returns the operation's stable UUID.
func (lo LoggedOperation[A]) ID() uuid.UUID { return lo.id }

// Actor returns the authoring actor.
func (lo LoggedOperation[A]) Actor() A { return lo.actor }

// Clock returns the assigned clock.
func (lo LoggedOperation[A]) Clock() clock.Clock[A] { return lo.clock }

// Operation returns the wrapped operation.
func (lo LoggedOperation[A]) Operation() Operation { return lo.operation }

// Equal reports whether lo and other have equal clocks (see the type
// doc comment for why this coincides with UUID equality).
func (lo LoggedOperation[A]) Equal(other LoggedOperation[A]) bool {
	return lo.clock.Equal(other.clock)
}

// String renders the operation for logging.
func (lo LoggedOperation[A]) String() string {
	return fmt.Sprintf("LoggedOperation{id:%s, actor:%v, clock:%v, op:%s}", lo.id, lo.actor, lo.clock, lo.operation)
}
