/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package clock

import "encoding/json"

// wireClock is the serialized form of a Clock, matching the VectorClock
// schema in the container format: counters keyed by actor, the last actor
// to tick, the tie-break timestamp, and the strategy that produced it.
type wireClock[A Actor] struct {
	Counters  map[A]uint64 `json:"counters"`
	LastActor A            `json:"lastActor"`
	Timestamp float64      `json:"timestamp"`
	Strategy  string       `json:"strategy"`
}

// MarshalJSON implements json.Marshaler.
func (c Clock[A]) MarshalJSON() ([]byte, error) {
	counters := c.counters
	if counters == nil {
		counters = map[A]uint64{}
	}
	return json.Marshal(wireClock[A]{
		Counters:  counters,
		LastActor: c.lastActor,
		Timestamp: c.timestamp,
		Strategy:  c.strategy.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. It does not mutate an
// existing Clock value (there being no such thing, clocks being
// immutable) — it is only ever called by encoding/json into a fresh
// zero-value receiver.
func (c *Clock[A]) UnmarshalJSON(data []byte) error {
	var w wireClock[A]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	counters := w.Counters
	if counters == nil {
		counters = map[A]uint64{}
	}
	*c = Clock[A]{
		counters:  counters,
		lastActor: w.LastActor,
		timestamp: w.Timestamp,
		strategy:  ParseStrategy(w.Strategy),
	}
	return nil
}
