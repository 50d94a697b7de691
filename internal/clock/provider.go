/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package clock

// Provider mints successive clocks for a single actor. It is
// thread-unsafe by design — each OperationLog owns exactly one Provider,
// matching the log's own single-owner value semantics.
type Provider[A Actor] struct {
	current Clock[A]
	actor   A
}

// NewProvider returns a Provider seeded with an empty clock for actor,
// using the given timestamp strategy.
func NewProvider[A Actor](actor A, strategy Strategy) *Provider[A] {
	return &Provider[A]{
		current: New[A](strategy),
		actor:   actor,
	}
}

// Seed returns a Provider whose current clock is exactly c, so that a
// deserialized log's provider picks up numbering where the serialized
// operations (or baseline) left off, rather than restarting from empty.
func Seed[A Actor](actor A, c Clock[A]) *Provider[A] {
	return &Provider[A]{current: c, actor: actor}
}

// Actor returns the actor this provider mints clocks for.
func (p *Provider[A]) Actor() A {
	return p.actor
}

// Current returns the most recently minted or merged clock.
func (p *Provider[A]) Current() Clock[A] {
	return p.current
}

// Next mints a new clock, strictly greater (under TotalOrder) than every
// clock previously produced by this provider, and returns it.
func (p *Provider[A]) Next() Clock[A] {
	p.current = p.current.Increment(p.actor)
	return p.current
}

// Merge folds a remote clock into this provider's current clock, so that
// the next minted clock is causally after everything this replica has
// observed, whether minted locally or learned from a peer.
func (p *Provider[A]) Merge(c Clock[A]) {
	p.current = p.current.Merge(c)
}
