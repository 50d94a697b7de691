/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package clock

import "testing"

func TestIncrementIsMonotonic(t *testing.T) {
	c := New[string](StrategyMonotonic)
	c1 := c.Increment("A")
	c2 := c1.Increment("A")

	if c1.Get("A") != 1 {
		t.Errorf("expected counter 1, got %d", c1.Get("A"))
	}
	if c2.Get("A") != 2 {
		t.Errorf("expected counter 2, got %d", c2.Get("A"))
	}
	if c2.TotalOrder(c1) != Descending {
		t.Errorf("expected c2 to sort after c1, got %v", c2.TotalOrder(c1))
	}
}

func TestPartialOrder(t *testing.T) {
	base := New[string](StrategyConstant)
	a1 := base.Increment("A")
	a2 := a1.Increment("A")
	b1 := base.Increment("B")

	tests := []struct {
		name     string
		x, y     Clock[string]
		expected Order
	}{
		{"equal", base, base, Equal},
		{"ascending", a1, a2, Ascending},
		{"descending", a2, a1, Descending},
		{"concurrent", a1, b1, Concurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.x.PartialOrder(tt.y); got != tt.expected {
				t.Errorf("PartialOrder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTotalOrderIsDecisiveForConcurrentClocks(t *testing.T) {
	base := New[string](StrategyMonotonic)
	a1 := base.Increment("A")
	b1 := base.Increment("B")

	order := a1.TotalOrder(b1)
	if order != Ascending && order != Descending {
		t.Fatalf("TotalOrder must be decisive for concurrent clocks, got %v", order)
	}
	// antisymmetric
	reverse := b1.TotalOrder(a1)
	if order == Ascending && reverse != Descending {
		t.Errorf("TotalOrder not antisymmetric: %v vs %v", order, reverse)
	}
	if order == Descending && reverse != Ascending {
		t.Errorf("TotalOrder not antisymmetric: %v vs %v", order, reverse)
	}
}

func TestMergeIsCommutative(t *testing.T) {
	base := New[string](StrategyConstant)
	a := base.Increment("A")
	b := base.Increment("B")

	ab := a.Merge(b)
	ba := b.Merge(a)

	if !ab.Equal(ba) {
		t.Errorf("Merge not commutative: %v vs %v", ab, ba)
	}
	if ab.Get("A") != 1 || ab.Get("B") != 1 {
		t.Errorf("expected merged counters to be pointwise max, got %v", ab)
	}
}

func TestMergeTakesPointwiseMax(t *testing.T) {
	base := New[string](StrategyConstant)
	a2 := base.Increment("A").Increment("A")
	a1b1 := base.Increment("A").Increment("B")

	merged := a2.Merge(a1b1)
	if merged.Get("A") != 2 {
		t.Errorf("expected A=2, got %d", merged.Get("A"))
	}
	if merged.Get("B") != 1 {
		t.Errorf("expected B=1, got %d", merged.Get("B"))
	}
}

func TestProviderNextIsStrictlyIncreasing(t *testing.T) {
	p := NewProvider[string]("A", StrategyMonotonic)
	first := p.Next()
	second := p.Next()

	if first.TotalOrder(second) != Ascending {
		t.Errorf("expected successive Next() clocks to be ascending")
	}
	if p.Current().TotalOrder(second) != Equal {
		t.Errorf("expected Current() to equal the last minted clock")
	}
}

func TestProviderMergeAdvancesCurrent(t *testing.T) {
	p := NewProvider[string]("A", StrategyConstant)
	remote := New[string](StrategyConstant).Increment("B").Increment("B")

	p.Merge(remote)
	if p.Current().Get("B") != 2 {
		t.Errorf("expected merged counter B=2, got %d", p.Current().Get("B"))
	}

	next := p.Next()
	if next.Get("A") != 1 || next.Get("B") != 2 {
		t.Errorf("expected Next() after merge to carry forward remote counters, got %v", next)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := New[string](StrategyMonotonic).Increment("A").Increment("B")

	data, err := c.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var decoded Clock[string]
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !decoded.Equal(c) {
		t.Errorf("round-tripped clock not equal: %v vs %v", decoded, c)
	}
	if decoded.LastActor() != c.LastActor() {
		t.Errorf("lastActor not preserved: %v vs %v", decoded.LastActor(), c.LastActor())
	}
}
