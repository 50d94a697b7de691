/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"strings"
	"testing"

	"github.com/firefly-oss/oplog/internal/clock"
)

func TestSortedActors(t *testing.T) {
	actors := map[string]struct{}{"bob": {}, "alice": {}, "carol": {}}
	got := sortedActors(actors)
	want := "alice, bob, carol"
	if strings.Join(got, ", ") != want {
		t.Errorf("sortedActors = %v, want %q", got, want)
	}
}

func TestSortedActorsEmpty(t *testing.T) {
	got := sortedActors(map[string]struct{}{})
	if len(got) != 0 {
		t.Errorf("sortedActors(empty) = %v, want empty slice", got)
	}
}

func TestClockSummary(t *testing.T) {
	c := clock.New[string](clock.StrategyConstant).Increment("a").Increment("b")
	got := clockSummary(c)
	if !strings.Contains(got, "constant") {
		t.Errorf("clockSummary = %q, want it to mention the strategy", got)
	}
	if !strings.Contains(got, "2 actors") {
		t.Errorf("clockSummary = %q, want it to mention 2 actors", got)
	}
}
