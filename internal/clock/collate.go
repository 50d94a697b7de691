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

/*
Display Collation
==================

TotalOrder is the only order pkg/oplog relies on for correctness, and it
compares actor/log IDs with Go's built-in cmp.Ordered — byte-wise for
strings. That comparison must stay locale-independent: two replicas
running under different locales must linearize operations identically,
so nothing in this file is used by TotalOrder.

DisplayCollator exists only for presentation: sorting the actor/peer list
in `oplog-cli status` output in the operator's own locale. It must never
be substituted into Clock.TotalOrder or PartialOrder.
*/
package clock

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DisplayCollator orders actor/log ID strings for locale-aware display.
type DisplayCollator struct {
	collator *collate.Collator
}

// NewDisplayCollator creates a collator for the given locale (BCP 47 tag,
// e.g. "en-US", "de-DE"). An unrecognized or empty locale falls back to
// English.
func NewDisplayCollator(locale string) *DisplayCollator {
	tag := language.Make(locale)
	if tag == language.Und {
		tag = language.English
	}
	return &DisplayCollator{collator: collate.New(tag, collate.Loose)}
}

// Compare returns -1, 0, or 1 as a sorts before, equal to, or after b
// under this collator's locale.
func (c *DisplayCollator) Compare(a, b string) int {
	return c.collator.CompareString(a, b)
}

// SortStrings sorts ids in place for display, using this collator.
func (c *DisplayCollator) SortStrings(ids []string) {
	c.collator.SortStrings(ids)
}
