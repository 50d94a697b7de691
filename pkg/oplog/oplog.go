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
Package oplog implements a CRDT operation log: a totally-ordered sequence
of operations authored by independent actors, plus a derived snapshot
obtained by folding those operations onto a baseline. Independent
replicas append locally and later merge; after any two replicas have
merged each other, they hold byte-identical operation sequences and
identical snapshots.

A Log is parameterized over two identifier types — A, the actor ID, and
L, the log ID — each constrained to ID (comparable and totally orderable,
which in Go restricts them to strings, integers, and floats). It is
generic over user-supplied Operation and Snapshot values, which are plain
interfaces rather than type parameters: any type implementing Operation
or Snapshot can be folded into a Log without the log itself knowing
anything about it, mirroring how io.Reader/io.Writer decouple Go's
standard library from concrete stream types.

A Log is a value-oriented owner of mutable state, not a concurrent
object: every mutating method requires exclusive access, and the log
provides no internal locking of its own. Callers that share a Log
across goroutines must synchronize externally, the same discipline
expected of this package's own storage and replication layers.
*/
package oplog

import "github.com/firefly-oss/oplog/internal/clock"

// ID is the bound required of an ActorID or LogID: comparable (usable as
// a map key) and totally orderable (usable in a deterministic sort).
type ID = clock.Actor
