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
Snapshot Persistence
=====================

This file implements asynchronous, non-blocking persistence of a Log's
serialized snapshot (pkg/oplog's Serialize/FromBytes wire format) to the
path named by Config.StorePath. A background worker drains a single-slot
request queue so a caller (cmd/oplog-node on its persist timer and at
shutdown, cmd/oplog-cli after each command) never blocks on disk I/O; requests that arrive while a write is in flight
coalesce onto the next write rather than queuing up.

This is a much smaller job than a page-based storage engine: a Log
snapshot is one opaque blob, not a set of pages with a buffer pool and a
WAL, so there is no eviction policy or dirty-page tracking here — just
"write the latest blob, eventually, without blocking the caller".

When a non-nil compression.Compressor is supplied, the on-disk blob is
compressed with a one-byte Algorithm prefix ahead of it, so Load can
decompress with whatever algorithm the blob was written with even if
the writer's own configured algorithm changes across restarts.
*/
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/firefly-oss/oplog/internal/compression"
)

// SnapshotWriter asynchronously persists Log snapshot bytes to disk.
type SnapshotWriter struct {
	path       string
	compressor *compression.Compressor
	algorithm  compression.Algorithm

	mu      sync.Mutex
	pending []byte // latest unwritten snapshot, coalesced

	requestCh chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup

	writes atomic.Uint64
	errors atomic.Uint64
	lastErr atomic.Value // error
}

// NewSnapshotWriter creates a writer that persists to path, creating its
// parent directory if necessary. compCfg.Algorithm of
// compression.AlgorithmNone disables compression entirely and writes
// raw Serialize() bytes, matching the pre-compression on-disk format.
func NewSnapshotWriter(path string, compCfg compression.Config) (*SnapshotWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	w := &SnapshotWriter{
		path:      path,
		algorithm: compCfg.Algorithm,
		requestCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	if compCfg.Algorithm != compression.AlgorithmNone {
		w.compressor = compression.NewCompressor(compCfg)
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Submit queues data as the latest snapshot to persist. It never blocks:
// a write already in flight simply picks up this data on its next pass.
func (w *SnapshotWriter) Submit(data []byte) {
	w.mu.Lock()
	w.pending = data
	w.mu.Unlock()

	select {
	case w.requestCh <- struct{}{}:
	default:
	}
}

func (w *SnapshotWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.requestCh:
			w.flush()
		case <-w.stopCh:
			w.flush() // persist whatever's pending before shutting down
			return
		}
	}
}

func (w *SnapshotWriter) flush() {
	w.mu.Lock()
	data := w.pending
	w.pending = nil
	w.mu.Unlock()

	if data == nil {
		return
	}

	if w.compressor != nil {
		compressed, err := w.compressor.Compress(data)
		if err != nil {
			w.errors.Add(1)
			w.lastErr.Store(err)
			return
		}
		algo := w.algorithm
		if len(compressed) == len(data) && (len(data) == 0 || &compressed[0] == &data[0]) {
			// Compress hands back input below its MinSize unchanged.
			algo = compression.AlgorithmNone
		}
		data = append([]byte{byte(algo)}, compressed...)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		w.errors.Add(1)
		w.lastErr.Store(err)
		return
	}
	if err := os.Rename(tmp, w.path); err != nil {
		w.errors.Add(1)
		w.lastErr.Store(err)
		return
	}
	w.writes.Add(1)
}

// Load reads the persisted snapshot bytes, or (nil, nil) if none exist
// yet, decompressing with whichever algorithm the stored blob's prefix
// byte names.
func (w *SnapshotWriter) Load() ([]byte, error) {
	data, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if w.compressor == nil || len(data) == 0 {
		return data, nil
	}

	algo := compression.Algorithm(data[0])
	if algo == compression.AlgorithmNone {
		return data[1:], nil
	}
	return w.compressor.Decompress(data[1:], algo)
}

// Close stops the background worker after persisting any pending snapshot.
func (w *SnapshotWriter) Close() error {
	close(w.stopCh)
	w.wg.Wait()
	if err, ok := w.lastErr.Load().(error); ok {
		return err
	}
	return nil
}

// Stats reports persistence counters for status/metrics commands.
type Stats struct {
	Writes uint64
	Errors uint64
}

// Stats returns current write/error counters.
func (w *SnapshotWriter) Stats() Stats {
	return Stats{Writes: w.writes.Load(), Errors: w.errors.Load()}
}
