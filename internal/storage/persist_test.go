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

package storage

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/firefly-oss/oplog/internal/compression"
)

func waitForWrites(w *SnapshotWriter, n uint64) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if w.Stats().Writes >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestSnapshotWriterRoundTripUncompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.bin")
	w, err := NewSnapshotWriter(path, compression.Config{Algorithm: compression.AlgorithmNone})
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}
	defer w.Close()

	payload := []byte("hello oplog")
	w.Submit(payload)
	if !waitForWrites(w, 1) {
		t.Fatal("write never completed")
	}

	got, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Load() = %q, want %q", got, payload)
	}
}

func TestSnapshotWriterRoundTripCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.bin")
	cfg := compression.DefaultConfig()
	cfg.Algorithm = compression.AlgorithmSnappy
	w, err := NewSnapshotWriter(path, cfg)
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}
	defer w.Close()

	payload := bytes.Repeat([]byte("oplog-snapshot-payload "), 64)
	w.Submit(payload)
	if !waitForWrites(w, 1) {
		t.Fatal("write never completed")
	}

	got, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Load() round trip mismatch, got %d bytes want %d", len(got), len(payload))
	}
}

func TestSnapshotWriterLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.bin")
	w, err := NewSnapshotWriter(path, compression.Config{Algorithm: compression.AlgorithmNone})
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}
	defer w.Close()

	data, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data != nil {
		t.Errorf("Load() on missing file = %v, want nil", data)
	}
}

func TestSnapshotWriterCoalescesRapidSubmits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.bin")
	w, err := NewSnapshotWriter(path, compression.Config{Algorithm: compression.AlgorithmNone})
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}
	defer w.Close()

	for i := 0; i < 10; i++ {
		w.Submit([]byte{byte(i)})
	}
	if !waitForWrites(w, 1) {
		t.Fatal("write never completed")
	}

	got, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0] != 9 {
		t.Errorf("Load() = %v, want the last submitted value [9]", got)
	}
}
