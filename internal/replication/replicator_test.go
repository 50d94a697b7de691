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

package replication

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/firefly-oss/oplog/internal/clock"
	"github.com/firefly-oss/oplog/internal/protocol"
	"github.com/firefly-oss/oplog/pkg/oplog"
	"github.com/firefly-oss/oplog/pkg/stringsnap"
)

func newTestLog(actorID string) *oplog.Log[string, string] {
	return oplog.New[string, string]("default", actorID, clock.StrategyMonotonic, stringsnap.Empty())
}

func TestHandlePublishInsertsOperations(t *testing.T) {
	log := newTestLog("actor-a")
	r := NewReplicator(DefaultReplicatorConfig("actor-a", "default"), log, stringsnap.DecodeOp, stringsnap.DecodeSnapshot, nil)

	remote := newTestLog("actor-b")
	remote.Append(stringsnap.Append('h'))
	remote.Append(stringsnap.Append('i'))

	payload, err := oplog.SerializeOperations(remote.Operations())
	if err != nil {
		t.Fatalf("SerializeOperations: %v", err)
	}

	msg := &protocol.PublishMessage{ActorID: "actor-b", LogID: "default", Operations: payload}
	encoded, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := r.handlePublish(encoded); err != nil {
		t.Fatalf("handlePublish: %v", err)
	}

	if got := log.Snapshot().(stringsnap.Snapshot).String(); got != "hi" {
		t.Errorf("snapshot = %q, want %q", got, "hi")
	}
}

func TestHandleMergeRequestSerializesLocalLog(t *testing.T) {
	log := newTestLog("actor-a")
	log.Append(stringsnap.Append('x'))

	r := NewReplicator(DefaultReplicatorConfig("actor-a", "default"), log, stringsnap.DecodeOp, stringsnap.DecodeSnapshot, nil)

	data, err := r.handleMergeRequest()
	if err != nil {
		t.Fatalf("handleMergeRequest: %v", err)
	}

	decoded, err := oplog.FromBytes[string, string]("actor-b", data, stringsnap.DecodeOp, stringsnap.DecodeSnapshot)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got := decoded.Snapshot().(stringsnap.Snapshot).String(); got != "x" {
		t.Errorf("decoded snapshot = %q, want %q", got, "x")
	}
}

func TestHandleConnPublishRoundTrip(t *testing.T) {
	log := newTestLog("actor-a")
	r := NewReplicator(DefaultReplicatorConfig("actor-a", "default"), log, stringsnap.DecodeOp, stringsnap.DecodeSnapshot, nil)

	clientConn, serverConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		r.HandleConn(serverConn)
		close(done)
	}()

	remote := newTestLog("actor-b")
	remote.Append(stringsnap.Append('y'))
	payload, _ := oplog.SerializeOperations(remote.Operations())
	msg := &protocol.PublishMessage{ActorID: "actor-b", LogID: "default", Operations: payload}
	encoded, _ := msg.Encode()

	if err := protocol.WriteMessage(clientConn, protocol.MsgPublish, encoded); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	reply, err := protocol.ReadMessage(clientConn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if reply.Header.Type != protocol.MsgPublishAck {
		t.Fatalf("expected MsgPublishAck, got %v", reply.Header.Type)
	}

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleConn did not return after connection closed")
	}

	if got := log.Snapshot().(stringsnap.Snapshot).String(); got != "y" {
		t.Errorf("snapshot = %q, want %q", got, "y")
	}
}

func TestAckThreshold(t *testing.T) {
	cases := []struct {
		level     ConsistencyLevel
		peerCount int
		want      int
	}{
		{ConsistencyEventual, 5, 0},
		{ConsistencyQuorum, 4, 3},
		{ConsistencyQuorum, 3, 2},
		{ConsistencyStrong, 3, 3},
	}
	for _, tc := range cases {
		cfg := DefaultReplicatorConfig("actor-a", "default")
		cfg.Consistency = tc.level
		r := &Replicator{config: cfg}
		if got := r.ackThreshold(tc.peerCount); got != tc.want {
			t.Errorf("ackThreshold(%v, %d) = %d, want %d", tc.level, tc.peerCount, got, tc.want)
		}
	}
}

func TestPublishNoPeersIsNoop(t *testing.T) {
	log := newTestLog("actor-a")
	r := NewReplicator(DefaultReplicatorConfig("actor-a", "default"), log, stringsnap.DecodeOp, stringsnap.DecodeSnapshot, nil)

	if err := r.Append(context.Background(), stringsnap.Append('z')); err != nil {
		t.Fatalf("Append with no registry: %v", err)
	}
}
