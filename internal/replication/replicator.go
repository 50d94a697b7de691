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
Package replication pushes locally-appended operations out to peer
replicas and pulls in what they have that the local log doesn't.

Replication Flow:
==================

1. A caller appends an operation to the local Log under Replicator's lock
   (Replicator.Append).
2. The Replicator fans a Publish message carrying that operation out to
   every active peer in the Registry, via a pooled connection apiece.
3. A Publish's sender waits for PublishAck from enough peers to satisfy
   the configured ConsistencyLevel before returning.
4. Independently, an anti-entropy loop periodically sends a MergeRequest
   to a random active peer and Merges the MergeResponse's log back in,
   which catches up anything a dropped Publish never delivered.

Consistency Levels:
====================

  - Eventual: Publish returns once the local log is updated; delivery to
    peers happens in the background.
  - Quorum: Publish waits for acks from a majority of active peers.
  - Strong: Publish waits for acks from every active peer.
*/
package replication

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-oss/oplog/internal/logging"
	"github.com/firefly-oss/oplog/internal/protocol"
	"github.com/firefly-oss/oplog/internal/sdk"
	"github.com/firefly-oss/oplog/pkg/oplog"
)

// ConsistencyLevel defines the replication consistency guarantee a
// Publish call waits for before returning.
type ConsistencyLevel int

const (
	// ConsistencyEventual returns as soon as the local log is updated.
	ConsistencyEventual ConsistencyLevel = iota
	// ConsistencyQuorum waits for acks from a majority of active peers.
	ConsistencyQuorum
	// ConsistencyStrong waits for acks from every active peer.
	ConsistencyStrong
)

func (c ConsistencyLevel) String() string {
	switch c {
	case ConsistencyQuorum:
		return "QUORUM"
	case ConsistencyStrong:
		return "STRONG"
	default:
		return "EVENTUAL"
	}
}

// ReplicatorConfig configures a Replicator.
type ReplicatorConfig struct {
	ActorID         string
	LogID           string
	ReplicationAddr string // listen address for inbound peer connections, e.g. ":8897"
	Consistency     ConsistencyLevel
	PublishTimeout  time.Duration
	AntiEntropyTick time.Duration
}

// DefaultReplicatorConfig returns sensible defaults.
func DefaultReplicatorConfig(actorID, logID string) ReplicatorConfig {
	return ReplicatorConfig{
		ActorID:         actorID,
		LogID:           logID,
		ReplicationAddr: ":8897",
		Consistency:     ConsistencyQuorum,
		PublishTimeout:  5 * time.Second,
		AntiEntropyTick: 2 * time.Second,
	}
}

// Replicator owns the only Log a replica mutates and keeps it in sync
// with the rest of the Registry's active peers. Every method that
// touches the Log takes Replicator's own lock, so callers never need a
// separate mutex of their own.
type Replicator struct {
	config ReplicatorConfig

	mu  sync.Mutex
	log *oplog.Log[string, string]

	opDecoder   oplog.OperationDecoder
	snapDecoder oplog.SnapshotDecoder

	registry *Registry
	pool     *sdk.ConnectionPool

	stopCh chan struct{}
	wg     sync.WaitGroup

	logger *logging.Logger

	counters replicatorCounters
}

// replicatorCounters are the atomic backing fields for Stats. Kept
// separate from the exported Stats struct so Stats() can return a plain
// value snapshot without copying atomic.Uint64's no-copy guard.
type replicatorCounters struct {
	published       atomic.Uint64
	received        atomic.Uint64
	mergeRequests   atomic.Uint64
	mergeFailures   atomic.Uint64
	publishFailures atomic.Uint64
}

// Stats is a point-in-time snapshot of replication activity counters.
type Stats struct {
	Published       uint64
	Received        uint64
	MergeRequests   uint64
	MergeFailures   uint64
	PublishFailures uint64
}

// ReadWriteCloser is the minimal surface a Replicator needs from an
// inbound or outbound peer connection.
type ReadWriteCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// NewReplicator creates a Replicator wrapping log. opDecoder/snapDecoder
// must match the Operation/Snapshot types log was constructed with, so
// MergeResponse payloads received from peers can be decoded back into
// LoggedOperations.
func NewReplicator(config ReplicatorConfig, log *oplog.Log[string, string], opDecoder oplog.OperationDecoder, snapDecoder oplog.SnapshotDecoder, registry *Registry) *Replicator {
	return &Replicator{
		config:      config,
		log:         log,
		opDecoder:   opDecoder,
		snapDecoder: snapDecoder,
		registry:    registry,
		pool:        sdk.NewConnectionPool(sdk.DefaultPoolConfig()),
		stopCh:      make(chan struct{}),
		logger:      logging.NewLogger("replicator"),
	}
}

// Append applies op to the local log and fans it out to peers per the
// configured ConsistencyLevel.
func (r *Replicator) Append(ctx context.Context, op oplog.Operation) error {
	r.mu.Lock()
	r.log.Append(op)
	lo := r.log.Operations()[len(r.log.Operations())-1]
	r.mu.Unlock()

	return r.publish(ctx, []oplog.LoggedOperation[string]{lo})
}

// publish serializes ops and fans them out to every active peer,
// returning once enough peers have acked to satisfy Consistency.
func (r *Replicator) publish(ctx context.Context, ops []oplog.LoggedOperation[string]) error {
	if r.registry == nil {
		return nil
	}
	peers := r.registry.ActivePeers()
	if len(peers) == 0 {
		return nil
	}

	payload, err := oplog.SerializeOperations(ops)
	if err != nil {
		return fmt.Errorf("replication: encode batch: %w", err)
	}

	msg := &protocol.PublishMessage{ActorID: r.config.ActorID, LogID: r.config.LogID, Operations: payload}
	encoded, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("replication: encode publish message: %w", err)
	}

	required := r.ackThreshold(len(peers))
	if required == 0 {
		for _, p := range peers {
			go r.sendPublish(context.Background(), p, encoded)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
	defer cancel()

	var acked atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			if err := r.sendPublish(gctx, p, encoded); err != nil {
				r.counters.publishFailures.Add(1)
				return nil // one peer's failure never fails the whole Publish
			}
			acked.Add(1)
			return nil
		})
	}
	g.Wait()

	r.counters.published.Add(1)
	if int(acked.Load()) < required {
		return fmt.Errorf("replication: only %d/%d required peers acked", acked.Load(), required)
	}
	return nil
}

func (r *Replicator) ackThreshold(peerCount int) int {
	switch r.config.Consistency {
	case ConsistencyStrong:
		return peerCount
	case ConsistencyQuorum:
		return peerCount/2 + 1
	default:
		return 0
	}
}

func (r *Replicator) sendPublish(ctx context.Context, peer *PeerInfo, encoded []byte) error {
	addr := fmt.Sprintf("%s:%d", peer.Addr, peer.ReplicationPort)
	conn, err := r.pool.Acquire(ctx, addr)
	if err != nil {
		return err
	}

	if err := protocol.WriteMessage(conn.Raw, protocol.MsgPublish, encoded); err != nil {
		r.pool.Discard(conn)
		return err
	}

	reply, err := protocol.ReadMessage(conn.Raw)
	if err != nil {
		r.pool.Discard(conn)
		return err
	}
	r.pool.Release(conn)

	if reply.Header.Type != protocol.MsgPublishAck {
		return fmt.Errorf("replication: unexpected reply type %v from %s", reply.Header.Type, addr)
	}
	return nil
}

// requestMerge sends a MergeRequest to a random active peer and merges
// the resulting log back into the local one. Called periodically by the
// anti-entropy loop, and safe to call directly for tests.
func (r *Replicator) requestMerge(ctx context.Context) error {
	if r.registry == nil {
		return nil
	}
	peer := r.registry.selectRandomPeer()
	if peer == nil {
		return nil
	}

	r.counters.mergeRequests.Add(1)

	msg := &protocol.MergeRequestMessage{ActorID: r.config.ActorID, LogID: r.config.LogID}
	encoded, err := msg.Encode()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", peer.Addr, peer.ReplicationPort)
	conn, err := r.pool.Acquire(ctx, addr)
	if err != nil {
		r.counters.mergeFailures.Add(1)
		return err
	}

	if err := protocol.WriteMessage(conn.Raw, protocol.MsgMergeRequest, encoded); err != nil {
		r.pool.Discard(conn)
		r.counters.mergeFailures.Add(1)
		return err
	}

	reply, err := protocol.ReadMessage(conn.Raw)
	if err != nil {
		r.pool.Discard(conn)
		r.counters.mergeFailures.Add(1)
		return err
	}
	r.pool.Release(conn)

	if reply.Header.Type != protocol.MsgMergeResponse {
		r.counters.mergeFailures.Add(1)
		return fmt.Errorf("replication: unexpected reply type %v from %s", reply.Header.Type, addr)
	}

	remote, err := oplog.FromBytes[string, string](peer.ActorID, reply.Payload, r.opDecoder, r.snapDecoder)
	if err != nil {
		r.counters.mergeFailures.Add(1)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.log.Merge(remote); err != nil {
		r.counters.mergeFailures.Add(1)
		return err
	}
	return nil
}

// handlePublish decodes and inserts an inbound Publish's operations into
// the local log.
func (r *Replicator) handlePublish(payload []byte) ([]byte, error) {
	msg, err := protocol.DecodePublishMessage(payload)
	if err != nil {
		return nil, err
	}

	ops, err := oplog.DecodeOperations[string](msg.Operations, r.opDecoder)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	err = r.log.Insert(ops)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.counters.received.Add(1)
	ack := &protocol.ErrorMessage{Code: 0, Message: "ok"}
	return ack.Encode()
}

// handleMergeRequest serializes the local log for the requesting peer.
func (r *Replicator) handleMergeRequest() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Serialize()
}

// Start launches the anti-entropy loop. Accepting inbound connections is
// the caller's responsibility (cmd/oplog-node wires Replicator.HandleConn
// into its own listener loop alongside the other protocol message types
// a replica serves).
func (r *Replicator) Start() {
	r.wg.Add(1)
	go r.antiEntropyLoop()
}

func (r *Replicator) antiEntropyLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.AntiEntropyTick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.PublishTimeout)
			if err := r.requestMerge(ctx); err != nil {
				r.logger.Debug("anti-entropy merge failed", "error", err)
			}
			cancel()
		}
	}
}

// HandleConn serves one inbound replication connection until it closes
// or a protocol error occurs. It dispatches Publish and MergeRequest
// messages and writes the matching response.
func (r *Replicator) HandleConn(conn ReadWriteCloser) {
	defer conn.Close()

	for {
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			return
		}

		switch msg.Header.Type {
		case protocol.MsgPublish:
			ackPayload, err := r.handlePublish(msg.Payload)
			if err != nil {
				r.writeError(conn, err)
				continue
			}
			protocol.WriteMessage(conn, protocol.MsgPublishAck, ackPayload)
		case protocol.MsgMergeRequest:
			data, err := r.handleMergeRequest()
			if err != nil {
				r.writeError(conn, err)
				continue
			}
			protocol.WriteMessage(conn, protocol.MsgMergeResponse, data)
		default:
			r.writeError(conn, fmt.Errorf("replication: unsupported message type %v", msg.Header.Type))
		}
	}
}

func (r *Replicator) writeError(conn ReadWriteCloser, cause error) {
	errMsg := &protocol.ErrorMessage{Code: 1, Message: cause.Error()}
	encoded, err := errMsg.Encode()
	if err != nil {
		return
	}
	protocol.WriteMessage(conn, protocol.MsgError, encoded)
}

// Stats returns a snapshot of replication counters.
func (r *Replicator) Stats() Stats {
	return Stats{
		Published:       r.counters.published.Load(),
		Received:        r.counters.received.Load(),
		MergeRequests:   r.counters.mergeRequests.Load(),
		MergeFailures:   r.counters.mergeFailures.Load(),
		PublishFailures: r.counters.publishFailures.Load(),
	}
}

// Stop halts the anti-entropy loop and closes the connection pool.
func (r *Replicator) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.pool.Close()
}
