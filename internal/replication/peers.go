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
Peer Registry
=============

This file implements gossip-based peer membership for a set of
OperationLog replicas. There is no leader to elect and no partition
table to agree on — every replica merges with every other replica it
knows about, so membership only needs to answer one question: which
peers are currently reachable?

Peer Discovery:
===============

Peers are discovered through:
1. Seed peers: addresses configured at startup (Config.SeedAddr)
2. Gossip: peers exchange their known-peer lists
3. internal/cluster/discovery: optional mDNS-based discovery

Health Monitoring:
==================

Each peer is monitored via periodic TCP pings; a peer that misses
DeadTimeout worth of probes is marked dead. It stays in the registry
with State PeerStateDead, but ActivePeers, the set a Replicator fans
publishes out to, no longer includes it.
*/
package replication

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/firefly-oss/oplog/internal/logging"
)

// PeerState represents the state of a known replication peer.
type PeerState int32

const (
	PeerStateUnknown PeerState = iota
	PeerStateJoining
	PeerStateActive
	PeerStateLeaving
	PeerStateDead
)

func (s PeerState) String() string {
	switch s {
	case PeerStateJoining:
		return "JOINING"
	case PeerStateActive:
		return "ACTIVE"
	case PeerStateLeaving:
		return "LEAVING"
	case PeerStateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// PeerInfo describes a known replication peer.
type PeerInfo struct {
	ActorID         string            `json:"actor_id"`
	Addr            string            `json:"addr"`
	GossipPort      int               `json:"gossip_port"`
	ReplicationPort int               `json:"replication_port"`
	State           PeerState         `json:"state"`
	JoinedAt        time.Time         `json:"joined_at"`
	LastSeen        time.Time         `json:"last_seen"`
	Metadata        map[string]string `json:"metadata"`
}

// RegistryConfig configures the peer registry.
type RegistryConfig struct {
	ActorID         string
	Addr            string
	GossipPort      int
	ReplicationPort int
	SeedAddrs       []string
	GossipInterval  time.Duration
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	SuspicionTimeout time.Duration
	DeadTimeout     time.Duration
	Metadata        map[string]string
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig(actorID, addr string) RegistryConfig {
	return RegistryConfig{
		ActorID:          actorID,
		Addr:             addr,
		GossipPort:       9996,
		ReplicationPort:  9897,
		SeedAddrs:        []string{},
		GossipInterval:   200 * time.Millisecond,
		ProbeInterval:    1 * time.Second,
		ProbeTimeout:     500 * time.Millisecond,
		SuspicionTimeout: 5 * time.Second,
		DeadTimeout:      30 * time.Second,
	}
}

// gossipMessage is the wire shape exchanged between peer registries.
type gossipMessage struct {
	Type      gossipMessageType `json:"type"`
	SenderID  string            `json:"sender_id"`
	Peers     []*PeerInfo       `json:"peers,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

type gossipMessageType int

const (
	gossipPing gossipMessageType = iota
	gossipAck
	gossipSync
	gossipJoin
	gossipLeave
)

// Registry tracks the set of replication peers this replica knows about
// and keeps that set current via gossip and periodic health probes.
type Registry struct {
	config RegistryConfig
	mu     sync.RWMutex

	localPeer *PeerInfo

	peers   map[string]*PeerInfo
	peersMu sync.RWMutex

	suspicions   map[string]time.Time
	suspicionsMu sync.RWMutex

	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup

	logger *logging.Logger

	onPeerJoin  func(peer *PeerInfo)
	onPeerLeave func(peer *PeerInfo)
	onPeerDead  func(peer *PeerInfo)

	seqNum uint64
}

// NewRegistry creates a new peer registry.
func NewRegistry(config RegistryConfig) *Registry {
	metadata := make(map[string]string, len(config.Metadata))
	for k, v := range config.Metadata {
		metadata[k] = v
	}

	local := &PeerInfo{
		ActorID:         config.ActorID,
		Addr:            config.Addr,
		GossipPort:      config.GossipPort,
		ReplicationPort: config.ReplicationPort,
		State:           PeerStateJoining,
		JoinedAt:        time.Now(),
		LastSeen:        time.Now(),
		Metadata:        metadata,
	}

	return &Registry{
		config:     config,
		localPeer:  local,
		peers:      make(map[string]*PeerInfo),
		suspicions: make(map[string]time.Time),
		stopCh:     make(chan struct{}),
		logger:     logging.NewLogger("replication-registry"),
	}
}

// Start begins gossiping and health-probing peers.
func (r *Registry) Start() error {
	addr := fmt.Sprintf(":%d", r.config.GossipPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("start peer registry: %w", err)
	}
	r.listener = ln

	r.peersMu.Lock()
	r.peers[r.config.ActorID] = r.localPeer
	r.peersMu.Unlock()

	r.wg.Add(3)
	go r.acceptConnections()
	go r.gossipLoop()
	go r.probeLoop()

	go r.joinViaSeeds()

	r.logger.Info("peer registry started", "addr", addr)
	return nil
}

// Stop gracefully shuts down the registry.
func (r *Registry) Stop() error {
	r.announceLeave()

	close(r.stopCh)
	if r.listener != nil {
		r.listener.Close()
	}
	r.wg.Wait()
	return nil
}

// joinViaSeeds attempts to join the peer set via configured seed addresses.
func (r *Registry) joinViaSeeds() {
	for _, seed := range r.config.SeedAddrs {
		if seed == r.config.Addr {
			continue
		}

		if err := r.sendJoin(seed); err != nil {
			r.logger.Warn("failed to join via seed", "seed", seed, "error", err)
			continue
		}

		r.localPeer.State = PeerStateActive
		return
	}

	r.localPeer.State = PeerStateActive
}

// sendJoin sends a join request to a seed address.
func (r *Registry) sendJoin(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	msg := gossipMessage{
		Type:      gossipJoin,
		SenderID:  r.config.ActorID,
		Peers:     []*PeerInfo{r.localPeer},
		Timestamp: time.Now().UnixNano(),
	}

	return r.sendGossipMessage(conn, &msg)
}

// announceLeave tells every known peer that this replica is leaving.
func (r *Registry) announceLeave() {
	r.localPeer.State = PeerStateLeaving

	r.peersMu.RLock()
	peers := make([]*PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		if p.ActorID != r.config.ActorID {
			peers = append(peers, p)
		}
	}
	r.peersMu.RUnlock()

	msg := gossipMessage{
		Type:      gossipLeave,
		SenderID:  r.config.ActorID,
		Peers:     []*PeerInfo{r.localPeer},
		Timestamp: time.Now().UnixNano(),
	}

	for _, p := range peers {
		go func(peer *PeerInfo) {
			addr := net.JoinHostPort(peer.Addr, fmt.Sprint(peer.GossipPort))
			conn, err := net.DialTimeout("tcp", addr, 1*time.Second)
			if err != nil {
				return
			}
			defer conn.Close()
			r.sendGossipMessage(conn, &msg)
		}(p)
	}
}

func (r *Registry) acceptConnections() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		if tcpLn, ok := r.listener.(*net.TCPListener); ok {
			tcpLn.SetDeadline(time.Now().Add(1 * time.Second))
		}
		conn, err := r.listener.Accept()
		if err != nil {
			continue
		}

		go r.handleConnection(conn)
	}
}

func (r *Registry) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	msg, err := r.readGossipMessage(conn)
	if err != nil {
		return
	}

	switch msg.Type {
	case gossipPing:
		r.handlePing(conn, msg)
	case gossipSync:
		r.handleSync(conn, msg)
	case gossipJoin:
		r.handleJoin(conn, msg)
	case gossipLeave:
		r.handleLeave(msg)
	}
}

func (r *Registry) handlePing(conn net.Conn, msg *gossipMessage) {
	r.updatePeer(msg.SenderID, func(p *PeerInfo) {
		p.LastSeen = time.Now()
	})

	ack := gossipMessage{
		Type:      gossipAck,
		SenderID:  r.config.ActorID,
		Timestamp: time.Now().UnixNano(),
	}
	r.sendGossipMessage(conn, &ack)
}

func (r *Registry) handleSync(conn net.Conn, msg *gossipMessage) {
	for _, peer := range msg.Peers {
		r.mergePeer(peer)
	}

	r.peersMu.RLock()
	peers := make([]*PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.peersMu.RUnlock()

	reply := gossipMessage{
		Type:      gossipSync,
		SenderID:  r.config.ActorID,
		Peers:     peers,
		Timestamp: time.Now().UnixNano(),
	}
	r.sendGossipMessage(conn, &reply)
}

func (r *Registry) handleJoin(conn net.Conn, msg *gossipMessage) {
	for _, peer := range msg.Peers {
		peer.State = PeerStateActive
		peer.JoinedAt = time.Now()
		peer.LastSeen = time.Now()
		r.addPeer(peer)
	}

	r.peersMu.RLock()
	peers := make([]*PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.peersMu.RUnlock()

	reply := gossipMessage{
		Type:      gossipSync,
		SenderID:  r.config.ActorID,
		Peers:     peers,
		Timestamp: time.Now().UnixNano(),
	}
	r.sendGossipMessage(conn, &reply)
}

func (r *Registry) handleLeave(msg *gossipMessage) {
	for _, peer := range msg.Peers {
		r.removePeer(peer.ActorID)
	}
}

func (r *Registry) gossipLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.GossipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.gossipRound()
		}
	}
}

func (r *Registry) gossipRound() {
	target := r.selectRandomPeer()
	if target == nil {
		return
	}

	addr := net.JoinHostPort(target.Addr, fmt.Sprint(target.GossipPort))
	conn, err := net.DialTimeout("tcp", addr, r.config.ProbeTimeout)
	if err != nil {
		r.markSuspect(target.ActorID)
		return
	}
	defer conn.Close()

	r.peersMu.RLock()
	peers := make([]*PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.peersMu.RUnlock()

	msg := gossipMessage{
		Type:      gossipSync,
		SenderID:  r.config.ActorID,
		Peers:     peers,
		Timestamp: time.Now().UnixNano(),
	}

	if err := r.sendGossipMessage(conn, &msg); err != nil {
		r.markSuspect(target.ActorID)
		return
	}

	reply, err := r.readGossipMessage(conn)
	if err != nil {
		r.markSuspect(target.ActorID)
		return
	}

	for _, peer := range reply.Peers {
		r.mergePeer(peer)
	}

	r.clearSuspicion(target.ActorID)
}

func (r *Registry) probeLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.probePeers()
		}
	}
}

func (r *Registry) probePeers() {
	r.peersMu.RLock()
	peers := make([]*PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		if p.ActorID != r.config.ActorID {
			peers = append(peers, p)
		}
	}
	r.peersMu.RUnlock()

	for _, p := range peers {
		go r.probePeer(p)
	}

	r.checkDeadPeers()
}

func (r *Registry) probePeer(peer *PeerInfo) {
	addr := net.JoinHostPort(peer.Addr, fmt.Sprint(peer.GossipPort))
	conn, err := net.DialTimeout("tcp", addr, r.config.ProbeTimeout)
	if err != nil {
		r.markSuspect(peer.ActorID)
		return
	}
	defer conn.Close()

	msg := gossipMessage{
		Type:      gossipPing,
		SenderID:  r.config.ActorID,
		Timestamp: time.Now().UnixNano(),
	}

	if err := r.sendGossipMessage(conn, &msg); err != nil {
		r.markSuspect(peer.ActorID)
		return
	}

	conn.SetReadDeadline(time.Now().Add(r.config.ProbeTimeout))
	if _, err := r.readGossipMessage(conn); err != nil {
		r.markSuspect(peer.ActorID)
		return
	}

	r.clearSuspicion(peer.ActorID)
	r.updatePeer(peer.ActorID, func(p *PeerInfo) {
		p.LastSeen = time.Now()
	})
}

func (r *Registry) checkDeadPeers() {
	r.suspicionsMu.RLock()
	suspects := make(map[string]time.Time, len(r.suspicions))
	for id, t := range r.suspicions {
		suspects[id] = t
	}
	r.suspicionsMu.RUnlock()

	for id, suspectTime := range suspects {
		if time.Since(suspectTime) > r.config.DeadTimeout {
			r.markDead(id)
		}
	}
}

func (r *Registry) selectRandomPeer() *PeerInfo {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()

	candidates := make([]*PeerInfo, 0)
	for _, p := range r.peers {
		if p.ActorID != r.config.ActorID && p.State == PeerStateActive {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	idx := atomic.AddUint64(&r.seqNum, 1) % uint64(len(candidates))
	return candidates[idx]
}

func (r *Registry) addPeer(peer *PeerInfo) {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()

	if _, exists := r.peers[peer.ActorID]; !exists {
		r.peers[peer.ActorID] = peer
		if r.onPeerJoin != nil {
			go r.onPeerJoin(peer)
		}
	}
}

func (r *Registry) removePeer(actorID string) {
	r.peersMu.Lock()
	peer, exists := r.peers[actorID]
	if exists {
		delete(r.peers, actorID)
	}
	r.peersMu.Unlock()

	if exists && r.onPeerLeave != nil {
		go r.onPeerLeave(peer)
	}
}

func (r *Registry) updatePeer(actorID string, fn func(*PeerInfo)) {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()

	if peer, exists := r.peers[actorID]; exists {
		fn(peer)
	}
}

func (r *Registry) mergePeer(peer *PeerInfo) {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()

	existing, exists := r.peers[peer.ActorID]
	if !exists {
		r.peers[peer.ActorID] = peer
		if r.onPeerJoin != nil {
			go r.onPeerJoin(peer)
		}
		return
	}

	if peer.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = peer.LastSeen
		existing.State = peer.State
		existing.Metadata = peer.Metadata
	}
}

func (r *Registry) markSuspect(actorID string) {
	r.suspicionsMu.Lock()
	defer r.suspicionsMu.Unlock()

	if _, exists := r.suspicions[actorID]; !exists {
		r.suspicions[actorID] = time.Now()
	}
}

func (r *Registry) clearSuspicion(actorID string) {
	r.suspicionsMu.Lock()
	defer r.suspicionsMu.Unlock()
	delete(r.suspicions, actorID)
}

func (r *Registry) markDead(actorID string) {
	r.peersMu.Lock()
	peer, exists := r.peers[actorID]
	if exists {
		peer.State = PeerStateDead
	}
	r.peersMu.Unlock()

	r.suspicionsMu.Lock()
	delete(r.suspicions, actorID)
	r.suspicionsMu.Unlock()

	if exists && r.onPeerDead != nil {
		go r.onPeerDead(peer)
	}
}

func (r *Registry) sendGossipMessage(conn net.Conn, msg *gossipMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}

func (r *Registry) readGossipMessage(conn net.Conn) (*gossipMessage, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, err
	}
	msgLen := binary.BigEndian.Uint32(lenBuf)

	data := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, err
	}

	var msg gossipMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Peers returns all known peers.
func (r *Registry) Peers() []*PeerInfo {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()

	peers := make([]*PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Peer returns a specific peer, or nil if unknown.
func (r *Registry) Peer(actorID string) *PeerInfo {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()
	return r.peers[actorID]
}

// ActivePeers returns every peer currently believed reachable.
func (r *Registry) ActivePeers() []*PeerInfo {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()

	peers := make([]*PeerInfo, 0)
	for _, p := range r.peers {
		if p.State == PeerStateActive {
			peers = append(peers, p)
		}
	}
	return peers
}

// OnPeerJoin sets the callback invoked when a new peer is discovered.
func (r *Registry) OnPeerJoin(fn func(peer *PeerInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPeerJoin = fn
}

// OnPeerLeave sets the callback invoked when a peer announces departure.
func (r *Registry) OnPeerLeave(fn func(peer *PeerInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPeerLeave = fn
}

// OnPeerDead sets the callback invoked when a peer is marked dead.
func (r *Registry) OnPeerDead(fn func(peer *PeerInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPeerDead = fn
}
