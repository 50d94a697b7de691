/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package audit

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/firefly-oss/oplog/internal/logging"
)

// PeerAuditManager aggregates audit logs across the set of known
// replication peers, so an operator can query audit history cluster-wide
// from any single replica without a central audit log.
type PeerAuditManager struct {
	localManager *Manager
	logger       *logging.Logger
	mu           sync.RWMutex

	actorID string
	peers   map[string]string // actorID -> audit query address
}

// NewPeerAuditManager creates a new peer audit manager.
func NewPeerAuditManager(localManager *Manager, actorID string) *PeerAuditManager {
	return &PeerAuditManager{
		localManager: localManager,
		logger:       logging.NewLogger("audit-peer"),
		actorID:      actorID,
		peers:        make(map[string]string),
	}
}

// AddPeer adds a replication peer for audit log aggregation.
func (pam *PeerAuditManager) AddPeer(actorID, address string) {
	pam.mu.Lock()
	defer pam.mu.Unlock()
	pam.peers[actorID] = address
	pam.logger.Info("added audit peer", "actor_id", actorID, "address", address)
}

// RemovePeer removes a replication peer.
func (pam *PeerAuditManager) RemovePeer(actorID string) {
	pam.mu.Lock()
	defer pam.mu.Unlock()
	delete(pam.peers, actorID)
	pam.logger.Info("removed audit peer", "actor_id", actorID)
}

// LogEvent logs an audit event locally, tagging it with this actor's ID.
func (pam *PeerAuditManager) LogEvent(event Event) {
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	event.Metadata["actor_id"] = pam.actorID

	pam.localManager.LogEvent(event)
}

// QueryLogsAcrossPeers queries audit logs from this replica and every
// known peer, in parallel.
func (pam *PeerAuditManager) QueryLogsAcrossPeers(opts QueryOptions) ([]Event, error) {
	localLogs, err := pam.localManager.QueryLogs(opts)
	if err != nil {
		return nil, fmt.Errorf("query local logs: %w", err)
	}

	pam.mu.RLock()
	peers := make(map[string]string, len(pam.peers))
	for actorID, addr := range pam.peers {
		peers[actorID] = addr
	}
	pam.mu.RUnlock()

	allLogs := make([]Event, 0, len(localLogs))
	allLogs = append(allLogs, localLogs...)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for actorID, addr := range peers {
		wg.Add(1)
		go func(aid, address string) {
			defer wg.Done()

			remoteLogs, err := pam.queryRemoteLogs(address, opts)
			if err != nil {
				pam.logger.Warn("failed to query remote audit logs", "actor_id", aid, "error", err)
				return
			}

			mu.Lock()
			allLogs = append(allLogs, remoteLogs...)
			mu.Unlock()
		}(actorID, addr)
	}

	wg.Wait()

	return allLogs, nil
}

// queryRemoteLogs queries audit logs from a remote peer.
func (pam *PeerAuditManager) queryRemoteLogs(address string, opts QueryOptions) ([]Event, error) {
	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to peer: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(10 * time.Second))

	request := map[string]interface{}{
		"type":    "audit_query",
		"options": opts,
	}

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var response struct {
		Success bool    `json:"success"`
		Events  []Event `json:"events"`
		Error   string  `json:"error"`
	}

	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !response.Success {
		return nil, fmt.Errorf("remote query failed: %s", response.Error)
	}

	return response.Events, nil
}

// ExportLogsAcrossPeers exports audit logs aggregated across all peers.
func (pam *PeerAuditManager) ExportLogsAcrossPeers(filename string, format ExportFormat, opts QueryOptions) error {
	allLogs, err := pam.QueryLogsAcrossPeers(opts)
	if err != nil {
		return err
	}

	return pam.localManager.ExportEvents(filename, format, allLogs)
}

// Statistics summarizes audit event counts for a replica.
type Statistics struct {
	ActorID    string
	PeerCount  int
	TotalCount int
	ByType     map[EventType]int
}

// GetStatistics summarizes this replica's own local audit log. Stats are
// never aggregated across peers automatically — callers that want
// cluster-wide totals call QueryLogsAcrossPeers and summarize the result
// themselves, since every peer query already pays the network cost.
func (pam *PeerAuditManager) GetStatistics() (Statistics, error) {
	events, err := pam.localManager.QueryLogs(QueryOptions{})
	if err != nil {
		return Statistics{}, fmt.Errorf("query local logs: %w", err)
	}

	byType := make(map[EventType]int)
	for _, e := range events {
		byType[e.EventType]++
	}

	pam.mu.RLock()
	peerCount := len(pam.peers)
	pam.mu.RUnlock()

	return Statistics{
		ActorID:    pam.actorID,
		PeerCount:  peerCount,
		TotalCount: len(events),
		ByType:     byType,
	}, nil
}

// IsPeerMode returns whether this manager has any known peers.
func (pam *PeerAuditManager) IsPeerMode() bool {
	pam.mu.RLock()
	defer pam.mu.RUnlock()
	return len(pam.peers) > 0
}

// GetLocalManager returns the local audit manager for standalone operations.
func (pam *PeerAuditManager) GetLocalManager() *Manager {
	return pam.localManager
}

// Stop stops the peer audit manager.
func (pam *PeerAuditManager) Stop() {
	pam.localManager.Stop()
}
