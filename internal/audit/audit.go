/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package audit provides an audit trail of mutations applied to an
OperationLog: every Append/Insert/Merge/Undo/Redo/Reduce, along with
authentication and peer membership events, for security, compliance,
and debugging purposes.

Audit Event Types:
==================

  - Authentication: LOGIN, LOGOUT, AUTH_FAILED
  - Log mutations: APPEND, INSERT, MERGE, UNDO, REDO, REDUCE
  - Administrative: SNAPSHOT, RESTORE, CLEANUP
  - Peer events: PEER_JOIN, PEER_LEAVE, REPLICATION_FAILED

Configuration:
==============

Audit logging is configured through the Config fields:

  - Enabled: Enable/disable audit logging (default: true)
  - LogMutations: Log Append/Insert/Merge/Undo/Redo/Reduce (default: true)
  - LogAuth: Log authentication events (default: true)
  - LogPeer: Log peer join/leave/replication events (default: true)
  - RetentionDays: Days to retain audit logs (default: 90, 0 = forever)

Usage:
======

	auditMgr := audit.NewManager(store, audit.DefaultConfig())

	auditMgr.LogEvent(audit.Event{
	    EventType: audit.EventTypeMerge,
	    ActorID:   "actor-a",
	    LogID:     "default",
	    Operation: "merge peer actor-b",
	    Status:    audit.StatusSuccess,
	})

	logs, err := auditMgr.QueryLogs(audit.QueryOptions{
	    StartTime: time.Now().Add(-24 * time.Hour),
	    EndTime:   time.Now(),
	    ActorID:   "actor-a",
	    EventType: audit.EventTypeMerge,
	    Limit:     100,
	})

	err = auditMgr.ExportLogs("audit_export.json", audit.FormatJSON, queryOpts)

Thread Safety:
==============

The audit manager is thread-safe and can be used concurrently from
multiple goroutines. All operations are protected by appropriate
synchronization.

Performance:
============

Audit logging is designed to have minimal impact on the write path:
  - Asynchronous logging with a buffered channel
  - Batch writes for high-throughput scenarios
  - Configurable event filtering
  - Automatic log retention cleanup

Peer Support:
=============

Each replica maintains its own audit log. internal/audit/cluster.go
aggregates logs across the set of known replication peers for
comprehensive audit trail visibility without a central log.
*/
package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/firefly-oss/oplog/internal/logging"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Authentication events
	EventTypeLogin      EventType = "LOGIN"
	EventTypeLogout     EventType = "LOGOUT"
	EventTypeAuthFailed EventType = "AUTH_FAILED"

	// Log mutation events, one per pkg/oplog operation kind
	EventTypeAppend EventType = "APPEND"
	EventTypeInsert EventType = "INSERT"
	EventTypeMerge  EventType = "MERGE"
	EventTypeUndo   EventType = "UNDO"
	EventTypeRedo   EventType = "REDO"
	EventTypeReduce EventType = "REDUCE"

	// Administrative events
	EventTypeSnapshot EventType = "SNAPSHOT"
	EventTypeRestore  EventType = "RESTORE"
	EventTypeCleanup  EventType = "CLEANUP"

	// Peer events
	EventTypePeerJoin          EventType = "PEER_JOIN"
	EventTypePeerLeave         EventType = "PEER_LEAVE"
	EventTypeReplicationFailed EventType = "REPLICATION_FAILED"
)

// Status represents the outcome of an audited event.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Event represents a single audit log entry.
type Event struct {
	ID           int64             `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	EventType    EventType         `json:"event_type"`
	ActorID      string            `json:"actor_id"`
	LogID        string            `json:"log_id"`
	Operation    string            `json:"operation"`
	ClientAddr   string            `json:"client_addr"`
	SessionID    string            `json:"session_id"`
	Status       Status            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Config holds audit configuration.
type Config struct {
	Enabled          bool `json:"enabled"`
	LogMutations     bool `json:"log_mutations"`
	LogAuth          bool `json:"log_auth"`
	LogPeer          bool `json:"log_peer"`
	RetentionDays    int  `json:"retention_days"`
	BufferSize       int  `json:"buffer_size"`
	FlushIntervalSec int  `json:"flush_interval_sec"`
}

// DefaultConfig returns default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		LogMutations:     true,
		LogAuth:          true,
		LogPeer:          true,
		RetentionDays:    90,
		BufferSize:       1000,
		FlushIntervalSec: 5,
	}
}

// Store is the minimal key-value surface Manager needs to persist audit
// events. MemStore below is the only implementation in this repo — there
// is no SQL catalog for audit logs to live beside.
type Store interface {
	Put(key string, value []byte) error
	Delete(key string) error
	Scan(prefix string) (map[string][]byte, error)
}

// Manager manages audit logging.
type Manager struct {
	config  Config
	store   Store
	logger  *logging.Logger
	buffer  chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	enabled bool
}

// NewManager creates a new audit manager.
func NewManager(store Store, config Config) *Manager {
	m := &Manager{
		config:  config,
		store:   store,
		logger:  logging.NewLogger("audit"),
		buffer:  make(chan Event, config.BufferSize),
		stopCh:  make(chan struct{}),
		enabled: config.Enabled,
	}

	if config.Enabled {
		m.wg.Add(1)
		go m.worker()
	}

	return m
}

// worker processes audit events from the buffer.
func (m *Manager) worker() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Duration(m.config.FlushIntervalSec) * time.Second)
	defer ticker.Stop()

	batch := make([]Event, 0, 100)

	for {
		select {
		case event := <-m.buffer:
			batch = append(batch, event)
			if len(batch) >= 100 {
				m.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				m.flushBatch(batch)
				batch = batch[:0]
			}

		case <-m.stopCh:
			for len(m.buffer) > 0 {
				batch = append(batch, <-m.buffer)
			}
			if len(batch) > 0 {
				m.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch writes a batch of events to storage.
func (m *Manager) flushBatch(events []Event) {
	for _, event := range events {
		if err := m.writeEvent(event); err != nil {
			m.logger.Error("failed to write audit event", "error", err, "event_type", event.EventType)
		}
	}
}

// writeEvent writes a single event to storage.
func (m *Manager) writeEvent(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	key := fmt.Sprintf("_audit:%d:%d", event.Timestamp.UnixNano(), event.ID)
	return m.store.Put(key, data)
}

// LogEvent logs an audit event asynchronously.
func (m *Manager) LogEvent(event Event) {
	m.mu.RLock()
	enabled := m.enabled
	m.mu.RUnlock()

	if !enabled {
		return
	}

	if !m.shouldLog(event.EventType) {
		return
	}

	select {
	case m.buffer <- event:
	default:
		m.logger.Warn("audit buffer full, dropping event", "event_type", event.EventType)
	}
}

// shouldLog checks if an event type should be logged based on configuration.
func (m *Manager) shouldLog(eventType EventType) bool {
	switch eventType {
	case EventTypeLogin, EventTypeLogout, EventTypeAuthFailed:
		return m.config.LogAuth

	case EventTypeAppend, EventTypeInsert, EventTypeMerge,
		EventTypeUndo, EventTypeRedo, EventTypeReduce:
		return m.config.LogMutations

	case EventTypePeerJoin, EventTypePeerLeave, EventTypeReplicationFailed:
		return m.config.LogPeer

	default:
		return true
	}
}

// QueryOptions specifies options for querying audit logs.
type QueryOptions struct {
	StartTime time.Time
	EndTime   time.Time
	ActorID   string
	LogID     string
	EventType EventType
	Status    Status
	Limit     int
	Offset    int
}

// QueryLogs retrieves audit logs matching the given criteria.
func (m *Manager) QueryLogs(opts QueryOptions) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []Event

	results, err := m.store.Scan("_audit:")
	if err != nil {
		return nil, fmt.Errorf("scan audit logs: %w", err)
	}

	for key, value := range results {
		var event Event
		if err := json.Unmarshal(value, &event); err != nil {
			m.logger.Warn("failed to unmarshal audit event", "key", key, "error", err)
			continue
		}

		if !opts.StartTime.IsZero() && event.Timestamp.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && event.Timestamp.After(opts.EndTime) {
			continue
		}
		if opts.ActorID != "" && event.ActorID != opts.ActorID {
			continue
		}
		if opts.LogID != "" && event.LogID != opts.LogID {
			continue
		}
		if opts.EventType != "" && event.EventType != opts.EventType {
			continue
		}
		if opts.Status != "" && event.Status != opts.Status {
			continue
		}

		events = append(events, event)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(events) {
			return []Event{}, nil
		}
		events = events[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(events) {
		events = events[:opts.Limit]
	}

	return events, nil
}

// ExportFormat represents the export format for audit logs.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ExportLogs exports audit logs matching opts to a file in the given format.
func (m *Manager) ExportLogs(filename string, format ExportFormat, opts QueryOptions) error {
	events, err := m.QueryLogs(opts)
	if err != nil {
		return err
	}

	return m.ExportEvents(filename, format, events)
}

// ExportEvents exports a specific set of events to a file.
func (m *Manager) ExportEvents(filename string, format ExportFormat, events []Event) error {
	switch format {
	case FormatJSON:
		return m.exportJSON(filename, events)
	case FormatCSV:
		return m.exportCSV(filename, events)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// Stop stops the audit manager and flushes pending events. Calling Stop
// again after the first call is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.enabled = false
	select {
	case <-m.stopCh:
		m.mu.Unlock()
		return
	default:
	}
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

// Enable enables audit logging.
func (m *Manager) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

// Disable disables audit logging.
func (m *Manager) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// IsEnabled returns whether audit logging is enabled.
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// CleanupOldLogs removes audit logs older than the retention period.
func (m *Manager) CleanupOldLogs() error {
	if m.config.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -m.config.RetentionDays)
	m.logger.Info("cleaning up audit logs", "cutoff", cutoff, "retention_days", m.config.RetentionDays)

	count := 0
	results, err := m.store.Scan("_audit:")
	if err != nil {
		return fmt.Errorf("scan audit logs: %w", err)
	}

	for key, value := range results {
		var event Event
		if err := json.Unmarshal(value, &event); err != nil {
			continue
		}

		if event.Timestamp.Before(cutoff) {
			if err := m.store.Delete(key); err != nil {
				m.logger.Warn("failed to delete old audit log", "key", key, "error", err)
			} else {
				count++
			}
		}
	}

	m.logger.Info("audit log cleanup complete", "deleted_count", count)
	return nil
}
