/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package audit

import (
	"os"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FlushIntervalSec = 1
	return NewManager(NewMemStore(), cfg)
}

func TestLogEventAndQuery(t *testing.T) {
	m := newTestManager(t)
	defer m.Stop()

	m.LogEvent(Event{
		EventType: EventTypeMerge,
		ActorID:   "actor-a",
		LogID:     "default",
		Operation: "merge peer actor-b",
		Status:    StatusSuccess,
	})
	m.LogEvent(Event{
		EventType: EventTypeUndo,
		ActorID:   "actor-a",
		LogID:     "default",
		Status:    StatusSuccess,
	})

	// LogEvent is asynchronous; give the worker a chance to flush.
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	events, err := m.QueryLogs(QueryOptions{ActorID: "actor-a"})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	merges, err := m.QueryLogs(QueryOptions{EventType: EventTypeMerge})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(merges) != 1 {
		t.Fatalf("expected 1 merge event, got %d", len(merges))
	}
}

func TestShouldLogFiltering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogMutations = false
	cfg.Enabled = false // avoid starting the async worker for this check
	m := &Manager{config: cfg}

	if m.shouldLog(EventTypeMerge) {
		t.Error("expected mutation events to be filtered out when LogMutations is false")
	}
	if !m.shouldLog(EventTypeLogin) {
		t.Error("expected auth events to still be logged")
	}
}

func TestExportJSON(t *testing.T) {
	m := newTestManager(t)
	defer m.Stop()

	events := []Event{
		{EventType: EventTypeAppend, ActorID: "actor-a", LogID: "default", Status: StatusSuccess, Timestamp: time.Now()},
	}

	dir := t.TempDir()
	path := dir + "/export.json"
	if err := m.ExportEvents(path, FormatJSON, events); err != nil {
		t.Fatalf("ExportEvents: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty export file")
	}
}

func TestMemStoreScanPrefix(t *testing.T) {
	s := NewMemStore()
	if err := s.Put("_audit:1:1", []byte("a")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("other:1", []byte("b")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	results, err := s.Scan("_audit:")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 matching key, got %d", len(results))
	}
}
