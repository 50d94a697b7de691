/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package audit

import (
	"net"
	"testing"
	"time"
)

func TestPeerAuditManagerQueryAcrossPeers(t *testing.T) {
	localMgr := newTestManager(t)
	defer localMgr.Stop()
	local := NewPeerAuditManager(localMgr, "actor-a")

	remoteMgr := newTestManager(t)
	defer remoteMgr.Stop()
	remote := NewPeerAuditManager(remoteMgr, "actor-b")
	remote.LogEvent(Event{EventType: EventTypeAppend, ActorID: "actor-b", LogID: "default", Status: StatusSuccess})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go ServeQueries(ln, remote)

	local.LogEvent(Event{EventType: EventTypeMerge, ActorID: "actor-a", LogID: "default", Status: StatusSuccess})
	local.AddPeer("actor-b", ln.Addr().String())

	if !local.IsPeerMode() {
		t.Fatal("IsPeerMode() = false after AddPeer")
	}

	// LogEvent flushes asynchronously; give the background ticker a moment.
	deadline := time.Now().Add(2 * time.Second)
	var events []Event
	for time.Now().Before(deadline) {
		events, err = local.QueryLogsAcrossPeers(QueryOptions{})
		if err != nil {
			t.Fatalf("QueryLogsAcrossPeers: %v", err)
		}
		if len(events) >= 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events across peers, want 2", len(events))
	}

	var sawLocal, sawRemote bool
	for _, e := range events {
		switch e.ActorID {
		case "actor-a":
			sawLocal = true
		case "actor-b":
			sawRemote = true
		}
	}
	if !sawLocal || !sawRemote {
		t.Fatalf("events = %+v, want both actor-a and actor-b represented", events)
	}

	local.RemovePeer("actor-b")
	if local.IsPeerMode() {
		t.Fatal("IsPeerMode() = true after RemovePeer")
	}
}

func TestPeerAuditManagerStatistics(t *testing.T) {
	mgr := newTestManager(t)
	defer mgr.Stop()
	pam := NewPeerAuditManager(mgr, "actor-a")
	pam.LogEvent(Event{EventType: EventTypeUndo, ActorID: "actor-a", LogID: "default", Status: StatusSuccess})

	deadline := time.Now().Add(2 * time.Second)
	var stats Statistics
	var err error
	for time.Now().Before(deadline) {
		stats, err = pam.GetStatistics()
		if err != nil {
			t.Fatalf("GetStatistics: %v", err)
		}
		if stats.TotalCount > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if stats.ActorID != "actor-a" || stats.TotalCount != 1 || stats.ByType[EventTypeUndo] != 1 {
		t.Fatalf("stats = %+v, want one UNDO event for actor-a", stats)
	}
}
