/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package audit

import (
	"encoding/json"
	"net"
	"time"

	"github.com/firefly-oss/oplog/internal/logging"
)

// queryRequest mirrors the request PeerAuditManager.queryRemoteLogs sends.
type queryRequest struct {
	Type    string       `json:"type"`
	Options QueryOptions `json:"options"`
}

type queryResponse struct {
	Success bool    `json:"success"`
	Events  []Event `json:"events"`
	Error   string  `json:"error"`
}

// ServeQueries accepts connections on ln and answers audit_query requests
// against pam's local manager, so a peer's PeerAuditManager.queryRemoteLogs
// has something to talk to. It returns once ln is closed.
func ServeQueries(ln net.Listener, pam *PeerAuditManager) {
	logger := logging.NewLogger("audit-server")
	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Debug("audit query listener closed", "error", err)
			return
		}
		go handleQueryConn(conn, pam, logger)
	}
}

func handleQueryConn(conn net.Conn, pam *PeerAuditManager, logger *logging.Logger) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	var req queryRequest
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		logger.Warn("decode audit query", "error", err)
		return
	}

	if req.Type != "audit_query" {
		json.NewEncoder(conn).Encode(queryResponse{Success: false, Error: "unknown request type"})
		return
	}

	events, err := pam.GetLocalManager().QueryLogs(req.Options)
	if err != nil {
		json.NewEncoder(conn).Encode(queryResponse{Success: false, Error: err.Error()})
		return
	}

	json.NewEncoder(conn).Encode(queryResponse{Success: true, Events: events})
}
