/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package sdk

import (
	"sync"
	"time"

	"github.com/firefly-oss/oplog/pkg/oplog"
)

// SessionState represents the state of an actor session.
type SessionState int

const (
	// SessionStateActive means the session is active and usable.
	SessionStateActive SessionState = iota
	// SessionStateIdle means the session is idle.
	SessionStateIdle
	// SessionStateClosed means the session is closed.
	SessionStateClosed
)

// Session binds one actor's identity to the Log it owns, and tracks the
// session-level bookkeeping (timeouts, activity) that cmd/oplog-cli and the
// replication layer need on top of the Log itself. A Session's mutex
// guards only its own fields; it adds no locking around the Log, so the
// caller owns the Log value-semantics discipline documented on pkg/oplog.
type Session struct {
	mu sync.RWMutex

	ID       string
	ActorID  string
	Log      *oplog.Log[string, string]

	CreatedAt      time.Time
	LastActivityAt time.Time
	Timeout        time.Duration

	State SessionState
}

// NewSession creates a new actor session wrapping log.
func NewSession(actorID string, log *oplog.Log[string, string]) *Session {
	return &Session{
		ID:             GenerateSessionID(),
		ActorID:        actorID,
		Log:            log,
		CreatedAt:      time.Now(),
		LastActivityAt: time.Now(),
		Timeout:        30 * time.Minute,
		State:          SessionStateActive,
	}
}

// Touch updates the last activity time.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivityAt = time.Now()
}

// IsExpired returns true if the session has exceeded its idle timeout.
func (s *Session) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.LastActivityAt) > s.Timeout
}

// IsActive returns true if the session is active.
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State == SessionStateActive
}

// Close closes the session. The underlying Log is left intact — closing a
// session only stops its replication/CLI bookkeeping.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = SessionStateClosed
	return nil
}

// Info describes session metadata for status commands.
type Info struct {
	SessionID string
	ActorID   string
	LogID     string
	State     SessionState
	CanUndo   bool
	CanRedo   bool
}

// Describe returns a snapshot of the session's metadata.
func (s *Session) Describe() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		SessionID: s.ID,
		ActorID:   s.ActorID,
		LogID:     s.Log.LogID(),
		State:     s.State,
		CanUndo:   s.Log.CanUndo(),
		CanRedo:   s.Log.CanRedo(),
	}
}
