/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Connection Pool Implementation
==============================

This file provides a connection pool for the replicator's outbound peer
links. Pooling avoids redialing a plain TCP connection for every Publish
and MergeRequest:

  - Reduce connection establishment overhead
  - Limit the number of concurrent outbound peer connections
  - Reuse connections efficiently
  - Handle connection failures gracefully

Usage:
======

  pool := sdk.NewConnectionPool(config)
  conn, err := pool.Acquire(ctx, peerAddr)
  defer pool.Release(conn)
  // use conn.Raw ...
*/
package sdk

import (
	"context"
	"net"
	"sync"
	"time"
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	MaxConnections int // Maximum total connections allowed (default: 32)

	MaxIdleTime    time.Duration // Max idle time before closing (default: 5m)
	MaxLifetime    time.Duration // Max connection lifetime (default: 1h)
	AcquireTimeout time.Duration // Max time to acquire a connection (default: 10s)
	DialTimeout    time.Duration // Max time to establish a new connection (default: 5s)
}

// DefaultPoolConfig returns a pool configuration with sensible defaults.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxConnections: 32,
		MaxIdleTime:    5 * time.Minute,
		MaxLifetime:    1 * time.Hour,
		AcquireTimeout: 10 * time.Second,
		DialTimeout:    5 * time.Second,
	}
}

// PooledConnection represents an outbound TCP connection to a replication
// peer, managed by the pool.
type PooledConnection struct {
	ID         string
	Addr       string
	Raw        net.Conn
	CreatedAt  time.Time
	LastUsedAt time.Time
	InUse      bool
}

// ConnectionPool manages a pool of outbound peer connections, keyed by
// remote address.
type ConnectionPool struct {
	mu     sync.Mutex
	config *PoolConfig

	idle       map[string][]*PooledConnection
	totalCount int

	closed   bool
	closedCh chan struct{}
}

// NewConnectionPool creates a new connection pool.
func NewConnectionPool(config *PoolConfig) *ConnectionPool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	return &ConnectionPool{
		config:   config,
		idle:     make(map[string][]*PooledConnection),
		closedCh: make(chan struct{}),
	}
}

// Acquire returns a pooled connection to addr, dialing a new one if none
// is idle and the pool has room.
func (p *ConnectionPool) Acquire(ctx context.Context, addr string) (*PooledConnection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, NewSDKError(ErrCodeConnectionClosed, "connection pool is closed")
	}

	if conns := p.idle[addr]; len(conns) > 0 {
		conn := conns[len(conns)-1]
		p.idle[addr] = conns[:len(conns)-1]
		p.mu.Unlock()
		if time.Since(conn.CreatedAt) > p.config.MaxLifetime {
			conn.Raw.Close()
			p.mu.Lock()
			p.totalCount--
			p.mu.Unlock()
		} else {
			conn.InUse = true
			conn.LastUsedAt = time.Now()
			return conn, nil
		}
	} else {
		p.mu.Unlock()
	}

	p.mu.Lock()
	if p.totalCount >= p.config.MaxConnections {
		p.mu.Unlock()
		return nil, NewSDKError(ErrCodeConnectionFailed, "connection pool exhausted")
	}
	p.totalCount++
	p.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, p.config.DialTimeout)
	defer cancel()

	var d net.Dialer
	raw, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		p.mu.Lock()
		p.totalCount--
		p.mu.Unlock()
		return nil, NewSDKErrorWithCause(ErrCodeConnectionFailed, "dial peer failed", err)
	}

	return &PooledConnection{
		ID:         GenerateConnectionID(),
		Addr:       addr,
		Raw:        raw,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		InUse:      true,
	}, nil
}

// Release returns a connection to the pool, or closes it if the pool is
// closed or the connection has exceeded MaxLifetime.
func (p *ConnectionPool) Release(conn *PooledConnection) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || time.Since(conn.CreatedAt) > p.config.MaxLifetime {
		conn.Raw.Close()
		p.totalCount--
		return
	}

	conn.InUse = false
	conn.LastUsedAt = time.Now()
	p.idle[conn.Addr] = append(p.idle[conn.Addr], conn)
}

// Discard closes conn and removes it from the pool's accounting, for
// callers that observed it was broken (write/read error) rather than
// merely finished using it.
func (p *ConnectionPool) Discard(conn *PooledConnection) {
	if conn == nil {
		return
	}
	conn.Raw.Close()
	p.mu.Lock()
	p.totalCount--
	p.mu.Unlock()
}

// Close closes the connection pool and all idle connections.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.closedCh)

	for _, conns := range p.idle {
		for _, conn := range conns {
			conn.Raw.Close()
		}
	}
	p.idle = nil
	p.totalCount = 0
	return nil
}

// Stats returns pool statistics.
func (p *ConnectionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := 0
	for _, conns := range p.idle {
		idle += len(conns)
	}

	return PoolStats{
		TotalConnections: p.totalCount,
		IdleConnections:  idle,
		InUseConnections: p.totalCount - idle,
		MaxConnections:   p.config.MaxConnections,
	}
}

// PoolStats contains connection pool statistics.
type PoolStats struct {
	TotalConnections int
	IdleConnections  int
	InUseConnections int
	MaxConnections   int
}
