/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package tls

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ConnectionLabel derives a short, stable identifier for a replication
// TLS session from the local actor's ID and the peer certificate's public
// key, so a replica's logs can name which session belongs to which
// logical peer without re-parsing the full certificate on every log
// line. The derivation is HKDF-SHA256 keyed by the peer's public key
// bytes, salted with the actor ID, so the same (actor, peer) pair always
// yields the same label across reconnects.
func ConnectionLabel(actorID string, peerCert *x509.Certificate) (string, error) {
	pub, err := x509.MarshalPKIXPublicKey(peerCert.PublicKey)
	if err != nil {
		return "", fmt.Errorf("tls: marshal peer public key: %w", err)
	}

	reader := hkdf.New(sha256.New, pub, []byte(actorID), []byte("oplog-replication-session"))
	out := make([]byte, 8)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", fmt.Errorf("tls: derive connection label: %w", err)
	}
	return hex.EncodeToString(out), nil
}
