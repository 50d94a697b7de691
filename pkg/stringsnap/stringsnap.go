/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

// Package stringsnap is a minimal oplog.Operation/oplog.Snapshot pair
// used by the CLI demo and by the package's own scenario tests: a string
// built by appending and removing trailing characters, one at a time.
package stringsnap

import (
	"fmt"

	"github.com/firefly-oss/oplog/pkg/oplog"
)

// Kind distinguishes the two operations this package supports.
type Kind uint8

const (
	KindAppend Kind = iota
	KindRemoveLast
)

// Op is the sole Operation type stringsnap folds into a log: append a
// character, or remove the trailing character (carrying the character
// expected to be there, so RemoveLast can detect a stale undo).
type Op struct {
	Kind Kind
	Char byte
}

// Append returns an operation that appends c to the snapshot.
func Append(c byte) Op { return Op{Kind: KindAppend, Char: c} }

// RemoveLast returns an operation that removes the trailing character,
// provided it equals c.
func RemoveLast(c byte) Op { return Op{Kind: KindRemoveLast, Char: c} }

// MarshalBinary implements oplog.Operation.
func (o Op) MarshalBinary() ([]byte, error) {
	return []byte{byte(o.Kind), o.Char}, nil
}

// String implements oplog.Operation.
func (o Op) String() string {
	switch o.Kind {
	case KindAppend:
		return fmt.Sprintf("append(%c)", o.Char)
	default:
		return fmt.Sprintf("removeLast(%c)", o.Char)
	}
}

// DecodeOp is an oplog.OperationDecoder for Op.
func DecodeOp(data []byte) (oplog.Operation, error) {
	if len(data) != 2 {
		return nil, fmt.Errorf("stringsnap: invalid operation encoding, want 2 bytes got %d", len(data))
	}
	return Op{Kind: Kind(data[0]), Char: data[1]}, nil
}

// Snapshot is a string built up by Op application.
type Snapshot string

// Empty returns the canonical empty snapshot for a fresh log.
func Empty() Snapshot { return Snapshot("") }

// Apply implements oplog.Snapshot.
func (s Snapshot) Apply(op oplog.Operation) (oplog.Snapshot, oplog.Outcome) {
	o, ok := op.(Op)
	if !ok {
		return s, oplog.Outcome{Kind: oplog.Skipped, Reason: fmt.Sprintf("stringsnap: unsupported operation type %T", op)}
	}

	switch o.Kind {
	case KindAppend:
		next := s + Snapshot(o.Char)
		return next, oplog.Outcome{Kind: oplog.Full, Undo: RemoveLast(o.Char)}

	case KindRemoveLast:
		if len(s) == 0 {
			return s, oplog.Outcome{Kind: oplog.Skipped, Reason: "stringsnap: cannot remove from empty string"}
		}
		last := s[len(s)-1]
		if last != o.Char {
			return s, oplog.Outcome{Kind: oplog.Skipped, Reason: fmt.Sprintf("stringsnap: expected trailing %q, found %q", o.Char, last)}
		}
		next := s[:len(s)-1]
		return next, oplog.Outcome{Kind: oplog.Full, Undo: Append(o.Char)}

	default:
		return s, oplog.Outcome{Kind: oplog.Skipped, Reason: "stringsnap: unknown operation kind"}
	}
}

// MarshalBinary implements oplog.Snapshot's serialization contract.
func (s Snapshot) MarshalBinary() ([]byte, error) { return []byte(s), nil }

// DecodeSnapshot is an oplog.SnapshotDecoder for Snapshot.
func DecodeSnapshot(data []byte) (oplog.Snapshot, error) { return Snapshot(data), nil }

// String renders the current string.
func (s Snapshot) String() string { return string(s) }
