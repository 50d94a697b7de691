/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import "testing"

func TestCheckWireVersionAcceptsCurrent(t *testing.T) {
	if err := checkWireVersion(wireFormatVersion); err != nil {
		t.Fatalf("checkWireVersion(%q) = %v, want nil", wireFormatVersion, err)
	}
}

func TestCheckWireVersionAcceptsBlank(t *testing.T) {
	if err := checkWireVersion(""); err != nil {
		t.Fatalf("checkWireVersion(\"\") = %v, want nil (pre-versioning containers)", err)
	}
}

func TestCheckWireVersionAcceptsMinorSkew(t *testing.T) {
	if err := checkWireVersion("v1.9.3"); err != nil {
		t.Fatalf("checkWireVersion(v1.9.3) = %v, want nil", err)
	}
}

func TestCheckWireVersionRejectsMajorSkew(t *testing.T) {
	if err := checkWireVersion("v2.0.0"); err == nil {
		t.Fatal("checkWireVersion(v2.0.0) = nil, want an error")
	}
}

func TestCheckWireVersionRejectsGarbage(t *testing.T) {
	if err := checkWireVersion("not-a-version"); err == nil {
		t.Fatal("checkWireVersion(garbage) = nil, want an error")
	}
}
