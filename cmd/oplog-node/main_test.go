/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"testing"

	"github.com/firefly-oss/oplog/internal/config"
)

func TestApplyFlagOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlagOverrides(cfg, "node-b", "log-2", "9001", "9002", "9003", "peer", "127.0.0.1:9001", "/tmp/node-b.store")

	if cfg.ActorID != "node-b" {
		t.Errorf("ActorID = %q, want node-b", cfg.ActorID)
	}
	if cfg.LogID != "log-2" {
		t.Errorf("LogID = %q, want log-2", cfg.LogID)
	}
	if cfg.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Port)
	}
	if cfg.ReplicationPort != 9002 {
		t.Errorf("ReplicationPort = %d, want 9002", cfg.ReplicationPort)
	}
	if cfg.AuditPort != 9003 {
		t.Errorf("AuditPort = %d, want 9003", cfg.AuditPort)
	}
	if cfg.Role != "peer" {
		t.Errorf("Role = %q, want peer", cfg.Role)
	}
	if cfg.SeedAddr != "127.0.0.1:9001" {
		t.Errorf("SeedAddr = %q, want 127.0.0.1:9001", cfg.SeedAddr)
	}
	if cfg.StorePath != "/tmp/node-b.store" {
		t.Errorf("StorePath = %q, want /tmp/node-b.store", cfg.StorePath)
	}
}

func TestApplyFlagOverridesLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := config.DefaultConfig()
	want := *cfg
	applyFlagOverrides(cfg, "", "", "", "", "", "", "", "")
	if *cfg != want {
		t.Errorf("applyFlagOverrides with all-empty args mutated the config: got %+v, want %+v", *cfg, want)
	}
}

func TestRegistryConfigCarriesAuditPortMetadata(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AuditPort = 8899
	cfg.SeedAddr = "10.0.0.5:8888"

	rc := registryConfig(cfg)

	if rc.Metadata["audit_port"] != "8899" {
		t.Errorf("Metadata[audit_port] = %q, want 8899", rc.Metadata["audit_port"])
	}
	if len(rc.SeedAddrs) != 1 || rc.SeedAddrs[0] != "10.0.0.5:8888" {
		t.Errorf("SeedAddrs = %v, want [10.0.0.5:8888]", rc.SeedAddrs)
	}
}

func TestRegistryConfigWithoutSeedAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SeedAddr = ""

	rc := registryConfig(cfg)
	if len(rc.SeedAddrs) != 0 {
		t.Errorf("SeedAddrs = %v, want empty", rc.SeedAddrs)
	}
}
