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

package replication

import (
	"testing"
	"time"
)

func freeGossipConfig(actorID string, port int) RegistryConfig {
	cfg := DefaultRegistryConfig(actorID, "127.0.0.1")
	cfg.GossipPort = port
	cfg.GossipInterval = 20 * time.Millisecond
	cfg.ProbeInterval = 50 * time.Millisecond
	cfg.ProbeTimeout = 200 * time.Millisecond
	cfg.DeadTimeout = 500 * time.Millisecond
	return cfg
}

func TestRegistryJoinsViaSeed(t *testing.T) {
	cfgA := freeGossipConfig("actor-a", 19601)
	regA := NewRegistry(cfgA)
	if err := regA.Start(); err != nil {
		t.Fatalf("start regA: %v", err)
	}
	defer regA.Stop()

	cfgB := freeGossipConfig("actor-b", 19602)
	cfgB.SeedAddrs = []string{"127.0.0.1:19601"}
	regB := NewRegistry(cfgB)
	if err := regB.Start(); err != nil {
		t.Fatalf("start regB: %v", err)
	}
	defer regB.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if regA.Peer("actor-b") != nil && regB.Peer("actor-a") != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if regA.Peer("actor-b") == nil {
		t.Fatal("actor-a never learned about actor-b")
	}
	if regB.Peer("actor-a") == nil {
		t.Fatal("actor-b never learned about actor-a")
	}
}

func TestRegistryMarksDeadPeerAfterTimeout(t *testing.T) {
	reg := NewRegistry(freeGossipConfig("actor-c", 19603))
	reg.peers["actor-ghost"] = &PeerInfo{
		ActorID: "actor-ghost",
		Addr:    "127.0.0.1",
		State:   PeerStateActive,
	}
	reg.markSuspect("actor-ghost")

	reg.suspicionsMu.Lock()
	reg.suspicions["actor-ghost"] = time.Now().Add(-time.Hour)
	reg.suspicionsMu.Unlock()

	reg.checkDeadPeers()

	if reg.Peer("actor-ghost").State != PeerStateDead {
		t.Errorf("expected actor-ghost to be marked dead")
	}
}

func TestPeerStateString(t *testing.T) {
	cases := map[PeerState]string{
		PeerStateUnknown: "UNKNOWN",
		PeerStateJoining: "JOINING",
		PeerStateActive:  "ACTIVE",
		PeerStateLeaving: "LEAVING",
		PeerStateDead:    "DEAD",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("PeerState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestActivePeersFiltersState(t *testing.T) {
	reg := NewRegistry(freeGossipConfig("actor-d", 19604))
	reg.peers["actor-d"] = reg.localPeer
	reg.peers["actor-e"] = &PeerInfo{ActorID: "actor-e", State: PeerStateActive}
	reg.peers["actor-f"] = &PeerInfo{ActorID: "actor-f", State: PeerStateDead}

	active := reg.ActivePeers()
	if len(active) != 1 || active[0].ActorID != "actor-e" {
		t.Errorf("expected only actor-e active, got %+v", active)
	}
}
