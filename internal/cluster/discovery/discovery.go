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

// Package discovery finds other actors on the local network segment via
// mDNS, for bootstrapping a Registry's seed list without a hardcoded peer
// address list. It has no say in cluster membership itself — a node it
// discovers still has to complete the gossip join handshake before
// replication treats it as a peer.
package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

// serviceName is the mDNS/DNS-SD service type advertised and browsed for.
const serviceName = "_oplog._tcp"

// Advertisement describes the local actor, published as an mDNS TXT record
// so peers discovering this node learn its addresses without a second
// round trip.
type Advertisement struct {
	ActorID         string `json:"actorID"`
	LogID           string `json:"logID"`
	GossipPort      int    `json:"gossipPort"`
	ReplicationPort int    `json:"replicationPort"`
	Version         string `json:"version"`
}

// DiscoveredPeer is a node found on the network, decoded from its
// advertised TXT record plus the mDNS response's resolved address.
type DiscoveredPeer struct {
	ActorID         string
	LogID           string
	Addr            string
	GossipPort      int
	ReplicationPort int
	Version         string
}

// Config controls both advertising the local actor and browsing for peers.
type Config struct {
	ActorID         string
	LogID           string
	GossipPort      int
	ReplicationPort int
	Version         string

	// Advertise, when false, runs the service in browse-only mode: it
	// discovers peers but does not publish an mDNS record of its own.
	// flydb-discover's "not advertising, just discovering" client mode
	// is the browse-only case.
	Advertise bool
}

// Service advertises the local actor over mDNS (unless Config.Advertise is
// false) and can browse the network segment for other actors on demand.
type Service struct {
	config Config
	server *mdns.Server
}

// New constructs a Service. It does not touch the network until Start is
// called.
func New(config Config) *Service {
	return &Service{config: config}
}

// Start publishes the local actor's mDNS record, if Config.Advertise is
// set. Browsing for peers does not require Start — DiscoverPeers works
// standalone, the way flydb-discover runs as a pure client with no
// server-side advertisement at all.
func (s *Service) Start() error {
	if !s.config.Advertise {
		return nil
	}

	txt, err := encodeTXT(Advertisement{
		ActorID:         s.config.ActorID,
		LogID:           s.config.LogID,
		GossipPort:      s.config.GossipPort,
		ReplicationPort: s.config.ReplicationPort,
		Version:         s.config.Version,
	})
	if err != nil {
		return fmt.Errorf("discovery: encode advertisement: %w", err)
	}

	host, err := os.Hostname()
	if err != nil {
		host = s.config.ActorID
	}

	info, err := mdns.NewMDNSService(s.config.ActorID, serviceName, "", host+".", s.config.GossipPort, nil, txt)
	if err != nil {
		return fmt.Errorf("discovery: build service record: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: info})
	if err != nil {
		return fmt.Errorf("discovery: start mdns server: %w", err)
	}
	s.server = server
	return nil
}

// Stop withdraws the local actor's advertisement, if one was started.
func (s *Service) Stop() error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown()
	s.server = nil
	return err
}

// DiscoverPeers browses the network segment for up to timeout, decoding
// every responding actor's TXT record. Entries that don't carry a
// well-formed Advertisement are skipped rather than failing the whole
// scan — a stray mDNS responder on the same service name shouldn't block
// discovery of real peers.
func (s *Service) DiscoverPeers(timeout time.Duration) ([]DiscoveredPeer, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var peers []DiscoveredPeer
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			peer, ok := decodeEntry(entry)
			if !ok {
				continue
			}
			if peer.ActorID == s.config.ActorID {
				continue
			}
			peers = append(peers, peer)
		}
	}()

	params := mdns.DefaultParams(serviceName)
	params.Timeout = timeout
	params.Entries = entries

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("discovery: query: %w", err)
	}
	return peers, nil
}

func decodeEntry(entry *mdns.ServiceEntry) (DiscoveredPeer, bool) {
	var adv Advertisement
	if err := decodeTXT(entry.InfoFields, &adv); err != nil {
		return DiscoveredPeer{}, false
	}

	addr := entry.AddrV4
	if addr == nil {
		addr = entry.AddrV6
	}
	if addr == nil {
		return DiscoveredPeer{}, false
	}

	return DiscoveredPeer{
		ActorID:         adv.ActorID,
		LogID:           adv.LogID,
		Addr:            addr.String(),
		GossipPort:      adv.GossipPort,
		ReplicationPort: adv.ReplicationPort,
		Version:         adv.Version,
	}, true
}

// encodeTXT packs an Advertisement into a single TXT field as JSON. mDNS
// TXT records are conventionally key=value pairs, but a single JSON blob
// avoids a second schema for the handful of fields this package cares
// about and decodes back with the same package.
func encodeTXT(adv Advertisement) ([]string, error) {
	data, err := json.Marshal(adv)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}

func decodeTXT(fields []string, adv *Advertisement) error {
	if len(fields) == 0 {
		return fmt.Errorf("discovery: empty TXT record")
	}
	return json.Unmarshal([]byte(fields[0]), adv)
}
