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

package discovery

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// DiscoverPeersDNS resolves peers through an SRV record instead of mDNS
// multicast, for deployments where broadcast never reaches other hosts
// (a Kubernetes headless service or a datacenter DNS zone populated by an
// external registrar). srvName is a full SRV query name, e.g.
// "_oplog._tcp.peers.svc.cluster.local."; resolverAddr is the DNS server
// to query, e.g. "10.0.0.1:53".
//
// Unlike DiscoverPeers, the result carries only address and port — SRV
// records have no TXT payload, so ActorID/LogID/Version are left zero.
// Callers that need those should fall back to a gossip sync with the
// peer once connected rather than relying on this lookup for anything
// beyond "something is listening here".
func DiscoverPeersDNS(srvName, resolverAddr string, timeout time.Duration) ([]DiscoveredPeer, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(srvName), dns.TypeSRV)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.Exchange(msg, resolverAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: dns srv query: %w", err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("discovery: dns srv query returned %s", dns.RcodeToString[resp.Rcode])
	}

	var peers []DiscoveredPeer
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		addr, err := resolveA(srv.Target, resolverAddr, timeout)
		if err != nil {
			continue
		}
		peers = append(peers, DiscoveredPeer{
			Addr:       addr,
			GossipPort: int(srv.Port),
		})
	}
	return peers, nil
}

// resolveA resolves an SRV target hostname to an IPv4 address via the
// same resolver, since SRV records name a host rather than an address.
func resolveA(host, resolverAddr string, timeout time.Duration) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.Exchange(msg, resolverAddr)
	if err != nil {
		return "", err
	}
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("discovery: no A record for %s", host)
}
