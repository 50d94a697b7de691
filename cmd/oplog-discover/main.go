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

/*
oplog-discover finds other oplog actors on the local network segment using
mDNS (Bonjour/Avahi), or via DNS SRV records when multicast doesn't reach
(Kubernetes headless services, datacenter DNS zones). It can be used by a
node's startup script to find existing peers to seed its gossip registry
with.

Usage:

	oplog-discover                 # Discover peers via mDNS (5 second timeout)
	oplog-discover --timeout 10    # Custom timeout in seconds
	oplog-discover --json          # Output as JSON
	oplog-discover --quiet         # Only output addresses (for scripting)
	oplog-discover --dns-srv _oplog._tcp.peers.svc.cluster.local. --dns-resolver 10.96.0.10:53
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/firefly-oss/oplog/internal/cluster/discovery"
)

const version = "0.1.0"

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func main() {
	timeout := flag.Int("timeout", 5, "Discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	quiet := flag.Bool("quiet", false, "Only output peer addresses (for scripting)")
	dnsSRV := flag.String("dns-srv", "", "Resolve peers via this SRV record instead of mDNS (e.g. _oplog._tcp.peers.svc.cluster.local.)")
	dnsResolver := flag.String("dns-resolver", "", "DNS server to query for --dns-srv (required when --dns-srv is set)")
	help := flag.Bool("help", false, "Show help")
	flag.BoolVar(help, "h", false, "Show help")
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	// hashicorp/mdns logs IPv6 errors on networks without IPv6 multicast;
	// not worth surfacing to a scripting-friendly CLI.
	log.SetOutput(io.Discard)

	var peers []discovery.DiscoveredPeer
	var err error

	if *dnsSRV != "" {
		if *dnsResolver == "" {
			fmt.Fprintln(os.Stderr, "--dns-srv requires --dns-resolver")
			os.Exit(1)
		}
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%s>%s resolving oplog peers via DNS SRV %s (timeout: %ds)...\n\n", cyan, bold, reset, *dnsSRV, *timeout)
		}
		peers, err = discovery.DiscoverPeersDNS(*dnsSRV, *dnsResolver, time.Duration(*timeout)*time.Second)
	} else {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%s>%s scanning for oplog peers (timeout: %ds)...\n\n", cyan, bold, reset, *timeout)
		}
		svc := discovery.New(discovery.Config{ActorID: "oplog-discover", Advertise: false})
		peers, err = svc.DiscoverPeers(time.Duration(*timeout) * time.Second)
	}
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s%sx%s discovery failed: %v\n", red, bold, reset, err)
		}
		os.Exit(1)
	}

	if len(peers) == 0 {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%s!%s no oplog peers found on the network.\n\n", yellow, bold, reset)
			fmt.Printf("    %s•%s peers are not running with discovery enabled\n", yellow, reset)
			fmt.Printf("    %s•%s mDNS is blocked by a firewall (UDP port 5353)\n", yellow, reset)
			fmt.Printf("    %s•%s peers are on a different network segment\n\n", yellow, reset)
		}
		os.Exit(0)
	}

	switch {
	case *jsonOutput:
		outputJSON(peers)
	case *quiet:
		outputQuiet(peers)
	default:
		outputHuman(peers)
	}
}

func printUsage() {
	fmt.Printf("%s%soplog-discover%s v%s\n\n", cyan, bold, reset, version)
	fmt.Printf("%s  Discovers oplog peers on the local network segment using mDNS.%s\n\n", dim, reset)
	fmt.Printf("%sUsage:%s oplog-discover [options]\n\n", bold, reset)
	fmt.Printf("    %s--timeout%s <seconds>   Discovery timeout (default: 5)\n", green, reset)
	fmt.Printf("    %s--json%s               Output results as JSON\n", green, reset)
	fmt.Printf("    %s--quiet%s              Only output addresses (for scripting)\n", green, reset)
	fmt.Printf("    %s--dns-srv%s <name>      Resolve peers via DNS SRV instead of mDNS\n", green, reset)
	fmt.Printf("    %s--dns-resolver%s <addr> DNS server to query (required with --dns-srv)\n", green, reset)
	fmt.Printf("    %s--help%s, %s-h%s          Show this help message\n\n", green, reset, green, reset)
}

func outputJSON(peers []discovery.DiscoveredPeer) {
	data, _ := json.MarshalIndent(peers, "", "  ")
	fmt.Println(string(data))
}

func outputQuiet(peers []discovery.DiscoveredPeer) {
	addrs := make([]string, len(peers))
	for i, p := range peers {
		addrs[i] = fmt.Sprintf("%s:%d", p.Addr, p.GossipPort)
	}
	fmt.Println(strings.Join(addrs, ","))
}

func outputHuman(peers []discovery.DiscoveredPeer) {
	fmt.Printf("%s%s✓%s found %d oplog peer(s)\n\n", green, bold, reset, len(peers))
	for i, p := range peers {
		fmt.Printf("  %s[%d]%s %s%s%s\n", dim, i+1, reset, bold+cyan, p.ActorID, reset)
		fmt.Printf("      %sGossip Address:%s      %s:%d\n", dim, reset, p.Addr, p.GossipPort)
		fmt.Printf("      %sReplication Address:%s %s:%d\n", dim, reset, p.Addr, p.ReplicationPort)
		if p.LogID != "" {
			fmt.Printf("      %sLog ID:%s              %s\n", dim, reset, p.LogID)
		}
		if p.Version != "" {
			fmt.Printf("      %sVersion:%s             %s\n", dim, reset, p.Version)
		}
		fmt.Println()
	}
	fmt.Printf("%s  Tip: use --json for machine-readable output%s\n\n", dim, reset)
}
