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
oplog-node runs a single OperationLog replica: it loads (or creates) a
local log, serves inbound replication traffic, gossips with peers to
discover the rest of the cluster, and persists its serialized log to disk
every five seconds and once more at shutdown.

Usage:

	oplog-node --actor-id node-a --port 8888 --replication-port 8897
	oplog-node --actor-id node-b --seed-addr 127.0.0.1:8888 --role peer
*/
package main

import (
	gotls "crypto/tls"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/firefly-oss/oplog/internal/audit"
	"github.com/firefly-oss/oplog/internal/clock"
	"github.com/firefly-oss/oplog/internal/cluster/discovery"
	"github.com/firefly-oss/oplog/internal/compression"
	"github.com/firefly-oss/oplog/internal/config"
	"github.com/firefly-oss/oplog/internal/logging"
	"github.com/firefly-oss/oplog/internal/replication"
	"github.com/firefly-oss/oplog/internal/storage"
	oplogtls "github.com/firefly-oss/oplog/internal/tls"
	"github.com/firefly-oss/oplog/pkg/oplog"
	"github.com/firefly-oss/oplog/pkg/stringsnap"
)

const version = "0.1.0"

func main() {
	configFile := flag.String("config", "", "Path to a config file")
	actorID := flag.String("actor-id", "", "Override actor_id")
	logID := flag.String("log-id", "", "Override log_id")
	port := flag.String("port", "", "Override gossip port")
	replPort := flag.String("replication-port", "", "Override replication port")
	auditPort := flag.String("audit-port", "", "Override audit query port")
	role := flag.String("role", "", "Override role (standalone or peer)")
	seedAddr := flag.String("seed-addr", "", "Override seed_addr")
	storePath := flag.String("store-path", "", "Override store_path")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("oplog-node %s\n", version)
		return
	}

	mgr := config.NewManager()
	if *configFile != "" {
		if err := mgr.LoadFromFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	mgr.LoadFromEnv()
	cfg := mgr.Get()
	applyFlagOverrides(cfg, *actorID, *logID, *port, *replPort, *auditPort, *role, *seedAddr, *storePath)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	logger := logging.NewLogger("node")
	logger.Info("starting oplog-node", "actor_id", cfg.ActorID, "role", cfg.Role)

	compAlgo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		logger.Error("invalid compression algorithm", "error", err)
		os.Exit(1)
	}
	compCfg := compression.DefaultConfig()
	compCfg.Algorithm = compAlgo

	writer, err := storage.NewSnapshotWriter(cfg.StorePath, compCfg)
	if err != nil {
		logger.Error("create snapshot writer", "error", err)
		os.Exit(1)
	}
	defer writer.Close()

	log := loadOrCreateLog(cfg, writer, logger)

	auditMgr := audit.NewManager(audit.NewMemStore(), audit.DefaultConfig())
	defer auditMgr.Stop()
	peerAudit := audit.NewPeerAuditManager(auditMgr, cfg.ActorID)

	if auditMgr.IsEnabled() {
		auditListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.AuditPort))
		if err != nil {
			logger.Error("listen for audit queries", "error", err)
			os.Exit(1)
		}
		defer auditListener.Close()
		go audit.ServeQueries(auditListener, peerAudit)
	} else {
		logger.Info("audit logging disabled, not serving audit queries")
	}

	var discoverySvc *discovery.Service
	rc := registryConfig(cfg)
	if cfg.DiscoveryEnabled {
		discoverySvc = startDiscovery(cfg, logger)
		if cfg.SeedAddr == "" {
			rc.SeedAddrs = discoverSeeds(discoverySvc, logger)
		}
	}

	registry := replication.NewRegistry(rc)
	registry.OnPeerJoin(func(p *replication.PeerInfo) {
		logger.Info("peer joined", "actor_id", p.ActorID, "addr", p.Addr)
		peerAudit.AddPeer(p.ActorID, net.JoinHostPort(p.Addr, p.Metadata["audit_port"]))
		peerAudit.LogEvent(audit.Event{Timestamp: time.Now(), EventType: audit.EventTypePeerJoin, ActorID: p.ActorID, LogID: cfg.LogID, Status: audit.StatusSuccess})
	})
	registry.OnPeerLeave(func(p *replication.PeerInfo) {
		logger.Info("peer left", "actor_id", p.ActorID)
		peerAudit.RemovePeer(p.ActorID)
		peerAudit.LogEvent(audit.Event{Timestamp: time.Now(), EventType: audit.EventTypePeerLeave, ActorID: p.ActorID, LogID: cfg.LogID, Status: audit.StatusSuccess})
	})
	registry.OnPeerDead(func(p *replication.PeerInfo) {
		logger.Warn("peer marked dead", "actor_id", p.ActorID, "known_peers", len(registry.Peers()))
		peerAudit.RemovePeer(p.ActorID)
		peerAudit.LogEvent(audit.Event{Timestamp: time.Now(), EventType: audit.EventTypeReplicationFailed, ActorID: p.ActorID, LogID: cfg.LogID, Status: audit.StatusFailed, ErrorMessage: "peer unreachable, marked dead by gossip failure detector"})
	})
	if discoverySvc != nil {
		defer discoverySvc.Stop()
	}

	if err := registry.Start(); err != nil {
		logger.Error("start gossip registry", "error", err)
		os.Exit(1)
	}
	defer registry.Stop()

	replConfig := replication.DefaultReplicatorConfig(cfg.ActorID, cfg.LogID)
	replConfig.ReplicationAddr = fmt.Sprintf(":%d", cfg.ReplicationPort)
	replicator := replication.NewReplicator(replConfig, log, stringsnap.DecodeOp, stringsnap.DecodeSnapshot, registry)
	replicator.Start()
	defer replicator.Stop()

	listener, err := replicationListener(cfg)
	if err != nil {
		logger.Error("listen for replication traffic", "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	go acceptReplicationConns(listener, replicator, cfg.ActorID, logger)

	persistLoop := startPersistLoop(log, writer, 5*time.Second)
	defer close(persistLoop)

	cleanupLoop := startAuditCleanupLoop(auditMgr, logger, time.Hour)
	defer close(cleanupLoop)

	logger.Info("oplog-node ready", "gossip_port", cfg.Port, "replication_port", cfg.ReplicationPort)
	waitForShutdown(logger, auditMgr, peerAudit, cfg.ActorID+"-audit-dump.json")

	data, err := log.Serialize()
	if err != nil {
		logger.Error("serialize log on shutdown", "error", err)
		return
	}
	writer.Submit(data)
}

func applyFlagOverrides(cfg *config.Config, actorID, logID, port, replPort, auditPort, role, seedAddr, storePath string) {
	if actorID != "" {
		cfg.ActorID = actorID
	}
	if logID != "" {
		cfg.LogID = logID
	}
	if port != "" {
		fmt.Sscanf(port, "%d", &cfg.Port)
	}
	if replPort != "" {
		fmt.Sscanf(replPort, "%d", &cfg.ReplicationPort)
	}
	if auditPort != "" {
		fmt.Sscanf(auditPort, "%d", &cfg.AuditPort)
	}
	if role != "" {
		cfg.Role = role
	}
	if seedAddr != "" {
		cfg.SeedAddr = seedAddr
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
}

func loadOrCreateLog(cfg *config.Config, writer *storage.SnapshotWriter, logger *logging.Logger) *oplog.Log[string, string] {
	data, err := writer.Load()
	if err != nil {
		logger.Error("load persisted snapshot", "error", err)
		os.Exit(1)
	}
	if data == nil {
		logger.Info("no persisted snapshot found, starting fresh log")
		return oplog.New[string, string](cfg.LogID, cfg.ActorID, clock.ParseStrategy(cfg.ClockStrategy), stringsnap.Empty())
	}

	log, err := oplog.FromBytes[string, string](cfg.ActorID, data, stringsnap.DecodeOp, stringsnap.DecodeSnapshot)
	if err != nil {
		logger.Error("decode persisted snapshot", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded persisted log", "operations", len(log.Operations()))
	return log
}

func registryConfig(cfg *config.Config) replication.RegistryConfig {
	rc := replication.DefaultRegistryConfig(cfg.ActorID, "0.0.0.0")
	rc.GossipPort = cfg.Port
	rc.ReplicationPort = cfg.ReplicationPort
	rc.Metadata = map[string]string{"audit_port": strconv.Itoa(cfg.AuditPort)}
	if cfg.SeedAddr != "" {
		rc.SeedAddrs = []string{cfg.SeedAddr}
	}
	return rc
}

func startDiscovery(cfg *config.Config, logger *logging.Logger) *discovery.Service {
	svc := discovery.New(discovery.Config{
		ActorID:         cfg.ActorID,
		LogID:           cfg.LogID,
		GossipPort:      cfg.Port,
		ReplicationPort: cfg.ReplicationPort,
		Version:         version,
		Advertise:       true,
	})
	if err := svc.Start(); err != nil {
		logger.Warn("mdns advertise failed, continuing without it", "error", err)
	}
	return svc
}

func discoverSeeds(svc *discovery.Service, logger *logging.Logger) []string {
	peers, err := svc.DiscoverPeers(2 * time.Second)
	if err != nil || len(peers) == 0 {
		return nil
	}
	seeds := make([]string, len(peers))
	for i, p := range peers {
		seeds[i] = fmt.Sprintf("%s:%d", p.Addr, p.GossipPort)
	}
	logger.Info("discovered seed peers via mdns", "count", len(seeds))
	return seeds
}

func replicationListener(cfg *config.Config) (net.Listener, error) {
	addr := fmt.Sprintf(":%d", cfg.ReplicationPort)
	_, certPath, keyPath := oplogtls.GetDefaultCertPaths()
	if err := oplogtls.EnsureCertificates(certPath, keyPath, oplogtls.DefaultCertConfig()); err != nil {
		return net.Listen("tcp", addr)
	}
	tlsCfg, err := oplogtls.LoadTLSConfig(certPath, keyPath)
	if err != nil {
		return net.Listen("tcp", addr)
	}
	return gotls.Listen("tcp", addr, tlsCfg)
}

func acceptReplicationConns(listener net.Listener, replicator *replication.Replicator, actorID string, logger *logging.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Debug("replication listener closed", "error", err)
			return
		}
		logConnectionLabel(conn, actorID, logger)
		go replicator.HandleConn(conn)
	}
}

// logConnectionLabel names the session in the log when the peer presented a
// client certificate, so a replica's operators can tell two reconnects of
// the same peer apart from the bare remote address alone.
func logConnectionLabel(conn net.Conn, actorID string, logger *logging.Logger) {
	tlsConn, ok := conn.(*gotls.Conn)
	if !ok {
		return
	}
	if err := tlsConn.Handshake(); err != nil {
		logger.Debug("tls handshake", "remote_addr", conn.RemoteAddr(), "error", err)
		return
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return
	}
	label, err := oplogtls.ConnectionLabel(actorID, certs[0])
	if err != nil {
		logger.Debug("derive connection label", "error", err)
		return
	}
	logger.Info("replication connection established", "remote_addr", conn.RemoteAddr(), "connection_label", label)
}

func startPersistLoop(log *oplog.Log[string, string], writer *storage.SnapshotWriter, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				data, err := log.Serialize()
				if err != nil {
					continue
				}
				writer.Submit(data)
			}
		}
	}()
	return stop
}

// waitForShutdown blocks until SIGINT/SIGTERM. A SIGHUP instead triggers a
// cluster-wide audit export to auditDumpPath and the wait continues, so an
// operator can snapshot the audit trail (this replica's and every known
// peer's) without restarting the process. SIGUSR1/SIGUSR2 toggle audit
// logging on and off at runtime, for an operator silencing it temporarily
// without a restart.
func waitForShutdown(logger *logging.Logger, auditMgr *audit.Manager, peerAudit *audit.PeerAuditManager, auditDumpPath string) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	for s := range sig {
		switch s {
		case syscall.SIGHUP:
			var err error
			if peerAudit.IsPeerMode() {
				err = peerAudit.ExportLogsAcrossPeers(auditDumpPath, audit.FormatJSON, audit.QueryOptions{})
			} else {
				err = peerAudit.GetLocalManager().ExportLogs(auditDumpPath, audit.FormatJSON, audit.QueryOptions{})
			}
			if err != nil {
				logger.Error("export audit trail", "error", err)
			} else {
				logger.Info("exported audit trail", "path", auditDumpPath, "cluster_wide", peerAudit.IsPeerMode())
			}
		case syscall.SIGUSR1:
			auditMgr.Enable()
			logger.Info("audit logging enabled")
		case syscall.SIGUSR2:
			auditMgr.Disable()
			logger.Info("audit logging disabled")
		default:
			logger.Info("shutting down", "signal", s.String())
			return
		}
	}
}

// startAuditCleanupLoop periodically removes audit events older than the
// manager's configured retention period, the same ticker-driven shape as
// startPersistLoop uses for snapshot persistence.
func startAuditCleanupLoop(auditMgr *audit.Manager, logger *logging.Logger, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := auditMgr.CleanupOldLogs(); err != nil {
					logger.Warn("audit log cleanup", "error", err)
				}
			}
		}
	}()
	return stop
}
