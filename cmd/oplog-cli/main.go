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
oplog-cli is an interactive shell over a stringsnap-backed OperationLog.
In local mode it owns the log directly, persisting to --store-path. In
remote mode (--connect) it drives a running oplog-node over the
replication wire protocol, appending through MsgPublish and pulling a
merged snapshot through MsgMergeRequest.

Commands:

	append <char>       append a character to the snapshot
	remove              remove the trailing character
	undo                undo the last applied operation
	redo                redo the last undone operation
	merge               pull and merge the remote peer's log (remote mode)
	show                print the current snapshot and summary
	history             list applied operations
	connect <addr>      switch to remote mode against addr
	local               switch back to local mode
	reset               discard the local log's history (local mode only)
	help [command]      show this command list, or detail for one command
	version             print the oplog-cli version
	exit                quit the shell
*/
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/firefly-oss/oplog/internal/clock"
	"github.com/firefly-oss/oplog/internal/compression"
	"github.com/firefly-oss/oplog/internal/protocol"
	"github.com/firefly-oss/oplog/internal/sdk"
	"github.com/firefly-oss/oplog/internal/storage"
	"github.com/firefly-oss/oplog/pkg/cli"
	"github.com/firefly-oss/oplog/pkg/oplog"
	"github.com/firefly-oss/oplog/pkg/stringsnap"
)

const version = "0.1.0"

// session holds whichever of local or remote mode is active. Only one
// of log/remoteAddr is meaningful at a time.
type session struct {
	actorID   string
	logID     string
	storePath string
	useTLS    bool

	log    *oplog.Log[string, string]
	writer *storage.SnapshotWriter
	sess   *sdk.Session

	remoteAddr string
	conn       net.Conn
}

func main() {
	actorID := flag.String("actor-id", "cli", "Actor ID this shell appends operations as")
	logID := flag.String("log-id", "cli-session", "Log ID for a fresh local log")
	storePath := flag.String("store-path", "", "Path to persist the local log snapshot (local mode only)")
	connect := flag.String("connect", "", "Dial a running oplog-node's replication address instead of running locally")
	useTLS := flag.Bool("tls", false, "Use TLS when dialing --connect")
	noColor := flag.Bool("no-color", false, "Disable colored output, regardless of terminal detection")
	flag.Parse()

	if *noColor {
		cli.SetColorsEnabled(false)
	}

	s := &session{actorID: *actorID, logID: *logID, storePath: *storePath, useTLS: *useTLS}

	if *connect != "" {
		if err := s.connectRemote(*connect); err != nil {
			host, port, splitErr := net.SplitHostPort(*connect)
			if splitErr != nil {
				host, port = *connect, ""
			}
			cli.ErrConnectionFailed(host, port, err).WithExitCode(2).Exit()
		}
	} else {
		s.goLocal()
	}
	defer s.close()

	help := buildHelp()

	rl, err := readline.New(s.promptString())
	if err != nil {
		cli.PrintError("init shell: %v", err)
		return
	}
	defer rl.Close()

	cli.PrintInfo("oplog-cli %s — type 'help' for commands, 'exit' to quit", version)

	for {
		rl.SetPrompt(s.promptString())
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			cli.PrintError("read input: %v", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if s.sess.IsExpired() {
			cli.PrintWarning("session idle for longer than %s, starting a fresh session", s.sess.Timeout)
			s.sess = sdk.NewSession(s.actorID, s.log)
		}

		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "exit", "quit":
			return
		case "help", "\\h":
			if len(args) > 0 {
				help.PrintCommandHelp(args[0])
			} else {
				help.PrintUsage()
			}
		case "version":
			help.PrintVersion()
		case "append":
			s.cmdAppend(args)
		case "remove":
			s.cmdRemove()
		case "undo":
			s.cmdUndo()
		case "redo":
			s.cmdRedo()
		case "merge":
			s.cmdMerge()
		case "show", "status":
			s.cmdShow()
		case "history":
			s.cmdHistory()
		case "connect":
			s.cmdConnect(args)
		case "local":
			s.goLocal()
			cli.PrintSuccess("switched to local mode")
		case "reset":
			s.cmdReset()
		default:
			cli.ErrInvalidCommand(cmd).Print()
		}
	}
}

func buildHelp() *cli.HelpFormatter {
	h := cli.NewHelpFormatter("oplog-cli", version)
	h.AddCommand(cli.Command{Name: "append", Usage: "append <char>", Description: "Append a character to the snapshot"})
	h.AddCommand(cli.Command{Name: "remove", Description: "Remove the trailing character"})
	h.AddCommand(cli.Command{Name: "undo", Description: "Undo the last applied operation"})
	h.AddCommand(cli.Command{Name: "redo", Description: "Redo the last undone operation"})
	h.AddCommand(cli.Command{Name: "merge", Description: "Pull and merge the remote peer's log"})
	h.AddCommand(cli.Command{Name: "show", Description: "Print the current snapshot and summary"})
	h.AddCommand(cli.Command{Name: "history", Description: "List applied operations"})
	h.AddCommand(cli.Command{Name: "connect", Usage: "connect <addr>", Description: "Switch to remote mode against a running oplog-node"})
	h.AddCommand(cli.Command{Name: "local", Description: "Switch back to local mode"})
	h.AddCommand(cli.Command{Name: "reset", Description: "Discard the local log's history and start over (local mode only)"})
	h.AddCommand(cli.Command{Name: "help", Usage: "help [command]", Description: "Show this help, or detail for a single command"})
	h.AddCommand(cli.Command{Name: "version", Description: "Print the oplog-cli version"})
	return h
}

func (s *session) promptString() string {
	if s.conn != nil {
		return fmt.Sprintf("oplog[%s]> ", s.remoteAddr)
	}
	return "oplog> "
}

func (s *session) goLocal() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.remoteAddr = ""
	}
	s.ensureLog()
}

// ensureLog lazily creates the shell's own log, loading a persisted
// snapshot from storePath if one exists. Remote mode uses this same log
// to clock-stamp operations locally before publishing them, exactly as
// a Replicator stamps an operation before fanning it out to peers.
func (s *session) ensureLog() {
	if s.log != nil {
		return
	}
	s.log = oplog.New[string, string](s.logID, s.actorID, clock.StrategyUnixTime, stringsnap.Empty())
	s.sess = sdk.NewSession(s.actorID, s.log)

	if s.storePath == "" {
		return
	}
	writer, err := storage.NewSnapshotWriter(s.storePath, compression.Config{Algorithm: compression.AlgorithmNone})
	if err != nil {
		cli.PrintWarning("could not open store path %s: %v (continuing without persistence)", s.storePath, err)
		return
	}
	s.writer = writer

	data, err := writer.Load()
	if err == nil && data != nil {
		if loaded, err := oplog.FromBytes[string, string](s.actorID, data, stringsnap.DecodeOp, stringsnap.DecodeSnapshot); err == nil {
			s.log = loaded
			s.sess.Log = loaded
			cli.PrintInfo("loaded persisted snapshot from %s", s.storePath)
		}
	}
}

func (s *session) connectRemote(addr string) error {
	var conn net.Conn
	var err error
	if s.useTLS {
		conn, err = tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	} else {
		conn, err = net.DialTimeout("tcp", addr, 5*time.Second)
	}
	if err != nil {
		return err
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.remoteAddr = addr
	s.ensureLog()
	return nil
}

func (s *session) cmdConnect(args []string) {
	if len(args) != 1 {
		cli.ErrMissingArgument("addr", "connect <host:port>").Print()
		return
	}
	if err := s.connectRemote(args[0]); err != nil {
		host, port, splitErr := net.SplitHostPort(args[0])
		if splitErr != nil {
			host, port = args[0], ""
		}
		cli.ErrConnectionFailed(host, port, err).Print()
		return
	}
	cli.PrintSuccess("connected to %s", args[0])
}

func (s *session) persist() {
	if s.writer == nil || s.log == nil {
		return
	}
	data, err := s.log.Serialize()
	if err != nil {
		cli.PrintWarning("serialize for persistence: %v", err)
		return
	}
	s.writer.Submit(data)
}

func (s *session) close() {
	if s.sess != nil {
		s.sess.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	if s.writer != nil {
		s.persist()
		s.writer.Close()
	}
}

func (s *session) cmdAppend(args []string) {
	if len(args) != 1 || len(args[0]) != 1 {
		cli.ErrInvalidValue("char", strings.Join(args, " "), "append takes exactly one character").Print()
		return
	}
	op := stringsnap.Append(args[0][0])
	s.applyOrPublish(op)
}

func (s *session) cmdRemove() {
	snap := s.log.Snapshot().(stringsnap.Snapshot)
	if len(snap) == 0 {
		cli.PrintWarning("snapshot is already empty")
		return
	}
	s.applyOrPublish(stringsnap.RemoveLast(snap[len(snap)-1]))
}

// applyOrPublish always applies op to the local log first, so the
// LoggedOperation carries a proper clock stamp, then — in remote mode —
// publishes that single stamped operation to the connected peer the
// same way Replicator.Append does.
func (s *session) applyOrPublish(op stringsnap.Op) {
	s.log.Append(op)
	s.sess.Touch()
	s.persist()
	cli.PrintSuccess("applied %s -> %q", op.String(), string(s.log.Snapshot().(stringsnap.Snapshot)))

	if s.conn == nil {
		return
	}
	ops := s.log.Operations()
	lo := ops[len(ops)-1]
	s.publishRemote(lo)
}

func (s *session) publishRemote(lo oplog.LoggedOperation[string]) {
	encoded, err := oplog.SerializeOperations([]oplog.LoggedOperation[string]{lo})
	if err != nil {
		cli.PrintError("encode operation batch: %v", err)
		return
	}
	msg := &protocol.PublishMessage{ActorID: s.actorID, LogID: s.logID, Operations: encoded}
	payload, err := msg.Encode()
	if err != nil {
		cli.PrintError("encode publish message: %v", err)
		return
	}

	spinner := cli.NewSpinner(fmt.Sprintf("publishing to %s", s.remoteAddr))
	spinner.Start()

	if err := protocol.WriteMessage(s.conn, protocol.MsgPublish, payload); err != nil {
		spinner.StopWithError(fmt.Sprintf("send publish: %v", err))
		return
	}
	spinner.UpdateMessage(fmt.Sprintf("awaiting ack from %s", s.remoteAddr))
	reply, err := protocol.ReadMessage(s.conn)
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("read reply: %v", err))
		return
	}
	switch reply.Header.Type {
	case protocol.MsgPublishAck:
		spinner.StopWithSuccess(fmt.Sprintf("peer acknowledged %s", lo.Operation().String()))
	case protocol.MsgError:
		errMsg, _ := protocol.DecodeErrorMessage(reply.Payload)
		spinner.StopWithError(fmt.Sprintf("peer rejected operation: %s", errMsg.Message))
	default:
		spinner.StopWithError(fmt.Sprintf("unexpected reply type %v", reply.Header.Type))
	}
}

func (s *session) cmdUndo() {
	if !s.log.CanUndo() {
		cli.PrintWarning("nothing to undo")
		return
	}
	s.log.Undo()
	s.sess.Touch()
	s.persist()
	cli.PrintSuccess("undone -> %q", string(s.log.Snapshot().(stringsnap.Snapshot)))
}

func (s *session) cmdRedo() {
	if !s.log.CanRedo() {
		cli.PrintWarning("nothing to redo")
		return
	}
	s.log.Redo()
	s.sess.Touch()
	s.persist()
	cli.PrintSuccess("redone -> %q", string(s.log.Snapshot().(stringsnap.Snapshot)))
}

// cmdMerge sends a MergeRequest to the connected peer and merges its
// returned log back into the local one, exactly as the anti-entropy
// loop does inside a running replicator.
func (s *session) cmdMerge() {
	if s.conn == nil {
		cli.PrintWarning("merge only applies in remote mode; use 'connect <addr>' first")
		return
	}
	msg := &protocol.MergeRequestMessage{ActorID: s.actorID, LogID: s.logID}
	payload, err := msg.Encode()
	if err != nil {
		cli.PrintError("encode merge request: %v", err)
		return
	}

	spinner := cli.NewSpinner(fmt.Sprintf("merging with %s", s.remoteAddr))
	spinner.Start()

	if err := protocol.WriteMessage(s.conn, protocol.MsgMergeRequest, payload); err != nil {
		spinner.StopWithError(fmt.Sprintf("send merge request: %v", err))
		return
	}
	reply, err := protocol.ReadMessage(s.conn)
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("read merge response: %v", err))
		return
	}
	if reply.Header.Type != protocol.MsgMergeResponse {
		spinner.StopWithError(fmt.Sprintf("unexpected reply type %v", reply.Header.Type))
		return
	}
	remote, err := oplog.FromBytes[string, string](s.remoteAddr, reply.Payload, stringsnap.DecodeOp, stringsnap.DecodeSnapshot)
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("decode remote log: %v", err))
		return
	}
	before := len(s.log.Operations())
	if err := s.log.Merge(remote); err != nil {
		spinner.StopWithError(fmt.Sprintf("merge: %v", err))
		return
	}
	s.sess.Touch()
	s.persist()
	if len(s.log.Operations()) == before {
		spinner.StopWithWarning(fmt.Sprintf("merged, but peer had no new operations -> %q", string(s.log.Snapshot().(stringsnap.Snapshot))))
		return
	}
	spinner.StopWithSuccess(fmt.Sprintf("merged -> %q", string(s.log.Snapshot().(stringsnap.Snapshot))))
}

func (s *session) cmdShow() {
	snap := s.log.Snapshot().(stringsnap.Snapshot)
	info := s.sess.Describe()

	cli.Box("oplog status", fmt.Sprintf("log %s, actor %s", s.log.LogID(), s.log.ActorID()))
	cli.KeyValue("snapshot", cli.Highlight(fmt.Sprintf("%q", string(snap))), 12)
	cli.KeyValue("operations", fmt.Sprintf("%d", len(s.log.Operations())), 12)
	cli.KeyValue("can undo", fmt.Sprintf("%v", info.CanUndo), 12)
	cli.KeyValue("can redo", fmt.Sprintf("%v", info.CanRedo), 12)
	cli.KeyValue("session", fmt.Sprintf("%s (idle timeout %s)", info.SessionID, s.sess.Timeout), 12)
	cli.KeyValue("active", fmt.Sprintf("%v (idle-expired: %v)", s.sess.IsActive(), s.sess.IsExpired()), 12)
	cli.KeyValue("actors", strings.Join(sortedActors(s.log.Summary().Actors), ", "), 12)
}

// sortedActors renders the actor set in the operator's own locale order
// for display only; the log's own total order stays locale-independent.
func sortedActors(actors map[string]struct{}) []string {
	ids := make([]string, 0, len(actors))
	for a := range actors {
		ids = append(ids, a)
	}
	clock.NewDisplayCollator("").SortStrings(ids)
	return ids
}

// cmdReset discards the local log's entire history, replacing it with a
// fresh empty log under the same actor and log ID. It refuses in remote
// mode, since the authoritative history lives on the peer, not here.
func (s *session) cmdReset() {
	if s.conn != nil {
		cli.PrintWarning("reset only applies in local mode; use 'local' first")
		return
	}
	if !cli.ConfirmDestructive(
		fmt.Sprintf("This discards all %d operations in log %q.", len(s.log.Operations()), s.logID),
		s.logID,
	) {
		cli.PrintWarning("reset cancelled")
		return
	}
	s.log = oplog.New[string, string](s.logID, s.actorID, clock.StrategyUnixTime, stringsnap.Empty())
	s.sess.Log = s.log
	s.sess.Touch()
	s.persist()
	cli.PrintSuccess("log %q reset", s.logID)
}

func (s *session) cmdHistory() {
	printHistory(s.log.Operations())
}

func printHistory(ops []oplog.LoggedOperation[string]) {
	fmt.Println(cli.Separator(40))
	t := cli.NewTable("#", "actor", "operation", "clock")
	for i, lo := range ops {
		c := lo.Clock()
		t.AddRow(fmt.Sprintf("%d", i), lo.Actor(), lo.Operation().String(), clockSummary(c))
	}
	t.Print()
	fmt.Println(cli.Separator(40))
}

// clockSummary renders a LoggedOperation's clock as the strategy that
// produced its tie-breaking timestamp, the timestamp itself, and how many
// distinct actors have ticked it so far.
func clockSummary(c clock.Clock[string]) string {
	return fmt.Sprintf("%s@%.0f (%d actors)", c.Strategy(), c.Timestamp(), len(c.Actors()))
}
