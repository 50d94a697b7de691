/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package oplog

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/firefly-oss/oplog/internal/clock"
	operrors "github.com/firefly-oss/oplog/internal/errors"
)

// wireFormatVersion is stamped into every container Serialize produces.
// FromBytes rejects a container whose major version differs from its own,
// since a major bump signals an incompatible container schema change;
// minor/patch differences are accepted (additive, backward-compatible
// fields only).
const wireFormatVersion = "v1.0.0"

// wireApplyType is the tagged-union wire form of ApplyType: Full carries
// no payload, Partial and Skipped carry a reason.
type wireApplyType struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

type wireAppliedOperation[A ID] struct {
	ID        []byte        `json:"id"`
	Index     uint64        `json:"index"`
	Actor     A             `json:"actor"`
	ApplyType wireApplyType `json:"applyType"`
}

type wireSummary[A ID] struct {
	Actors         []A                         `json:"actors"`
	LatestClock    clock.Clock[A]              `json:"latestClock"`
	OperationCount uint64                      `json:"operationCount"`
	OperationInfos []wireAppliedOperation[A]   `json:"operationInfos"`
}

type wireLoggedOperation[A ID] struct {
	UUID      []byte         `json:"uuid"`
	Actor     A              `json:"actor"`
	Clock     clock.Clock[A] `json:"clock"`
	Operation []byte         `json:"operation"`
}

// wireContainer is the top-level on-disk/on-wire log container schema.
type wireContainer[A ID, L ID] struct {
	WireVersion   string                   `json:"wireVersion"`
	LogID         L                        `json:"logID"`
	BaseSnapshot  []byte                   `json:"baseSnapshot"`
	InitialSha256 []byte                   `json:"initialSha256"`
	InitialClock  *clock.Clock[A]          `json:"initialClock"`
	Summary       wireSummary[A]           `json:"summary"`
	Operations    []wireLoggedOperation[A] `json:"operations"`
}

func marshalApplyType(a ApplyType, reason string) wireApplyType {
	switch a {
	case ApplyFull:
		return wireApplyType{Kind: "full"}
	case ApplyPartial:
		return wireApplyType{Kind: "partial", Reason: reason}
	default:
		return wireApplyType{Kind: "skipped", Reason: reason}
	}
}

func unmarshalApplyType(w wireApplyType) (ApplyType, string) {
	switch w.Kind {
	case "full":
		return ApplyFull, ""
	case "partial":
		return ApplyPartial, w.Reason
	default:
		return ApplySkipped, w.Reason
	}
}

// Serialize returns the self-describing byte form of l: baseline,
// initial summary, and the full operation sequence, sufficient for
// FromBytes to reconstruct an equivalent log on another actor. Infallible
// as long as the user's Operation/Snapshot MarshalBinary implementations
// succeed.
func (l *Log[A, L]) Serialize() ([]byte, error) {
	baseSnap, err := marshalSnapshot(l.baseline.Snapshot)
	if err != nil {
		return nil, operrors.Decode(err)
	}

	actors := make([]A, 0, len(l.initialSummary.Actors))
	for a := range l.initialSummary.Actors {
		actors = append(actors, a)
	}

	infos := make([]wireAppliedOperation[A], len(l.initialSummary.Infos))
	for i, info := range l.initialSummary.Infos {
		idBytes, _ := info.ID.MarshalBinary()
		infos[i] = wireAppliedOperation[A]{
			ID:        idBytes,
			Index:     info.Index,
			Actor:     info.Actor,
			ApplyType: marshalApplyType(info.ApplyType, info.Reason),
		}
	}

	ops := make([]wireLoggedOperation[A], len(l.operations))
	for i, lo := range l.operations {
		opBytes, err := lo.Operation().MarshalBinary()
		if err != nil {
			return nil, operrors.Decode(err)
		}
		idBytes, _ := lo.ID().MarshalBinary()
		ops[i] = wireLoggedOperation[A]{
			UUID:      idBytes,
			Actor:     lo.Actor(),
			Clock:     lo.Clock(),
			Operation: opBytes,
		}
	}

	container := wireContainer[A, L]{
		WireVersion:   wireFormatVersion,
		LogID:         l.logID,
		BaseSnapshot:  baseSnap,
		InitialSha256: l.baseline.SHA256[:],
		InitialClock:  l.baseline.Clock,
		Summary: wireSummary[A]{
			Actors:         actors,
			LatestClock:    l.initialSummary.LatestClock,
			OperationCount: l.initialSummary.OperationCount,
			OperationInfos: infos,
		},
		Operations: ops,
	}

	data, err := json.Marshal(container)
	if err != nil {
		return nil, operrors.Decode(err)
	}
	return data, nil
}

// marshalSnapshot is a tiny adapter so Serialize can call MarshalBinary
// on the Snapshot interface without importing encoding.BinaryMarshaler
// directly into the Snapshot contract (Snapshot only requires Apply;
// user types are expected to additionally implement MarshalBinary to
// participate in serialization, mirroring Operation).
func marshalSnapshot(s Snapshot) ([]byte, error) {
	m, ok := s.(interface{ MarshalBinary() ([]byte, error) })
	if !ok {
		return nil, fmt.Errorf("snapshot type %T does not implement MarshalBinary", s)
	}
	return m.MarshalBinary()
}

// FromBytes decodes a container produced by Serialize into a live Log
// owned by actorID. It requires the decoded operation list to already be
// sorted ascending under the clock total order, failing CorruptLog
// otherwise. The ClockProvider is seeded from the last operation's clock,
// falling back to the baseline's clock, falling back to a fresh clock for
// actorID.
func FromBytes[A ID, L ID](actorID A, data []byte, opDecoder OperationDecoder, snapDecoder SnapshotDecoder) (*Log[A, L], error) {
	var container wireContainer[A, L]
	if err := json.Unmarshal(data, &container); err != nil {
		return nil, operrors.Decode(err)
	}
	if err := checkWireVersion(container.WireVersion); err != nil {
		return nil, err
	}

	baseSnap, err := snapDecoder(container.BaseSnapshot)
	if err != nil {
		return nil, operrors.Decode(err)
	}

	var sha [32]byte
	copy(sha[:], container.InitialSha256)

	baseline := Baseline[A]{Snapshot: baseSnap, SHA256: sha, Clock: container.InitialClock}

	operations := make([]LoggedOperation[A], len(container.Operations))
	for i, w := range container.Operations {
		id, err := uuid.FromBytes(w.UUID)
		if err != nil {
			return nil, operrors.Decode(err)
		}
		op, err := opDecoder(w.Operation)
		if err != nil {
			return nil, operrors.Decode(err)
		}
		operations[i] = hydrateLoggedOperation(id, w.Actor, w.Clock, op)

		if i > 0 {
			prev := operations[i-1].Clock()
			if prev.TotalOrder(w.Clock) != clock.Ascending {
				return nil, operrors.CorruptLog("operations are not sorted ascending under total order")
			}
		}
	}

	if baseline.Clock != nil && len(operations) > 0 {
		if baseline.Clock.TotalOrder(operations[0].Clock()) != clock.Ascending {
			return nil, operrors.CorruptLog("first operation does not postdate the baseline clock")
		}
	}

	actors := map[A]struct{}{}
	for _, a := range container.Summary.Actors {
		actors[a] = struct{}{}
	}
	infos := make([]AppliedOperation[A], len(container.Summary.OperationInfos))
	for i, w := range container.Summary.OperationInfos {
		id, err := uuid.FromBytes(w.ID)
		if err != nil {
			return nil, operrors.Decode(err)
		}
		applyType, reason := unmarshalApplyType(w.ApplyType)
		infos[i] = AppliedOperation[A]{ID: id, Index: w.Index, Actor: w.Actor, ApplyType: applyType, Reason: reason}
	}
	initialSummary := Summary[A]{
		Actors:         actors,
		LatestClock:    container.Summary.LatestClock,
		OperationCount: container.Summary.OperationCount,
		Infos:          infos,
	}

	seedClock := chooseSeedClock(operations, baseline, initialSummary.LatestClock)
	l := &Log[A, L]{
		logID:          container.LogID,
		actorID:        actorID,
		baseline:       baseline,
		initialSummary: initialSummary,
		operations:     operations,
		provider:       clock.Seed(actorID, seedClock),
		snapshot:       baseSnap,
		opDecoder:      opDecoder,
		snapDecoder:    snapDecoder,
	}
	l.recomputeFromBaseline()
	return l, nil
}

// checkWireVersion rejects a container stamped with an incompatible major
// wire-format version. A blank version (pre-dating the wireVersion field)
// is treated as v1.0.0. Minor/patch skew is accepted since those bumps are
// additive only.
func checkWireVersion(v string) error {
	if v == "" {
		v = wireFormatVersion
	}
	if !semver.IsValid(v) {
		return operrors.CorruptLog(fmt.Sprintf("invalid wire format version %q", v))
	}
	if semver.Major(v) != semver.Major(wireFormatVersion) {
		return operrors.CorruptLog(fmt.Sprintf("incompatible wire format version %s, this build supports %s", v, wireFormatVersion))
	}
	return nil
}

func chooseSeedClock[A ID](operations []LoggedOperation[A], baseline Baseline[A], fallback clock.Clock[A]) clock.Clock[A] {
	if len(operations) > 0 {
		return operations[len(operations)-1].Clock()
	}
	if baseline.Clock != nil {
		return *baseline.Clock
	}
	return fallback
}

// hydrateLoggedOperation reconstructs a LoggedOperation from its
// constituent fields as decoded from the wire, bypassing the
// fresh-random-UUID path newLoggedOperation uses for locally authored
// operations.
func hydrateLoggedOperation[A ID](id uuid.UUID, actor A, c clock.Clock[A], op Operation) LoggedOperation[A] {
	return LoggedOperation[A]{id: id, actor: actor, clock: c, operation: op}
}

// SerializeOperations encodes a batch of LoggedOperations on their own,
// without a baseline or summary, for transport between replicas that
// already share a baseline (e.g. a Publish message). The result decodes
// back with DecodeOperations.
func SerializeOperations[A ID](ops []LoggedOperation[A]) ([]byte, error) {
	wire := make([]wireLoggedOperation[A], len(ops))
	for i, lo := range ops {
		opBytes, err := lo.Operation().MarshalBinary()
		if err != nil {
			return nil, operrors.Decode(err)
		}
		idBytes, _ := lo.ID().MarshalBinary()
		wire[i] = wireLoggedOperation[A]{
			UUID:      idBytes,
			Actor:     lo.Actor(),
			Clock:     lo.Clock(),
			Operation: opBytes,
		}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, operrors.Decode(err)
	}
	return data, nil
}

// DecodeOperations decodes a batch produced by SerializeOperations back
// into LoggedOperations, suitable for Insert. Operations are returned in
// the order encoded; callers that require total-order sorting should
// pass the result directly to Insert, which sorts and dedupes itself.
func DecodeOperations[A ID](data []byte, opDecoder OperationDecoder) ([]LoggedOperation[A], error) {
	var wire []wireLoggedOperation[A]
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, operrors.Decode(err)
	}

	ops := make([]LoggedOperation[A], len(wire))
	for i, w := range wire {
		id, err := uuid.FromBytes(w.UUID)
		if err != nil {
			return nil, operrors.Decode(err)
		}
		op, err := opDecoder(w.Operation)
		if err != nil {
			return nil, operrors.Decode(err)
		}
		ops[i] = hydrateLoggedOperation(id, w.Actor, w.Clock, op)
	}
	return ops, nil
}
