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
Typed Messages
==============

This file defines the payload shapes carried by the MessageTypes declared
in protocol.go, plus the BinaryEncoder/BinaryDecoder primitives used to
pack and unpack them. Each message type is a plain struct with an
Encode/Decode pair rather than a generic reflection-based codec, so the
wire format for each message stays an explicit, reviewable sequence of
primitives.
*/
package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is returned by BinaryDecoder when the buffer runs out
// before a requested field can be read.
var ErrShortBuffer = errors.New("protocol: buffer too short")

// BinaryEncoder writes a sequence of primitive values into a byte buffer.
type BinaryEncoder struct {
	buf []byte
}

// NewBinaryEncoder creates an empty encoder.
func NewBinaryEncoder() *BinaryEncoder {
	return &BinaryEncoder{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded buffer.
func (e *BinaryEncoder) Bytes() []byte { return e.buf }

// WriteString appends a length-prefixed UTF-8 string.
func (e *BinaryEncoder) WriteString(s string) {
	e.WriteBytes([]byte(s))
}

// WriteBytes appends a length-prefixed byte slice.
func (e *BinaryEncoder) WriteBytes(b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	e.buf = append(e.buf, lenBuf[:]...)
	e.buf = append(e.buf, b...)
}

// WriteInt64 appends a big-endian int64.
func (e *BinaryEncoder) WriteInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

// WriteFloat64 appends a big-endian IEEE 754 float64.
func (e *BinaryEncoder) WriteFloat64(v float64) {
	e.WriteInt64(int64(math.Float64bits(v)))
}

// WriteBool appends a single boolean byte.
func (e *BinaryEncoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// BinaryDecoder reads a sequence of primitive values from a byte buffer,
// written in the same order by a matching BinaryEncoder.
type BinaryDecoder struct {
	buf []byte
	pos int
}

// NewBinaryDecoder creates a decoder over buf.
func NewBinaryDecoder(buf []byte) *BinaryDecoder {
	return &BinaryDecoder{buf: buf}
}

func (d *BinaryDecoder) require(n int) error {
	if len(d.buf)-d.pos < n {
		return ErrShortBuffer
	}
	return nil
}

// ReadBytes reads a length-prefixed byte slice.
func (d *BinaryDecoder) ReadBytes() ([]byte, error) {
	if err := d.require(4); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(d.buf[d.pos:]))
	d.pos += 4
	if err := d.require(n); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (d *BinaryDecoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadInt64 reads a big-endian int64.
func (d *BinaryDecoder) ReadInt64() (int64, error) {
	if err := d.require(8); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(d.buf[d.pos:]))
	d.pos += 8
	return v, nil
}

// ReadFloat64 reads a big-endian IEEE 754 float64.
func (d *BinaryDecoder) ReadFloat64() (float64, error) {
	bits, err := d.ReadInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

// ReadBool reads a single boolean byte.
func (d *BinaryDecoder) ReadBool() (bool, error) {
	if err := d.require(1); err != nil {
		return false, err
	}
	v := d.buf[d.pos] != 0
	d.pos++
	return v, nil
}

// PublishMessage carries a batch of serialized LoggedOperations (already
// encoded by pkg/oplog) from one replica to a peer.
type PublishMessage struct {
	ActorID    string
	LogID      string
	Operations []byte // pkg/oplog-serialized operation batch
}

// Encode implements the wire format for PublishMessage.
func (m *PublishMessage) Encode() ([]byte, error) {
	e := NewBinaryEncoder()
	e.WriteString(m.ActorID)
	e.WriteString(m.LogID)
	e.WriteBytes(m.Operations)
	return e.Bytes(), nil
}

// DecodePublishMessage decodes a PublishMessage from data.
func DecodePublishMessage(data []byte) (*PublishMessage, error) {
	d := NewBinaryDecoder(data)
	actorID, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	logID, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	ops, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	return &PublishMessage{ActorID: actorID, LogID: logID, Operations: append([]byte(nil), ops...)}, nil
}

// MergeRequestMessage asks a peer for its current Summary and operations
// so the requester can merge them in.
type MergeRequestMessage struct {
	ActorID string
	LogID   string
}

// Encode implements the wire format for MergeRequestMessage.
func (m *MergeRequestMessage) Encode() ([]byte, error) {
	e := NewBinaryEncoder()
	e.WriteString(m.ActorID)
	e.WriteString(m.LogID)
	return e.Bytes(), nil
}

// DecodeMergeRequestMessage decodes a MergeRequestMessage from data.
func DecodeMergeRequestMessage(data []byte) (*MergeRequestMessage, error) {
	d := NewBinaryDecoder(data)
	actorID, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	logID, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &MergeRequestMessage{ActorID: actorID, LogID: logID}, nil
}

// ErrorMessage reports a failure in response to any request message.
type ErrorMessage struct {
	Code    int64
	Message string
}

// Encode implements the wire format for ErrorMessage.
func (m *ErrorMessage) Encode() ([]byte, error) {
	e := NewBinaryEncoder()
	e.WriteInt64(m.Code)
	e.WriteString(m.Message)
	return e.Bytes(), nil
}

// DecodeErrorMessage decodes an ErrorMessage from data.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewBinaryDecoder(data)
	code, err := d.ReadInt64()
	if err != nil {
		return nil, err
	}
	msg, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: code, Message: msg}, nil
}

// AuthMessage is the MsgAuth payload: an actor ID and a token. No handler
// in this module decodes it or compares the token with Config.AdminToken.
type AuthMessage struct {
	ActorID string
	Token   string
}

// Encode implements the wire format for AuthMessage.
func (m *AuthMessage) Encode() ([]byte, error) {
	e := NewBinaryEncoder()
	e.WriteString(m.ActorID)
	e.WriteString(m.Token)
	return e.Bytes(), nil
}

// DecodeAuthMessage decodes an AuthMessage from data.
func DecodeAuthMessage(data []byte) (*AuthMessage, error) {
	d := NewBinaryDecoder(data)
	actorID, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	token, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &AuthMessage{ActorID: actorID, Token: token}, nil
}
