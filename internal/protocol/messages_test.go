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

package protocol

import "testing"

func TestPublishMessageEncodeDecode(t *testing.T) {
	original := &PublishMessage{ActorID: "actor-a", LogID: "default", Operations: []byte{1, 2, 3, 4}}

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodePublishMessage(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.ActorID != original.ActorID {
		t.Errorf("ActorID mismatch: got %q, want %q", decoded.ActorID, original.ActorID)
	}
	if decoded.LogID != original.LogID {
		t.Errorf("LogID mismatch: got %q, want %q", decoded.LogID, original.LogID)
	}
	if string(decoded.Operations) != string(original.Operations) {
		t.Errorf("Operations mismatch: got %v, want %v", decoded.Operations, original.Operations)
	}
}

func TestMergeRequestMessageEncodeDecode(t *testing.T) {
	original := &MergeRequestMessage{ActorID: "actor-b", LogID: "default"}

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeMergeRequestMessage(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.ActorID != original.ActorID || decoded.LogID != original.LogID {
		t.Errorf("decoded message mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestErrorMessageEncodeDecode(t *testing.T) {
	original := &ErrorMessage{Code: 404, Message: "log not found"}

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeErrorMessage(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Code != original.Code {
		t.Errorf("Code mismatch: expected %d, got %d", original.Code, decoded.Code)
	}
	if decoded.Message != original.Message {
		t.Errorf("Message mismatch")
	}
}

func TestAuthMessageEncodeDecode(t *testing.T) {
	original := &AuthMessage{ActorID: "actor-a", Token: "secret"}

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeAuthMessage(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.ActorID != original.ActorID {
		t.Errorf("ActorID mismatch")
	}
	if decoded.Token != original.Token {
		t.Errorf("Token mismatch")
	}
}

func TestBinaryEncoderDecoder(t *testing.T) {
	encoder := NewBinaryEncoder()

	encoder.WriteString("hello")
	encoder.WriteInt64(12345)
	encoder.WriteFloat64(3.14159)
	encoder.WriteBool(true)
	encoder.WriteBytes([]byte{1, 2, 3})

	decoder := NewBinaryDecoder(encoder.Bytes())

	str, err := decoder.ReadString()
	if err != nil || str != "hello" {
		t.Errorf("String mismatch: %v, %s", err, str)
	}

	i64, err := decoder.ReadInt64()
	if err != nil || i64 != 12345 {
		t.Errorf("Int64 mismatch: %v, %d", err, i64)
	}

	f64, err := decoder.ReadFloat64()
	if err != nil || f64 != 3.14159 {
		t.Errorf("Float64 mismatch: %v, %f", err, f64)
	}

	b, err := decoder.ReadBool()
	if err != nil || !b {
		t.Errorf("Bool mismatch: %v, %v", err, b)
	}

	bytes, err := decoder.ReadBytes()
	if err != nil || len(bytes) != 3 {
		t.Errorf("Bytes mismatch: %v, %v", err, bytes)
	}
}

func TestBinaryDecoderShortBuffer(t *testing.T) {
	decoder := NewBinaryDecoder([]byte{0, 0, 0, 5, 'h', 'i'})
	if _, err := decoder.ReadBytes(); err != ErrShortBuffer {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}
