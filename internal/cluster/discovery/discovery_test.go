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

import "testing"

func TestEncodeDecodeTXTRoundTrip(t *testing.T) {
	adv := Advertisement{
		ActorID:         "actor-a",
		LogID:           "default",
		GossipPort:      7946,
		ReplicationPort: 7373,
		Version:         "0.1.0",
	}

	fields, err := encodeTXT(adv)
	if err != nil {
		t.Fatalf("encodeTXT: %v", err)
	}

	var got Advertisement
	if err := decodeTXT(fields, &got); err != nil {
		t.Fatalf("decodeTXT: %v", err)
	}
	if got != adv {
		t.Errorf("round trip = %+v, want %+v", got, adv)
	}
}

func TestDecodeTXTRejectsEmpty(t *testing.T) {
	var adv Advertisement
	if err := decodeTXT(nil, &adv); err == nil {
		t.Error("expected error decoding empty TXT record")
	}
}

func TestStartNoopWhenNotAdvertising(t *testing.T) {
	svc := New(Config{ActorID: "actor-a", Advertise: false})
	if err := svc.Start(); err != nil {
		t.Fatalf("Start in browse-only mode: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop with no server started: %v", err)
	}
}
