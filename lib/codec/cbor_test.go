// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestDeterministicMapEncoding(t *testing.T) {
	// Core Deterministic Encoding sorts map keys, so two maps with the
	// same entries encode to identical bytes regardless of insertion
	// order.
	first, err := Marshal(map[string]int{"alpha": 1, "beta": 2, "gamma": 3})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	second, err := Marshal(map[string]int{"gamma": 3, "alpha": 1, "beta": 2})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("same map encoded to different bytes:\n%x\n%x", first, second)
	}
}

func TestStructRoundTrip(t *testing.T) {
	type payload struct {
		Name  string `cbor:"name"`
		Count int    `cbor:"count"`
	}
	encoded, err := Marshal(payload{Name: "edge-1", Count: 7})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded payload
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Name != "edge-1" || decoded.Count != 7 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	// Forward compatibility: a newer peer may send fields this build
	// does not know about.
	encoded, err := Marshal(map[string]any{"name": "edge-1", "future": true})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		Name string `cbor:"name"`
	}
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Name != "edge-1" {
		t.Errorf("unexpected name: %q", decoded.Name)
	}
}

func TestAnyTargetDecodesToStringKeyedMap(t *testing.T) {
	encoded, err := Marshal(map[string]string{"id": "abc"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded to %T, want map[string]any", decoded)
	}
	if asMap["id"] != "abc" {
		t.Errorf("unexpected value: %v", asMap["id"])
	}
}
