// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import "testing"

func TestParseID(t *testing.T) {
	id, err := ParseID("11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("ParseID failed: %v", err)
	}
	if id.String() != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("String() = %q", id.String())
	}
	if id.IsZero() {
		t.Error("parsed ID reported zero")
	}
}

func TestParseIDRejectsGarbage(t *testing.T) {
	if _, err := ParseID("not-a-uuid"); err == nil {
		t.Fatal("ParseID accepted garbage")
	}
}

func TestIDTextRoundTrip(t *testing.T) {
	original := NewID()
	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	var decoded ID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip mismatch: %s != %s", decoded, original)
	}
}

func TestZeroIDDoesNotMarshal(t *testing.T) {
	var zero ID
	if !zero.IsZero() {
		t.Error("zero value not reported zero")
	}
	if _, err := zero.MarshalText(); err == nil {
		t.Error("zero ID marshalled without error")
	}
}
