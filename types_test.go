package asha

import "testing"

func TestReadOnlyPropertiesRoundTrip(t *testing.T) {
	orig := validROPCBytes(0x03) // right ear, binaural, no CSIS
	ropc, err := ParseReadOnlyProperties(orig)
	if err != nil {
		t.Fatalf("ParseReadOnlyProperties: %v", err)
	}

	got := ropc.Bytes()
	if len(got) != ReadOnlyPropertiesSize {
		t.Fatalf("Bytes() length = %d, want %d", len(got), ReadOnlyPropertiesSize)
	}
	for i := range orig {
		if got[i] != orig[i] {
			t.Fatalf("round-trip byte %d = %#x, want %#x (got % x, want % x)", i, got[i], orig[i], got, orig)
		}
	}

	reparsed, err := ParseReadOnlyProperties(got)
	if err != nil {
		t.Fatalf("ParseReadOnlyProperties(Bytes()): %v", err)
	}
	if reparsed != ropc {
		t.Fatalf("re-parsed ReadOnlyProperties = %+v, want %+v", reparsed, ropc)
	}
}

func TestReadOnlyPropertiesParseRejectsWrongSize(t *testing.T) {
	if _, err := ParseReadOnlyProperties(make([]byte, ReadOnlyPropertiesSize-1)); err == nil {
		t.Fatal("ParseReadOnlyProperties should reject a short buffer")
	}
}
