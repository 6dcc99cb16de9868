package asha

import (
	"context"
	"testing"
)

func TestControlPlaneStartMonoEmitsExpectedOpcode(t *testing.T) {
	p, acpc, astc, _ := newTestPeer(0x00)
	astc.setValue([]byte{0x00})

	cp := NewControlPlane(nil)
	streaming := cp.Start(context.Background(), []*Peer{p})

	if len(streaming) != 1 {
		t.Fatalf("Start() returned %d streaming peers, want 1", len(streaming))
	}
	want := []byte{0x01, 0x01, 0x00, 0x80, 0x00}
	got := acpc.lastWrite()
	if !bytesEqual(got, want) {
		t.Fatalf("ACPC write = % x, want % x", got, want)
	}
}

func TestControlPlaneStartBinauralSetsOtherState(t *testing.T) {
	left, leftACPC, leftASTC, _ := newTestPeer(0x02)     // Left, Binaural
	right, rightACPC, rightASTC, _ := newTestPeer(0x03) // Right, Binaural
	leftASTC.setValue([]byte{0x00})
	rightASTC.setValue([]byte{0x00})

	cp := NewControlPlane(nil)
	streaming := cp.Start(context.Background(), []*Peer{left, right})

	if len(streaming) != 2 {
		t.Fatalf("Start() returned %d streaming peers, want 2", len(streaming))
	}
	want := []byte{0x01, 0x01, 0x00, 0x80, 0x01}
	if !bytesEqual(leftACPC.lastWrite(), want) {
		t.Fatalf("left ACPC write = % x, want % x", leftACPC.lastWrite(), want)
	}
	if !bytesEqual(rightACPC.lastWrite(), want) {
		t.Fatalf("right ACPC write = % x, want % x", rightACPC.lastWrite(), want)
	}
}

func TestControlPlaneStartMarksNonZeroStatusFaulted(t *testing.T) {
	p, _, astc, _ := newTestPeer(0x00)
	astc.setValue([]byte{0xFE}) // -2: illegal parameter

	cp := NewControlPlane(nil)
	streaming := cp.Start(context.Background(), []*Peer{p})

	if len(streaming) != 0 {
		t.Fatalf("Start() returned %d streaming peers, want 0", len(streaming))
	}
	if !p.Faulted() {
		t.Fatal("peer should be marked Faulted after non-zero status")
	}
}

func TestControlPlaneStopWritesStopOpcode(t *testing.T) {
	p, acpc, _, _ := newTestPeer(0x00)
	cp := NewControlPlane(nil)
	cp.Stop(context.Background(), []*Peer{p})

	if got := acpc.lastWrite(); len(got) != 1 || got[0] != 0x02 {
		t.Fatalf("ACPC write = %v, want [0x02]", got)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
