package asha

import (
	"testing"

	"ashastream/internal/g722"
)

func testPeerForSide(side byte) *Peer {
	p, _, _, _ := newTestPeer(side)
	return p
}

func TestAudioPipelineMonoFeedDuplicatesToEveryEar(t *testing.T) {
	left := testPeerForSide(0x02)
	right := testPeerForSide(0x03)

	ap := NewAudioPipeline(-1, nil)
	ap.SetPeers(map[Side]*Peer{SideLeft: left, SideRight: right})

	pcm := make([]int16, g722.SamplesPerFrame)
	if err := ap.Feed(pcm, 1); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	if _, ok := left.DequeueFrame(); !ok {
		t.Fatal("expected one queued frame for left ear")
	}
	if _, ok := right.DequeueFrame(); !ok {
		t.Fatal("expected one queued frame for right ear")
	}
}

func TestAudioPipelineStereoFeedSplitsChannels(t *testing.T) {
	left := testPeerForSide(0x02)
	right := testPeerForSide(0x03)

	ap := NewAudioPipeline(-1, nil)
	ap.SetPeers(map[Side]*Peer{SideLeft: left, SideRight: right})

	interleaved := make([]int16, g722.SamplesPerFrame*2)
	if err := ap.Feed(interleaved, 2); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	if _, ok := left.DequeueFrame(); !ok {
		t.Fatal("expected one queued frame for left ear")
	}
	if _, ok := right.DequeueFrame(); !ok {
		t.Fatal("expected one queued frame for right ear")
	}
}

func TestAudioPipelinePartialChunkProducesNoFrame(t *testing.T) {
	left := testPeerForSide(0x00)
	ap := NewAudioPipeline(-1, nil)
	ap.SetPeers(map[Side]*Peer{SideLeft: left})

	pcm := make([]int16, g722.SamplesPerFrame-1)
	if err := ap.Feed(pcm, 1); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, ok := left.DequeueFrame(); ok {
		t.Fatal("319 residual samples should not produce a frame")
	}
}

func TestAudioPipelineRejectsUnsupportedChannelCount(t *testing.T) {
	left := testPeerForSide(0x00)
	ap := NewAudioPipeline(-1, nil)
	ap.SetPeers(map[Side]*Peer{SideLeft: left})

	pcm := make([]int16, g722.SamplesPerFrame)
	if err := ap.Feed(pcm, 3); err == nil {
		t.Fatal("Feed with 3 channels and 1 bound ear should be a configuration error")
	}
}

func TestAudioPipelineNoBoundPeersIsNoOp(t *testing.T) {
	ap := NewAudioPipeline(-1, nil)
	pcm := make([]int16, g722.SamplesPerFrame)
	if err := ap.Feed(pcm, 1); err != nil {
		t.Fatalf("Feed with no peers: %v", err)
	}
}
