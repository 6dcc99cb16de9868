package g722

import "testing"

func TestNewEncoderValidatesParameters(t *testing.T) {
	if _, err := NewEncoder(8000, OptionsPacked); err == nil {
		t.Fatal("expected error for unsupported rate")
	}
	if _, err := NewEncoder(Rate64000, 7); err == nil {
		t.Fatal("expected error for unsupported options")
	}
	if _, err := NewEncoder(Rate64000, OptionsPacked); err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
}

func TestEncodeProducesExpectedFrameSize(t *testing.T) {
	enc, err := NewEncoder(Rate64000, OptionsPacked)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	pcm := make([]int16, SamplesPerFrame)
	for i := range pcm {
		pcm[i] = int16(1000 * sinApprox(i))
	}

	out := make([]byte, BytesPerFrame)
	n := enc.Encode(out, pcm)
	if n != BytesPerFrame {
		t.Fatalf("Encode returned %d bytes, want %d", n, BytesPerFrame)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	pcm := make([]int16, SamplesPerFrame)
	for i := range pcm {
		pcm[i] = int16(500 * sinApprox(i))
	}

	enc1, _ := NewEncoder(Rate64000, OptionsPacked)
	enc2, _ := NewEncoder(Rate64000, OptionsPacked)

	out1 := make([]byte, BytesPerFrame)
	out2 := make([]byte, BytesPerFrame)
	enc1.Encode(out1, pcm)
	enc2.Encode(out2, pcm)

	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("encoders diverged at byte %d: %x vs %x", i, out1[i], out2[i])
		}
	}
}

func TestEncodeSilenceStaysQuiet(t *testing.T) {
	enc, _ := NewEncoder(Rate64000, OptionsPacked)
	pcm := make([]int16, SamplesPerFrame)
	out := make([]byte, BytesPerFrame)
	enc.Encode(out, pcm)

	for _, b := range out {
		if b&0x3f > 4 {
			t.Fatalf("unexpected large low-band code %d for silent input", b&0x3f)
		}
	}
}

func TestResetClearsAdaptiveState(t *testing.T) {
	enc, _ := NewEncoder(Rate64000, OptionsPacked)
	pcm := make([]int16, SamplesPerFrame)
	for i := range pcm {
		pcm[i] = int16(20000 * sinApprox(i))
	}
	out := make([]byte, BytesPerFrame)
	enc.Encode(out, pcm)

	enc.Reset()
	if enc.low.step != initialStep || enc.high.step != initialStep {
		t.Fatal("Reset did not restore initial quantizer step size")
	}
}

// sinApprox is a cheap periodic waveform generator for test fixtures,
// avoiding a dependency on math.Sin for a simple repeating pattern.
func sinApprox(i int) float64 {
	phase := i % 32
	if phase < 16 {
		return float64(phase) / 16
	}
	return -float64(phase-16) / 16
}
