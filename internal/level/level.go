// Package level computes an RMS signal-level metric for int16 PCM, used
// purely for observability (logging, diagnostics). Unlike the teacher's VAD,
// it never gates or drops frames — the ASHA pipeline streams continuously
// regardless of input loudness.
package level

import "math"

// RMS returns the root-mean-square level of a signed 16-bit PCM frame,
// normalized to [0.0, 1.0].
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// Meter tracks a smoothed RMS level across frames, suitable for driving a
// coarse level indicator without jitter from frame-to-frame variance.
type Meter struct {
	smoothed float64
	// Alpha is the exponential smoothing factor in (0, 1]; higher values
	// track the instantaneous level more closely.
	Alpha float64
}

// NewMeter returns a Meter with a reasonable default smoothing factor.
func NewMeter() *Meter {
	return &Meter{Alpha: 0.3}
}

// Update folds in one frame's RMS level and returns the smoothed result.
func (m *Meter) Update(pcm []int16) float64 {
	r := RMS(pcm)
	m.smoothed += (r - m.smoothed) * m.Alpha
	return m.smoothed
}

// Value returns the current smoothed level without updating it.
func (m *Meter) Value() float64 {
	return m.smoothed
}
