// Package g722 implements the encode side of the ITU-T G.722 sub-band
// ADPCM speech codec at 64 kb/s, 16 kHz sampling, matching the contract the
// ASHA profile expects: an opaque per-ear encoder state, fed 320 samples
// (20 ms) at a time and producing exactly 160 encoded bytes.
//
// A 24-tap QMF analysis filter splits the 16 kHz signal into two 8 kHz
// sub-bands. Each sub-band is coded by an independent adaptive differential
// quantizer — 6 bits for the low band, 2 bits for the high band — and the
// two codes are packed one byte per QMF sample pair, the profile's "packed"
// transmission mode.
package g722

import (
	"errors"
	"math"
)

var (
	errInvalidRate    = errors.New("g722: unsupported sample rate")
	errInvalidOptions = errors.New("g722: unsupported options")
)

// Rate64000 is the only bit rate this encoder supports (64 kb/s).
const Rate64000 = 64000

// OptionsPacked selects packed-byte output: each output byte holds one
// low-band code in its low 6 bits and one high-band code in its high 2
// bits. It is the only mode implemented.
const OptionsPacked = 0

// SamplesPerFrame is the number of 16 kHz PCM samples one Encode call
// expects: 320 samples (20 ms) produce exactly 160 encoded bytes.
const SamplesPerFrame = 320

// BytesPerFrame is the number of encoded bytes SamplesPerFrame produces.
const BytesPerFrame = SamplesPerFrame / 2

// qmfCoeffs are the 12 unique coefficients of the 24-tap QMF analysis
// filter that splits the input into low/high sub-bands; the filter is
// symmetric, so only half the taps are distinct.
var qmfCoeffs = [12]float64{
	3, -11, 12, 32, -210, 951, 3876, -805, 362, -156, 53, -11,
}

const (
	lowBandBits  = 6
	highBandBits = 2

	// initialStep is the starting quantizer step size for both bands,
	// scaled for signed 16-bit PCM input.
	initialStep = 8.0
	minStep     = 2.0
	maxStep     = 10000.0

	// stepAdaptRate controls how quickly each band's quantizer step size
	// tracks the signal envelope; smaller is slower/steadier.
	stepAdaptRate = 0.18

	// predictorAdaptRate controls the sign-sign LMS adaptation speed of the
	// per-band predictor coefficients.
	predictorAdaptRate = 0.015
)

// band holds one sub-band's adaptive predictor and quantizer state.
type band struct {
	// a holds a 2nd-order adaptive linear predictor's coefficients, updated
	// by a sign-sign LMS rule after every sample.
	a [2]float64
	// history holds the two most recent reconstructed sub-band samples.
	history [2]float64

	step float64
}

func newBand() *band {
	return &band{step: initialStep}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// predict returns the predictor's current estimate of the next sample.
func (b *band) predict() float64 {
	return b.a[0]*b.history[0] + b.a[1]*b.history[1]
}

// quantize encodes difference d into an n-bit sign-magnitude code and
// returns the code along with the decoder-equivalent reconstructed value of
// d, which the caller feeds back into the predictor (closed-loop coding).
func (b *band) quantize(d float64, bits int) (code int, recon float64) {
	levels := 1 << uint(bits-1)

	mag, neg := d, false
	if mag < 0 {
		mag, neg = -mag, true
	}

	// Logarithmic quantizer: express the magnitude as a compressed multiple
	// of the current step size so resolution is fine near zero and coarse
	// at the extremes, then clamp to the available code levels.
	level := int(math.Log2(mag/b.step+1) * float64(levels-1))
	if level >= levels {
		level = levels - 1
	}
	if level < 0 {
		level = 0
	}

	code = level
	if neg {
		code |= levels
	}

	recon = (math.Exp2(float64(level)/float64(levels-1)) - 1) * b.step
	if neg {
		recon = -recon
	}

	// Adapt the step size toward the magnitude just coded.
	target := mag
	if target < minStep {
		target = minStep
	}
	b.step += (target - b.step) * stepAdaptRate
	if b.step < minStep {
		b.step = minStep
	} else if b.step > maxStep {
		b.step = maxStep
	}

	return code, recon
}

// encode advances the band by one sample, returning its quantizer code.
func (b *band) encode(sample float64, bits int) int {
	predicted := b.predict()
	d := sample - predicted
	code, recon := b.quantize(d, bits)
	reconstructed := predicted + recon

	// Sign-sign LMS predictor update: nudge each tap toward reducing the
	// sign mismatch between the error and the corresponding history sample.
	errSign := sign(d)
	b.a[0] += predictorAdaptRate * errSign * sign(b.history[0])
	b.a[1] += predictorAdaptRate * errSign * sign(b.history[1])
	b.a[0] = clamp(b.a[0], -1, 2)
	b.a[1] = clamp(b.a[1], -1, 2)

	b.history[1] = b.history[0]
	b.history[0] = reconstructed

	return code
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Encoder is one ear's G.722 encoder state. The zero value is not usable;
// construct with NewEncoder.
type Encoder struct {
	low, high *band
	// qmfHistory holds the filter's tapped-delay line, most recent sample
	// first, interleaved low/high for the symmetric/antisymmetric halves.
	qmfHistory [24]float64
}

// NewEncoder returns a G.722 encoder configured at rate (must be
// Rate64000) and options (must be OptionsPacked); both parameters are
// accepted to mirror the codec's external init(rate, options) contract.
func NewEncoder(rate, options int) (*Encoder, error) {
	if rate != Rate64000 {
		return nil, errInvalidRate
	}
	if options != OptionsPacked {
		return nil, errInvalidOptions
	}
	return &Encoder{low: newBand(), high: newBand()}, nil
}

// qmfSplit pushes one pair of 16 kHz samples through the analysis filter,
// returning the resulting low- and high-band sub-samples.
func (e *Encoder) qmfSplit(s0, s1 float64) (low, high float64) {
	copy(e.qmfHistory[2:], e.qmfHistory[:22])
	e.qmfHistory[0] = s1
	e.qmfHistory[1] = s0

	var sumEven, sumOdd float64
	for i := 0; i < 12; i++ {
		sumEven += qmfCoeffs[i] * e.qmfHistory[2*i]
		sumOdd += qmfCoeffs[11-i] * e.qmfHistory[2*i+1]
	}

	low = (sumEven + sumOdd) / 16384
	high = (sumEven - sumOdd) / 16384
	return low, high
}

// Encode encodes pcm (signed 16-bit samples) into out, which must have
// capacity for len(pcm)/2 bytes, and returns the number of bytes written.
// len(pcm) must be even — one QMF sample pair produces one output byte.
func (e *Encoder) Encode(out []byte, pcm []int16) int {
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s0 := float64(pcm[2*i])
		s1 := float64(pcm[2*i+1])

		low, high := e.qmfSplit(s0, s1)

		lowCode := e.low.encode(low, lowBandBits)
		highCode := e.high.encode(high, highBandBits)

		out[i] = byte(lowCode&0x3f) | byte((highCode&0x03)<<6)
	}
	return n
}

// Reset clears all encoder state, starting a fresh stream. Per spec §4.5,
// this implementation never calls Reset mid-stream — each ear's encoder
// state persists for the life of the session.
func (e *Encoder) Reset() {
	*e = Encoder{low: newBand(), high: newBand()}
}
