package asha

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"ashastream/internal/g722"
	"ashastream/internal/level"
)

// captureStream abstracts a PortAudio capture stream for testing, mirroring
// the blocking Start/Stop/Close/Read shape of *portaudio.Stream.
type captureStream interface {
	Start() error
	Stop() error
	Close() error
	Read() error
}

// InputDevice describes an available PCM capture device.
type InputDevice struct {
	ID   int
	Name string
}

// AudioPipeline is the producer side of the pipeline (spec §4.5): it
// demultiplexes captured PCM by ear, buffers each ear's samples in a ring,
// and drains full 320-sample (20 ms) chunks through that ear's G.722
// encoder into its frame queue.
type AudioPipeline struct {
	logger *log.Logger

	mu      sync.Mutex
	peers   map[Side]*Peer
	rings   map[Side][]int16
	running atomic.Bool

	stream        captureStream
	captureBuf    []int16
	inputDeviceID int

	meter *level.Meter

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewAudioPipeline returns an empty AudioPipeline. inputDeviceID selects the
// PortAudio capture device; -1 uses the host default.
func NewAudioPipeline(inputDeviceID int, logger *log.Logger) *AudioPipeline {
	return &AudioPipeline{
		logger:        logger,
		peers:         make(map[Side]*Peer),
		rings:         make(map[Side][]int16),
		inputDeviceID: inputDeviceID,
		meter:         level.NewMeter(),
	}
}

// SetPeers updates the set of ears currently receiving encoded audio. It is
// called by Session whenever the bound peer set changes.
func (a *AudioPipeline) SetPeers(peers map[Side]*Peer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peers = peers
	for side := range peers {
		if _, ok := a.rings[side]; !ok {
			a.rings[side] = nil
		}
	}
}

// ListInputDevices returns available PCM capture devices.
func ListInputDevices() []InputDevice {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil
	}
	var out []InputDevice
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, InputDevice{ID: i, Name: d.Name})
		}
	}
	return out
}

// Feed accepts one PCM chunk of signed 16-bit samples at 16 kHz, channels
// interleaved, and runs the demux→ring→encode→enqueue sequence of spec
// §4.5. feed never fails on backpressure (frames are dropped, not chunks);
// it returns an error only for a channel-count configuration mismatch.
func (a *AudioPipeline) Feed(pcm []int16, channels int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sides := activeSides(a.peers)
	if len(sides) == 0 {
		return nil
	}

	a.meter.Update(pcm)

	switch channels {
	case 1:
		for _, side := range sides {
			a.rings[side] = append(a.rings[side], pcm...)
		}
	case 2:
		if len(sides) != 2 {
			return fmt.Errorf("asha: unsupported channel count %d (want 1 or %d)", channels, len(sides))
		}
		if len(pcm)%2 != 0 {
			return fmt.Errorf("asha: stereo PCM chunk has odd sample count %d", len(pcm))
		}
		left := make([]int16, 0, len(pcm)/2)
		right := make([]int16, 0, len(pcm)/2)
		for i := 0; i < len(pcm); i += 2 {
			left = append(left, pcm[i])
			right = append(right, pcm[i+1])
		}
		if _, ok := a.peers[SideLeft]; ok {
			a.rings[SideLeft] = append(a.rings[SideLeft], left...)
		}
		if _, ok := a.peers[SideRight]; ok {
			a.rings[SideRight] = append(a.rings[SideRight], right...)
		}
	default:
		return fmt.Errorf("asha: unsupported channel count %d (want 1 or %d)", channels, len(sides))
	}

	for side, peer := range a.peers {
		ring := a.rings[side]
		for len(ring) >= g722.SamplesPerFrame {
			peer.EncodeAndEnqueue(ring[:g722.SamplesPerFrame])
			ring = ring[g722.SamplesPerFrame:]
		}
		a.rings[side] = ring
	}
	return nil
}

// InputLevel returns the most recent smoothed RMS capture level, for
// observability only.
func (a *AudioPipeline) InputLevel() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meter.Value()
}

func activeSides(peers map[Side]*Peer) []Side {
	var out []Side
	for s := range peers {
		out = append(out, s)
	}
	return out
}

// captureFramesPerBuffer is the PortAudio buffer size: one 20 ms frame at
// 16 kHz.
const captureFramesPerBuffer = g722.SamplesPerFrame

// Start opens the PortAudio capture device and begins feeding it into Feed
// on a dedicated goroutine.
func (a *AudioPipeline) Start() error {
	if !a.running.CompareAndSwap(false, true) {
		return nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		a.running.Store(false)
		return fmt.Errorf("asha: list audio devices: %w", err)
	}
	dev, err := resolveInputDevice(devices, a.inputDeviceID)
	if err != nil {
		a.running.Store(false)
		return err
	}

	buf := make([]int16, captureFramesPerBuffer)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      16000,
		FramesPerBuffer: captureFramesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		a.running.Store(false)
		return fmt.Errorf("asha: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		a.running.Store(false)
		return fmt.Errorf("asha: start capture stream: %w", err)
	}

	a.stream = stream
	a.captureBuf = buf
	a.stopCh = make(chan struct{})

	a.wg.Add(1)
	go a.captureLoop()

	if a.logger != nil {
		a.logger.Info("capture started", "device", dev.Name)
	}
	return nil
}

func resolveInputDevice(devices []*portaudio.DeviceInfo, idx int) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return portaudio.DefaultInputDevice()
}

func (a *AudioPipeline) captureLoop() {
	defer a.wg.Done()
	for a.running.Load() {
		select {
		case <-a.stopCh:
			return
		default:
		}
		if err := a.stream.Read(); err != nil {
			if a.running.Load() && a.logger != nil {
				a.logger.Warn("capture read failed", "error", err)
			}
			return
		}
		if err := a.Feed(a.captureBuf, 1); err != nil && a.logger != nil {
			a.logger.Warn("feed failed", "error", err)
		}
	}
}

// Stop halts PCM capture.
func (a *AudioPipeline) Stop() {
	if !a.running.CompareAndSwap(true, false) {
		return
	}
	close(a.stopCh)
	if a.stream != nil {
		a.stream.Stop()
	}
	a.wg.Wait()
	if a.stream != nil {
		a.stream.Close()
		a.stream = nil
	}
}
