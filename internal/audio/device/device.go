// Package device owns native output streams: one portaudio stream per
// enabled device, a bounded sample channel feeding its real-time callback,
// and the Disabled/Idle/Active lifecycle spec.md §4.F describes.
//
// Grounded on the teacher's Broadcaster client-subscription dance
// (internal/radio/stream.go: clients map[uint64]*clientSub, bounded
// chan []byte per client, drop-on-full sends) re-pointed at one real
// portaudio.Stream per enabled device instead of N anonymous HTTP
// subscribers.
package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/yumeno-dev/musingd/internal/errkind"
)

// State is a device's lifecycle position.
type State int

const (
	StateDisabled State = iota
	StateIdle
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// eosSample is the end-of-song sentinel: a non-finite float recognized by
// the callback, per spec.md §4.F.
var eosSample = math.NaN()

// EOS pushes the end-of-song sentinel. The decoder engine calls this once
// per sink when a track ends.
func EOS() float64 { return eosSample }

// SongEvent is sent on the shared event channel the facade listens to.
type SongEvent struct {
	Kind EventKind
}

type EventKind int

const (
	EventOver EventKind = iota
)

// sampleChanFor100ms sizes the bounded channel to roughly 100ms of audio
// at rate, with channels samples interleaved per frame (spec.md §4.F/§5).
func sampleChanFor100ms(rate float64, channels int) int {
	n := int(rate*0.1) * channels
	if n < channels {
		n = channels
	}
	return n
}

// Device owns one native output stream across its Disabled/Idle/Active
// lifecycle.
type Device struct {
	mu sync.Mutex

	name     string
	info     *portaudio.DeviceInfo
	channels int
	state    State

	stream  *portaudio.Stream
	samples chan float64

	events   chan<- SongEvent
	overOnce sync.Once
}

// New constructs a Disabled device bound to info; it does not open any
// native stream until Enable/Play.
func New(name string, info *portaudio.DeviceInfo, events chan<- SongEvent) *Device {
	channels := 2
	if info != nil && info.MaxOutputChannels < channels {
		channels = info.MaxOutputChannels
	}
	return &Device{name: name, info: info, channels: channels, state: StateDisabled, events: events}
}

// Name returns the device's configured name.
func (d *Device) Name() string {
	return d.name
}

// State reports the device's current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Rate returns the device's preferred sample rate.
func (d *Device) Rate() float64 {
	if d.info == nil {
		return 44100
	}
	return d.info.DefaultSampleRate
}

// Enable transitions Disabled -> Idle. If playing is true (the daemon is
// currently Playing) it immediately continues Idle -> Active.
func (d *Device) Enable(playing bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateDisabled {
		return nil
	}
	d.state = StateIdle
	if playing {
		return d.playLocked()
	}
	return nil
}

// Disable transitions any state to Disabled, dropping the native stream.
// Callers are responsible for the "at least one enabled device" invariant
// (spec.md §3); Disable itself performs no such check since it cannot see
// sibling devices.
func (d *Device) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			return errkind.Wrap(errkind.Playback, fmt.Errorf("close stream for %s: %w", d.name, err))
		}
		d.stream = nil
	}
	d.state = StateDisabled
	d.samples = nil
	return nil
}

// Play transitions Idle -> Active, opening a native stream and the
// bounded sample channel the decoder pushes into.
func (d *Device) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playLocked()
}

func (d *Device) playLocked() error {
	if d.state == StateActive {
		return nil
	}
	samples := make(chan float64, sampleChanFor100ms(d.Rate(), d.channels))
	d.overOnce = sync.Once{}

	callback := func(out []float32) {
		for i := range out {
			select {
			case s, ok := <-samples:
				if !ok {
					out[i] = 0
					continue
				}
				if math.IsNaN(s) {
					d.overOnce.Do(func() {
						if d.events != nil {
							d.events <- SongEvent{Kind: EventOver}
						}
					})
					out[i] = 0
					continue
				}
				out[i] = float32(s)
			default:
				out[i] = 0
			}
		}
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   d.info,
			Channels: d.channels,
			Latency:  100 * time.Millisecond,
		},
		SampleRate:      d.Rate(),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return errkind.Wrap(errkind.Playback, fmt.Errorf("open stream for %s: %w", d.name, err))
	}
	if err := stream.Start(); err != nil {
		return errkind.Wrap(errkind.Playback, fmt.Errorf("start stream for %s: %w", d.name, err))
	}

	d.stream = stream
	d.samples = samples
	d.state = StateActive
	return nil
}

// Pause delegates to the native stream; only meaningful while Active.
func (d *Device) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateActive || d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return errkind.Wrap(errkind.Playback, fmt.Errorf("pause stream for %s: %w", d.name, err))
	}
	return nil
}

// Resume delegates to the native stream; only meaningful while Active.
func (d *Device) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateActive || d.stream == nil {
		return nil
	}
	if err := d.stream.Start(); err != nil {
		return errkind.Wrap(errkind.Playback, fmt.Errorf("resume stream for %s: %w", d.name, err))
	}
	return nil
}

// Stop transitions Active -> Idle, dropping the stream.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			return errkind.Wrap(errkind.Playback, fmt.Errorf("stop stream for %s: %w", d.name, err))
		}
		d.stream = nil
	}
	if d.state == StateActive {
		d.state = StateIdle
	}
	d.samples = nil
	return nil
}

// Handle is the light, clonable reference the decoder engine uses to push
// samples into an Active device; spec.md §4.F: "taking a handle is only
// valid while the device is Active."
type Handle struct {
	Name     string
	Rate     float64
	Channels int
	Tx       chan<- float64
}

// Handle snapshots (name, rate, sender) for the decoder engine. It returns
// ok=false if the device isn't Active.
func (d *Device) Handle() (Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateActive || d.samples == nil {
		return Handle{}, false
	}
	return Handle{Name: d.name, Rate: d.Rate(), Channels: d.channels, Tx: d.samples}, true
}
