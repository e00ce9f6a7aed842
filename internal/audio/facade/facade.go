// Package facade implements the audio control surface of spec.md §4.I:
// the device set, the shared volume/speed knobs, and the current
// decoder's control channel, all exclusively owned by this type per
// spec.md §3's ownership list.
package facade

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/yumeno-dev/musingd/internal/audio/decoder"
	"github.com/yumeno-dev/musingd/internal/audio/device"
	"github.com/yumeno-dev/musingd/internal/errkind"
	"github.com/yumeno-dev/musingd/internal/song"
)

// PlaybackState mirrors spec.md §3.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Facade holds the device map keyed by name, the shared volume/speed
// knobs, the gapless flag, and the current decoder's control sender.
//
// Volume and speed use atomic.Uint32 rather than a sync.RWMutex: spec.md
// §5 calls the access pattern "read-shared, write-exclusive" with writes
// rare and reads per-packet — atomics give the decoder's hot read path
// zero lock contention, a better fit here than the teacher's RWMutex
// (internal/radio/server.go guards its rarely-read config with a mutex,
// but nothing there is read at audio-packet rate).
type Facade struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	enabled int

	volume  atomic.Uint32 // 0..100
	speed   atomic.Uint32 // percent, 100 = normal
	gapless atomic.Bool

	state   PlaybackState
	current *decoder.Decoder
	events  chan device.SongEvent

	cancel context.CancelFunc
}

// New constructs an empty Facade. Devices are added via AddDevice before
// Enable/Play can be used on them.
func New() *Facade {
	f := &Facade{
		devices: make(map[string]*device.Device),
		events:  make(chan device.SongEvent, 16),
	}
	f.volume.Store(100)
	f.speed.Store(100)
	return f
}

// Events returns the channel of SongEvents the player actor selects on.
func (f *Facade) Events() <-chan device.SongEvent { return f.events }

// AddDevice registers d under name. It does not change its lifecycle
// state.
func (f *Facade) AddDevice(name string, d *device.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[name] = d
}

// NewDevice constructs a Device wired to this Facade's shared event
// channel (so EventOver from any device reaches the player actor) and
// registers it under name.
func (f *Facade) NewDevice(name string, info *portaudio.DeviceInfo) *device.Device {
	d := device.New(name, info, f.events)
	f.AddDevice(name, d)
	return d
}

// Volume implements decoder.VolumeSpeed: 0..1 scalar.
func (f *Facade) Volume() float64 { return float64(f.volume.Load()) / 100 }

// SpeedPercent implements decoder.VolumeSpeed.
func (f *Facade) SpeedPercent() int { return int(f.speed.Load()) }

// SetVolume clamps to 0..100 (spec.md §3: 8-bit, saturating).
func (f *Facade) SetVolume(v int) int {
	clamped := clamp(v, 0, 100)
	f.volume.Store(uint32(clamped))
	return clamped
}

// ChangeVolume applies a saturating delta; spec.md §8 S3.
func (f *Facade) ChangeVolume(delta int) int {
	return f.SetVolume(int(f.volume.Load()) + delta)
}

// SetSpeed sets the percent speed (100 = normal).
func (f *Facade) SetSpeed(pct int) int {
	if pct < 1 {
		pct = 1
	}
	f.speed.Store(uint32(pct))
	return pct
}

// ToggleGapless flips the gapless flag and returns the new value.
func (f *Facade) ToggleGapless() bool {
	for {
		old := f.gapless.Load()
		if f.gapless.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// EnableDevice transitions a device Disabled -> Idle (or -> Active if
// currently Playing), per spec.md §4.F.
func (f *Facade) EnableDevice(name string) error {
	f.mu.Lock()
	d, ok := f.devices[name]
	playing := f.state == Playing
	f.mu.Unlock()
	if !ok {
		return errkind.Newf(errkind.Playback, "device not found: %s", name)
	}
	wasDisabled := d.State() == device.StateDisabled
	if err := d.Enable(playing); err != nil {
		return err
	}
	if wasDisabled {
		f.mu.Lock()
		f.enabled++
		f.mu.Unlock()
		if h, ok := d.Handle(); ok && f.current != nil {
			f.current.Enable(h)
		}
	}
	return nil
}

// DisableDevice transitions a device to Disabled. Forbidden if it would
// leave zero enabled devices (spec.md §3/§7 PlaybackError).
func (f *Facade) DisableDevice(name string) error {
	f.mu.Lock()
	d, ok := f.devices[name]
	if !ok {
		f.mu.Unlock()
		return errkind.Newf(errkind.Playback, "device not found: %s", name)
	}
	wasEnabled := d.State() != device.StateDisabled
	if wasEnabled && f.enabled <= 1 {
		f.mu.Unlock()
		return errkind.Newf(errkind.Playback, "cannot disable the last enabled device")
	}
	f.mu.Unlock()

	if err := d.Disable(); err != nil {
		return err
	}
	if wasEnabled {
		f.mu.Lock()
		f.enabled--
		f.mu.Unlock()
		if f.current != nil {
			f.current.Disable(name)
		}
	}
	return nil
}

// ListDevices returns (name, state) pairs for every registered device.
func (f *Facade) ListDevices() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.devices))
	for name, d := range f.devices {
		out[name] = d.State().String()
	}
	return out
}

// State reports the current PlaybackState.
func (f *Facade) State() PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// activeHandles snapshots Handles from every Active device.
func (f *Facade) activeHandles() []device.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []device.Handle
	for _, d := range f.devices {
		switch d.State() {
		case device.StateDisabled:
			continue
		case device.StateIdle:
			if err := d.Play(); err != nil {
				continue
			}
		}
		if h, ok := d.Handle(); ok {
			out = append(out, h)
		}
	}
	return out
}

// Play stops any current decoder and starts ref from the beginning on
// every enabled sink.
func (f *Facade) Play(ctx context.Context, ref song.SongRef) error {
	f.stopCurrentLocked()

	handles := f.activeHandles()
	if len(handles) == 0 {
		return errkind.Newf(errkind.Playback, "no devices enabled")
	}

	dctx, cancel := context.WithCancel(ctx)
	dec, err := decoder.New(ref, handles, f.gapless.Load(), f)
	if err != nil {
		cancel()
		return err
	}

	f.mu.Lock()
	f.current = dec
	f.cancel = cancel
	f.state = Playing
	f.mu.Unlock()

	go func() {
		dec.Run(dctx)
		f.mu.Lock()
		if f.current == dec {
			f.current = nil
		}
		f.mu.Unlock()
	}()
	return nil
}

func (f *Facade) stopCurrentLocked() {
	f.mu.Lock()
	dec := f.current
	cancel := f.cancel
	f.current = nil
	f.cancel = nil
	f.mu.Unlock()
	if dec != nil {
		dec.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// Pause sends Pause(ack) and awaits the ack before pausing devices — the
// interlock spec.md §4.I requires so no half-written packets linger in a
// device channel when it's paused.
func (f *Facade) Pause() error {
	f.mu.Lock()
	dec := f.current
	f.mu.Unlock()
	if dec == nil {
		return errkind.Newf(errkind.Playback, "nothing is playing")
	}
	ack := make(chan struct{})
	dec.Pause(ack)
	<-ack

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.State() == device.StateActive {
			if err := d.Pause(); err != nil {
				return err
			}
		}
	}
	f.state = Paused
	return nil
}

// Resume resumes every active device and tells the decoder to resume.
func (f *Facade) Resume() error {
	f.mu.Lock()
	dec := f.current
	f.mu.Unlock()
	if dec == nil {
		return errkind.Newf(errkind.Playback, "nothing is playing")
	}
	f.mu.Lock()
	for _, d := range f.devices {
		if d.State() == device.StateActive {
			if err := d.Resume(); err != nil {
				f.mu.Unlock()
				return err
			}
		}
	}
	f.state = Playing
	f.mu.Unlock()
	dec.Resume()
	return nil
}

// Toggle pauses if Playing, resumes if Paused.
func (f *Facade) Toggle() error {
	switch f.State() {
	case Playing:
		return f.Pause()
	case Paused:
		return f.Resume()
	default:
		return errkind.Newf(errkind.Playback, "nothing is playing")
	}
}

// Stop halts the current decoder and transitions every active device
// back to Idle.
func (f *Facade) Stop() error {
	f.stopCurrentLocked()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.State() == device.StateActive {
			if err := d.Stop(); err != nil {
				return err
			}
		}
	}
	f.state = Stopped
	return nil
}

// Seek asks the current decoder to seek by ± seconds.
func (f *Facade) Seek(deltaSeconds float64) error {
	f.mu.Lock()
	dec := f.current
	f.mu.Unlock()
	if dec == nil {
		return errkind.Newf(errkind.Playback, "nothing is playing")
	}
	dir := decoder.SeekForward
	if deltaSeconds < 0 {
		dir = decoder.SeekBackward
		deltaSeconds = -deltaSeconds
	}
	dec.Seek(dir, deltaSeconds)
	return nil
}

// PlaybackTimer returns (elapsed, total) seconds from the current
// decoder, or zeros if nothing is playing.
func (f *Facade) PlaybackTimer() (float64, float64) {
	f.mu.Lock()
	dec := f.current
	f.mu.Unlock()
	if dec == nil {
		return 0, 0
	}
	reply := make(chan decoder.TimerReply, 1)
	dec.Timer(reply)
	t := <-reply
	return t.Elapsed, t.Total
}

// Snapshot is the gob-encodable subset of Facade state internal/snapshot
// persists: volume, speed, and gapless, per spec.md §6.
type Snapshot struct {
	Volume  int
	Speed   int
	Gapless bool
}

// Snapshot captures the current volume/speed/gapless knobs.
func (f *Facade) Snapshot() Snapshot {
	return Snapshot{
		Volume:  int(f.volume.Load()),
		Speed:   int(f.speed.Load()),
		Gapless: f.gapless.Load(),
	}
}

// Restore applies a previously captured Snapshot. It does not touch
// playback state or devices.
func (f *Facade) Restore(s Snapshot) {
	f.volume.Store(uint32(clamp(s.Volume, 0, 100)))
	speed := s.Speed
	if speed < 1 {
		speed = 1
	}
	f.speed.Store(uint32(speed))
	f.gapless.Store(s.Gapless)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
