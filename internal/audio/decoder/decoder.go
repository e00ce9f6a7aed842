// Package decoder implements the demux -> decode -> resample -> fan-out
// engine of spec.md §4.H: one goroutine per playing song, driven by a
// control channel, pushing interleaved samples into every enabled device's
// sample channel.
//
// Grounded on the teacher's Broadcaster.Start loop
// (internal/radio/stream.go): the non-blocking control-message drain via
// `select { case <-ch: ...; default: }`, the per-client bounded-send with
// drop-on-full/closed, and the "log and continue" treatment of a
// recoverable per-track error are all the same shape here, generalized
// from "one ffmpeg stdout stream fanned to N HTTP clients" to "one PCM
// decode loop fanned to N device sample channels, each independently
// resampled."
package decoder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/yumeno-dev/musingd/internal/audio/device"
	"github.com/yumeno-dev/musingd/internal/audio/resample"
	"github.com/yumeno-dev/musingd/internal/errkind"
	"github.com/yumeno-dev/musingd/internal/song"
)

// chunkSize bounds how many samples are sent to a sink per send, keeping
// scheduling responsive (spec.md §4.H point 4).
const chunkSize = 512

// seekDir is the direction of a Seek control message.
type seekDir int

const (
	SeekForward seekDir = iota
	SeekBackward
)

// TimerReply carries (elapsed, total) seconds back to a Timer query.
type TimerReply struct {
	Elapsed float64
	Total   float64
}

type ctrlKind int

const (
	ctrlStop ctrlKind = iota
	ctrlPause
	ctrlResume
	ctrlSeek
	ctrlEnable
	ctrlDisable
	ctrlTimer
)

// ctrlMsg is the sum type of everything the decoder goroutine accepts on
// its control channel, drained non-blockingly each loop iteration.
type ctrlMsg struct {
	kind ctrlKind

	ack   chan<- struct{} // ctrlPause
	dir   seekDir         // ctrlSeek
	secs  float64         // ctrlSeek
	h     device.Handle   // ctrlEnable
	name  string          // ctrlDisable
	reply chan<- TimerReply
}

// VolumeSpeed is the read-shared, write-exclusive knob the facade and the
// decoder both touch: facade writes rarely, decoder reads every packet.
type VolumeSpeed interface {
	Volume() float64 // 0..1
	SpeedPercent() int
}

// sinkState is one active sink's resampler plus its send channel.
type sinkState struct {
	handle device.Handle
	rs     *resample.Resampler
}

// Decoder drives one song's playback across however many sinks are
// currently enabled.
type Decoder struct {
	trk     track
	sinks   map[string]*sinkState
	gapless bool
	knob    VolumeSpeed

	ctrl chan ctrlMsg
	done chan struct{}
}

// New opens ref's demuxer and builds a resampler per handle. It fails with
// a descriptive error if no track exists, the codec is unsupported, or
// handles is empty (spec.md §4.H construction rules).
func New(ref song.SongRef, handles []device.Handle, gapless bool, knob VolumeSpeed) (*Decoder, error) {
	if len(handles) == 0 {
		return nil, errkind.Newf(errkind.Playback, "no devices enabled")
	}
	trk, err := openTrack(ref, gapless)
	if err != nil {
		return nil, err
	}

	sinks := make(map[string]*sinkState, len(handles))
	for _, h := range handles {
		rs, err := resample.New(trk.rate(), h.Rate, trk.channels())
		if err != nil {
			trk.close()
			return nil, err
		}
		sinks[h.Name] = &sinkState{handle: h, rs: rs}
	}

	return &Decoder{
		trk:     trk,
		sinks:   sinks,
		gapless: gapless,
		knob:    knob,
		ctrl:    make(chan ctrlMsg, 8),
		done:    make(chan struct{}),
	}, nil
}

// Control returns the channel callers use to send control messages.
func (d *Decoder) Control() chan<- ctrlMsg { return d.ctrl }

// Done is closed when Run returns, for any reason.
func (d *Decoder) Done() <-chan struct{} { return d.done }

func sendStop(c chan<- ctrlMsg)                  { c <- ctrlMsg{kind: ctrlStop} }
func sendPause(c chan<- ctrlMsg, ack chan<- struct{}) { c <- ctrlMsg{kind: ctrlPause, ack: ack} }
func sendResume(c chan<- ctrlMsg)                { c <- ctrlMsg{kind: ctrlResume} }
func sendSeek(c chan<- ctrlMsg, dir seekDir, secs float64) {
	c <- ctrlMsg{kind: ctrlSeek, dir: dir, secs: secs}
}
func sendEnable(c chan<- ctrlMsg, h device.Handle) { c <- ctrlMsg{kind: ctrlEnable, h: h} }
func sendDisable(c chan<- ctrlMsg, name string)     { c <- ctrlMsg{kind: ctrlDisable, name: name} }
func sendTimer(c chan<- ctrlMsg, reply chan<- TimerReply) {
	c <- ctrlMsg{kind: ctrlTimer, reply: reply}
}

// Stop, Pause, Resume, Seek, Enable, Disable, Timer are the facade-facing
// helpers that send on Control(); they mirror spec.md §4.H's message set.
func (d *Decoder) Stop()                             { sendStop(d.ctrl) }
func (d *Decoder) Pause(ack chan<- struct{})         { sendPause(d.ctrl, ack) }
func (d *Decoder) Resume()                            { sendResume(d.ctrl) }
func (d *Decoder) Seek(dir seekDir, secs float64)     { sendSeek(d.ctrl, dir, secs) }
func (d *Decoder) Enable(h device.Handle)             { sendEnable(d.ctrl, h) }
func (d *Decoder) Disable(name string)                { sendDisable(d.ctrl, name) }
func (d *Decoder) Timer(reply chan<- TimerReply)      { sendTimer(d.ctrl, reply) }

// Run is the packet loop. It owns its own goroutine for the lifetime of
// the song: the caller does `go d.Run(ctx)`.
func (d *Decoder) Run(ctx context.Context) {
	defer close(d.done)
	defer d.trk.close()

	paused := false
	var pauseAck chan<- struct{}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// 1. Drain pending control messages non-blockingly.
	drain:
		for {
			select {
			case msg := <-d.ctrl:
				switch msg.kind {
				case ctrlStop:
					return
				case ctrlPause:
					paused = true
					pauseAck = msg.ack
				case ctrlResume:
					paused = false
				case ctrlSeek:
					secs := msg.secs
					if msg.dir == SeekBackward {
						secs = -secs
					}
					if err := d.trk.seek(d.trk.elapsed() + secs); err != nil {
						slog.Warn("seek failed", "error", err)
					}
				case ctrlEnable:
					rs, err := resample.New(d.trk.rate(), msg.h.Rate, d.trk.channels())
					if err != nil {
						slog.Warn("enable sink failed", "sink", msg.h.Name, "error", err)
						continue
					}
					d.sinks[msg.h.Name] = &sinkState{handle: msg.h, rs: rs}
				case ctrlDisable:
					delete(d.sinks, msg.name)
				case ctrlTimer:
					if msg.reply != nil {
						msg.reply <- TimerReply{Elapsed: d.trk.elapsed(), Total: d.trk.total()}
					}
				}
			default:
				break drain
			}
		}

		if paused {
			// The ack is sent only after any packet currently being
			// written has fully been enqueued (spec.md §4.H) — since
			// control messages are only drained between packets, by the
			// time we reach here that's already true.
			if pauseAck != nil {
				close(pauseAck)
				pauseAck = nil
			}
			select {
			case msg := <-d.ctrl:
				if msg.kind == ctrlStop {
					return
				}
				if msg.kind == ctrlResume {
					paused = false
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		// 2. Read the next packet.
		frames, err := d.trk.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.pushEOS()
				return
			}
			slog.Warn("decode error, skipping packet", "error", err)
			continue
		}

		// 3. Apply volume/speed, resample per sink, fan out.
		d.applyVolume(frames)
		frames = d.applySpeed(frames)
		if len(d.sinks) == 0 {
			return
		}
		for name, sink := range d.sinks {
			if !d.writeSink(sink, frames) {
				delete(d.sinks, name)
			}
		}
		if len(d.sinks) == 0 {
			return
		}
	}
}

func (d *Decoder) applyVolume(frames [][]float64) {
	if d.knob == nil {
		return
	}
	v := d.knob.Volume()
	if v == 1 {
		return
	}
	for _, ch := range frames {
		for i := range ch {
			ch[i] *= v
		}
	}
}

// applySpeed varies the resampler's input stride per spec.md §4.H point
// 3: faster-than-100% speed strides forward through the decoded block
// (fewer output frames, same pitch-shifted content played back quicker),
// slower-than-100% stretches it by repeating frames. A no-op at 100%.
func (d *Decoder) applySpeed(frames [][]float64) [][]float64 {
	if d.knob == nil {
		return frames
	}
	pct := d.knob.SpeedPercent()
	if pct == 100 || pct <= 0 {
		return frames
	}

	n := len(frames[0])
	outN := int(float64(n) * 100.0 / float64(pct))
	if outN < 1 {
		outN = 1
	}

	out := make([][]float64, len(frames))
	for c, ch := range frames {
		strided := make([]float64, outN)
		for i := range strided {
			srcIdx := int(float64(i) * float64(pct) / 100.0)
			if srcIdx >= n {
				srcIdx = n - 1
			}
			strided[i] = ch[srcIdx]
		}
		out[c] = strided
	}
	return out
}

// writeSink resamples one block of planar frames through sink and sends
// the interleaved result in chunkSize-sample pieces. It returns false if
// the sink's receiver is gone and the sink should be dropped.
func (d *Decoder) writeSink(sink *sinkState, frames [][]float64) bool {
	n := len(frames[0])
	channels := len(frames)
	for i := 0; i < n; i++ {
		frame := make([]float64, channels)
		for c := 0; c < channels; c++ {
			frame[c] = frames[c][i]
		}
		if err := sink.rs.Write(frame); err != nil {
			slog.Warn("resample error, dropping sink", "sink", sink.handle.Name, "error", err)
			return false
		}
	}
	return sendChunks(sink.handle, sink.rs.Take())
}

// sendChunks sends out to handle in chunkSize-sample pieces, returning
// false as soon as a send would block (receiver gone, or backpressured
// hard enough to count as gone).
func sendChunks(handle device.Handle, out []float64) bool {
	for start := 0; start < len(out); start += chunkSize {
		end := min(start+chunkSize, len(out))
		for _, s := range out[start:end] {
			select {
			case handle.Tx <- s:
			default:
				return false
			}
		}
	}
	return true
}

// pushEOS flushes each sink's resampler to release its last partial block
// (spec.md §4.G), sends that tail like any other write, then sends the
// end-of-song sentinel — all exactly once per sink.
func (d *Decoder) pushEOS() {
	for _, sink := range d.sinks {
		if tail := sink.rs.Flush(); len(tail) > 0 {
			sendChunks(sink.handle, tail)
		}
		select {
		case sink.handle.Tx <- math.NaN():
		default:
		}
	}
}
