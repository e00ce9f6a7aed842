package decoder

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/yumeno-dev/musingd/internal/errkind"
	"github.com/yumeno-dev/musingd/internal/song"
)

// track is the uniform demux/decode interface every backend implements:
// read the next chunk of planar float64 samples (one []float64 per
// channel, all the same length), or return io.EOF. seek repositions the
// stream; elapsed reports decoded position.
type track interface {
	rate() float64
	channels() int
	// next returns one decoded block, planar by channel, or an error.
	next() ([][]float64, error)
	seek(seconds float64) error
	elapsed() float64
	total() float64
	close() error
}

// openTrack opens ref's underlying file and returns the backend matching
// its Format, propagating the gapless hint where the backend supports it
// (spec.md §4.H construction rule: "open a demuxer with the flag
// propagated, pick the default track").
func openTrack(ref song.SongRef, gapless bool) (track, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		return nil, errkind.Wrap(errkind.File, fmt.Errorf("open %s: %w", ref.Path, err))
	}

	switch ref.Format {
	case song.FormatMP3:
		return newMP3Track(f)
	case song.FormatFLAC:
		return newFLACTrack(f, gapless)
	case song.FormatVorbis:
		return newVorbisTrack(f)
	default:
		f.Close()
		return nil, errkind.Newf(errkind.File, "unsupported codec for %s", ref.Path)
	}
}

// --- mp3 -------------------------------------------------------------

type mp3Track struct {
	f      *os.File
	d      *mp3.Decoder
	buf    []byte
	rateHz float64
	pos    int64
}

func newMP3Track(f *os.File) (track, error) {
	d, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, errkind.Wrap(errkind.File, fmt.Errorf("decode mp3: %w", err))
	}
	return &mp3Track{f: f, d: d, rateHz: float64(d.SampleRate()), buf: make([]byte, 4*4096)}, nil
}

func (t *mp3Track) rate() float64 { return t.rateHz }
func (t *mp3Track) channels() int { return 2 }

func (t *mp3Track) next() ([][]float64, error) {
	n, err := t.d.Read(t.buf)
	if n == 0 {
		return nil, err
	}
	frames := n / 4
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(t.buf[i*4]) | uint16(t.buf[i*4+1])<<8)
		r := int16(uint16(t.buf[i*4+2]) | uint16(t.buf[i*4+3])<<8)
		left[i] = float64(l) / 32768
		right[i] = float64(r) / 32768
	}
	t.pos += int64(frames)
	return [][]float64{left, right}, nil
}

func (t *mp3Track) seek(seconds float64) error {
	pos := int64(seconds*t.rateHz) * 4
	_, err := t.d.Seek(pos, 0)
	if err == nil {
		t.pos = pos / 4
	}
	return err
}

func (t *mp3Track) elapsed() float64 { return float64(t.pos) / t.rateHz }
func (t *mp3Track) total() float64   { return float64(t.d.Length()/4) / t.rateHz }
func (t *mp3Track) close() error     { return t.f.Close() }

// --- flac --------------------------------------------------------------

type flacTrack struct {
	f      *os.File
	stream *flac.Stream
	rateHz float64
	nchan  int
	bits   int
	pos    int64
}

func newFLACTrack(f *os.File, gapless bool) (track, error) {
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, errkind.Wrap(errkind.File, fmt.Errorf("decode flac: %w", err))
	}
	return &flacTrack{
		f:      f,
		stream: stream,
		rateHz: float64(stream.Info.SampleRate),
		nchan:  int(stream.Info.NChannels),
		bits:   int(stream.Info.BitsPerSample),
	}, nil
}

func (t *flacTrack) rate() float64 { return t.rateHz }
func (t *flacTrack) channels() int { return t.nchan }

func (t *flacTrack) next() ([][]float64, error) {
	fr, err := t.stream.ParseNext()
	if err != nil {
		return nil, err
	}
	scale := float64(int64(1) << (t.bits - 1))
	out := make([][]float64, t.nchan)
	for c := 0; c < t.nchan && c < len(fr.Subframes); c++ {
		sub := fr.Subframes[c]
		ch := make([]float64, len(sub.Samples))
		for i, s := range sub.Samples {
			ch[i] = float64(s) / scale
		}
		out[c] = ch
	}
	t.pos += int64(fr.BlockSize)
	return out, nil
}

func (t *flacTrack) seek(seconds float64) error {
	sample := uint64(seconds * t.rateHz)
	pos, err := t.stream.Seek(sample)
	if err == nil {
		t.pos = int64(pos)
	}
	return err
}

func (t *flacTrack) elapsed() float64 { return float64(t.pos) / t.rateHz }
func (t *flacTrack) total() float64 {
	if t.stream.Info.NSamples == 0 {
		return 0
	}
	return float64(t.stream.Info.NSamples) / t.rateHz
}
func (t *flacTrack) close() error { return t.f.Close() }

// --- ogg/vorbis ----------------------------------------------------------

type vorbisTrack struct {
	f      *os.File
	r      *oggvorbis.Reader
	buf    []float32
	rateHz float64
	nchan  int
	pos    int64
}

func newVorbisTrack(f *os.File) (track, error) {
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errkind.Wrap(errkind.File, fmt.Errorf("decode ogg/vorbis: %w", err))
	}
	return &vorbisTrack{
		f:      f,
		r:      r,
		rateHz: float64(r.SampleRate()),
		nchan:  r.Channels(),
		buf:    make([]float32, 4096*r.Channels()),
	}, nil
}

func (t *vorbisTrack) rate() float64 { return t.rateHz }
func (t *vorbisTrack) channels() int { return t.nchan }

func (t *vorbisTrack) next() ([][]float64, error) {
	n, err := t.r.Read(t.buf)
	if n == 0 {
		return nil, err
	}
	frames := n / t.nchan
	out := make([][]float64, t.nchan)
	for c := 0; c < t.nchan; c++ {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < t.nchan; c++ {
			out[c][i] = float64(t.buf[i*t.nchan+c])
		}
	}
	t.pos += int64(frames)
	return out, nil
}

func (t *vorbisTrack) seek(seconds float64) error {
	pos := int64(seconds * t.rateHz)
	if err := t.r.SetPosition(pos); err != nil {
		return err
	}
	t.pos = pos
	return nil
}

func (t *vorbisTrack) elapsed() float64 { return float64(t.pos) / t.rateHz }
func (t *vorbisTrack) total() float64   { return float64(t.r.Length()) / t.rateHz }
func (t *vorbisTrack) close() error     { return t.f.Close() }
