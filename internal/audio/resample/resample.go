// Package resample implements the per-sink resampler of spec.md §4.G: a
// fixed-input-block converter from planar decoded frames at a source rate
// to interleaved frames at a sink rate, with a pass-through fast path when
// the rates already match.
//
// Wraps github.com/zaf/resample, the only resampling library anywhere in
// the retrieved example pack (see DESIGN.md). zaf/resample streams PCM16
// bytes through an io.Writer-based resampler; Resampler buffers planar
// float64 input, converts each ready block to interleaved PCM16, pushes it
// through zaf/resample, and converts the resampled PCM16 back to float64
// before handing it to the caller.
package resample

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/zaf/resample"
)

// blockSize is the number of input frames buffered per channel before a
// resample pass runs.
const blockSize = 1024

// Resampler converts planar float64 input at srcRate to interleaved
// float64 output at sinkRate, one sink at a time.
type Resampler struct {
	srcRate, sinkRate float64
	channels          int
	passthrough       bool

	pending [][]float64 // per-channel buffered input, len < blockSize
	out     bytes.Buffer
	passOut []float64 // passthrough output, full float64 precision
	r       *resample.Resampler
}

// New constructs a Resampler for one sink. If srcRate == sinkRate it is a
// pass-through and never touches zaf/resample.
func New(srcRate, sinkRate float64, channels int) (*Resampler, error) {
	rs := &Resampler{
		srcRate:     srcRate,
		sinkRate:    sinkRate,
		channels:    channels,
		passthrough: srcRate == sinkRate,
		pending:     make([][]float64, channels),
	}
	if rs.passthrough {
		return rs, nil
	}
	r, err := resample.New(&rs.out, srcRate, sinkRate, channels, resample.I16, resample.HighQ)
	if err != nil {
		return nil, err
	}
	rs.r = r
	return rs, nil
}

// Write appends one frame's worth of planar samples (frame[c] for channel
// c) to the pending input. When a full block accumulates it is resampled
// and the result is appended to the output accumulator, retrievable via
// Take.
func (rs *Resampler) Write(frame []float64) error {
	if rs.passthrough {
		rs.passOut = append(rs.passOut, frame...)
		return nil
	}
	for c := 0; c < rs.channels; c++ {
		rs.pending[c] = append(rs.pending[c], frame[c])
	}
	if len(rs.pending[0]) < blockSize {
		return nil
	}
	return rs.flushPending()
}

func (rs *Resampler) flushPending() error {
	interleaved := make([]int16, blockSize*rs.channels)
	for i := 0; i < blockSize; i++ {
		for c := 0; c < rs.channels; c++ {
			interleaved[i*rs.channels+c] = floatToInt16(rs.pending[c][i])
		}
	}
	for c := range rs.pending {
		rs.pending[c] = rs.pending[c][:0]
	}

	buf := make([]byte, len(interleaved)*2)
	for i, s := range interleaved {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := rs.r.Write(buf); err != nil {
		return err
	}
	return nil
}

// Take drains and returns every fully-resampled interleaved float64 frame
// accumulated so far.
func (rs *Resampler) Take() []float64 {
	if rs.passthrough {
		out := rs.passOut
		rs.passOut = nil
		return out
	}
	raw := rs.out.Bytes()
	rs.out.Reset()
	n := len(raw) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		out[i] = int16ToFloat(s)
	}
	return out
}

// Flush pads the remaining partial block with silence to a block boundary
// and releases the tail, per spec.md §4.G.
func (rs *Resampler) Flush() []float64 {
	if rs.passthrough {
		return rs.Take()
	}
	if len(rs.pending[0]) > 0 {
		for c := range rs.pending {
			for len(rs.pending[c]) < blockSize {
				rs.pending[c] = append(rs.pending[c], 0)
			}
		}
		_ = rs.flushPending()
	}
	if rs.r != nil {
		_ = rs.r.Close()
	}
	return rs.Take()
}

func floatToInt16(f float64) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(f * math.MaxInt16)
}

func int16ToFloat(s int16) float64 {
	return float64(s) / math.MaxInt16
}
