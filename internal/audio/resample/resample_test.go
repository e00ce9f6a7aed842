package resample

import "testing"

func TestPassthroughPreservesFullPrecision(t *testing.T) {
	rs, err := New(44100, 44100, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !rs.passthrough {
		t.Fatal("matching rates should select the passthrough path")
	}

	frame := []float64{0.123456789, -0.987654321}
	if err := rs.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := rs.Take()
	if len(out) != 2 {
		t.Fatalf("Take() len = %d, want 2", len(out))
	}
	if out[0] != frame[0] || out[1] != frame[1] {
		t.Fatalf("passthrough altered samples: got %v, want %v", out, frame)
	}
}

func TestPassthroughTakeDrainsBuffer(t *testing.T) {
	rs, _ := New(48000, 48000, 1)
	_ = rs.Write([]float64{1})
	_ = rs.Write([]float64{2})

	first := rs.Take()
	if len(first) != 2 {
		t.Fatalf("first Take() len = %d, want 2", len(first))
	}

	second := rs.Take()
	if len(second) != 0 {
		t.Fatalf("second Take() should be empty after draining, got %v", second)
	}
}

func TestFloatInt16RoundTripIsNearLossless(t *testing.T) {
	for _, f := range []float64{0, 0.5, -0.5, 1, -1, 0.999} {
		s := floatToInt16(f)
		back := int16ToFloat(s)
		if diff := back - f; diff > 0.001 || diff < -0.001 {
			t.Fatalf("round trip for %v produced %v (diff %v)", f, back, diff)
		}
	}
}

func TestResampledPathIsNotPassthroughWhenRatesDiffer(t *testing.T) {
	rs, err := New(44100, 48000, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if rs.passthrough {
		t.Fatal("mismatched rates must not select the passthrough path")
	}
}
