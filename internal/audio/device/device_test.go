package device

import "testing"

func TestEnableDisableRoundTripWithoutPlaying(t *testing.T) {
	d := New("null", nil, nil)
	if d.State() != StateDisabled {
		t.Fatalf("new device should start Disabled, got %v", d.State())
	}

	if err := d.Enable(false); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if d.State() != StateIdle {
		t.Fatalf("Enable(false) should land on Idle, got %v", d.State())
	}

	if err := d.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if d.State() != StateDisabled {
		t.Fatalf("Disable should land on Disabled, got %v", d.State())
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	d := New("null", nil, nil)
	if err := d.Enable(false); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := d.Enable(false); err != nil {
		t.Fatalf("second Enable: %v", err)
	}
	if d.State() != StateIdle {
		t.Fatalf("second Enable should be a no-op, got %v", d.State())
	}
}

func TestHandleUnavailableUnlessActive(t *testing.T) {
	d := New("null", nil, nil)
	if _, ok := d.Handle(); ok {
		t.Fatal("Handle should not be available for a Disabled device")
	}
	_ = d.Enable(false)
	if _, ok := d.Handle(); ok {
		t.Fatal("Handle should not be available for an Idle device")
	}
}

func TestRateFallsBackToDefaultWithoutDeviceInfo(t *testing.T) {
	d := New("null", nil, nil)
	if got := d.Rate(); got != 44100 {
		t.Fatalf("Rate() = %v, want 44100 default", got)
	}
}

func TestEOSIsNotFinite(t *testing.T) {
	if EOS() == EOS() {
		// NaN != NaN; comparing to itself must be false.
		t.Fatal("EOS() must be NaN, got a comparable value")
	}
}
