package jukebox

import "testing"

func TestDecodeHPSLoopPoint(t *testing.T) {
	looping := buildHPS([7]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}, 0, true)
	track, err := decodeHPS(looping)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if track.loopSample != 0 {
		t.Fatalf("expected loop back to sample 0, got %d", track.loopSample)
	}

	oneShot := buildHPS([7]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}, 0, false)
	track, err = decodeHPS(oneShot)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if track.loopSample != -1 {
		t.Fatalf("expected no loop, got loop sample %d", track.loopSample)
	}
}

func TestDecodeHPSRejectsGarbage(t *testing.T) {
	if _, err := decodeHPS([]byte("definitely not audio")); err == nil {
		t.Fatal("expected an error for non-hps data")
	}
}

func TestDSPADPCMNegativeNibbles(t *testing.T) {
	// Nibble 0xf is -1; with zero coefficients and shift 4 each sample is
	// (-1 << 4) adjusted by the decoder's rounding term.
	ch := &hpsChannel{}
	frame := []byte{0x04, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	out := decodeDSPADPCM(frame, ch)

	if len(out) != 14 {
		t.Fatalf("expected 14 samples, got %d", len(out))
	}
	for i, s := range out {
		if s > -15 || s < -17 {
			t.Fatalf("sample %d: got %d, want roughly -16", i, s)
		}
	}
}
