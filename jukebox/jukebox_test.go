package jukebox

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/project-slippi/slippi-exi/osd"
)

// buildHPS produces a minimal stereo HPS at the output rate: one block, one
// ADPCM frame per channel, zeroed coefficients so each nibble decodes to
// nibble<<shift.
func buildHPS(frameBytes [7]byte, shift byte, loop bool) []byte {
	hps := make([]byte, 0x80+0x1c+16)
	copy(hps, hpsMagic)
	binary.BigEndian.PutUint32(hps[0x8:], outputSampleRate)
	binary.BigEndian.PutUint32(hps[0xc:], 2)

	// Block header at 0x80: 8 dsp bytes per channel, then two 8-byte
	// per-channel decoder states.
	binary.BigEndian.PutUint32(hps[0x80:], 8)
	if loop {
		binary.BigEndian.PutUint32(hps[0x88:], 0x80)
	} else {
		binary.BigEndian.PutUint32(hps[0x88:], hpsBlockEnd)
	}

	for ch := 0; ch < 2; ch++ {
		frame := hps[0x80+0x1c+ch*8:]
		frame[0] = shift
		copy(frame[1:], frameBytes[:])
	}
	return hps
}

// buildImageFile writes a standard image holding one song, listed in the
// file table as menu01.hps. Returns the image path and the song's offset and
// length.
func buildImageFile(t *testing.T, hps []byte) (string, uint64, int) {
	t.Helper()

	const (
		fstLocation = 0x1000
		songOffset  = 0x2000
	)

	img := make([]byte, songOffset+len(hps))
	copy(img[0x1c:], []byte{0xc2, 0x33, 0x9f, 0x3d})
	binary.BigEndian.PutUint32(img[0x424:], fstLocation)

	// Two FST entries (root dir + one file), then the string table.
	fst := make([]byte, 2*0xc, 64)
	fst[0] = 1
	binary.BigEndian.PutUint32(fst[0x8:], 2)
	binary.BigEndian.PutUint32(fst[0xc+0x4:], songOffset)
	fst = append(fst, []byte("menu01.hps\x00")...)

	binary.BigEndian.PutUint32(img[0x428:], uint32(len(fst)))
	copy(img[fstLocation:], fst)
	copy(img[songOffset:], hps)

	path := filepath.Join(t.TempDir(), "game.iso")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, songOffset, len(hps)
}

// fakeSink records every chunk it is handed, never dropping any, and paces
// the feeder the way a real audio device would.
type fakeSink struct {
	mu     sync.Mutex
	chunks [][]int16
	closed atomic.Bool
}

func (s *fakeSink) WriteChunk(samples []int16) {
	out := append([]int16(nil), samples...)
	s.mu.Lock()
	s.chunks = append(s.chunks, out)
	s.mu.Unlock()
	time.Sleep(time.Millisecond)
}

func (s *fakeSink) Close() {
	s.closed.Store(true)
}

func (s *fakeSink) pop() ([]int16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return nil, false
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, true
}

// installFakeSinks reroutes playback output for the duration of a test and
// returns the sinks opened so far.
func installFakeSinks(t *testing.T) func() []*fakeSink {
	t.Helper()

	var mu sync.Mutex
	var sinks []*fakeSink

	prev := openSink
	openSink = func() (pcmSink, error) {
		s := &fakeSink{}
		mu.Lock()
		sinks = append(sinks, s)
		mu.Unlock()
		return s, nil
	}
	t.Cleanup(func() { openSink = prev })

	return func() []*fakeSink {
		mu.Lock()
		defer mu.Unlock()
		return append([]*fakeSink(nil), sinks...)
	}
}

func newTestJukebox(t *testing.T, isoPath, musicPath string, systemVolume, musicVolume uint8) *Jukebox {
	t.Helper()
	j, err := New(isoPath, musicPath, systemVolume, musicVolume, nil)
	if err != nil {
		t.Fatalf("jukebox init failed: %v", err)
	}
	t.Cleanup(j.Shutdown)
	return j
}

func waitForSinks(t *testing.T, getSinks func() []*fakeSink, n int) []*fakeSink {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		sinks := getSinks()
		if len(sinks) >= n {
			return sinks
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d sinks opened, want %d", len(sinks), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func nextChunk(t *testing.T, s *fakeSink) []int16 {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if c, ok := s.pop(); ok {
			return c
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for an audio chunk")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStartSongPlaysImageAudio(t *testing.T) {
	getSinks := installFakeSinks(t)

	// Nibbles 1,2,...,7 then zeros: decodes to those sample values.
	hps := buildHPS([7]byte{0x12, 0x34, 0x56, 0x70, 0, 0, 0}, 0, false)
	path, offset, length := buildImageFile(t, hps)
	j := newTestJukebox(t, path, "", 100, 100)

	j.StartSong(offset, length)
	sink := waitForSinks(t, getSinks, 1)[0]
	chunk := nextChunk(t, sink)

	// Full volume resolves to the 0.8 reduction multiplier.
	for i, nib := range []int16{1, 2, 3, 4, 5, 6, 7} {
		want := int16(float64(nib) * 0.8)
		if chunk[i*2] != want || chunk[i*2+1] != want {
			t.Fatalf("frame %d: got (%d, %d), want %d", i, chunk[i*2], chunk[i*2+1], want)
		}
	}
	for i := 14 * 2; i < len(chunk); i++ {
		if chunk[i] != 0 {
			t.Fatalf("expected silence padding at sample %d, got %d", i, chunk[i])
		}
	}
}

func TestStartSongReplacesActiveSong(t *testing.T) {
	getSinks := installFakeSinks(t)

	hps := buildHPS([7]byte{0x77, 0x77, 0x77, 0x77, 0x77, 0x77, 0x77}, 0, true)
	path, offset, length := buildImageFile(t, hps)
	j := newTestJukebox(t, path, "", 100, 100)

	j.StartSong(offset, length)
	first := waitForSinks(t, getSinks, 1)[0]
	nextChunk(t, first)

	j.StartSong(offset, length)
	sinks := waitForSinks(t, getSinks, 2)
	nextChunk(t, sinks[1])

	if !sinks[0].closed.Load() {
		t.Fatal("first song's sink still open after second start")
	}
	if sinks[1].closed.Load() {
		t.Fatal("second song's sink closed unexpectedly")
	}
}

func TestStopMusicIdempotent(t *testing.T) {
	getSinks := installFakeSinks(t)

	hps := buildHPS([7]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}, 0, true)
	path, offset, length := buildImageFile(t, hps)
	j := newTestJukebox(t, path, "", 100, 100)

	j.StartSong(offset, length)
	sink := waitForSinks(t, getSinks, 1)[0]
	nextChunk(t, sink)

	j.StopMusic()
	j.StopMusic()

	deadline := time.Now().Add(2 * time.Second)
	for !sink.closed.Load() {
		if time.Now().After(deadline) {
			t.Fatal("sink never closed after stop")
		}
		time.Sleep(time.Millisecond)
	}

	// The engine still accepts a new start afterward.
	j.StartSong(offset, length)
	sinks := waitForSinks(t, getSinks, 2)
	nextChunk(t, sinks[1])
}

func TestVolumeChangeRampsGradually(t *testing.T) {
	getSinks := installFakeSinks(t)

	// Constant full-ish amplitude: nibble 7 at shift 12 is 28672.
	const amplitude = 7 << 12
	hps := buildHPS([7]byte{0x77, 0x77, 0x77, 0x77, 0x77, 0x77, 0x77}, 12, true)
	path, offset, length := buildImageFile(t, hps)

	// Start silent, then snap the system volume to full.
	j := newTestJukebox(t, path, "", 0, 100)
	j.StartSong(offset, length)
	sink := waitForSinks(t, getSinks, 1)[0]
	nextChunk(t, sink)

	j.SetVolume(ControlSystem, 100)

	// Per-chunk amplitude may move at most one ramp step at a time.
	maxDelta := int16(float64(amplitude)*maxGainStepPerChunk) + 1
	prev := int16(0)
	reached := false
	for i := 0; i < 64; i++ {
		chunk := nextChunk(t, sink)
		cur := chunk[0]
		if diff := cur - prev; diff > maxDelta || diff < -maxDelta {
			t.Fatalf("chunk %d amplitude jumped from %d to %d", i, prev, cur)
		}
		prev = cur
		target := float64(amplitude) * 0.8
		if cur >= int16(target)-1 {
			reached = true
			break
		}
	}
	if !reached {
		t.Fatalf("volume never ramped up, final amplitude %d", prev)
	}
}

func TestCombinedGain(t *testing.T) {
	v := newVolumeState(50, 100)
	v.set(ControlMelee, 127)

	want := (127.0 / 254.0) * 0.5 * 1.0 * 0.8
	if got := v.target(); got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("got gain %v, want %v", got, want)
	}

	// Out-of-range inputs clamp rather than amplify.
	v.set(ControlSystem, 255)
	v.set(ControlMelee, 255)
	if got, want := v.target(), 0.8; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("got gain %v, want %v", got, want)
	}
}

func TestCustomSongShadowsImageAudio(t *testing.T) {
	getSinks := installFakeSinks(t)

	hps := buildHPS([7]byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}, 0, false)
	path, offset, length := buildImageFile(t, hps)

	// menu01.hps maps to the "menu" stage folder; drop a wav there.
	musicPath := t.TempDir()
	stageDir := filepath.Join(musicPath, "menu")
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeWAV(t, filepath.Join(stageDir, "custom.wav"), []int{1000, 2000, 3000})

	j := newTestJukebox(t, path, musicPath, 100, 100)
	j.StartSong(offset, length)

	sink := waitForSinks(t, getSinks, 1)[0]
	chunk := nextChunk(t, sink)

	for i, s := range []int16{1000, 2000, 3000} {
		want := int16(float64(s) * 0.8)
		if chunk[i*2] != want {
			t.Fatalf("sample %d: got %d, want %d", i, chunk[i*2], want)
		}
	}
}

func TestUnsupportedImageRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.iso")
	if err := os.WriteFile(path, make([]byte, 0x1000), 0o644); err != nil {
		t.Fatal(err)
	}

	messages := make(chan string, 1)
	display := osd.Handler(func(msg string, color, durationMS uint32) {
		messages <- msg
	})

	if _, err := New(path, "", 100, 100, display); err == nil {
		t.Fatal("expected an error for an unsupported image")
	}

	select {
	case <-messages:
	case <-time.After(time.Second):
		t.Fatal("no player-facing message for unsupported image")
	}
}

// writeWAV writes a mono 16-bit wav at the output rate.
func writeWAV(t *testing.T, path string, samples []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, outputSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: outputSampleRate},
		Data:   samples,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}
