package jukebox

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const outputSampleRate = 48000

// ringBufferCapacity is ~167ms at 48kHz stereo 16-bit (~32KB).
const ringBufferCapacity = 32768

// highWaterBytes is the buffered level the feeder paces itself against,
// ~50ms of stereo 16-bit audio.
const highWaterBytes = 9600

// pcmSink accepts interleaved stereo 16-bit samples at outputSampleRate.
// WriteChunk may block briefly to pace the producer against real time.
type pcmSink interface {
	WriteChunk(samples []int16)
	Close()
}

// openSink builds the playback sink. Swapped out by tests.
var openSink = func() (pcmSink, error) {
	return newOtoSink()
}

// oto context singleton, shared across jukebox instances in one process.
var (
	otoCtx      *oto.Context
	otoInitOnce sync.Once
	otoInitErr  error
)

func ensureOtoContext() (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   outputSampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-readyChan
	})
	return otoCtx, otoInitErr
}

// otoSink plays samples through oto, which pulls little-endian bytes from a
// ring buffer on its own schedule.
type otoSink struct {
	player     *oto.Player
	ring       *audioRingBuffer
	audioBytes []byte
}

func newOtoSink() (pcmSink, error) {
	ctx, err := ensureOtoContext()
	if err != nil {
		return nil, fmt.Errorf("audio output not available: %w", err)
	}

	ring := newAudioRingBuffer(ringBufferCapacity)
	player := ctx.NewPlayer(ring)
	player.SetBufferSize(19200)
	player.Play()

	return &otoSink{
		player:     player,
		ring:       ring,
		audioBytes: make([]byte, 0, 4096),
	}, nil
}

func (s *otoSink) WriteChunk(samples []int16) {
	needed := len(samples) * 2
	if cap(s.audioBytes) < needed {
		s.audioBytes = make([]byte, 0, needed)
	}
	s.audioBytes = s.audioBytes[:0]
	for _, sample := range samples {
		s.audioBytes = append(s.audioBytes, byte(sample), byte(sample>>8))
	}
	s.ring.Write(s.audioBytes)

	// Let the hardware drain before producing more, so a stop lands within
	// one buffer's worth of audio.
	for s.ring.Buffered() > highWaterBytes {
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *otoSink) Close() {
	s.ring.Clear()
	s.player.Close()
}

// audioRingBuffer is a fixed-capacity byte ring. Writes past capacity drop
// the oldest data; reads past the buffered amount return silence, which keeps
// the audio device fed between tracks.
type audioRingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	head int
	size int
}

func newAudioRingBuffer(capacity int) *audioRingBuffer {
	return &audioRingBuffer{buf: make([]byte, capacity)}
}

func (rb *audioRingBuffer) Write(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(p) >= len(rb.buf) {
		copy(rb.buf, p[len(p)-len(rb.buf):])
		rb.head = 0
		rb.size = len(rb.buf)
		return
	}

	tail := (rb.head + rb.size) % len(rb.buf)
	n := copy(rb.buf[tail:], p)
	copy(rb.buf, p[n:])

	rb.size += len(p)
	if rb.size > len(rb.buf) {
		// Oldest bytes were overwritten.
		rb.head = (rb.head + rb.size - len(rb.buf)) % len(rb.buf)
		rb.size = len(rb.buf)
	}
}

func (rb *audioRingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.size
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = rb.buf[(rb.head+i)%len(rb.buf)]
	}
	rb.head = (rb.head + n) % len(rb.buf)
	rb.size -= n

	// Pad with silence so the device never starves.
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (rb *audioRingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

func (rb *audioRingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.size = 0
}
