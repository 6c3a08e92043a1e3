// Package jukebox plays in-image music through the host's audio device. A
// command loop owns all playback state; callers hand it messages and never
// block on decode or output. Songs are identified by their byte range in the
// backing image, and a stage folder of user-supplied mp3/wav files can shadow
// an in-image song.
package jukebox

import (
	"errors"
	"fmt"

	"github.com/project-slippi/slippi-exi/disc"
	"github.com/project-slippi/slippi-exi/logbridge"
	"github.com/project-slippi/slippi-exi/osd"
)

// ErrUnsupportedImage is returned by New when the backing image is not a
// format songs can be read from.
var ErrUnsupportedImage = errors.New("image not supported for music playback")

// chunkFrames is how many stereo frames the feeder hands to the sink per
// iteration: 10ms at the output rate. Gain ramps advance once per chunk.
const chunkFrames = outputSampleRate / 100

type messageKind int

const (
	msgStartSong messageKind = iota
	msgStopMusic
	msgSetVolume
	msgShutdown
)

type message struct {
	kind    messageKind
	offset  uint64
	length  int
	control VolumeControl
	value   uint8
}

// Jukebox is the audio engine for one device instance.
type Jukebox struct {
	tx   chan message
	done chan struct{}
}

// New opens the backing image and starts the command loop. systemVolume and
// musicVolume are the host's 0-100 volume settings; musicPath optionally
// points at a folder tree of custom stage music.
func New(isoPath, musicPath string, systemVolume, musicVolume uint8, display osd.Handler) (*Jukebox, error) {
	logbridge.Log(logbridge.ContainerJukebox, logbridge.LevelInfo, "initializing jukebox")

	img, err := disc.Open(isoPath)
	if err != nil {
		if errors.Is(err, disc.ErrUnsupportedImage) {
			display.Send(
				"\nYour ISO is not supported by Slippi Jukebox. Music will not play.",
				osd.ColorRed, osd.DurationVeryLong,
			)
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	j := &Jukebox{
		tx:   make(chan message, 16),
		done: make(chan struct{}),
	}

	go j.run(img, buildTrackFolders(img, musicPath), newVolumeState(systemVolume, musicVolume))
	return j, nil
}

// StartSong begins playing the song stored at [offset, offset+length) in the
// image. Any currently playing song is stopped first.
func (j *Jukebox) StartSong(offset uint64, length int) {
	logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelInfo,
		"start song, offset: 0x%x, length: %d", offset, length)
	j.send(message{kind: msgStartSong, offset: offset, length: length})
}

// StopMusic halts playback. Safe to call when nothing is playing.
func (j *Jukebox) StopMusic() {
	logbridge.Log(logbridge.ContainerJukebox, logbridge.LevelInfo, "stop music")
	j.send(message{kind: msgStopMusic})
}

// SetVolume updates one gain stage. The change reaches the playing song as a
// short ramp rather than a step.
func (j *Jukebox) SetVolume(control VolumeControl, value uint8) {
	logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelInfo,
		"change volume control %d: %d", control, value)
	j.send(message{kind: msgSetVolume, control: control, value: value})
}

// Shutdown stops playback and retires the command loop. The engine must not
// be used afterward.
func (j *Jukebox) Shutdown() {
	j.send(message{kind: msgShutdown})
	<-j.done
}

func (j *Jukebox) send(m message) {
	select {
	case j.tx <- m:
	case <-j.done:
	}
}

// feeder is one playing song's goroutine handle. stop is closed to ask it to
// quit; it closes finished on exit.
type feeder struct {
	stop     chan struct{}
	finished chan struct{}
}

// run is the jukebox main loop. It owns the image, the sink of the currently
// playing song, and all volume state.
func (j *Jukebox) run(img *disc.Image, folders map[uint64]string, volumes *volumeState) {
	defer close(j.done)
	defer img.Close()

	var current *feeder
	stopCurrent := func() {
		if current == nil {
			return
		}
		close(current.stop)
		<-current.finished
		current = nil
	}

	for m := range j.tx {
		switch m.kind {
		case msgStartSong:
			stopCurrent()
			t, err := j.loadTrack(img, folders, m.offset, m.length)
			if err != nil {
				logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelError,
					"cannot play song: %v", err)
				continue
			}

			sink, err := openSink()
			if err != nil {
				logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelError,
					"cannot open audio output: %v", err)
				continue
			}

			current = &feeder{
				stop:     make(chan struct{}),
				finished: make(chan struct{}),
			}
			go feed(t, sink, volumes, current)

		case msgSetVolume:
			volumes.set(m.control, m.value)

		case msgStopMusic:
			stopCurrent()

		case msgShutdown:
			stopCurrent()
			return
		}
	}
}

// loadTrack resolves the song for a start request: a custom file when the
// offset's stage folder has one, otherwise the in-image audio.
func (j *Jukebox) loadTrack(img *disc.Image, folders map[uint64]string, offset uint64, length int) (*track, error) {
	if path := findCustomSong(folders, offset); path != "" {
		t, err := loadCustomTrack(path)
		if err == nil {
			logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelInfo,
				"playing custom song %s", path)
			return t, nil
		}
		logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelWarning,
			"failed to load custom song %s, falling back to image audio: %v", path, err)
	}

	real, ok := img.RealOffset(offset)
	if !ok {
		return nil, fmt.Errorf("0x%x has no corresponding offset in the image", offset)
	}
	return loadImageTrack(img, real, length)
}

// feed streams one track into the sink in 10ms chunks, applying the ramped
// combined gain, until the track ends or stop is closed.
func feed(t *track, sink pcmSink, volumes *volumeState, f *feeder) {
	defer close(f.finished)
	defer sink.Close()

	gain := volumes.target()
	chunk := make([]int16, chunkFrames*2)
	pos := 0

	for {
		select {
		case <-f.stop:
			return
		default:
		}

		if pos >= len(t.samples) {
			if t.loopSample < 0 {
				return
			}
			pos = t.loopSample * 2
		}

		n := copy(chunk, t.samples[pos:])
		pos += n
		for i := n; i < len(chunk); i++ {
			chunk[i] = 0
		}

		gain = rampGain(gain, volumes.target())
		for i := 0; i < n; i++ {
			chunk[i] = int16(float64(chunk[i]) * gain)
		}

		sink.WriteChunk(chunk)
	}
}
