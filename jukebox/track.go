package jukebox

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/project-slippi/slippi-exi/disc"
	"github.com/project-slippi/slippi-exi/logbridge"
)

// track is a decoded song ready for the feeder: interleaved stereo samples
// at outputSampleRate. loopSample is the frame playback resumes from when it
// reaches the end, or -1 for play-once.
type track struct {
	samples    []int16
	loopSample int
}

// hpsToStage maps in-image song file names to the stage folder a user may
// fill with replacement music.
var hpsToStage = map[string]string{
	"hyaku2.hps":   "final_destination",
	"sp_end.hps":   "final_destination",
	"hyaku.hps":    "battlefield",
	"sp_zako.hps":  "battlefield",
	"ystory.hps":   "yoshis_story",
	"izumi.hps":    "fountain_of_dreams",
	"old_kb.hps":   "dreamland",
	"pokesta.hps":  "pokemon_stadium",
	"pstadium.hps": "pokemon_stadium",
	"menu3.hps":    "menu",
	"menu02.hps":   "menu",
	"menu01.hps":   "menu",
	"target.hps":   "target_test",
	"yorster.hps":  "yoshis_island",
	"smari3.hps":   "yoshis_island",
	"old_ys.hps":   "yoshis_island_2",
	"old_dk.hps":   "kongo_jungle",
	"kraid.hps":    "brinstar_depths",
	"fourside.hps": "fourside",
	"bigblue.hps":  "big_blue",
	"mrider.hps":   "big_blue",
	"pura.hps":     "poke_floats",
	"inis1_01.hps": "kingdom",
	"docmari.hps":  "kingdom",
	"inis2_01.hps": "kingdom_2",
	"zebes.hps":    "brinstar",
	"onetto2.hps":  "onett",
	"onetto.hps":   "onett",
	"mutecity.hps": "mute_city",
	"rcruise.hps":  "rainbow_cruise",
	"kongo.hps":    "jungle_japes",
	"shrine.hps":   "temple",
	"greens.hps":   "green_greens",
	"venom.hps":    "venom",
	"baloon.hps":   "icicle_mountain",
	"icemt.hps":    "icicle_mountain",
	"castle.hps":   "princess_peachs_castle",
	"garden.hps":   "kongo_jungle",
	"saria.hps":    "great_bay",
	"greatbay.hps": "great_bay",
	"corneria.hps": "corneria",
	"flatzone.hps": "flatzone",
}

// buildTrackFolders maps song offsets in the image to stage folders under
// musicPath, using the image's file table.
func buildTrackFolders(img *disc.Image, musicPath string) map[uint64]string {
	folders := make(map[uint64]string)
	if musicPath == "" {
		return folders
	}

	files, err := img.AudioFiles()
	if err != nil {
		logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelWarning,
			"unable to list image audio files: %v", err)
		return folders
	}

	for offset, name := range files {
		if stage, ok := hpsToStage[strings.ToLower(name)]; ok {
			folders[offset] = filepath.Join(musicPath, stage)
		}
	}
	return folders
}

// findCustomSong picks a random playable file from the stage folder mapped to
// offset, if any.
func findCustomSong(folders map[uint64]string, offset uint64) string {
	dir, ok := folders[offset]
	if !ok {
		return ""
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mp3", ".wav":
			candidates = append(candidates, filepath.Join(dir, e.Name()))
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.Intn(len(candidates))]
}

// loadCustomTrack decodes a user-supplied music file. Custom songs play once
// rather than looping.
func loadCustomTrack(path string) (*track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom song: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3(data)
	case ".wav":
		return decodeWAV(data)
	}
	return nil, fmt.Errorf("unsupported custom song format %q", filepath.Ext(path))
}

// loadImageTrack decodes the song stored at [offset, offset+length) in the
// image.
func loadImageTrack(img *disc.Image, offset uint64, length int) (*track, error) {
	data, err := img.ReadRange(offset, length)
	if err != nil {
		return nil, err
	}

	hps, err := decodeHPS(data)
	if err != nil {
		return nil, err
	}

	samples, loop := resampleStereo(hps.samples, hps.sampleRate, hps.loopSample)
	return &track{samples: samples, loopSample: loop}, nil
}

func decodeMP3(data []byte) (*track, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}

	// go-mp3 always yields interleaved stereo 16-bit little-endian.
	var raw []byte
	buf := make([]byte, 8192)
	for {
		n, err := dec.Read(buf)
		raw = append(raw, buf[:n]...)
		if err != nil {
			break
		}
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}

	samples, _ = resampleStereo(samples, dec.SampleRate(), -1)
	return &track{samples: samples, loopSample: -1}, nil
}

func decodeWAV(data []byte) (*track, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("wav has no channel format")
	}

	samples := interleaveStereo(buf, int(dec.BitDepth))
	samples, _ = resampleStereo(samples, buf.Format.SampleRate, -1)
	return &track{samples: samples, loopSample: -1}, nil
}

// interleaveStereo widens or narrows PCM to 16-bit and lays it out as stereo
// frames, duplicating mono.
func interleaveStereo(buf *audio.IntBuffer, bitDepth int) []int16 {
	shift := bitDepth - 16
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels

	samples := make([]int16, 0, frames*2)
	for f := 0; f < frames; f++ {
		left := scaleTo16(buf.Data[f*channels], shift)
		right := left
		if channels >= 2 {
			right = scaleTo16(buf.Data[f*channels+1], shift)
		}
		samples = append(samples, left, right)
	}
	return samples
}

func scaleTo16(v, shift int) int16 {
	if shift > 0 {
		return int16(v >> shift)
	}
	if shift < 0 {
		return int16(v << -shift)
	}
	return int16(v)
}

// resampleStereo converts interleaved stereo samples from rate to
// outputSampleRate by linear interpolation, carrying the loop frame index
// across the rate change.
func resampleStereo(samples []int16, rate, loopSample int) ([]int16, int) {
	if rate == outputSampleRate || rate <= 0 {
		return samples, loopSample
	}

	inFrames := len(samples) / 2
	outFrames := inFrames * outputSampleRate / rate
	out := make([]int16, 0, outFrames*2)

	for f := 0; f < outFrames; f++ {
		pos := float64(f) * float64(rate) / float64(outputSampleRate)
		i := int(pos)
		frac := pos - float64(i)
		j := i + 1
		if j >= inFrames {
			j = inFrames - 1
		}
		for c := 0; c < 2; c++ {
			a := float64(samples[i*2+c])
			b := float64(samples[j*2+c])
			out = append(out, int16(a+(b-a)*frac))
		}
	}

	if loopSample >= 0 {
		loopSample = loopSample * outputSampleRate / rate
	}
	return out, loopSample
}
