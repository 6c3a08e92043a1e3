package jukebox

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HPS ("HALPST") is the audio container used for in-image music. A file is a
// small header, one 0x38-byte info struct per channel, then a chain of
// DSP-ADPCM blocks linked by absolute offsets. A next-offset pointing at an
// already-visited block marks the loop point.
var hpsMagic = []byte(" HALPST\x00")

const (
	hpsHeaderSize      = 0x10
	hpsChannelInfoSize = 0x38
	hpsBlockEnd        = 0xffffffff
)

type hpsChannel struct {
	coefs [16]int16
	hist1 int16
	hist2 int16
}

// hpsTrack is a fully decoded track: interleaved stereo samples at the
// container's native rate, plus the sample index playback loops back to
// (negative when the track does not loop).
type hpsTrack struct {
	sampleRate int
	samples    []int16
	loopSample int
}

// decodeHPS parses and decodes an entire HPS file into PCM.
func decodeHPS(data []byte) (*hpsTrack, error) {
	if len(data) < hpsHeaderSize || !bytes.Equal(data[:8], hpsMagic) {
		return nil, fmt.Errorf("not an hps file")
	}

	sampleRate := int(binary.BigEndian.Uint32(data[0x8:]))
	channelCount := int(binary.BigEndian.Uint32(data[0xc:]))
	if channelCount < 1 || channelCount > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", channelCount)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	channels := make([]hpsChannel, channelCount)
	for i := range channels {
		base := hpsHeaderSize + i*hpsChannelInfoSize
		if base+hpsChannelInfoSize > len(data) {
			return nil, fmt.Errorf("truncated channel info")
		}
		for c := 0; c < 16; c++ {
			channels[i].coefs[c] = int16(binary.BigEndian.Uint16(data[base+0x10+c*2:]))
		}
		channels[i].hist1 = int16(binary.BigEndian.Uint16(data[base+0x34:]))
		channels[i].hist2 = int16(binary.BigEndian.Uint16(data[base+0x36:]))
	}

	track := &hpsTrack{sampleRate: sampleRate, loopSample: -1}

	// Walk the block chain. Block start offsets map to the sample index they
	// begin at, so a backward link resolves to a loop sample.
	blockStarts := make(map[uint32]int)
	offset := uint32(hpsHeaderSize + channelCount*hpsChannelInfoSize)

	for {
		if start, seen := blockStarts[offset]; seen {
			track.loopSample = start
			break
		}
		blockStarts[offset] = len(track.samples) / channelCount

		if int(offset)+0xc > len(data) {
			return nil, fmt.Errorf("truncated block header at 0x%x", offset)
		}
		blockLength := binary.BigEndian.Uint32(data[offset:])
		next := binary.BigEndian.Uint32(data[offset+0x8:])

		dataStart := int(offset) + 0xc + channelCount*8
		if dataStart+int(blockLength)*channelCount > len(data) {
			return nil, fmt.Errorf("truncated block data at 0x%x", offset)
		}

		// Per-channel decode, then interleave.
		decoded := make([][]int16, channelCount)
		for i := range channels {
			chData := data[dataStart+i*int(blockLength) : dataStart+(i+1)*int(blockLength)]
			decoded[i] = decodeDSPADPCM(chData, &channels[i])
		}
		for s := 0; s < len(decoded[0]); s++ {
			left := decoded[0][s]
			right := left
			if channelCount == 2 {
				right = decoded[1][s]
			}
			track.samples = append(track.samples, left, right)
		}

		if next == hpsBlockEnd {
			break
		}
		offset = next
	}

	if len(track.samples) == 0 {
		return nil, fmt.Errorf("hps contains no audio")
	}
	return track, nil
}

// decodeDSPADPCM expands GameCube DSP-ADPCM frames: 8 bytes in, 14 samples
// out. The frame header byte carries the coefficient pair index (high nibble)
// and the scale shift (low nibble); channel history carries across frames.
func decodeDSPADPCM(data []byte, ch *hpsChannel) []int16 {
	out := make([]int16, 0, len(data)/8*14)

	for f := 0; f+8 <= len(data); f += 8 {
		header := data[f]
		shift := uint(header & 0xf)
		idx := int(header>>4) & 0x7
		c1 := int32(ch.coefs[idx*2])
		c2 := int32(ch.coefs[idx*2+1])

		for b := 1; b < 8; b++ {
			for _, nib := range [2]int32{int32(data[f+b] >> 4), int32(data[f+b] & 0xf)} {
				if nib >= 8 {
					nib -= 16
				}
				sample := (((nib << shift) << 11) + 1024 + c1*int32(ch.hist1) + c2*int32(ch.hist2)) >> 11
				if sample > 32767 {
					sample = 32767
				} else if sample < -32768 {
					sample = -32768
				}
				ch.hist2 = ch.hist1
				ch.hist1 = int16(sample)
				out = append(out, int16(sample))
			}
		}
	}

	return out
}
