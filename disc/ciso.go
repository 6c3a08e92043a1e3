package disc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CISO layout: "CISO" magic, a little-endian u32 block size, then a one byte
// per block map up to offset 0x8000 where block data begins. A map entry of
// zero means the block was all zeroes in the source image and is not stored.
const (
	cisoHeaderSize = 0x8000
	cisoMapEntries = cisoHeaderSize - 8
)

type cisoHeader struct {
	blockSize uint32
	blockMap  [cisoMapEntries]byte
}

func readCISOHeader(r io.ReadSeeker) (*cisoHeader, error) {
	if _, err := r.Seek(4, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek CISO header: %w", err)
	}

	var h cisoHeader
	if err := binary.Read(r, binary.LittleEndian, &h.blockSize); err != nil {
		return nil, fmt.Errorf("failed to read CISO block size: %w", err)
	}
	if h.blockSize == 0 {
		return nil, fmt.Errorf("CISO block size is zero")
	}
	if _, err := io.ReadFull(r, h.blockMap[:]); err != nil {
		return nil, fmt.Errorf("failed to read CISO block map: %w", err)
	}
	return &h, nil
}

// realOffset maps a game-relative offset through the block map.
func (h *cisoHeader) realOffset(offset uint64) (uint64, bool) {
	block := offset / uint64(h.blockSize)
	if block >= cisoMapEntries || h.blockMap[block] == 0 {
		return 0, false
	}

	// Count the stored blocks that precede this one; unstored blocks occupy
	// no space in the file.
	var stored uint64
	for i := uint64(0); i < block; i++ {
		if h.blockMap[i] != 0 {
			stored++
		}
	}

	return cisoHeaderSize + stored*uint64(h.blockSize) + offset%uint64(h.blockSize), true
}
