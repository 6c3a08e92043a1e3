package disc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// File system table constants for GameCube discs. The header stores the FST
// location and size at fixed offsets; each FST entry is twelve bytes.
const (
	fstLocationOffset = 0x424
	fstSizeOffset     = 0x428
	fstEntrySize      = 0xc
)

// AudioFiles walks the image's file system table and returns the offset and
// name of every .hps audio file on the disc, keyed by game-relative offset.
func (im *Image) AudioFiles() (map[uint64]string, error) {
	locBytes, err := im.ReadRange(fstLocationOffset, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to read FST location: %w", err)
	}
	sizeBytes, err := im.ReadRange(fstSizeOffset, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to read FST size: %w", err)
	}

	fstLocation := binary.BigEndian.Uint32(locBytes)
	fstSize := binary.BigEndian.Uint32(sizeBytes)
	if fstLocation == 0 || fstSize < fstEntrySize {
		return nil, fmt.Errorf("image has no usable FST")
	}

	fst, err := im.ReadRange(uint64(fstLocation), int(fstSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read FST: %w", err)
	}

	// The root entry's length field holds the total entry count; the string
	// table follows the last entry.
	entryCount := binary.BigEndian.Uint32(fst[0x8:0xc])
	strTableOffset := int(entryCount) * fstEntrySize
	if strTableOffset > len(fst) {
		return nil, fmt.Errorf("FST string table offset out of range")
	}

	files := make(map[uint64]string)
	for i := 0; i+fstEntrySize <= strTableOffset; i += fstEntrySize {
		entry := fst[i : i+fstEntrySize]

		isFile := entry[0] == 0
		if !isFile {
			continue
		}

		nameOffset := strTableOffset + int(readU24(entry, 1))
		offset := uint64(binary.BigEndian.Uint32(entry[4:8]))

		name, ok := readCString(fst, nameOffset)
		if !ok {
			continue
		}

		if strings.HasSuffix(name, ".hps") {
			files[offset] = name
		}
	}

	return files, nil
}

// readU24 reads a big-endian unsigned 24 bit value.
func readU24(b []byte, offset int) uint32 {
	return uint32(b[offset])<<16 | uint32(b[offset+1])<<8 | uint32(b[offset+2])
}

// readCString reads a NUL terminated string starting at offset.
func readCString(b []byte, offset int) (string, bool) {
	if offset < 0 || offset >= len(b) {
		return "", false
	}
	end := bytes.IndexByte(b[offset:], 0)
	if end < 0 {
		return "", false
	}
	return string(b[offset : offset+end]), true
}
