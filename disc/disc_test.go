package disc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildStandardImage returns a minimal plain GameCube image containing an
// FST with the provided file entries.
func buildStandardImage(t *testing.T) []byte {
	t.Helper()

	img := make([]byte, 0x1000)
	copy(img[0x1c:], []byte{0xc2, 0x33, 0x9f, 0x3d})

	// Three FST entries: root dir, one .hps file, one unrelated file.
	const fstLocation = 0x600
	names := "menu.hps\x00opening.bnr\x00"
	fst := make([]byte, 3*fstEntrySize+len(names))

	// Root entry: directory flag, entry count in the length slot.
	fst[0] = 1
	binary.BigEndian.PutUint32(fst[0x8:], 3)

	// menu.hps at disc offset 0x800.
	entry := fst[fstEntrySize : 2*fstEntrySize]
	entry[0] = 0
	entry[1], entry[2], entry[3] = 0, 0, 0 // name offset 0
	binary.BigEndian.PutUint32(entry[4:], 0x800)

	// opening.bnr at disc offset 0x900.
	entry = fst[2*fstEntrySize : 3*fstEntrySize]
	entry[0] = 0
	entry[1], entry[2], entry[3] = 0, 0, byte(len("menu.hps")+1)
	binary.BigEndian.PutUint32(entry[4:], 0x900)

	copy(fst[3*fstEntrySize:], names)

	binary.BigEndian.PutUint32(img[fstLocationOffset:], fstLocation)
	binary.BigEndian.PutUint32(img[fstSizeOffset:], uint32(len(fst)))
	copy(img[fstLocation:], fst)

	// Marker bytes for ReadRange verification.
	copy(img[0x800:], []byte("HPS-DATA"))

	return img
}

func TestDetectKindStandard(t *testing.T) {
	img := buildStandardImage(t)
	kind, err := DetectKind(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindStandard {
		t.Fatalf("expected KindStandard, got %v", kind)
	}
}

func TestDetectKindUnknown(t *testing.T) {
	img := make([]byte, 0x100)
	kind, err := DetectKind(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindUnknown {
		t.Fatalf("expected KindUnknown, got %v", kind)
	}
}

func TestNewImageRejectsUnknown(t *testing.T) {
	img := make([]byte, 0x100)
	if _, err := NewImage(bytes.NewReader(img)); err != ErrUnsupportedImage {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestReadRangeStandard(t *testing.T) {
	img, err := NewImage(bytes.NewReader(buildStandardImage(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := img.ReadRange(0x800, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "HPS-DATA" {
		t.Fatalf("expected marker bytes, got %q", data)
	}
}

func TestAudioFiles(t *testing.T) {
	img, err := NewImage(bytes.NewReader(buildStandardImage(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	files, err := img.AudioFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 audio file, got %d", len(files))
	}
	if files[0x800] != "menu.hps" {
		t.Fatalf("expected menu.hps at 0x800, got %q", files[0x800])
	}
}

// buildCISOImage stores blocks 0 and 2 of a 32-byte-block image.
func buildCISOImage(t *testing.T) []byte {
	t.Helper()

	const blockSize = 32
	img := make([]byte, cisoHeaderSize+2*blockSize)
	copy(img, "CISO")
	binary.LittleEndian.PutUint32(img[4:], blockSize)
	img[8+0] = 1 // block 0 stored
	img[8+2] = 1 // block 2 stored

	copy(img[cisoHeaderSize:], []byte("block-zero-data"))
	copy(img[cisoHeaderSize+blockSize:], []byte("block-two-data"))
	return img
}

func TestCISOOffsetTranslation(t *testing.T) {
	img, err := NewImage(bytes.NewReader(buildCISOImage(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Kind() != KindCISO {
		t.Fatalf("expected KindCISO, got %v", img.Kind())
	}

	tests := []struct {
		offset uint64
		want   uint64
		ok     bool
	}{
		{0, cisoHeaderSize, true},
		{10, cisoHeaderSize + 10, true},
		{32, 0, false}, // block 1 not stored
		{64, cisoHeaderSize + 32, true},
		{70, cisoHeaderSize + 38, true},
	}

	for _, tc := range tests {
		got, ok := img.RealOffset(tc.offset)
		if ok != tc.ok {
			t.Fatalf("offset 0x%x: expected ok=%v, got %v", tc.offset, tc.ok, ok)
		}
		if ok && got != tc.want {
			t.Fatalf("offset 0x%x: expected 0x%x, got 0x%x", tc.offset, tc.want, got)
		}
	}
}

func TestCISOReadRange(t *testing.T) {
	img, err := NewImage(bytes.NewReader(buildCISOImage(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := img.ReadRange(64, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "block-two-data" {
		t.Fatalf("expected block two contents, got %q", data)
	}

	if _, err := img.ReadRange(32, 4); err == nil {
		t.Fatal("expected error reading an unstored block")
	}
}

func TestDetectKindTruncatedImage(t *testing.T) {
	// Files shorter than 0x20 bytes cannot carry either magic; they are an
	// unknown format, not a read failure.
	for _, size := range []int{0, 3, 0x10, 0x1f} {
		kind, err := DetectKind(bytes.NewReader(make([]byte, size)))
		if err != nil {
			t.Fatalf("size %#x: unexpected error: %v", size, err)
		}
		if kind != KindUnknown {
			t.Fatalf("size %#x: expected KindUnknown, got %v", size, kind)
		}
	}
}

func TestNewImageRejectsTruncated(t *testing.T) {
	if _, err := NewImage(bytes.NewReader(make([]byte, 0x10))); err != ErrUnsupportedImage {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}
