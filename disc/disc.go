// Package disc reads byte ranges out of a GameCube disc image. It understands
// plain images and CISO (compact ISO) images, translating game-relative
// offsets into physical file offsets so that callers can address data the way
// the game does regardless of how the image is stored on disk.
package disc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Kind identifies the storage format of a disc image.
type Kind int

const (
	KindStandard Kind = iota
	KindCISO
	KindUnknown
)

// ErrUnsupportedImage is returned by Open when the file is neither a plain
// GameCube image nor a CISO.
var ErrUnsupportedImage = errors.New("unsupported disc image")

// dvdMagic lives at offset 0x1c of every GameCube disc.
var dvdMagic = [4]byte{0xc2, 0x33, 0x9f, 0x3d}

// cisoMagic is the first four bytes of a CISO image.
var cisoMagic = [4]byte{'C', 'I', 'S', 'O'}

// DetectKind inspects the image header and reports its storage format.
func DetectKind(r io.ReadSeeker) (Kind, error) {
	var initial [4]byte
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return KindUnknown, fmt.Errorf("failed to seek image: %w", err)
	}
	if _, err := io.ReadFull(r, initial[:]); err != nil {
		// Too short to carry either magic: not a readable format, not an
		// I/O failure.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return KindUnknown, nil
		}
		return KindUnknown, fmt.Errorf("failed to read image header: %w", err)
	}

	var magic [4]byte
	if _, err := r.Seek(0x1c, io.SeekStart); err != nil {
		return KindUnknown, fmt.Errorf("failed to seek image: %w", err)
	}
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return KindUnknown, nil
		}
		return KindUnknown, fmt.Errorf("failed to read image magic: %w", err)
	}

	switch {
	case magic == dvdMagic:
		return KindStandard, nil
	case initial == cisoMagic:
		return KindCISO, nil
	default:
		return KindUnknown, nil
	}
}

// Image provides offset-translated reads into a disc image. Safe for use
// from multiple goroutines; reads are serialized internally since they share
// one seek position.
type Image struct {
	mu     sync.Mutex
	r      io.ReadSeeker
	closer io.Closer
	kind   Kind
	ciso   *cisoHeader
}

// Open opens the image at path and prepares offset translation. Returns
// ErrUnsupportedImage when the format is not recognized.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	img, err := NewImage(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	img.closer = f
	return img, nil
}

// NewImage wraps an already-open reader. The caller keeps ownership of any
// underlying file unless the Image was built via Open.
func NewImage(r io.ReadSeeker) (*Image, error) {
	kind, err := DetectKind(r)
	if err != nil {
		return nil, err
	}

	img := &Image{r: r, kind: kind}

	switch kind {
	case KindStandard:
	case KindCISO:
		header, err := readCISOHeader(r)
		if err != nil {
			return nil, err
		}
		img.ciso = header
	default:
		return nil, ErrUnsupportedImage
	}

	return img, nil
}

// Kind reports the detected storage format.
func (im *Image) Kind() Kind {
	return im.kind
}

// RealOffset maps a game-relative offset to a physical file offset. The
// second return is false when the offset has no backing data in this image
// (possible for CISO images with unmapped blocks).
func (im *Image) RealOffset(offset uint64) (uint64, bool) {
	if im.ciso != nil {
		return im.ciso.realOffset(offset)
	}
	return offset, true
}

// ReadRange returns a copy of size bytes at the given game-relative offset.
func (im *Image) ReadRange(offset uint64, size int) ([]byte, error) {
	real, ok := im.RealOffset(offset)
	if !ok {
		return nil, fmt.Errorf("offset 0x%x has no backing data in this image", offset)
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	if _, err := im.r.Seek(int64(real), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to 0x%x: %w", real, err)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(im.r, buf); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at 0x%x: %w", size, real, err)
	}
	return buf, nil
}

// Close closes the underlying file if this Image owns one.
func (im *Image) Close() error {
	if im.closer != nil {
		return im.closer.Close()
	}
	return nil
}
