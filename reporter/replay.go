package reporter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// replayBuffer accumulates raw replay bytes for one game. A report logged
// while this buffer is current keeps a reference to it, so bytes that arrive
// between logging and upload are still included.
type replayBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *replayBuffer) append(p []byte) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
}

// Framing for uploaded replay files: a raw-block header carrying the payload
// size, then the payload, then an empty metadata block.
var (
	replayHeader = []byte{'{', 'U', 3, 'r', 'a', 'w', '[', '$', 'U', '#', 'l'}
	replayFooter = []byte{'U', 8, 'm', 'e', 't', 'a', 'd', 'a', 't', 'a', '{', '}', '}'}
)

// framed returns a copy of the accumulated data wrapped in the replay file
// header and footer.
func (b *replayBuffer) framed() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(b.data)))

	out := make([]byte, 0, len(replayHeader)+4+len(b.data)+len(replayFooter))
	out = append(out, replayHeader...)
	out = append(out, size[:]...)
	out = append(out, b.data...)
	out = append(out, replayFooter...)
	return out
}

// gzipCompress compresses a replay payload for upload.
func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress replay: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	return buf.Bytes(), nil
}
