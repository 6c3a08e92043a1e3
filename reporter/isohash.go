package reporter

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/project-slippi/slippi-exi/logbridge"
)

// hashISO computes the MD5 of the game image once, at device startup, so
// reports can identify which image produced them. Runs on its own worker;
// reports sent before it finishes simply carry an empty hash.
func (r *Reporter) hashISO(isoPath string) {
	start := time.Now()

	f, err := os.Open(isoPath)
	if err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"unable to open image for hashing: %v", err)
		return
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"unable to hash image: %v", err)
		return
	}

	digest := hex.EncodeToString(h.Sum(nil))

	r.hashMu.Lock()
	r.isoHash = digest
	r.hashMu.Unlock()

	logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelInfo,
		"image hash %s computed in %s", digest, time.Since(start).Round(time.Millisecond))
}
