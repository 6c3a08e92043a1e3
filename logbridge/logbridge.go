// Package logbridge routes log lines from every service in this module to a
// host-supplied callback. The host registers named containers (categories)
// with independent enable flags and severity thresholds; services log against
// a container key and the bridge decides whether the line is forwarded.
//
// When no callback has been installed, lines fall through to the standard
// library logger so that nothing is silently lost during early startup.
package logbridge

import (
	"fmt"
	"log"
	"sync"
)

// Log levels, matching the host's numbering. Lower is more severe.
const (
	LevelNotice  = 1
	LevelError   = 2
	LevelWarning = 3
	LevelInfo    = 4
	LevelDebug   = 5
)

// Callback receives a forwarded log line. It may be invoked from any
// goroutine concurrently and must not block.
type Callback func(level int, logType int, msg string)

// Container keys used throughout this module. Hosts may register additional
// containers of their own.
const (
	ContainerOnline  = "SLIPPI_ONLINE"
	ContainerJukebox = "JUKEBOX"
)

type container struct {
	logType int
	enabled bool
	level   int
}

var (
	mu         sync.RWMutex
	sink       Callback
	containers = map[string]*container{}

	// globalLevel applies when the host has no container concept and drives
	// filtering through UpdateGlobalLogLevel instead.
	globalLevel   = LevelInfo
	useGlobalOnly bool
)

// Init installs the process-wide sink. Calling it again replaces the sink;
// there is no way to uninstall one short of replacing it.
func Init(cb Callback) {
	mu.Lock()
	sink = cb
	mu.Unlock()
}

// RegisterContainer registers (or re-registers) a log container under the
// given key. Last registration wins on duplicate keys.
func RegisterContainer(kind string, logType int, enabled bool, level int) {
	mu.Lock()
	containers[kind] = &container{logType: logType, enabled: enabled, level: level}
	mu.Unlock()
}

// UpdateContainer updates the enabled flag and level threshold for a
// registered container. Updating an unknown key is a logged no-op.
func UpdateContainer(kind string, enabled bool, level int) {
	mu.Lock()
	c, ok := containers[kind]
	if ok {
		c.enabled = enabled
		c.level = level
	}
	mu.Unlock()

	if !ok {
		log.Printf("[logbridge] update for unregistered container %q ignored", kind)
	}
}

// UpdateGlobalLogLevel switches the bridge into container-less mode, where a
// single threshold applies to every line regardless of container state. Used
// by hosts that configure one global verbosity rather than per-category.
func UpdateGlobalLogLevel(level int) {
	mu.Lock()
	globalLevel = level
	useGlobalOnly = true
	mu.Unlock()
}

// Log forwards a line for the given container at the given level, subject to
// the container's (or global) filtering.
func Log(kind string, level int, msg string) {
	// Container fields are copied out under the lock; UpdateContainer
	// mutates them in place concurrently.
	mu.RLock()
	cb := sink
	global := globalLevel
	globalOnly := useGlobalOnly
	c, registered := containers[kind]
	var enabled bool
	var threshold, logType int
	if registered {
		enabled = c.enabled
		threshold = c.level
		logType = c.logType
	}
	mu.RUnlock()

	if cb == nil {
		// No host sink yet; keep startup noise visible.
		log.Printf("[%s] %s", kind, msg)
		return
	}

	if globalOnly {
		if level <= global {
			cb(level, 0, msg)
		}
		return
	}

	if !registered {
		// Unregistered container: pass through unfiltered so the host can
		// decide. A type id of zero marks "uncategorized".
		cb(level, 0, msg)
		return
	}

	if !enabled || level > threshold {
		return
	}

	cb(level, logType, msg)
}

// Logf is Log with formatting.
func Logf(kind string, level int, format string, args ...interface{}) {
	Log(kind, level, fmt.Sprintf(format, args...))
}

// Info logs at info level.
func Info(kind, msg string) { Log(kind, LevelInfo, msg) }

// Warn logs at warning level.
func Warn(kind, msg string) { Log(kind, LevelWarning, msg) }

// Error logs at error level.
func Error(kind, msg string) { Log(kind, LevelError, msg) }

// reset restores pristine state. Test hook.
func reset() {
	mu.Lock()
	sink = nil
	containers = map[string]*container{}
	globalLevel = LevelInfo
	useGlobalOnly = false
	mu.Unlock()
}
