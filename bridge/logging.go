package bridge

import "github.com/project-slippi/slippi-exi/logbridge"

// Logging entry points are plain passthroughs: the log bridge is process
// global, not per device, so no handle is involved.

// LoggingInit installs the host's log sink.
func LoggingInit(callback logbridge.Callback) {
	logbridge.Init(callback)
}

// LoggingRegisterContainer upserts a log container.
func LoggingRegisterContainer(kind string, logType int, enabled bool, level int) {
	logbridge.RegisterContainer(kind, logType, enabled, level)
}

// LoggingUpdateContainer adjusts an existing container's filter.
func LoggingUpdateContainer(kind string, enabled bool, level int) {
	logbridge.UpdateContainer(kind, enabled, level)
}

// LoggingUpdateGlobalLevel switches to a single global threshold for hosts
// without a container concept.
func LoggingUpdateGlobalLevel(level int) {
	logbridge.UpdateGlobalLogLevel(level)
}
