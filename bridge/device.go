package bridge

import (
	"sync"

	"github.com/project-slippi/slippi-exi/exi"
	"github.com/project-slippi/slippi-exi/jukebox"
	"github.com/project-slippi/slippi-exi/logbridge"
)

// deviceEntry wraps a device so destroy can serialize against in-flight
// dispatch: commands hold the read lock, destroy takes the write lock and
// waits them out.
type deviceEntry struct {
	mu  sync.RWMutex
	dev *exi.Device
}

// DeviceCreate builds a device and returns its handle.
func DeviceCreate(config exi.Config) Handle {
	return handles.insert(&deviceEntry{dev: exi.New(config)})
}

// DeviceDestroy shuts the device down and invalidates the handle. It waits
// for any in-flight command on the same handle to finish first. Further use
// of the handle is a caller error and is ignored.
func DeviceDestroy(h Handle) {
	entry, ok := handles.take(h).(*deviceEntry)
	if !ok {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelWarning,
			"destroy of unknown device handle %d", h)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.dev.Shutdown()
	entry.dev = nil
}

// withDevice runs fn against a live device, holding off a concurrent
// destroy for the duration. Unknown handles are dropped silently since the
// contract makes them a caller error.
func withDevice(h Handle, fn func(*exi.Device)) {
	entry, ok := handles.get(h).(*deviceEntry)
	if !ok {
		return
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if entry.dev != nil {
		fn(entry.dev)
	}
}

// DeviceDMAWrite forwards a host-to-device transfer.
func DeviceDMAWrite(h Handle, data []byte) {
	withDevice(h, func(d *exi.Device) { d.DMAWrite(data) })
}

// DeviceDMARead fills a device-to-host transfer buffer.
func DeviceDMARead(h Handle, buf []byte) {
	withDevice(h, func(d *exi.Device) { d.DMARead(buf) })
}

// DeviceConfigureJukebox enables or disables music playback.
func DeviceConfigureJukebox(h Handle, enabled bool, systemVolume, musicVolume uint8) {
	withDevice(h, func(d *exi.Device) { d.ConfigureJukebox(enabled, systemVolume, musicVolume) })
}

// JukeboxStartSong plays the song at the given image byte range.
func JukeboxStartSong(h Handle, offset uint64, length int) {
	withDevice(h, func(d *exi.Device) { d.StartSong(offset, length) })
}

// JukeboxStopMusic halts playback.
func JukeboxStopMusic(h Handle) {
	withDevice(h, func(d *exi.Device) { d.StopMusic() })
}

// JukeboxSetVolume updates one of the three gain stages.
func JukeboxSetVolume(h Handle, control jukebox.VolumeControl, value uint8) {
	withDevice(h, func(d *exi.Device) { d.SetJukeboxVolume(control, value) })
}
