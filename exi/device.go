// Package exi implements the Slippi expansion interface device: the single
// object the host creates per emulation session, owning the session manager,
// the report pipeline, and the jukebox, with DMA transfers as the command
// transport.
package exi

import (
	"sync"

	"github.com/project-slippi/slippi-exi/api"
	"github.com/project-slippi/slippi-exi/jukebox"
	"github.com/project-slippi/slippi-exi/logbridge"
	"github.com/project-slippi/slippi-exi/reporter"
	"github.com/project-slippi/slippi-exi/user"
)

// Device composes the services behind the expansion interface. Create one
// per emulation session and Shutdown it exactly once; no method may be called
// after Shutdown.
type Device struct {
	config Config

	Reporter *reporter.Reporter
	Users    *user.Manager

	mu      sync.Mutex
	jukebox *jukebox.Jukebox
}

// New builds a device and starts its background services. The credential
// watcher begins immediately so an external login is picked up without any
// further calls.
func New(config Config) *Device {
	logbridge.Log(logbridge.ContainerOnline, logbridge.LevelInfo, "starting slippi exi device")

	client := api.NewClient(config.SCM.SlippiSemver)
	if config.GraphQLEndpoint != "" {
		client.GraphQLEndpoint = config.GraphQLEndpoint
	}

	users := user.NewManager(client, config.Paths.UserJSON, config.SCM.SlippiSemver)
	users.ListenForLogin()

	return &Device{
		config:   config,
		Users:    users,
		Reporter: reporter.New(client, users, config.Paths.ISO, config.OSD),
	}
}

// ConfigureJukebox enables or disables music playback. Enabling while
// already enabled is a logged no-op; disabling stops playback and rejects
// start requests until re-enabled. Host volume settings are 0-100.
func (d *Device) ConfigureJukebox(enabled bool, systemVolume, musicVolume uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !enabled {
		if d.jukebox != nil {
			d.jukebox.Shutdown()
			d.jukebox = nil
		}
		return
	}

	if d.jukebox != nil {
		logbridge.Log(logbridge.ContainerOnline, logbridge.LevelWarning, "jukebox is already active")
		return
	}

	jb, err := jukebox.New(d.config.Paths.ISO, d.config.Paths.MusicFolder, systemVolume, musicVolume, d.config.OSD)
	if err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError, "failed to start jukebox: %v", err)
		return
	}
	d.jukebox = jb
}

// JukeboxEnabled reports whether music playback is currently active.
func (d *Device) JukeboxEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jukebox != nil
}

// StartSong forwards a play request to the jukebox, if one is enabled.
func (d *Device) StartSong(offset uint64, length int) {
	d.mu.Lock()
	jb := d.jukebox
	d.mu.Unlock()

	if jb == nil {
		logbridge.Log(logbridge.ContainerJukebox, logbridge.LevelDebug, "ignoring start song, jukebox disabled")
		return
	}
	jb.StartSong(offset, length)
}

// StopMusic forwards a stop request to the jukebox, if one is enabled.
func (d *Device) StopMusic() {
	d.mu.Lock()
	jb := d.jukebox
	d.mu.Unlock()

	if jb != nil {
		jb.StopMusic()
	}
}

// SetJukeboxVolume forwards a gain change to the jukebox, if one is enabled.
func (d *Device) SetJukeboxVolume(control jukebox.VolumeControl, value uint8) {
	d.mu.Lock()
	jb := d.jukebox
	d.mu.Unlock()

	if jb != nil {
		jb.SetVolume(control, value)
	}
}

// Shutdown quiesces every background worker in a fixed order: playback
// first, then the report queue (which drains), then the credential watcher.
func (d *Device) Shutdown() {
	logbridge.Log(logbridge.ContainerOnline, logbridge.LevelInfo, "shutting down slippi exi device")

	d.mu.Lock()
	if d.jukebox != nil {
		d.jukebox.Shutdown()
		d.jukebox = nil
	}
	d.mu.Unlock()

	d.Reporter.Shutdown()
	d.Users.Shutdown()
}
