package exi

import (
	"encoding/binary"

	"github.com/project-slippi/slippi-exi/jukebox"
	"github.com/project-slippi/slippi-exi/logbridge"
)

// Command tags. The first byte of a DMA transfer selects the operation;
// payload fields are big-endian, matching the game's byte order.
const (
	// cmdReplayStart through cmdReplayEnd bracket the replay event stream.
	// These transfers are forwarded to the report pipeline whole, tag
	// included, since the tag is part of the replay format itself.
	cmdReplayStart = 0x35
	cmdReplayEnd   = 0x3d

	// cmdStartSong: u64 song offset + u32 song length.
	cmdStartSong = 0xb0
	// cmdStopMusic: no payload.
	cmdStopMusic = 0xb1
	// cmdSetVolume: volume control byte + value byte.
	cmdSetVolume = 0xb2

	// cmdUserStatus: a read request; the device fills the transfer buffer
	// with login state and the connect code.
	cmdUserStatus = 0xa0
)

// DMAWrite decodes one host-to-device transfer and dispatches it. Never
// blocks on network or disk; unknown tags are ignored since the host's
// memory may contain noise.
func (d *Device) DMAWrite(data []byte) {
	if len(data) == 0 {
		return
	}

	tag := data[0]
	switch {
	case tag >= cmdReplayStart && tag <= cmdReplayEnd:
		d.Reporter.PushReplayData(data)

	case tag == cmdStartSong:
		offset, length, ok := parseStartSong(data[1:])
		if !ok {
			logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelWarning,
				"short start song payload (%d bytes)", len(data)-1)
			return
		}
		d.StartSong(offset, length)

	case tag == cmdStopMusic:
		d.StopMusic()

	case tag == cmdSetVolume:
		control, value, ok := parseSetVolume(data[1:])
		if !ok {
			logbridge.Logf(logbridge.ContainerJukebox, logbridge.LevelWarning,
				"short set volume payload (%d bytes)", len(data)-1)
			return
		}
		d.SetJukeboxVolume(control, value)

	default:
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelDebug,
			"ignoring unknown command tag 0x%02x", tag)
	}
}

// DMARead fills a device-to-host transfer buffer. The host seeds the buffer
// with the request tag it wants serviced.
func (d *Device) DMARead(buf []byte) {
	if len(buf) == 0 {
		return
	}

	switch buf[0] {
	case cmdUserStatus:
		d.fillUserStatus(buf[1:])
	default:
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelDebug,
			"ignoring unknown read request tag 0x%02x", buf[0])
	}
}

// fillUserStatus writes a login flag byte followed by the null-terminated
// connect code, truncated to the buffer.
func (d *Device) fillUserStatus(buf []byte) {
	if len(buf) == 0 {
		return
	}

	buf[0] = 0
	if d.Users.IsLoggedIn() {
		buf[0] = 1
	}

	code := d.Users.Get().ConnectCode
	for i := 1; i < len(buf); i++ {
		if i-1 < len(code) {
			buf[i] = code[i-1]
		} else {
			buf[i] = 0
			break
		}
	}
}

func parseStartSong(payload []byte) (offset uint64, length int, ok bool) {
	if len(payload) < 12 {
		return 0, 0, false
	}
	offset = binary.BigEndian.Uint64(payload)
	length = int(binary.BigEndian.Uint32(payload[8:]))
	return offset, length, true
}

func parseSetVolume(payload []byte) (jukebox.VolumeControl, uint8, bool) {
	if len(payload) < 2 {
		return 0, 0, false
	}
	return jukebox.VolumeControl(payload[0]), payload[1], true
}
