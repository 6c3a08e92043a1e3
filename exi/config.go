package exi

import "github.com/project-slippi/slippi-exi/osd"

// FilePaths are the host-provided locations the device reads and writes.
type FilePaths struct {
	// ISO is the backing game image, used for report hashing and music.
	ISO string
	// UserJSON is the credential file the session manager owns.
	UserJSON string
	// MusicFolder optionally holds per-stage custom music subfolders.
	MusicFolder string
}

// SCM carries version control metadata baked into the host build.
type SCM struct {
	SlippiSemver string
}

// Config is everything the host hands over at device creation.
type Config struct {
	Paths FilePaths
	SCM   SCM

	// OSD receives player-facing messages. May be nil.
	OSD osd.Handler

	// GraphQLEndpoint overrides the production API endpoint, for staging
	// builds and tests. Empty means production.
	GraphQLEndpoint string
}
