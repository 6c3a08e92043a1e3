// Package user manages authentication state for the current player. Login is
// driven entirely by a credential file on disk: its presence (and successful
// parse) is what "logged in" means, both live and across process restarts.
// A background watcher polls for the file appearing after the player walks
// through the browser login flow.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/project-slippi/slippi-exi/api"
	"github.com/project-slippi/slippi-exi/logbridge"
)

const (
	loginPageURL = "https://slippi.gg/online/enable"
	updateURL    = "https://slippi.gg/downloads?update=true"

	defaultPollInterval = 500 * time.Millisecond
)

// openURL launches the system browser. Stubbed in tests.
var openURL = browser.OpenURL

// State is the authentication state of the session manager.
type State int

const (
	LoggedOut State = iota
	Authenticating
	LoggedIn
)

// Info is the player snapshot loaded from the credential file. Empty string
// fields mean "unknown"; callers never receive a nil snapshot.
type Info struct {
	UID           string   `json:"uid"`
	PlayKey       string   `json:"playKey"`
	DisplayName   string   `json:"displayName"`
	ConnectCode   string   `json:"connectCode"`
	LatestVersion string   `json:"latestVersion"`
	Port          int64    `json:"port"`
	ChatMessages  []string `json:"chatMessages"`
}

// Manager owns the current user snapshot and the credential file watcher.
type Manager struct {
	client       *api.Client
	jsonPath     string
	semver       string
	pollInterval time.Duration

	mu    sync.Mutex
	info  Info
	state State

	// watcherStop/watcherDone belong to the currently running watcher, nil
	// when none. Guarded by mu.
	watcherStop chan struct{}
	watcherDone chan struct{}

	bg sync.WaitGroup
}

// NewManager returns a manager bound to the credential file at jsonPath.
// Call ListenForLogin to start the background watcher.
func NewManager(client *api.Client, jsonPath, semver string) *Manager {
	return &Manager{
		client:       client,
		jsonPath:     jsonPath,
		semver:       semver,
		pollInterval: defaultPollInterval,
	}
}

// AttemptLogin tries to load the credential file synchronously on the
// calling thread. Expected failures (no file yet, bad JSON) report false
// rather than an error.
func (m *Manager) AttemptLogin() bool {
	return m.tryLoadCredentials()
}

// OpenLoginPage launches the browser login flow. Fire and forget: state only
// changes once the watcher observes the resulting credential file.
func (m *Manager) OpenLoginPage() {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := openURL(loginPageURL); err != nil {
			logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
				"failed to open login page: %v", err)
		}
	}()
}

// UpdateApp kicks off the legacy browser-based update flow, reporting
// whether the flow was initiated.
func (m *Manager) UpdateApp() bool {
	if err := openURL(updateURL); err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"failed to open update URL: %v", err)
		return false
	}
	return true
}

// ListenForLogin starts the credential file watcher. Calling it while a
// watcher is already running is a no-op.
func (m *Manager) ListenForLogin() {
	m.mu.Lock()
	if m.watcherStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	m.watcherStop = stop
	m.watcherDone = done
	if m.state == LoggedOut {
		m.state = Authenticating
	}
	m.mu.Unlock()

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if m.tryLoadCredentials() {
				// Retire only if a stopWatcher has not already done so.
				m.mu.Lock()
				if m.watcherStop == stop {
					m.watcherStop = nil
					m.watcherDone = nil
				}
				m.mu.Unlock()
				return
			}
			select {
			case <-stop:
				return
			case <-time.After(m.pollInterval):
			}
		}
	}()
}

// stopWatcher signals the running watcher, if any, and waits for it to exit.
func (m *Manager) stopWatcher() {
	m.mu.Lock()
	stop := m.watcherStop
	done := m.watcherDone
	m.watcherStop = nil
	m.watcherDone = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Logout deletes the credential file and resets to LoggedOut, regardless of
// the prior state.
func (m *Manager) Logout() {
	m.stopWatcher()

	if err := os.Remove(m.jsonPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"failed to remove credential file: %v", err)
	}

	m.mu.Lock()
	m.info = Info{}
	m.state = LoggedOut
	m.mu.Unlock()
}

// OverwriteLatestVersion patches the latest known client version on the
// current snapshot without touching auth state.
func (m *Manager) OverwriteLatestVersion(version string) {
	m.mu.Lock()
	m.info.LatestVersion = version
	m.mu.Unlock()
}

// CurrentState returns the authentication state.
func (m *Manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsLoggedIn reports whether a parsed credential file is loaded.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == LoggedIn
}

// Get returns a snapshot copy of the current user info. The copy is owned by
// the caller; fields are empty strings when logged out.
func (m *Manager) Get() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.info
	info.ChatMessages = append([]string(nil), m.info.ChatMessages...)
	return info
}

// Messages returns the current user's configured chat messages, falling back
// to the defaults when none are configured. Caller owns the slice.
func (m *Manager) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.info.ChatMessages) > 0 {
		return append([]string(nil), m.info.ChatMessages...)
	}
	return DefaultMessages()
}

// Shutdown stops the watcher and waits for every background task started by
// this manager to finish.
func (m *Manager) Shutdown() {
	m.stopWatcher()
	m.bg.Wait()
}

// tryLoadCredentials reads and parses the credential file, transitioning to
// LoggedIn on success. A missing file is the normal not-logged-in case.
func (m *Manager) tryLoadCredentials() bool {
	contents, err := os.ReadFile(m.jsonPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
				"unable to read credential file: %v", err)
		}
		return false
	}

	var info Info
	if err := json.Unmarshal(contents, &info); err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"unable to parse credential file: %v", err)
		return false
	}

	m.mu.Lock()
	m.info = info
	m.state = LoggedIn
	m.mu.Unlock()

	logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelInfo,
		"logged in as %s (%s)", info.DisplayName, info.ConnectCode)

	// Freshen server-held fields off the calling thread.
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		m.overwriteFromServer(info.UID)
	}()

	return true
}

const userQuery = `
	query ($fbUid: String!) {
		getUser(fbUid: $fbUid) {
			displayName
			connectCode { code }
		}
		getLatestReleases { version }
	}
`

// overwriteFromServer fetches the server's view of this user and patches the
// snapshot with anything newer. Failures are logged and otherwise ignored;
// the local file remains the source of truth for being logged in.
func (m *Manager) overwriteFromServer(uid string) {
	if uid == "" {
		return
	}

	var resp struct {
		GetUser struct {
			DisplayName string `json:"displayName"`
			ConnectCode struct {
				Code string `json:"code"`
			} `json:"connectCode"`
		} `json:"getUser"`
		GetLatestReleases []struct {
			Version string `json:"version"`
		} `json:"getLatestReleases"`
	}

	err := m.client.GraphQL(userQuery).
		Variables(map[string]interface{}{"fbUid": uid}).
		Send(&resp)
	if err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelWarning,
			"failed to refresh user from server: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Only patch while this uid is still the loaded user.
	if m.info.UID != uid {
		return
	}
	if resp.GetUser.DisplayName != "" {
		m.info.DisplayName = resp.GetUser.DisplayName
	}
	if resp.GetUser.ConnectCode.Code != "" {
		m.info.ConnectCode = resp.GetUser.ConnectCode.Code
	}
	if len(resp.GetLatestReleases) > 0 && resp.GetLatestReleases[0].Version != "" {
		m.info.LatestVersion = resp.GetLatestReleases[0].Version
	}
}

// String implements fmt.Stringer for debug logging.
func (s State) String() string {
	switch s {
	case LoggedOut:
		return "LoggedOut"
	case Authenticating:
		return "Authenticating"
	case LoggedIn:
		return "LoggedIn"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
