package reporter

import "sync"

// sessionStatus tracks the lifecycle of one match's report session.
type sessionStatus int

const (
	sessionOpen sessionStatus = iota
	sessionCompleted
	sessionAbandoned
)

// sessionTracker enforces the once-only terminal event rule: a session may
// move to completed or abandoned exactly once, after which further terminal
// events for that match id are no-ops.
type sessionTracker struct {
	mu       sync.Mutex
	sessions map[string]sessionStatus
	openID   string
	hasOpen  bool
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{sessions: make(map[string]sessionStatus)}
}

// startNew opens a fresh session. If a prior session is still open it is
// implicitly abandoned; its match id (possibly empty if no report ever bound
// one) is returned so the caller can log it.
func (s *sessionTracker) startNew() (abandoned string, hadOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasOpen {
		abandoned = s.openID
		hadOpen = true
		if s.openID != "" {
			s.sessions[s.openID] = sessionAbandoned
		}
	}

	s.openID = ""
	s.hasOpen = true
	return abandoned, hadOpen
}

// bind associates the open session with a match id the first time a report
// for it is logged.
func (s *sessionTracker) bind(matchID string) {
	if matchID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasOpen && s.openID == "" {
		s.openID = matchID
	}
	if _, seen := s.sessions[matchID]; !seen {
		s.sessions[matchID] = sessionOpen
	}
}

// finish applies a terminal event. Returns false when the match id is
// unknown or already terminal, in which case nothing changes.
func (s *sessionTracker) finish(matchID string, status sessionStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[matchID]
	if !ok || current != sessionOpen {
		return false
	}

	s.sessions[matchID] = status
	if s.hasOpen && s.openID == matchID {
		s.hasOpen = false
		s.openID = ""
	}
	return true
}
