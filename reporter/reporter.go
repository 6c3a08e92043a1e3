// Package reporter delivers per-game telemetry to the Slippi servers. Reports
// are enqueued from the host thread and drained by a background worker with
// bounded retry, so no caller ever blocks on network I/O. Replay bytes stream
// in separately and ride along with whichever report owns them.
package reporter

import (
	"fmt"
	"sync"
	"time"

	"github.com/project-slippi/slippi-exi/api"
	"github.com/project-slippi/slippi-exi/logbridge"
	"github.com/project-slippi/slippi-exi/osd"
	"github.com/project-slippi/slippi-exi/user"
)

// maxReportAttempts is how many times one report is sent before being
// dropped. During shutdown this collapses to a single attempt.
const maxReportAttempts = 5

// replayNewGameMarker is the leading byte of the first replay chunk of a new
// game; seeing it resets replay accumulation.
const replayNewGameMarker = 0x35

type processingEvent int

const (
	eventReportAvailable processingEvent = iota
	eventShutdown
)

type statusEvent struct {
	shutdown bool
	uid      string
	playKey  string
	matchID  string
	status   string
}

// Reporter is the report pipeline for one device instance.
type Reporter struct {
	client *api.Client
	users  *user.Manager
	osd    osd.Handler

	mu       sync.Mutex
	queue    []*GameReport
	replay   *replayBuffer
	sessions *sessionTracker

	hashMu  sync.Mutex
	isoHash string

	events   chan processingEvent
	statuses chan statusEvent
	wg       sync.WaitGroup
	shutdown sync.Once

	// backoffBase scales retry sleeps; shortened by tests.
	backoffBase time.Duration
}

// New starts the pipeline's background workers: the report queue drainer,
// the match status sender, and a one-shot ISO hasher when an image path is
// provided.
func New(client *api.Client, users *user.Manager, isoPath string, display osd.Handler) *Reporter {
	r := &Reporter{
		client:      client,
		users:       users,
		osd:         display,
		replay:      &replayBuffer{},
		sessions:    newSessionTracker(),
		events:      make(chan processingEvent, 64),
		statuses:    make(chan statusEvent, 16),
		backoffBase: 100 * time.Millisecond,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runQueue()
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runStatuses()
	}()

	if isoPath != "" {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.hashISO(isoPath)
		}()
	}

	return r
}

// StartNewSession begins a new report session. A prior session still open at
// this point is implicitly abandoned.
func (r *Reporter) StartNewSession() {
	abandoned, hadOpen := r.sessions.startNew()
	if hadOpen {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelWarning,
			"new session started with %q still open; prior session abandoned", abandoned)
	}
}

// LogReport takes ownership of the report and enqueues it for delivery. The
// currently accumulating replay buffer is attached so replay bytes that
// arrive before upload are still included.
func (r *Reporter) LogReport(report *GameReport) {
	r.mu.Lock()
	report.replay = r.replay
	r.queue = append(r.queue, report)
	r.mu.Unlock()

	r.sessions.bind(report.MatchID)

	select {
	case r.events <- eventReportAvailable:
	default:
		// Worker already has wakeups pending; it drains the whole queue
		// each pass.
	}
}

// PushReplayData appends raw replay bytes for the open session. A chunk
// whose first byte is the new-game marker resets accumulation; chunk order
// is preserved by appending under the pipeline lock.
func (r *Reporter) PushReplayData(data []byte) {
	if len(data) == 0 {
		return
	}

	r.mu.Lock()
	if data[0] == replayNewGameMarker {
		r.replay = &replayBuffer{}
	}
	buf := r.replay
	r.mu.Unlock()

	buf.append(data)
}

// ReportCompletion marks the session for matchID completed and notifies the
// server. Valid once; repeats and unknown ids are logged no-ops.
func (r *Reporter) ReportCompletion(matchID string, endMode uint8) {
	if !r.sessions.finish(matchID, sessionCompleted) {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelInfo,
			"ignoring completion for unknown or finished match %q", matchID)
		return
	}

	logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelInfo,
		"match %q completed (end mode %d)", matchID, endMode)
	r.queueStatus(matchID, "COMPLETED")
}

// ReportAbandonment marks the session for matchID abandoned and notifies the
// server. Same once-only rules as ReportCompletion.
func (r *Reporter) ReportAbandonment(matchID string) {
	if !r.sessions.finish(matchID, sessionAbandoned) {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelInfo,
			"ignoring abandonment for unknown or finished match %q", matchID)
		return
	}

	r.queueStatus(matchID, "ABANDONED")
}

// Shutdown stops intake, drains queued work with retries capped to one
// attempt, and joins every worker. Safe to call more than once.
func (r *Reporter) Shutdown() {
	r.shutdown.Do(func() {
		r.events <- eventShutdown
		r.statuses <- statusEvent{shutdown: true}
		r.wg.Wait()
	})
}

func (r *Reporter) queueStatus(matchID, status string) {
	info := r.users.Get()
	ev := statusEvent{
		uid:     info.UID,
		playKey: info.PlayKey,
		matchID: matchID,
		status:  status,
	}

	select {
	case r.statuses <- ev:
	default:
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"status report channel full, dropping %s for %q", status, matchID)
	}
}

// runQueue is the report delivery loop.
func (r *Reporter) runQueue() {
	for ev := range r.events {
		if ev == eventShutdown {
			r.processQueue(true)
			logbridge.Log(logbridge.ContainerOnline, logbridge.LevelInfo,
				"report queue worker winding down")
			return
		}
		r.processQueue(false)
	}
}

// processQueue drains everything currently queued, retrying each report with
// linear backoff until it sends or hits the attempt limit.
func (r *Reporter) processQueue(shuttingDown bool) {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		report := r.queue[0]
		r.mu.Unlock()

		uploadURL, err := r.trySend(report)
		if err == nil {
			r.popFront()
			logbridge.Log(logbridge.ContainerOnline, logbridge.LevelInfo,
				"successfully sent report, popping from queue")
			if uploadURL != "" && report.replay != nil {
				r.uploadReplay(report.replay, uploadURL)
			}
			continue
		}

		maxAttempts := maxReportAttempts
		if shuttingDown {
			maxAttempts = 1
		}

		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"failed to send report (attempt %d/%d): %v", report.attempts, maxAttempts, err)

		if report.attempts >= maxAttempts {
			r.popFront()
			logbridge.Log(logbridge.ContainerOnline, logbridge.LevelError,
				"hit max retry limit, dropping report")
			if report.OnlineMode == ModeRanked {
				r.osd.Send(
					"Failed to send game report. If you get this often, visit the Slippi Discord for help.",
					osd.ColorRed, osd.DurationVeryLong,
				)
			}
			continue
		}

		time.Sleep(time.Duration(report.attempts) * r.backoffBase)
	}
}

func (r *Reporter) popFront() {
	r.mu.Lock()
	r.queue = r.queue[1:]
	r.mu.Unlock()
}

const reportMutation = `
	mutation ($report: OnlineGameReportInput!) {
		reportOnlineGame (report: $report) {
			success
			uploadUrl
		}
	}
`

// trySend attempts one delivery of the report at the front of the queue,
// returning the replay upload URL on success.
func (r *Reporter) trySend(report *GameReport) (string, error) {
	report.attempts++
	if report.reportUUID == "" {
		report.reportUUID = newReportUUID()
	}

	r.hashMu.Lock()
	isoHash := r.isoHash
	r.hashMu.Unlock()

	payload := buildPayload(report, report.reportUUID, isoHash)

	var resp struct {
		Success   bool   `json:"success"`
		UploadURL string `json:"uploadUrl"`
	}
	err := r.client.GraphQL(reportMutation).
		Variables(map[string]interface{}{"report": payload}).
		DataField("reportOnlineGame").
		Send(&resp)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("server rejected report for match %q", report.MatchID)
	}

	return resp.UploadURL, nil
}

// uploadReplay frames, compresses and uploads one game's replay data.
func (r *Reporter) uploadReplay(buf *replayBuffer, uploadURL string) {
	contents := buf.framed()

	gzipped, err := gzipCompress(contents)
	if err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"failed to compress replay: %v", err)
		return
	}

	headers := map[string]string{
		"Content-Type":                "application/octet-stream",
		"Content-Encoding":            "gzip",
		"X-Goog-Content-Length-Range": "0,10000000",
	}
	if _, err := r.client.Put(uploadURL, headers, gzipped); err != nil {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"failed to upload replay data: %v", err)
	}
}

const statusMutation = `
	mutation ($report: OnlineMatchStatusReportInput!) {
		reportOnlineMatchStatus (report: $report)
	}
`

// runStatuses is the match status delivery loop.
func (r *Reporter) runStatuses() {
	for ev := range r.statuses {
		if ev.shutdown {
			logbridge.Log(logbridge.ContainerOnline, logbridge.LevelInfo,
				"status report worker winding down")
			return
		}
		r.sendStatus(ev)
	}
}

func (r *Reporter) sendStatus(ev statusEvent) {
	var accepted bool
	err := r.client.GraphQL(statusMutation).
		Variables(map[string]interface{}{
			"report": map[string]string{
				"matchId": ev.matchID,
				"fbUid":   ev.uid,
				"playKey": ev.playKey,
				"status":  ev.status,
			},
		}).
		DataField("reportOnlineMatchStatus").
		Send(&accepted)

	switch {
	case err != nil:
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"error executing status report %s for %q: %v", ev.status, ev.matchID, err)
	case !accepted:
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelError,
			"status report %s for %q not accepted", ev.status, ev.matchID)
	default:
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelInfo,
			"successfully reported match status: %s", ev.status)
	}
}
