package bridge

import (
	"github.com/project-slippi/slippi-exi/exi"
	"github.com/project-slippi/slippi-exi/logbridge"
	"github.com/project-slippi/slippi-exi/reporter"
)

// PlayerReportCreate builds one player's result record and returns its
// handle. Ownership moves into a game report via GameReportAddPlayer.
func PlayerReportCreate(
	uid string,
	slotType uint8,
	damageDone float64,
	stocksRemaining uint8,
	characterID uint8,
	colorID uint8,
	startingStocks int64,
	startingPercent int64,
) Handle {
	return handles.insert(&reporter.PlayerReport{
		UID:             uid,
		SlotType:        slotType,
		DamageDone:      damageDone,
		StocksRemaining: stocksRemaining,
		CharacterID:     characterID,
		ColorID:         colorID,
		StartingStocks:  startingStocks,
		StartingPercent: startingPercent,
	})
}

// GameReportCreate builds an empty game report and returns its handle.
// Ownership moves into the pipeline via ReportLogGame.
func GameReportCreate(
	uid string,
	playKey string,
	onlineMode uint8,
	matchID string,
	durationFrames uint32,
	gameIndex uint32,
	tiebreakIndex uint32,
	winnerIndex int8,
	gameEndMethod uint8,
	lrasInitiator int8,
	stageID int32,
) Handle {
	return handles.insert(&reporter.GameReport{
		UID:            uid,
		PlayKey:        playKey,
		OnlineMode:     reporter.OnlinePlayMode(onlineMode),
		MatchID:        matchID,
		DurationFrames: durationFrames,
		GameIndex:      gameIndex,
		TieBreakIndex:  tiebreakIndex,
		WinnerIndex:    winnerIndex,
		GameEndMethod:  gameEndMethod,
		LRASInitiator:  lrasInitiator,
		StageID:        stageID,
	})
}

// GameReportAddPlayer moves a player report into a game report. The player
// handle is consumed; the game report's player order is the add order.
func GameReportAddPlayer(game, player Handle) {
	g, ok := handles.get(game).(*reporter.GameReport)
	if !ok {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelWarning,
			"add player to unknown game report handle %d", game)
		return
	}
	p, ok := handles.take(player).(*reporter.PlayerReport)
	if !ok {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelWarning,
			"add of unknown player report handle %d", player)
		return
	}
	g.AddPlayer(*p)
}

// ReportStartNewSession begins a new report session on the device.
func ReportStartNewSession(h Handle) {
	withDevice(h, func(d *exi.Device) { d.Reporter.StartNewSession() })
}

// ReportLogGame moves a completed game report into the device's pipeline.
// The report handle is consumed.
func ReportLogGame(h, game Handle) {
	g, ok := handles.take(game).(*reporter.GameReport)
	if !ok {
		logbridge.Logf(logbridge.ContainerOnline, logbridge.LevelWarning,
			"log of unknown game report handle %d", game)
		return
	}
	withDevice(h, func(d *exi.Device) { d.Reporter.LogReport(g) })
}

// ReportMatchCompletion signals the named session finished normally.
func ReportMatchCompletion(h Handle, matchID string, endMode uint8) {
	withDevice(h, func(d *exi.Device) { d.Reporter.ReportCompletion(matchID, endMode) })
}

// ReportMatchAbandonment signals the named session was abandoned.
func ReportMatchAbandonment(h Handle, matchID string) {
	withDevice(h, func(d *exi.Device) { d.Reporter.ReportAbandonment(matchID) })
}

// ReportPushReplayData streams replay bytes for the open session.
func ReportPushReplayData(h Handle, data []byte) {
	withDevice(h, func(d *exi.Device) { d.Reporter.PushReplayData(data) })
}
