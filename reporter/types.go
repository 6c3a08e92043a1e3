package reporter

import (
	"github.com/google/uuid"
)

// OnlinePlayMode is the matchmaking mode a game was played under.
type OnlinePlayMode uint8

const (
	ModeRanked   OnlinePlayMode = 0
	ModeUnranked OnlinePlayMode = 1
	ModeDirect   OnlinePlayMode = 2
	ModeTeams    OnlinePlayMode = 3
)

// PlayerReport is one player's results for a single game. Built by the host
// and handed to a GameReport, which takes ownership.
type PlayerReport struct {
	UID             string
	SlotType        uint8
	DamageDone      float64
	StocksRemaining uint8
	CharacterID     uint8
	ColorID         uint8
	StartingStocks  int64
	StartingPercent int64
}

// GameReport is the telemetry for a single completed game. Build it, add
// player reports in slot order, then hand it to Reporter.LogReport exactly
// once; the reporter owns it from that point on.
type GameReport struct {
	UID            string
	PlayKey        string
	OnlineMode     OnlinePlayMode
	MatchID        string
	DurationFrames uint32
	GameIndex      uint32
	TieBreakIndex  uint32
	WinnerIndex    int8
	GameEndMethod  uint8
	LRASInitiator  int8
	StageID        int32
	Players        []PlayerReport

	attempts   int
	reportUUID string
	replay     *replayBuffer
}

// AddPlayer appends a player report. List order is add order, which the
// server interprets as slot join order.
func (r *GameReport) AddPlayer(p PlayerReport) {
	r.Players = append(r.Players, p)
}

type playerPayload struct {
	UID             string  `json:"fbUid"`
	SlotType        uint8   `json:"slotType"`
	DamageDone      float64 `json:"damageDone"`
	StocksRemaining uint8   `json:"stocksRemaining"`
	CharacterID     uint8   `json:"characterId"`
	ColorID         uint8   `json:"colorId"`
	StartingStocks  int64   `json:"startingStocks"`
	StartingPercent int64   `json:"startingPercent"`
}

type reportPayload struct {
	MatchID        string          `json:"matchId"`
	ReportUUID     string          `json:"reportUuid"`
	UID            string          `json:"fbUid"`
	PlayKey        string          `json:"playKey"`
	OnlineMode     uint8           `json:"onlineMode"`
	DurationFrames uint32          `json:"durationFrames"`
	GameIndex      uint32          `json:"gameIndex"`
	TieBreakIndex  uint32          `json:"tiebreakIndex"`
	WinnerIndex    int8            `json:"winnerIdx"`
	GameEndMethod  uint8           `json:"gameEndMethod"`
	LRASInitiator  int8            `json:"lrasInitiator"`
	StageID        int32           `json:"stageId"`
	ISOHash        string          `json:"isoHash"`
	Players        []playerPayload `json:"players"`
}

// buildPayload assembles the wire payload for one report. Each attempt set
// reuses the same report UUID so the server can de-duplicate retries.
func buildPayload(r *GameReport, reportUUID, isoHash string) reportPayload {
	players := make([]playerPayload, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, playerPayload{
			UID:             p.UID,
			SlotType:        p.SlotType,
			DamageDone:      p.DamageDone,
			StocksRemaining: p.StocksRemaining,
			CharacterID:     p.CharacterID,
			ColorID:         p.ColorID,
			StartingStocks:  p.StartingStocks,
			StartingPercent: p.StartingPercent,
		})
	}

	return reportPayload{
		MatchID:        r.MatchID,
		ReportUUID:     reportUUID,
		UID:            r.UID,
		PlayKey:        r.PlayKey,
		OnlineMode:     uint8(r.OnlineMode),
		DurationFrames: r.DurationFrames,
		GameIndex:      r.GameIndex,
		TieBreakIndex:  r.TieBreakIndex,
		WinnerIndex:    r.WinnerIndex,
		GameEndMethod:  r.GameEndMethod,
		LRASInitiator:  r.LRASInitiator,
		StageID:        r.StageID,
		ISOHash:        isoHash,
		Players:        players,
	}
}

// newReportUUID tags a report for server-side retry de-duplication.
func newReportUUID() string {
	return uuid.NewString()
}
