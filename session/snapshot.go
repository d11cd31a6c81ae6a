package session

import (
	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/sim"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusPaused   Status = "paused"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// DepthLevels is the number of cosmetic book levels per side.
const DepthLevels = 5

// Snapshot is a copy of everything a display needs after one operation.
// Nothing in it aliases controller state.
type Snapshot struct {
	SessionID  string              `json:"session_id,omitempty"`
	Status     Status              `json:"status"`
	Instrument string              `json:"instrument,omitempty"`
	Timeframe  market.Timeframe    `json:"timeframe,omitempty"`
	Cursor     int                 `json:"cursor"`
	Total      int                 `json:"total"`
	SpeedMS    int64               `json:"speed_ms"`
	Bar        *market.Bar         `json:"bar,omitempty"`
	Depth      *market.Depth       `json:"depth,omitempty"`
	Account    broker.Account      `json:"account"`
	Positions  []sim.Holding       `json:"positions"`
	Pending    []sim.Order         `json:"pending"`
	History    []sim.TradeRecord   `json:"history"`
	Markers    []sim.Marker        `json:"markers"`
	Events     []market.MacroEvent `json:"events"`
	Result     *sim.Result         `json:"result,omitempty"`
}
