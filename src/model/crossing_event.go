package model

import "time"

// Direction of a PNL crossing through the threshold band. The zero value means no crossing.
type Direction string

const (
	DirectionNone         Direction = ""
	DirectionLossToProfit Direction = "LOSS_TO_PROFIT"
	DirectionProfitToLoss Direction = "PROFIT_TO_LOSS"
)

// CrossingEvent is handed to the notification sink when a tracked position crosses the band.
type CrossingEvent struct {
	ID          string    `json:"id"`
	PositionKey string    `json:"position_key"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	FromPnl     float64   `json:"from_pnl"`
	ToPnl       float64   `json:"to_pnl"`
	Direction   Direction `json:"direction"`
	At          time.Time `json:"at"`
}
