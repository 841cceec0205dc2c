package model

import "strings"

const (
	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"
)

// Position is a snapshot of an open position as reported by an exchange.
type Position struct {
	Symbol        string   `json:"symbol"`
	Side          string   `json:"side"`
	UnrealizedPnl float64  `json:"unrealized_pnl"`
	Quantity      *float64 `json:"quantity,omitempty"`
	EntryPrice    *float64 `json:"entry_price,omitempty"`
	MarkPrice     *float64 `json:"mark_price,omitempty"`
}

// Key returns the tracking identity of the position, SYMBOL:SIDE upper-cased.
func (p Position) Key() string {
	return PositionKey(p.Symbol, p.Side)
}

func PositionKey(symbol, side string) string {
	return strings.ToUpper(symbol + ":" + side)
}

// IsValidPositionKey reports whether key has the SYMBOL:SIDE shape used in the state file.
func IsValidPositionKey(key string) bool {
	symbol, side, ok := strings.Cut(key, ":")
	if !ok || symbol == "" || side == "" || strings.Contains(side, ":") {
		return false
	}
	return key == strings.ToUpper(key)
}
