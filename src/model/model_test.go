package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionKey(t *testing.T) {
	qty := 2.0
	p := Position{Symbol: "btcusdt", Side: "Long", UnrealizedPnl: 1, Quantity: &qty}
	assert.Equal(t, "BTCUSDT:LONG", p.Key())

	// other fields never change the identity
	other := Position{Symbol: "BTCUSDT", Side: "LONG", UnrealizedPnl: -5}
	assert.Equal(t, p.Key(), other.Key())
}

func TestIsValidPositionKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"BTCUSDT:LONG", true},
		{"ETH-PERP:SHORT", true},
		{"btcusdt:long", false},
		{"BTCUSDT", false},
		{":LONG", false},
		{"BTCUSDT:", false},
		{"A:B:C", false},
	}

	for _, tt := range tests {
		if got := IsValidPositionKey(tt.key); got != tt.want {
			t.Fatalf("IsValidPositionKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "boom", TruncateError("boom"))

	long := strings.Repeat("x", MaxErrorLength+50)
	assert.Len(t, TruncateError(long), MaxErrorLength)
}

func TestBotStateCloneIsDeep(t *testing.T) {
	s := NewBotState()
	s.Positions["BTCUSDT:LONG"] = &PositionState{LastPnl: 3}

	c := s.Clone()
	c.Positions["BTCUSDT:LONG"].LastPnl = 9
	c.Positions["ETHUSDT:SHORT"] = &PositionState{}

	require.Len(t, s.Positions, 1)
	assert.Equal(t, 3.0, s.Positions["BTCUSDT:LONG"].LastPnl)
}

func TestBotStateIsFresh(t *testing.T) {
	s := NewBotState()
	assert.True(t, s.IsFresh())

	s.LastPollTs = 10
	assert.False(t, s.IsFresh())
}
