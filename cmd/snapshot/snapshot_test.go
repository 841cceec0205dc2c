package snapshot

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posbot/src/model"
	"posbot/src/state"
	"posbot/src/utils"
)

func TestPrintPositions(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, PrintPositions(&out, []model.Position{{Symbol: "ETHUSDT", Side: "SHORT", UnrealizedPnl: -0.12345}}))

	assert.Contains(t, out.String(), "SYMBOL")
	assert.Contains(t, out.String(), "ETHUSDT")
	assert.Contains(t, out.String(), "-0.1235")

	out.Reset()
	require.NoError(t, PrintPositions(&out, nil))
	assert.Equal(t, "No open positions.\n", out.String())
}

func TestPrintStatus(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	st := model.NewBotState()
	st.LastPollTs = utils.EpochSeconds(now) - 90
	st.Positions["BTCUSDT:LONG"] = &model.PositionState{LastPnl: 1, LastSeenTs: utils.EpochSeconds(now) - 30}

	var out bytes.Buffer
	require.NoError(t, PrintStatus(&out, st, now))

	assert.Contains(t, out.String(), "1m ago (2023-11-14T22:11:50Z)")
	assert.Contains(t, out.String(), "last error:")
	assert.Contains(t, out.String(), "BTCUSDT:LONG")
	assert.Contains(t, out.String(), "30s ago")
}

func TestFormatPoll(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, "never", formatPoll(0, now))
	assert.Equal(t, "10s ago (2023-11-14T22:13:10Z)", formatPoll(1_699_999_990, now))
}

func TestStartWithMockProvider(t *testing.T) {
	t.Setenv("EXCHANGE_PROVIDER", "mock")

	var out bytes.Buffer
	require.NoError(t, (&Snapshot{Out: &out}).Start(true))

	var positions []model.Position
	require.NoError(t, json.Unmarshal(out.Bytes(), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "BTCUSDT", positions[0].Symbol)
}

func TestStatusReadsStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st := model.NewBotState()
	st.CooldownSeconds = 42
	require.NoError(t, state.NewStore(path).Save(st))
	t.Setenv("STATE_PATH", path)

	var out bytes.Buffer
	require.NoError(t, (&Snapshot{Out: &out}).Status(false))

	assert.Contains(t, out.String(), "42s")
}
