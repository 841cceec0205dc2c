package state

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posbot/src/model"
)

func TestOpenFreshStateAppliesConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	cfg := Config{Path: path, WatchEnabled: false, PnlThreshold: 3, CooldownSeconds: 90}

	shared, err := Open(cfg)
	require.NoError(t, err)

	snap := shared.Snapshot()
	assert.False(t, snap.WatchEnabled)
	assert.Equal(t, 3.0, snap.PnlThreshold)
	assert.EqualValues(t, 90, snap.CooldownSeconds)

	// persisted immediately
	loaded := NewStore(path).Load()
	assert.Equal(t, snap, loaded)
}

func TestOpenExistingStateIgnoresConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	existing := model.NewBotState()
	existing.PnlThreshold = 7
	existing.LastPollTs = 100
	require.NoError(t, NewStore(path).Save(existing))

	shared, err := Open(Config{Path: path, WatchEnabled: true, PnlThreshold: 1, CooldownSeconds: 1})
	require.NoError(t, err)

	assert.Equal(t, 7.0, shared.Snapshot().PnlThreshold)
}

func TestSharedUpdateSaves(t *testing.T) {
	store := newTestStore(t)
	shared := NewShared(store, nil)

	err := shared.Update(func(st *model.BotState) error {
		st.PnlThreshold = 4
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 4.0, store.Load().PnlThreshold)
	assert.Equal(t, 4.0, shared.Snapshot().PnlThreshold)
}

func TestSharedUpdateErrorSkipsSave(t *testing.T) {
	store := newTestStore(t)
	shared := NewShared(store, nil)
	boom := errors.New("boom")

	err := shared.Update(func(st *model.BotState) error {
		st.PnlThreshold = 4
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestSharedUpdatePersistFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "state.json")
	require.NoError(t, os.Mkdir(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0o644))

	shared := NewShared(NewStore(target), nil)
	err := shared.Update(func(st *model.BotState) error { return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
}

func TestSharedSnapshotIsIsolated(t *testing.T) {
	shared := NewShared(newTestStore(t), nil)
	require.NoError(t, shared.Update(func(st *model.BotState) error {
		st.Positions["BTCUSDT:LONG"] = &model.PositionState{LastPnl: 1}
		return nil
	}))

	snap := shared.Snapshot()
	snap.Positions["BTCUSDT:LONG"].LastPnl = 100

	shared.View(func(st *model.BotState) {
		assert.Equal(t, 1.0, st.Positions["BTCUSDT:LONG"].LastPnl)
	})
}

func TestSharedConcurrentWritersKeepFileWellFormed(t *testing.T) {
	store := newTestStore(t)
	shared := NewShared(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = shared.Update(func(st *model.BotState) error {
				st.CooldownSeconds = int64(i)
				st.Positions[model.PositionKey("SYM", "LONG")] = &model.PositionState{LastPnl: float64(i)}
				return nil
			})
		}(i)
	}
	wg.Wait()

	loaded := store.Load()
	assert.Equal(t, shared.Snapshot(), loaded)
}

func TestSharedTouchError(t *testing.T) {
	store := newTestStore(t)
	shared := NewShared(store, nil)

	require.NoError(t, shared.TouchError("NotifyError: chat unreachable"))

	assert.Equal(t, "NotifyError: chat unreachable", store.Load().LastError)
	assert.NotZero(t, shared.Snapshot().LastPollTs)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Path: "s.json", PnlThreshold: 0, CooldownSeconds: 0}.Validate())
	assert.Error(t, Config{Path: "", PnlThreshold: 0}.Validate())
	assert.Error(t, Config{Path: "s.json", PnlThreshold: -1}.Validate())
	assert.Error(t, Config{Path: "s.json", CooldownSeconds: 86401}.Validate())
}

func TestGetConfigDefaults(t *testing.T) {
	t.Setenv("STATE_PATH", "/tmp/posbot-state.json")

	cfg := GetConfig()

	assert.Equal(t, "/tmp/posbot-state.json", cfg.Path)
	assert.True(t, cfg.WatchEnabled)
	assert.Equal(t, 0.5, cfg.PnlThreshold)
	assert.EqualValues(t, 60, cfg.CooldownSeconds)
}
