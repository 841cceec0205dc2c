package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
	"posbot/src/utils"
)

var timeNow = time.Now

// Store persists BotState as a single JSON document.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing or unparsable file yields a default state; it never fails.
// Fields are decoded one by one so a wrongly typed field only falls back to its own default.
func (s *Store) Load() *model.BotState {
	state := model.NewBotState()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WithError(err).WithField("path", s.path).Warn("state snapshot unreadable, using defaults")
		}
		return state
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.WithError(err).WithField("path", s.path).Warn("state snapshot corrupt, using defaults")
		return state
	}

	decodeField(raw, "watch_enabled", &state.WatchEnabled)

	var threshold float64
	if decodeField(raw, "pnl_threshold", &threshold) && threshold >= 0 {
		state.PnlThreshold = threshold
	}

	var cooldown float64
	if decodeField(raw, "cooldown_seconds", &cooldown) && cooldown >= 0 && cooldown <= model.MaxCooldownSeconds {
		state.CooldownSeconds = int64(cooldown)
	}

	decodeField(raw, "last_poll_ts", &state.LastPollTs)

	if decodeField(raw, "last_error", &state.LastError) {
		state.LastError = model.TruncateError(state.LastError)
	}

	var positions map[string]json.RawMessage
	if decodeField(raw, "positions", &positions) {
		// sorted so case-variant keys resolve the same way on every load
		rawKeys := make([]string, 0, len(positions))
		for key := range positions {
			rawKeys = append(rawKeys, key)
		}
		sort.Strings(rawKeys)

		for _, rawKey := range rawKeys {
			entry := positions[rawKey]
			key := strings.ToUpper(rawKey)
			if !model.IsValidPositionKey(key) {
				logger.WithField("key", key).Debug("skipping malformed position key in state snapshot")
				continue
			}
			ps, ok := decodePositionState(entry)
			if !ok {
				logger.WithField("key", key).Debug("skipping malformed position entry in state snapshot")
				continue
			}
			if prev, dup := state.Positions[key]; dup && prev.LastSeenTs >= ps.LastSeenTs {
				logger.WithField("key", rawKey).Debug("dropping older duplicate of position key in state snapshot")
				continue
			}
			state.Positions[key] = ps
		}
	}

	return state
}

func decodePositionState(entry json.RawMessage) (*model.PositionState, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return nil, false
	}
	ps := &model.PositionState{}
	decodeField(fields, "last_pnl", &ps.LastPnl)
	decodeField(fields, "last_alert_ts", &ps.LastAlertTs)
	decodeField(fields, "last_seen_ts", &ps.LastSeenTs)
	return ps, true
}

// decodeField sets dst from raw[name] when present, non-null and of the right shape.
func decodeField[T any](raw map[string]json.RawMessage, name string, dst *T) bool {
	v, ok := raw[name]
	if !ok || string(v) == "null" {
		return false
	}
	var tmp T
	if err := json.Unmarshal(v, &tmp); err != nil {
		return false
	}
	*dst = tmp
	return true
}

// Save writes the full state. Readers never observe a partial file: the document is written to a
// temporary file in the same directory and renamed over the target.
func (s *Store) Save(state *model.BotState) error {
	doc := *state
	if doc.Positions == nil {
		doc.Positions = map[string]*model.PositionState{}
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return s.writeAtomic(data)
}

func (s *Store) writeAtomic(data []byte) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state_*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err = os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// TouchError records msg and the current time as the last poll, then saves.
func (s *Store) TouchError(state *model.BotState, msg string) error {
	state.LastError = model.TruncateError(msg)
	state.LastPollTs = utils.EpochSeconds(timeNow())
	return s.Save(state)
}
