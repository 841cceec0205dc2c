package model

// MaxErrorLength bounds BotState.LastError.
const MaxErrorLength = 400

const (
	DefaultWatchEnabled    = true
	DefaultPnlThreshold    = 0.5
	DefaultCooldownSeconds = 600
)

// MaxCooldownSeconds bounds cooldown_seconds everywhere it is set or loaded.
const MaxCooldownSeconds = 86400

// PositionState is the per-key tracking record kept between polls.
// Timestamps are epoch seconds.
type PositionState struct {
	LastPnl     float64 `json:"last_pnl"`
	LastAlertTs float64 `json:"last_alert_ts"`
	LastSeenTs  float64 `json:"last_seen_ts"`
}

// BotState is the durable aggregate shared by the watcher and the command surfaces.
type BotState struct {
	WatchEnabled    bool                      `json:"watch_enabled"`
	PnlThreshold    float64                   `json:"pnl_threshold"`
	CooldownSeconds int64                     `json:"cooldown_seconds"`
	LastPollTs      float64                   `json:"last_poll_ts"`
	LastError       string                    `json:"last_error"`
	Positions       map[string]*PositionState `json:"positions"`
}

func NewBotState() *BotState {
	return &BotState{
		WatchEnabled:    DefaultWatchEnabled,
		PnlThreshold:    DefaultPnlThreshold,
		CooldownSeconds: DefaultCooldownSeconds,
		Positions:       map[string]*PositionState{},
	}
}

// IsFresh reports whether the state has never been polled nor tracked anything.
func (s *BotState) IsFresh() bool {
	return s.LastPollTs == 0 && len(s.Positions) == 0
}

// Clone returns a deep copy.
func (s *BotState) Clone() *BotState {
	out := *s
	out.Positions = make(map[string]*PositionState, len(s.Positions))
	for k, v := range s.Positions {
		ps := *v
		out.Positions[k] = &ps
	}
	return &out
}

// TruncateError cuts msg to MaxErrorLength characters.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxErrorLength {
		return msg
	}
	return string(r[:MaxErrorLength])
}
