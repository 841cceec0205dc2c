package state

import (
	"errors"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
)

// ErrPersist marks failures to write the state file. Callers must not treat them as transient.
var ErrPersist = errors.New("persist state")

// Shared owns the process-wide BotState. Every read-modify-write and every save happens under one lock,
// so the watcher and the command surfaces never write the document independently.
type Shared struct {
	mu    sync.Mutex
	store *Store
	state *model.BotState
}

func NewShared(store *Store, state *model.BotState) *Shared {
	if state == nil {
		state = model.NewBotState()
	}
	if state.Positions == nil {
		state.Positions = map[string]*model.PositionState{}
	}
	return &Shared{store: store, state: state}
}

// Open loads the state file at cfg.Path. A fresh state takes its settings from cfg and is saved at once.
func Open(cfg Config) (*Shared, error) {
	store := NewStore(cfg.Path)
	st := store.Load()

	if st.IsFresh() {
		st.WatchEnabled = cfg.WatchEnabled
		st.PnlThreshold = cfg.PnlThreshold
		st.CooldownSeconds = cfg.CooldownSeconds
		if err := store.Save(st); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersist, err)
		}
		logger.WithField("path", cfg.Path).Info("initialized fresh state from config defaults")
	}

	return NewShared(store, st), nil
}

// Snapshot returns a deep copy of the current state.
func (s *Shared) Snapshot() *model.BotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// View runs fn with the live state under the lock. fn must not retain st.
func (s *Shared) View(fn func(st *model.BotState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Update applies fn and saves. If fn fails nothing is saved, but changes fn already made stay in memory.
func (s *Shared) Update(fn func(st *model.BotState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.state); err != nil {
		return err
	}
	if err := s.store.Save(s.state); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// TouchError records a failure through the durable channel for callers outside the tick loop.
func (s *Shared) TouchError(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.TouchError(s.state, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
