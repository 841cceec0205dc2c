package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
	"posbot/src/state"
	"posbot/src/utils"
	"posbot/src/watcher"
)

var (
	ErrNegativeThreshold = errors.New("threshold must be >= 0")
	ErrNegativeCooldown  = errors.New("cooldown must be >= 0")
	ErrCooldownTooLarge  = fmt.Errorf("cooldown must be <= %d", model.MaxCooldownSeconds)
	ErrInvalidNumber     = errors.New("invalid number")
	ErrInvalidInteger    = errors.New("invalid integer")
	ErrInvalidWatchArg   = errors.New("watch must be on or off")
)

// IsValidation reports whether err is a rejected user value rather than an internal failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNegativeThreshold) ||
		errors.Is(err, ErrNegativeCooldown) ||
		errors.Is(err, ErrCooldownTooLarge) ||
		errors.Is(err, ErrInvalidNumber) ||
		errors.Is(err, ErrInvalidInteger) ||
		errors.Is(err, ErrInvalidWatchArg)
}

// Status is the read-only view served by /status on both surfaces.
type Status struct {
	WatchEnabled     bool    `json:"watch_enabled"`
	PnlThreshold     float64 `json:"pnl_threshold"`
	CooldownSeconds  int64   `json:"cooldown_seconds"`
	LastPollTs       float64 `json:"last_poll_ts"`
	LastPollAge      string  `json:"last_poll_age"`
	LastError        string  `json:"last_error"`
	TrackedPositions int     `json:"tracked_positions"`
}

// Service is the command surface over the shared bot state. It only writes the three settings.
type Service struct {
	shared   *state.Shared
	supplier watcher.PositionSupplier
	now      func() time.Time
}

func NewService(shared *state.Shared, supplier watcher.PositionSupplier) *Service {
	return &Service{shared: shared, supplier: supplier, now: time.Now}
}

func (s *Service) SetWatch(on bool) error {
	err := s.shared.Update(func(st *model.BotState) error {
		st.WatchEnabled = on
		return nil
	})
	if err == nil {
		logger.WithField("watch_enabled", on).Info("watch toggled")
	}
	return err
}

func (s *Service) SetThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidNumber
	}
	if v < 0 {
		return ErrNegativeThreshold
	}
	err := s.shared.Update(func(st *model.BotState) error {
		st.PnlThreshold = v
		return nil
	})
	if err == nil {
		logger.WithField("pnl_threshold", v).Info("threshold updated")
	}
	return err
}

func (s *Service) SetCooldown(seconds int64) error {
	if seconds < 0 {
		return ErrNegativeCooldown
	}
	if seconds > model.MaxCooldownSeconds {
		return ErrCooldownTooLarge
	}
	err := s.shared.Update(func(st *model.BotState) error {
		st.CooldownSeconds = seconds
		return nil
	})
	if err == nil {
		logger.WithField("cooldown_seconds", seconds).Info("cooldown updated")
	}
	return err
}

func (s *Service) Status() Status {
	var out Status
	s.shared.View(func(st *model.BotState) {
		out = Status{
			WatchEnabled:     st.WatchEnabled,
			PnlThreshold:     st.PnlThreshold,
			CooldownSeconds:  st.CooldownSeconds,
			LastPollTs:       st.LastPollTs,
			LastError:        st.LastError,
			TrackedPositions: len(st.Positions),
		}
	})
	out.LastPollAge = utils.FormatAge(out.LastPollTs, s.now())
	return out
}

// Positions fetches a fresh snapshot from the supplier. It does not touch the tracked state.
func (s *Service) Positions(ctx context.Context) ([]model.Position, error) {
	positions, err := s.supplier.FetchPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	return positions, nil
}

func ParseWatch(arg string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, ErrInvalidWatchArg
	}
}

func ParseThreshold(arg string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidNumber
	}
	if v < 0 {
		return 0, ErrNegativeThreshold
	}
	return v, nil
}

func ParseCooldown(arg string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, ErrInvalidInteger
	}
	if v < 0 {
		return 0, ErrNegativeCooldown
	}
	if v > model.MaxCooldownSeconds {
		return 0, ErrCooldownTooLarge
	}
	return v, nil
}
