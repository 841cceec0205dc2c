package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"posbot/src/crossing"
	"posbot/src/metrics"
	"posbot/src/model"
	"posbot/src/state"
	"posbot/src/utils"
)

// ErrStopTimeout is returned by Stop when the in-flight tick did not finish in time.
// The loop still exits at its next suspension point.
var ErrStopTimeout = errors.New("watcher did not stop in time")

// PositionSupplier returns the current open positions of the account.
type PositionSupplier interface {
	FetchPositions(ctx context.Context) ([]model.Position, error)
}

// Notifier delivers one crossing event.
type Notifier interface {
	Notify(ctx context.Context, ev model.CrossingEvent) error
}

// Tick failure stages. They prefix the message recorded in BotState.LastError.
const (
	StageFetch  = "FetchError"
	StageNotify = "NotifyError"
)

// TickError is a recoverable failure of a single tick.
type TickError struct {
	Stage string
	Err   error
}

func (e *TickError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *TickError) Unwrap() error {
	return e.Err
}

type Watcher struct {
	cfg      Config
	shared   *state.Shared
	supplier PositionSupplier
	notifier Notifier
	metrics  *metrics.Metrics

	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func New(cfg Config, shared *state.Shared, supplier PositionSupplier, notifier Notifier, m *metrics.Metrics) *Watcher {
	return &Watcher{
		cfg:      cfg,
		shared:   shared,
		supplier: supplier,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Start launches the loop in its own goroutine. Calling it while running does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.err = nil

	go func() {
		defer close(done)
		err := w.Run(ctx)

		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
	}()
}

// Stop cancels the loop and waits up to StopTimeout for it to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	timer := time.NewTimer(w.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		logger.WithField("timeout", w.cfg.StopTimeout).Warn("watcher stop timed out")
		return ErrStopTimeout
	}
}

func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running()
}

func (w *Watcher) running() bool {
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Done is closed when the loop started by the last Start exits. Nil before the first Start.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Err returns the error the last loop ended with, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Run ticks until ctx is cancelled. Tick failures are recorded and the loop goes on;
// only a failure to persist state ends it with an error.
func (w *Watcher) Run(ctx context.Context) error {
	logger.WithField("poll_interval", w.cfg.PollInterval).Info("watcher started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher stopped")
			return nil
		case <-timer.C:
		}

		if err := w.Tick(ctx); err != nil {
			var tickErr *TickError
			switch {
			case errors.As(err, &tickErr):
				logger.WithError(err).Warn("watcher tick failed")
			case ctx.Err() != nil:
				logger.Info("watcher stopped")
				return nil
			default:
				logger.WithError(err).Error("watcher loop terminated")
				return err
			}
		}

		timer.Reset(w.cfg.PollInterval)
	}
}

type decision struct {
	pos       model.Position
	key       string
	prevPnl   float64
	direction model.Direction
	notify    bool
}

// Tick runs one fetch/detect/notify/persist cycle.
// Fetch and notify failures are recorded in state and returned as *TickError.
func (w *Watcher) Tick(ctx context.Context) error {
	started := time.Now()

	var (
		enabled   bool
		threshold float64
		cooldown  float64
	)
	w.shared.View(func(st *model.BotState) {
		enabled = st.WatchEnabled
		threshold = st.PnlThreshold
		cooldown = float64(st.CooldownSeconds)
	})
	if !enabled {
		w.metrics.ObserveTick(metrics.TickSkipped, 0)
		return nil
	}

	now := w.now()
	nowTs := utils.EpochSeconds(now)

	positions, err := w.supplier.FetchPositions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tickErr := &TickError{Stage: StageFetch, Err: err}
		w.metrics.ObserveTick(metrics.TickFetchError, time.Since(started).Seconds())
		return w.commit(nil, 0, tickErr, nowTs, cooldown)
	}

	decisions := w.decide(positions, nowTs, threshold, cooldown)

	delivered := len(decisions)
	var tickErr *TickError
	for i, d := range decisions {
		if !d.notify {
			continue
		}
		ev := model.CrossingEvent{
			ID:          w.newID(),
			PositionKey: d.key,
			Symbol:      d.pos.Symbol,
			Side:        d.pos.Side,
			FromPnl:     d.prevPnl,
			ToPnl:       d.pos.UnrealizedPnl,
			Direction:   d.direction,
			At:          now,
		}
		if err := w.notifier.Notify(ctx, ev); err != nil {
			delivered = i
			if ctx.Err() == nil {
				tickErr = &TickError{Stage: StageNotify, Err: err}
			}
			break
		}
		w.metrics.Alert(string(d.direction))
		logger.WithFields(logger.Fields{
			"event_id":  ev.ID,
			"key":       ev.PositionKey,
			"direction": ev.Direction,
			"from_pnl":  ev.FromPnl,
			"to_pnl":    ev.ToPnl,
		}).Info("crossing alert sent")
	}

	if delivered < len(decisions) && tickErr == nil {
		// cancelled mid-delivery: keep what was processed, leave the rest for the next run
		if err := w.commitProgress(decisions, delivered, nowTs); err != nil {
			return err
		}
		return ctx.Err()
	}

	outcome := metrics.TickOK
	if tickErr != nil {
		outcome = metrics.TickNotifyErr
	}
	w.metrics.ObserveTick(outcome, time.Since(started).Seconds())

	return w.commit(decisions, delivered, tickErr, nowTs, cooldown)
}

// decide evaluates every position against a working copy of the tracked state, so repeated keys
// within one poll see the effect of the earlier entry.
func (w *Watcher) decide(positions []model.Position, nowTs, threshold, cooldown float64) []decision {
	decisions := make([]decision, 0, len(positions))

	w.shared.View(func(st *model.BotState) {
		working := make(map[string]model.PositionState, len(positions))

		for _, pos := range positions {
			key := pos.Key()
			if !model.IsValidPositionKey(key) {
				logger.WithFields(logger.Fields{
					"symbol": pos.Symbol,
					"side":   pos.Side,
				}).Warn("skipping position without a usable SYMBOL:SIDE key")
				continue
			}
			ps, ok := working[key]
			if !ok {
				if tracked := st.Positions[key]; tracked != nil {
					ps = *tracked
				}
			}

			d := decision{pos: pos, key: key, prevPnl: ps.LastPnl}
			d.direction = crossing.Detect(ps.LastPnl, pos.UnrealizedPnl, threshold)
			if d.direction != model.DirectionNone {
				w.metrics.Crossing(string(d.direction))
				if nowTs-ps.LastAlertTs >= cooldown {
					d.notify = true
					ps.LastAlertTs = nowTs
				} else {
					w.metrics.Suppressed()
					logger.WithFields(logger.Fields{
						"key":       key,
						"direction": d.direction,
					}).Info("alert suppressed by cooldown")
				}
			}
			ps.LastPnl = pos.UnrealizedPnl
			working[key] = ps

			decisions = append(decisions, d)
		}
	})

	return decisions
}

// apply writes decisions[:processed] into st. The decision at index processed, if any, failed to notify
// and only records that it was seen.
func apply(st *model.BotState, decisions []decision, processed int, nowTs float64) {
	for i, d := range decisions {
		if i > processed {
			break
		}
		ps := st.Positions[d.key]
		if ps == nil {
			ps = &model.PositionState{}
			st.Positions[d.key] = ps
		}
		ps.LastSeenTs = nowTs
		if i == processed {
			break
		}
		if d.notify {
			ps.LastAlertTs = nowTs
		}
		ps.LastPnl = d.pos.UnrealizedPnl
	}
}

func (w *Watcher) commit(decisions []decision, processed int, tickErr *TickError, nowTs, cooldown float64) error {
	var evicted, tracked int

	err := w.shared.Update(func(st *model.BotState) error {
		apply(st, decisions, processed, nowTs)
		st.LastPollTs = nowTs
		if tickErr != nil {
			st.LastError = model.TruncateError(tickErr.Error())
		} else {
			st.LastError = ""
			evicted = w.evictStale(st, nowTs, cooldown)
		}
		tracked = len(st.Positions)
		return nil
	})
	if err != nil {
		return err
	}

	w.metrics.AddEvicted(evicted)
	w.metrics.SetTracked(tracked, nowTs)

	if tickErr != nil {
		return tickErr
	}
	return nil
}

func (w *Watcher) commitProgress(decisions []decision, processed int, nowTs float64) error {
	return w.shared.Update(func(st *model.BotState) error {
		apply(st, decisions, processed, nowTs)
		return nil
	})
}

// evictStale drops keys unseen for StaleEvictAfter, but never while their cooldown window
// since the last sighting is still open.
func (w *Watcher) evictStale(st *model.BotState, nowTs, cooldown float64) int {
	if w.cfg.StaleEvictAfter <= 0 {
		return 0
	}
	after := w.cfg.StaleEvictAfter.Seconds()

	evicted := 0
	for key, ps := range st.Positions {
		age := nowTs - ps.LastSeenTs
		if age >= after && age >= cooldown {
			delete(st.Positions, key)
			evicted++
			logger.WithFields(logger.Fields{"key": key, "age_seconds": age}).Info("evicted stale position")
		}
	}
	return evicted
}
