package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"posbot/src/connectors"
	"posbot/src/model"
	"posbot/src/state"
	"posbot/src/utils"
)

const fetchTimeout = 30 * time.Second

type Snapshot struct {
	Out io.Writer
}

// Start fetches the open positions once and prints them. Tracked state is not touched.
func (s *Snapshot) Start(asJSON bool) error {
	supplier, err := connectors.NewPositionSupplier(connectors.GetConfig())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	positions, err := supplier.FetchPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	logrus.Infof("Fetched %d positions", len(positions))

	if asJSON {
		return writeJSON(s.Out, positions)
	}
	return PrintPositions(s.Out, positions)
}

// Status prints the state file at STATE_PATH without starting the watcher.
func (s *Snapshot) Status(asJSON bool) error {
	cfg := state.GetConfig()
	st := state.NewStore(cfg.Path).Load()
	if asJSON {
		return writeJSON(s.Out, st)
	}
	return PrintStatus(s.Out, st, time.Now())
}

func PrintPositions(out io.Writer, positions []model.Position) error {
	if len(positions) == 0 {
		_, err := fmt.Fprintln(out, "No open positions.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSIDE\tPNL (USDT)")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\n", p.Symbol, p.Side, p.UnrealizedPnl)
	}
	return tw.Flush()
}

func PrintStatus(out io.Writer, st *model.BotState, now time.Time) error {
	lastError := st.LastError
	if lastError == "" {
		lastError = "-"
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "watch:\t%v\n", st.WatchEnabled)
	fmt.Fprintf(tw, "threshold:\t%v USDT\n", st.PnlThreshold)
	fmt.Fprintf(tw, "cooldown:\t%ds\n", st.CooldownSeconds)
	fmt.Fprintf(tw, "last poll:\t%s\n", formatPoll(st.LastPollTs, now))
	fmt.Fprintf(tw, "last error:\t%s\n", lastError)
	fmt.Fprintf(tw, "tracked positions:\t%d\n", len(st.Positions))
	keys := make([]string, 0, len(st.Positions))
	for key := range st.Positions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		ps := st.Positions[key]
		fmt.Fprintf(tw, "  %s\tpnl %.4f\tseen %s\n", key, ps.LastPnl, utils.FormatAge(ps.LastSeenTs, now))
	}
	return tw.Flush()
}

// formatPoll renders "5m ago (2024-01-02T15:04:05Z)", or "never".
func formatPoll(ts float64, now time.Time) string {
	age := utils.FormatAge(ts, now)
	if ts <= 0 {
		return age
	}
	return fmt.Sprintf("%s (%s)", age, utils.FromEpochSeconds(ts).UTC().Format(time.RFC3339))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
