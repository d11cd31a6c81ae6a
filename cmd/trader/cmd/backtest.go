package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/replaytrader/journal"
	"github.com/rustyeddy/replaytrader/session"
	"github.com/rustyeddy/replaytrader/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a session driven by a built-in strategy",
	Long: `Start a session from the config and let a strategy trade it bar by
bar until settlement. Strategy settings come from the strategy section of
the config and can be overridden with flags.

Strategies:
  noop        - never trades
  hold-long   - buys lots on the first bar and holds
  hold-short  - sells lots on the first bar and holds
  ema-cross   - long above, short below on fast/slow EMA crosses

Example:
  trader backtest -c replay.yaml --strategy ema-cross --fast 10 --slow 30 --adx-min 20`,
	RunE: runBacktest,
}

var (
	btStrategy string
	btLots     int
	btFast     int
	btSlow     int
	btADXMin   float64
	btRiskPct  float64
	btReport   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "", "strategy name (overrides strategy.name)")
	backtestCmd.Flags().IntVar(&btLots, "lots", 0, "fixed lot size")
	backtestCmd.Flags().IntVar(&btFast, "fast", 0, "fast EMA period")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 0, "slow EMA period")
	backtestCmd.Flags().Float64Var(&btADXMin, "adx-min", 0, "ignore crosses while ADX is below this")
	backtestCmd.Flags().Float64Var(&btRiskPct, "risk-pct", 0, "size by risk instead of lots, e.g. 0.01")
	backtestCmd.Flags().StringVar(&btReport, "report", "", "write an org-mode session report to this file, - for stdout")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc := cfg.Strategy
	if btStrategy != "" {
		sc.Name = btStrategy
	}
	if btLots > 0 {
		sc.Lots = btLots
	}
	if btFast > 0 {
		sc.Fast = btFast
	}
	if btSlow > 0 {
		sc.Slow = btSlow
	}
	if btADXMin > 0 {
		sc.ADXMin = btADXMin
	}
	if btRiskPct > 0 {
		sc.RiskPct = btRiskPct
	}

	req, err := cfg.StartRequest()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	mem := journal.NewMemory()
	ctrl, err := newController(cfg, journal.Tee{j, mem}, session.WithLogger(log))
	if err != nil {
		j.Close()
		return err
	}
	defer ctrl.Close()

	in, ok := ctrl.Catalog().Get(req.Instrument)
	if !ok {
		return fmt.Errorf("unknown instrument: %s", req.Instrument)
	}
	st, err := strategy.New(sc, in)
	if err != nil {
		return err
	}

	snap, err := ctrl.Start(req)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s\n", snap.SessionID)
	fmt.Fprintf(out, "Backtesting %s on %s %s (%d bars, cursor %d)\n",
		st.Name(), snap.Instrument, snap.Timeframe, snap.Total, snap.Cursor)

	rep, err := strategy.Run(ctrl, st, log)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	res := rep.Result
	fmt.Fprintf(out, "\nFinal Results:\n")
	fmt.Fprintf(out, "  Orders:   %d (%d rejected)\n", rep.Orders, rep.Rejected)
	fmt.Fprintf(out, "  Initial:  %s\n", res.Initial.StringFixed(2))
	fmt.Fprintf(out, "  Equity:   %s\n", res.FinalEquity.StringFixed(2))
	fmt.Fprintf(out, "  Net P/L:  %s (%.2f%%)\n", res.NetPnL.StringFixed(2), res.ReturnPct)
	fmt.Fprintf(out, "  Trades:   %d (wins %d, %.1f%%)\n", res.Trades, res.Wins, res.WinRate)

	if btReport != "" {
		return writeReport(out, btReport, mem)
	}
	return nil
}
