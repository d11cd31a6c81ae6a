package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/replaytrader/config"
	"github.com/rustyeddy/replaytrader/journal"
	"github.com/rustyeddy/replaytrader/replay"
	"github.com/rustyeddy/replaytrader/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a session from a config file and an order script",
	Long: `Start a replay session from the config file and drive it with an
order script. Each script row is "cursor,action,args": the session is
stepped forward to the cursor and the action is applied. Without a script
the session is replayed to the end with no trades.

The session is settled at the last bar and the result is printed.

Example:
  trader run -c replay.yaml -s orders.csv --report run.org`,
	RunE: runRun,
}

var (
	runScriptPath string
	runSeed       int64
	runReport     string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runScriptPath, "script", "s", "", "order script (overrides script.path)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "generator seed (overrides session.seed)")
	runCmd.Flags().StringVar(&runReport, "report", "", "write an org-mode session report to this file, - for stdout")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Session.Seed = runSeed
	}
	if runScriptPath != "" {
		cfg.Script.Path = runScriptPath
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

	out := cmd.OutOrStdout()
	snap, err := ctrl.Start(req)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	fmt.Fprintf(out, "Session %s\n", snap.SessionID)
	fmt.Fprintf(out, "Replaying %s %s from %s (%d bars, cursor %d)\n",
		snap.Instrument, snap.Timeframe, cfg.Session.StartDate, snap.Total, snap.Cursor)

	if cfg.Script.Path != "" {
		outcomes, err := replay.RunScriptFile(cfg.Script.Path, ctrl, replay.ScriptOptions{
			Instrument: req.Instrument,
			RunToEnd:   true,
		})
		printOutcomes(out, outcomes)
		if err != nil {
			return fmt.Errorf("script: %w", err)
		}
	} else {
		for {
			done, err := ctrl.Step()
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
	}

	res, ok := ctrl.Result()
	if !ok {
		return fmt.Errorf("session did not settle")
	}
	fmt.Fprintf(out, "\nFinal Results:\n")
	fmt.Fprintf(out, "  Initial:  %s\n", res.Initial.StringFixed(2))
	fmt.Fprintf(out, "  Equity:   %s\n", res.FinalEquity.StringFixed(2))
	fmt.Fprintf(out, "  Net P/L:  %s (%.2f%%)\n", res.NetPnL.StringFixed(2), res.ReturnPct)
	fmt.Fprintf(out, "  Trades:   %d (wins %d, %.1f%%)\n", res.Trades, res.Wins, res.WinRate)

	if runReport != "" {
		if err := writeReport(out, runReport, mem); err != nil {
			return err
		}
	}
	return nil
}

// newController builds a controller from the session config. The
// controller owns j and closes it.
func newController(cfg *config.Config, j journal.Journal, opts ...session.Option) (*session.Controller, error) {
	speed, err := cfg.Session.ParseSpeed()
	if err != nil {
		return nil, fmt.Errorf("session.speed: %w", err)
	}
	opts = append(opts,
		session.WithJournal(j),
		session.WithWarmupBars(cfg.Session.WarmupBars),
	)
	if speed > 0 {
		opts = append(opts, session.WithInterval(speed))
	}
	return session.New(opts...), nil
}

func printOutcomes(w io.Writer, outcomes []replay.Outcome) {
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "  line %d @%d %s: %v\n", o.Line, o.Cursor, o.Action, o.Err)
		case o.Submission.Status != "":
			fmt.Fprintf(w, "  line %d @%d %s: %s %s\n", o.Line, o.Cursor, o.Action, o.Submission.Status, o.Submission.Order.ID)
		default:
			fmt.Fprintf(w, "  line %d @%d %s\n", o.Line, o.Cursor, o.Action)
		}
	}
}

func writeReport(stdout io.Writer, path string, mem *journal.Memory) error {
	runs := mem.Sessions()
	if len(runs) == 0 {
		return fmt.Errorf("no settled session to report")
	}
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := runs[len(runs)-1].WriteOrg(w, mem.Trades()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if path != "-" {
		fmt.Fprintf(stdout, "\n✓ Report written to %s\n", path)
	}
	return nil
}
