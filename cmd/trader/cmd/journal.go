package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/replaytrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite trade journal",
	Long: `Query and display records a session wrote to the SQLite journal.

Subcommands:
  session - Print an org-mode report of a settled session
  trade   - Get details of a specific trade leg by ID
  equity  - Print the per-bar equity curve of a session

Examples:
  trader journal session <session-id>
  trader journal trade <trade-id>
  trader journal equity <session-id>`,
}

var journalSessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Print an org-mode report of a settled session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalSession,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade leg",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <session-id>",
	Short: "Print the equity curve of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalSessionCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalEquityCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./replay.sqlite", "path to SQLite journal DB")
}

func openJournalDB() (*journal.SQLite, error) {
	if _, err := os.Stat(journalDBPath); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalSession(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := j.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	trades, err := j.ListTrades(args[0])
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	return run.WriteOrg(cmd.OutOrStdout(), trades)
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trade:      %s\n", rec.TradeID)
	fmt.Fprintf(out, "Session:    %s\n", rec.SessionID)
	fmt.Fprintf(out, "Order:      %s\n", rec.OrderID)
	fmt.Fprintf(out, "Time:       %s\n", rec.Time.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "Instrument: %s\n", rec.Instrument)
	fmt.Fprintf(out, "Type:       %s (%s)\n", rec.Type, rec.Reason)
	fmt.Fprintf(out, "Side:       %s %d @ %.2f\n", side(rec.Direction), rec.Qty, rec.Price)
	fmt.Fprintf(out, "Fee:        %.2f\n", rec.Fee)
	if rec.PnL != nil {
		fmt.Fprintf(out, "P/L:        %.2f\n", *rec.PnL)
	}
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	curve, err := j.ListEquity(args[0])
	if err != nil {
		return fmt.Errorf("list equity: %w", err)
	}
	if len(curve) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No equity snapshots found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CURSOR\tTIME\tCASH\tEQUITY\tMARGIN\tFREE")
	for _, e := range curve {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\n",
			e.Cursor, e.Time.Format("2006-01-02 15:04"), e.Cash, e.Equity, e.MarginUsed, e.FreeMargin)
	}
	return tw.Flush()
}

func side(direction int) string {
	switch {
	case direction > 0:
		return "BUY"
	case direction < 0:
		return "SELL"
	}
	return "-"
}
