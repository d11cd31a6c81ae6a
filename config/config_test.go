package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/replaytrader/journal"
	"github.com/rustyeddy/replaytrader/market"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 1_000_000.0, cfg.Account.Balance)
	assert.Equal(t, "rb2501", cfg.Session.Instrument)
	assert.Equal(t, 200, cfg.Session.WarmupBars)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"negative balance", func(c *Config) { c.Account.Balance = -1000 }, "account.balance must be positive"},
		{"missing instrument", func(c *Config) { c.Session.Instrument = "" }, "session.instrument is required"},
		{"unknown instrument", func(c *Config) { c.Session.Instrument = "EUR_USD" }, "unknown instrument"},
		{"bad start date", func(c *Config) { c.Session.StartDate = "01/02/2025" }, "session.start_date"},
		{"bad timeframe", func(c *Config) { c.Session.Timeframe = "2h" }, "session.timeframe"},
		{"bad speed", func(c *Config) { c.Session.Speed = "fast" }, "session.speed"},
		{"negative warmup", func(c *Config) { c.Session.WarmupBars = -1 }, "warmup_bars"},
		{"csv without files", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }, "trades_file and equity_file"},
		{"sqlite without path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }, "db_path required"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "kafka" }, "journal.type"},
		{"empty journal type", func(c *Config) { c.Journal.Type = "" }, ""},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "grid" }, "strategy: unknown strategy"},
		{"inverted ema periods", func(c *Config) { c.Strategy.Fast, c.Strategy.Slow = 50, 20 }, "fast period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Session.Seed = 99
			cfg.Session.Timeframe = "4h"
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  instrument: cu2501\n  start_date: \"2025-03-03\"\n  timeframe: 1D\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cu2501", cfg.Session.Instrument)
	assert.Equal(t, 1_000_000.0, cfg.Account.Balance)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  balance: -5\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		speed    string
		expected string
		wantErr  bool
	}{
		{"1s", "1s", false},
		{"250ms", "250ms", false},
		{"", "0s", false},
		{"invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.speed, func(t *testing.T) {
			d, err := SessionConfig{Speed: tt.speed}.ParseSpeed()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, d.String())
		})
	}
}

func TestStartRequest(t *testing.T) {
	cfg := Default()
	cfg.Session.Seed = 5
	req, err := cfg.StartRequest()
	require.NoError(t, err)
	assert.Equal(t, "rb2501", req.Instrument)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), req.StartDate)
	assert.Equal(t, market.TF1h, req.Timeframe)
	assert.Equal(t, 1_000_000.0, req.Balance)
	assert.Equal(t, int64(5), req.Seed)
}

func TestOpenJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()

	j, err := cfg.OpenJournal()
	require.NoError(t, err)
	assert.IsType(t, journal.Nop{}, j)

	cfg.Journal = JournalConfig{Type: "csv", TradesFile: filepath.Join(dir, "t.csv"), EquityFile: filepath.Join(dir, "e.csv")}
	j, err = cfg.OpenJournal()
	require.NoError(t, err)
	assert.IsType(t, &journal.CSVJournal{}, j)
	require.NoError(t, j.Close())

	cfg.Journal = JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "j.db")}
	j, err = cfg.OpenJournal()
	require.NoError(t, err)
	assert.IsType(t, &journal.SQLite{}, j)
	require.NoError(t, j.Close())
}
