package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/replaytrader/journal"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/session"
	"github.com/rustyeddy/replaytrader/strategy"
)

const dateLayout = "2006-01-02"

// Config is the complete trader configuration.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Session SessionConfig `json:"session" yaml:"session"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Script  ScriptConfig  `json:"script" yaml:"script"`

	Strategy strategy.Config `json:"strategy" yaml:"strategy"`
}

type AccountConfig struct {
	Balance float64 `json:"balance" yaml:"balance"`
}

// SessionConfig seeds the start form.
type SessionConfig struct {
	Instrument string `json:"instrument" yaml:"instrument"`
	StartDate  string `json:"start_date" yaml:"start_date"` // YYYY-MM-DD
	Timeframe  string `json:"timeframe" yaml:"timeframe"`
	Speed      string `json:"speed" yaml:"speed"` // playback interval, e.g. "500ms"
	Seed       int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	WarmupBars int    `json:"warmup_bars" yaml:"warmup_bars"`
}

// ParseSpeed converts the speed string to a duration.
func (s SessionConfig) ParseSpeed() (time.Duration, error) {
	if s.Speed == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Speed)
}

// JournalConfig selects where trades and equity are written.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// ScriptConfig points the run command at a scripted order CSV.
type ScriptConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoadFromFile loads configuration from YAML, falling back to JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration against the built-in catalog.
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Session.Instrument == "" {
		return fmt.Errorf("session.instrument is required")
	}
	in, ok := market.DefaultCatalog().Get(c.Session.Instrument)
	if !ok {
		return fmt.Errorf("unknown instrument: %s", c.Session.Instrument)
	}
	if _, err := strategy.New(c.Strategy, in); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if _, err := time.Parse(dateLayout, c.Session.StartDate); err != nil {
		return fmt.Errorf("session.start_date must be YYYY-MM-DD: %q", c.Session.StartDate)
	}
	if _, err := market.ParseTimeframe(c.Session.Timeframe); err != nil {
		return fmt.Errorf("session.timeframe: %w", err)
	}
	if d, err := c.Session.ParseSpeed(); err != nil || d < 0 {
		return fmt.Errorf("session.speed must be a positive duration: %q", c.Session.Speed)
	}
	if c.Session.WarmupBars < 0 {
		return fmt.Errorf("session.warmup_bars must not be negative")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// StartRequest builds the session start request from the session and
// account sections. Call Validate first.
func (c *Config) StartRequest() (session.StartRequest, error) {
	date, err := time.Parse(dateLayout, c.Session.StartDate)
	if err != nil {
		return session.StartRequest{}, fmt.Errorf("session.start_date: %w", err)
	}
	tf, err := market.ParseTimeframe(c.Session.Timeframe)
	if err != nil {
		return session.StartRequest{}, err
	}
	return session.StartRequest{
		Instrument: c.Session.Instrument,
		StartDate:  date,
		Timeframe:  tf,
		Balance:    c.Account.Balance,
		Seed:       c.Session.Seed,
	}, nil
}

// OpenJournal opens the configured journal. Type none returns journal.Nop.
func (c *Config) OpenJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "csv":
		return journal.NewCSV(c.Journal.TradesFile, c.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(c.Journal.DBPath)
	}
	return journal.Nop{}, nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Balance: session.DefaultBalance,
		},
		Session: SessionConfig{
			Instrument: "rb2501",
			StartDate:  "2025-01-02",
			Timeframe:  string(market.TF1h),
			Speed:      "500ms",
			WarmupBars: session.DefaultWarmupBars,
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
		Strategy: strategy.Config{
			Name: "ema-cross",
			Lots: 1,
			Fast: 10,
			Slow: 30,
		},
	}
}
