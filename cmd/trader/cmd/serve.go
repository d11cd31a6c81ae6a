package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/replaytrader/api"
	"github.com/rustyeddy/replaytrader/metrics"
	"github.com/rustyeddy/replaytrader/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the replay over HTTP and WebSocket",
	Long: `Run the HTTP API for a display layer. Sessions are started, driven
and traded through /api/v1, snapshots are pushed on /api/v1/ws and
Prometheus metrics are exposed on /metrics.

With --start a session is started from the config before listening.

Example:
  trader serve -c replay.yaml --addr :8080 --start`,
	RunE: runServe,
}

var (
	serveAddr  string
	serveStart bool
)

const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "start a session from the config")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	log := newLogger(cfg)
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	ctrl, err := newController(cfg, j,
		session.WithLogger(log),
		session.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		j.Close()
		return err
	}
	defer ctrl.Close()

	if serveStart {
		req, err := cfg.StartRequest()
		if err != nil {
			return err
		}
		snap, err := ctrl.Start(req)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		log.Info().Str("session", snap.SessionID).Str("instrument", snap.Instrument).
			Int("cursor", snap.Cursor).Int("total", snap.Total).Msg("session started")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(ctrl, api.WithLogger(log), api.WithGatherer(reg)).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
