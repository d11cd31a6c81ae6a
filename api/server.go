// Package api serves a session over HTTP and streams snapshots over a
// websocket for a display layer.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/market"
	"github.com/rustyeddy/replaytrader/market/indicators"
	"github.com/rustyeddy/replaytrader/risk"
	"github.com/rustyeddy/replaytrader/session"
	"github.com/rustyeddy/replaytrader/sim"
)

const dateLayout = "2006-01-02"

type Server struct {
	ctrl     *session.Controller
	log      zerolog.Logger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.log = l } }

// WithGatherer exposes the registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Server) { s.gatherer = g } }

func NewServer(ctrl *session.Controller, opts ...Option) *Server {
	s := &Server{
		ctrl: ctrl,
		log:  zerolog.Nop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/instruments", s.instruments)
	v1.GET("/ws", s.stream)

	sess := v1.Group("/session")
	sess.GET("", s.snapshot)
	sess.POST("", s.start)
	sess.DELETE("", s.reset)
	sess.PUT("/timeframe", s.setTimeframe)
	sess.PUT("/instrument", s.setInstrument)
	sess.PUT("/speed", s.setSpeed)
	sess.POST("/play", s.play)
	sess.POST("/pause", s.pause)
	sess.POST("/tick", s.tick)
	sess.POST("/seek", s.seek)
	sess.GET("/result", s.result)
	sess.GET("/bars/:code", s.bars)
	sess.GET("/indicators/:code", s.indicator)

	v1.POST("/orders", s.submit)
	v1.DELETE("/orders/:id", s.cancel)
	v1.POST("/positions/:code/close", s.closePosition)
	v1.POST("/size", s.size)
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().Str("method", c.Request.Method).Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).Dur("took", time.Since(start)).Msg("http")
	}
}

func (s *Server) instruments(c *gin.Context) {
	ok(c, s.ctrl.Catalog().All())
}

func (s *Server) snapshot(c *gin.Context) {
	ok(c, s.ctrl.Snapshot())
}

type startBody struct {
	Instrument string  `json:"instrument"`
	StartDate  string  `json:"start_date"`
	Timeframe  string  `json:"timeframe"`
	Balance    float64 `json:"balance"`
	Seed       int64   `json:"seed"`
}

func (s *Server) start(c *gin.Context) {
	var body startBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	date, err := time.Parse(dateLayout, body.StartDate)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("start_date %q: want YYYY-MM-DD", body.StartDate))
		return
	}
	tf, err := market.ParseTimeframe(body.Timeframe)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if body.Balance == 0 {
		body.Balance = session.DefaultBalance
	}
	snap, err := s.ctrl.Start(session.StartRequest{
		Instrument: body.Instrument,
		StartDate:  date,
		Timeframe:  tf,
		Balance:    body.Balance,
		Seed:       body.Seed,
	})
	handle(c, snap, err)
}

func (s *Server) reset(c *gin.Context) {
	ok(c, s.ctrl.Reset())
}

func (s *Server) setTimeframe(c *gin.Context) {
	var body struct {
		Timeframe string `json:"timeframe"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	tf, err := market.ParseTimeframe(body.Timeframe)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	snap, err := s.ctrl.SetTimeframe(tf)
	handle(c, snap, err)
}

func (s *Server) setInstrument(c *gin.Context) {
	var body struct {
		Instrument string `json:"instrument"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	snap, err := s.ctrl.SetInstrument(body.Instrument)
	handle(c, snap, err)
}

func (s *Server) setSpeed(c *gin.Context) {
	var body struct {
		MS int64 `json:"ms"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := s.ctrl.SetSpeed(time.Duration(body.MS) * time.Millisecond); err != nil {
		handle(c, nil, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) play(c *gin.Context) {
	if err := s.ctrl.Play(); err != nil {
		handle(c, nil, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) pause(c *gin.Context) {
	s.ctrl.Pause()
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) tick(c *gin.Context) {
	snap, err := s.ctrl.Tick()
	handle(c, snap, err)
}

func (s *Server) seek(c *gin.Context) {
	var body struct {
		Index *int `json:"index"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Index == nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "index is required")
		return
	}
	if err := s.ctrl.Seek(*body.Index); err != nil {
		handle(c, nil, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) result(c *gin.Context) {
	res, done := s.ctrl.Result()
	if !done {
		fail(c, http.StatusNotFound, CodeNotFound, "session has not settled")
		return
	}
	ok(c, res)
}

func (s *Server) bars(c *gin.Context) {
	bars, err := s.ctrl.Bars(c.Param("code"))
	handle(c, bars, err)
}

// indicator serves ?name=ema&period=20 over the bars replayed so far.
func (s *Server) indicator(c *gin.Context) {
	period, err := strconv.Atoi(c.DefaultQuery("period", "20"))
	if err != nil {
		handle(c, nil, fmt.Errorf("%w: period %q", broker.ErrInvalidInput, c.Query("period")))
		return
	}
	ind, err := indicators.New(c.DefaultQuery("name", "ema"), period)
	if err != nil {
		handle(c, nil, fmt.Errorf("%w: %v", broker.ErrInvalidInput, err))
		return
	}
	bars, err := s.ctrl.Bars(c.Param("code"))
	if err != nil {
		handle(c, nil, err)
		return
	}
	ok(c, gin.H{"name": ind.Name(), "points": indicators.Series(ind, bars)})
}

type orderBody struct {
	Instrument string  `json:"instrument"`
	Kind       string  `json:"kind"`
	Side       string  `json:"side"`
	Qty        int     `json:"qty"`
	Price      float64 `json:"price"`
}

func (b orderBody) request() (broker.OrderRequest, error) {
	kind := b.Kind
	if strings.TrimSpace(kind) == "" {
		kind = string(broker.Market)
	}
	k, err := broker.ParseOrderKind(kind)
	if err != nil {
		return broker.OrderRequest{}, err
	}
	dir, err := broker.ParseDirection(b.Side)
	if err != nil {
		return broker.OrderRequest{}, err
	}
	return broker.OrderRequest{Instrument: b.Instrument, Kind: k, Direction: dir, Qty: b.Qty, Price: b.Price}, nil
}

func (s *Server) submit(c *gin.Context) {
	var body orderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	req, err := body.request()
	if err != nil {
		handle(c, nil, err)
		return
	}
	sub, err := s.ctrl.Submit(req)
	handle(c, sub, err)
}

func (s *Server) cancel(c *gin.Context) {
	if err := s.ctrl.Cancel(c.Param("id")); err != nil {
		handle(c, nil, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) closePosition(c *gin.Context) {
	sub, err := s.ctrl.ClosePosition(c.Param("code"))
	handle(c, sub, err)
}

type sizeBody struct {
	Instrument string  `json:"instrument"`
	RiskPct    float64 `json:"risk_pct"`
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	TakeProfit float64 `json:"take_profit"`
}

// size suggests a lot count for a stop against the live account. Entry
// defaults to the displayed bar close.
func (s *Server) size(c *gin.Context) {
	var body sizeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		handle(c, nil, fmt.Errorf("%w: %v", broker.ErrInvalidInput, err))
		return
	}
	snap := s.ctrl.Snapshot()
	if snap.Status == session.StatusIdle {
		handle(c, nil, session.ErrNotStarted)
		return
	}
	if body.Instrument == "" {
		body.Instrument = snap.Instrument
	}
	in, found := s.ctrl.Catalog().Get(body.Instrument)
	if !found {
		handle(c, nil, fmt.Errorf("%w: %q", sim.ErrUnknownInstrument, body.Instrument))
		return
	}
	if body.Entry == 0 && body.Instrument == snap.Instrument && snap.Bar != nil {
		body.Entry = snap.Bar.Close
	}
	if body.RiskPct <= 0 || body.RiskPct > 1 || body.Entry <= 0 || body.Stop <= 0 {
		handle(c, nil, fmt.Errorf("%w: risk_pct in (0,1], entry and stop required", broker.ErrInvalidInput))
		return
	}

	res, err := risk.Calculate(in, risk.Inputs{
		Equity:     snap.Account.Equity.InexactFloat64(),
		FreeMargin: snap.Account.FreeMargin.InexactFloat64(),
		RiskPct:    body.RiskPct,
		Entry:      body.Entry,
		Stop:       body.Stop,
		TakeProfit: body.TakeProfit,
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", broker.ErrInvalidInput, err)
	}
	handle(c, res, err)
}
