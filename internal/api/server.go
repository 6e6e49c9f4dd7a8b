// Package api exposes the engine over HTTP: curve lifecycle, trading,
// launch, and a live per-curve websocket event feed.
package api

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"launch-curve-engine/internal/curve"
	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/launch"
	"launch-curve-engine/internal/ledger"
	"launch-curve-engine/internal/observability"
	"launch-curve-engine/internal/storage"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	ledger  *ledger.Ledger
	orch    *launch.Orchestrator
	curves  storage.CurveStore
	holders storage.HolderStore
	events  storage.TradeEventStore
	gate    *launch.Gate

	cfg       domain.EconomicConfig
	baseShape curve.Shape
	hub       *Hub
	logger    *log.Logger
	now       func() int64
	started   time.Time
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Ledger       *ledger.Ledger
	Orchestrator *launch.Orchestrator
	CurveStore   storage.CurveStore
	HolderStore  storage.HolderStore
	EventStore   storage.TradeEventStore
	Gate         *launch.Gate
	Config       domain.EconomicConfig

	Logger *log.Logger  // nil means log.Default
	Now    func() int64 // ms clock override for tests
}

// NewServer creates a Server.
func NewServer(opts ServerOptions) (*Server, error) {
	shape, err := curve.ShapeFromConfig(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("curve shape: %w", err)
	}

	s := &Server{
		ledger:    opts.Ledger,
		orch:      opts.Orchestrator,
		curves:    opts.CurveStore,
		holders:   opts.HolderStore,
		events:    opts.EventStore,
		gate:      opts.Gate,
		cfg:       opts.Config,
		baseShape: shape,
		hub:       NewHub(),
		logger:    opts.Logger,
		now:       opts.Now,
		started:   time.Now(),
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = func() int64 { return time.Now().UnixMilli() }
	}
	return s, nil
}

// Hub returns the websocket event hub, for broadcasting from outside the
// request path.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/curve", func(r chi.Router) {
		r.Post("/create", s.handleCreateCurve)
		r.Get("/owner", s.handleGetByOwner)

		r.Route("/{curveID}", func(r chi.Router) {
			r.Get("/", s.handleGetCurve)
			r.Get("/holders", s.handleHolders)
			r.Get("/trades", s.handleTrades)
			r.Get("/quote", s.handleQuote)
			r.Get("/events", s.handleEvents)
			r.Post("/buy", s.handleBuy)
			r.Post("/sell", s.handleSell)
			r.Post("/wallet", s.handleBindWallet)
			r.Post("/freeze", s.handleFreeze)
			r.Post("/launch", s.handleLaunch)
		})
	})

	return r
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(route, fmt.Sprintf("%d", rec.status), time.Since(started).Seconds())
	})
}
