package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nerrad567/gray-logic-automata/internal/audit"
	"github.com/nerrad567/gray-logic-automata/internal/auth"
	"github.com/nerrad567/gray-logic-automata/internal/automation"
	"github.com/nerrad567/gray-logic-automata/internal/capability"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight
// requests.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionChecker reports link state of an optional dependency.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Store  *automation.Store
	Codec  *automation.Codec
	Engine *automation.Engine
	Runs   audit.Repository
	Env    *capability.Env

	// Tokens enables revocation checks. Optional.
	Tokens auth.TokenRepository

	// MQTT and DB only feed /metrics. Optional.
	MQTT ConnectionChecker
	DB   *sql.DB

	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	store    *automation.Store
	codec    *automation.Codec
	engine   *automation.Engine
	runs     audit.Repository
	env      *capability.Env
	tokens   auth.TokenRepository
	mqtt     ConnectionChecker
	db       *sql.DB
	validate *validator.Validate
	tickets  *ticketStore
	hub      *Hub
	version  string

	startTime time.Time
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc
}

// New creates the server and hooks the WebSocket hub to the store and
// engine. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil || deps.Codec == nil || deps.Engine == nil {
		return nil, fmt.Errorf("automation store, codec and engine are required")
	}
	if deps.Runs == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	if deps.Env == nil {
		return nil, fmt.Errorf("capability environment is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		store:     deps.Store,
		codec:     deps.Codec,
		engine:    deps.Engine,
		runs:      deps.Runs,
		env:       deps.Env,
		tokens:    deps.Tokens,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		validate:  newValidator(),
		tickets:   newTicketStore(),
		hub:       NewHub(deps.WS, deps.Logger),
		version:   deps.Version,
		startTime: time.Now(),
	}

	s.store.Subscribe(automation.ObserverFunc(s.broadcastAutomations))
	s.engine.OnRun(automation.RunObserverFunc(s.broadcastRun))
	s.env.OnChange(s.broadcastCapability)

	return s, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. The hub and the
// ticket sweeper stop when ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops background work and shuts the listener down gracefully.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports an error until Start has run.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
