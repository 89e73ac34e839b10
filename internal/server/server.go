package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/concord-chat/devchat/internal/database"
	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/pkg/crypto"
)

// Server hosts the identity service, user directory and channel stream
type Server struct {
	config     *Config
	hub        *Hub
	handlers   *Handlers
	db         *database.DB
	upgrader   websocket.Upgrader
	httpServer *http.Server
	log        logging.Logger

	// ctx scopes the hub and websocket clients
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server instance and starts its hub
func New(config *Config, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Discard()
	}

	db, err := database.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	secret := config.JWTSecret
	if secret == "" {
		secret, err = crypto.GenerateSecret(32)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Warn(context.Background(), "no jwt_secret configured, tokens will not survive a restart")
	}

	ttl := config.TokenTTL.Duration
	if ttl <= 0 {
		ttl = DefaultConfig().TokenTTL.Duration
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(db, log.With("component", "hub"))
	go hub.Run(ctx)

	s := &Server{
		config:   config,
		hub:      hub,
		handlers: NewHandlers(db, hub, NewTokenManager(secret, ttl), log.With("component", "api")),
		db:       db,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Terminal clients send no Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	go s.sweepSessions()
	return s, nil
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	h := s.handlers
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/accounts", h.HandleCreateAccount)
	mux.HandleFunc("POST /api/sessions", h.HandleSignIn)
	mux.HandleFunc("DELETE /api/sessions/current", h.RequireAuth(h.HandleSignOut))
	mux.HandleFunc("PATCH /api/accounts/{uid}", h.RequireAuth(h.HandleUpdateProfile))
	mux.HandleFunc("PUT /api/users/{uid}", h.RequireAuth(h.HandlePutUser))
	mux.HandleFunc("PUT /api/channels/{key}", h.RequireAuth(h.HandlePutChannel))
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Addr()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "devchat server starting", "addr", addr)
		s.log.Info(ctx, "websocket endpoint", "url", "ws://"+addr+"/ws")
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.log.Info(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error(ctx, "http server shutdown error", "error", err)
	}
	s.Close()
	s.log.Info(ctx, "server stopped")
	return nil
}

// Close stops the hub and closes the database
func (s *Server) Close() error {
	s.cancel()
	return s.db.Close()
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s.hub, s.handlers, s.log.With("component", "ws", "remote", r.RemoteAddr))
	client.SendHello()

	go client.WritePump(s.ctx)
	go client.ReadPump(s.ctx)
}

// sweepSessions deletes expired sessions once an hour
func (s *Server) sweepSessions() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.db.DeleteExpiredSessions(s.ctx)
			if err != nil {
				s.log.Warn(s.ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Debug(s.ctx, "expired sessions removed", "count", n)
			}
		case <-s.ctx.Done():
			return
		}
	}
}
