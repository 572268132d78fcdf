package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/app/server/handlers"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/config"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/services"
	"github.com/schwenzfeuer/wunschkiste-sub000/pkg/middleware"
)

type Server struct {
	mux          *http.ServeMux
	log          *slog.Logger
	cfg          config.Config
	relayHandler *handlers.RelayHandler
}

func NewServer(
	log *slog.Logger,
	cfg config.Config,
	relaySvc services.IRelayService,
) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		log:          log,
		cfg:          cfg,
		relayHandler: handlers.NewRelayHandler(relaySvc),
	}

	s.routes()
	return s
}

// routes wires the relay surface: every action lives under an opaque room
// key. Unknown actions fall through to the mux's 404.
func (s *Server) routes() {
	// The websocket action accepts GET and POST; the upgrade check inside
	// the handler is what actually gates it.
	s.mux.HandleFunc("/{key}/websocket", s.relayHandler.Websocket)
	s.mux.HandleFunc("POST /{key}/notify", s.relayHandler.Notify)
	s.mux.HandleFunc("POST /{key}/chat-broadcast", s.relayHandler.ChatBroadcast)
	s.mux.HandleFunc("GET /{key}/stats", s.relayHandler.Stats)
}

// Handler returns the full middleware chain around the route table. OPTIONS
// preflights are answered by the CORS layer before any route is looked up.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = middleware.CORS(s.cfg.Relay.AllowedOrigins)(h)
	h = middleware.TracerMiddleware(s.cfg.Service.Name)(h)
	h = middleware.RequestLogger(s.log)(h)
	return h
}

// Start serves until ctx is canceled, then drains in-flight requests.
// Write timeouts stay unset on purpose: a websocket connection would be
// killed by them.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.Service.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.cfg.Service.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Relay.WriteTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
