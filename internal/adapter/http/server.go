package http

import (
	"net/http"
	"time"

	"convq/internal/adapter/http/middleware"
	"convq/internal/adapter/http/ratelimit"
	"convq/internal/service"
)

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
	authSvc    AuthService
	limiter    *ratelimit.LoginRateLimiter
}

func NewServer(authSvc AuthService, queue QueueService, history HistoryService, bus *service.Bus, behindProxy bool) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		handlers:   NewHandlers(queue, history),
		sseHandler: NewSSEHandler(bus, queue),
		authSvc:    authSvc,
		limiter:    ratelimit.NewLoginRateLimiter(5, 15*time.Minute, 30*time.Minute),
	}

	s.registerRoutes(behindProxy)

	return s
}

func (s *Server) registerRoutes(behindProxy bool) {
	s.mux.HandleFunc("POST /login", LoginHandler(s.authSvc, s.limiter, behindProxy))
	s.mux.HandleFunc("POST /logout", AuthMiddleware(s.authSvc, LogoutHandler()))

	s.mux.HandleFunc("GET /api/queue", AuthMiddleware(s.authSvc, s.handlers.Queue()))
	s.mux.HandleFunc("POST /api/jobs", AuthMiddleware(s.authSvc, s.handlers.AddJob()))
	s.mux.HandleFunc("POST /api/jobs/batch", AuthMiddleware(s.authSvc, s.handlers.BatchAdd()))
	s.mux.HandleFunc("DELETE /api/jobs/{index}", AuthMiddleware(s.authSvc, s.handlers.RemoveJob()))

	s.mux.HandleFunc("POST /api/queue/start", AuthMiddleware(s.authSvc, s.handlers.StartQueue()))
	s.mux.HandleFunc("POST /api/queue/stop", AuthMiddleware(s.authSvc, s.handlers.StopQueue()))

	s.mux.HandleFunc("GET /api/history", AuthMiddleware(s.authSvc, s.handlers.History()))

	s.mux.HandleFunc("GET /events", AuthMiddleware(s.authSvc, s.sseHandler.Events()))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
