package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"chitchat/internal/auth"
	"chitchat/internal/constants"
	"chitchat/internal/fanout"
	"chitchat/internal/features"
	"chitchat/internal/metrics"
	"chitchat/internal/middleware"
	"chitchat/internal/models"
	"chitchat/internal/service"
	"chitchat/internal/versioning"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Services are the components the HTTP surface dispatches to.
type Services struct {
	Users     *service.UserService
	Chats     *service.ChatService
	Messages  *service.MessageService
	Hub       *fanout.Hub
	Tokens    *auth.TokenManager
	Directory auth.UserLookup
	Flags     *features.FlagManager
	Registry  *metrics.Registry
}

type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	config  models.ServerConfig
	push    models.FanoutConfig
	svc     Services
	limiter *middleware.RateLimiter
	server  *http.Server

	// baseCtx parents every request context so that Shutdown can end
	// hijacked push connections, which http.Server does not track.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

func NewServer(cfg *models.Config, svc Services, logger *logrus.Logger) *Server {
	window := time.Duration(cfg.Server.AuthRateWindowSec) * time.Second
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		config:     cfg.Server,
		push:       cfg.Fanout,
		svc:        svc,
		limiter:    middleware.NewRateLimiter(cfg.Server.AuthRateLimit, window),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger, s.svc.Registry))
	s.router.Use(middleware.DebugLoggingMiddleware(s.logger, middleware.DefaultDebugLoggingConfig()))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket()).Methods(http.MethodGet)

	limited := middleware.RateLimitMiddleware(s.limiter, s.logger, s.svc.Registry)
	protected := auth.Middleware(s.svc.Tokens, s.svc.Directory, s.logger)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(versioning.Middleware(s.logger))
	scheduled := versioning.RequireFeature("scheduled_messages", s.logger)
	translation := versioning.RequireFeature("translation", s.logger)

	// Users
	api.Handle("/user", limited(s.handleRegister())).Methods(http.MethodPost)
	api.Handle("/user/login", limited(s.handleLogin())).Methods(http.MethodPost)
	api.Handle("/user", protected(s.handleSearchUsers())).Methods(http.MethodGet)

	// Chats
	api.Handle("/chat", protected(s.handleAccessChat())).Methods(http.MethodPost)
	api.Handle("/chat", protected(s.handleListChats())).Methods(http.MethodGet)
	api.Handle("/chat/group", protected(s.handleCreateGroup())).Methods(http.MethodPost)
	api.Handle("/chat/rename", protected(s.handleRenameGroup())).Methods(http.MethodPut)
	api.Handle("/chat/groupadd", protected(s.handleAddToGroup())).Methods(http.MethodPut)
	api.Handle("/chat/groupremove", protected(s.handleRemoveFromGroup())).Methods(http.MethodPut)

	// Messages; the fixed paths are registered before the chat id pattern
	api.Handle("/message", protected(s.handleSubmitMessage())).Methods(http.MethodPost)
	api.Handle("/message/scheduled", protected(scheduled(s.handleListScheduled()))).Methods(http.MethodGet)
	api.Handle("/message/translate", protected(translation(s.handleTranslate()))).Methods(http.MethodPost)
	api.Handle("/message/{chatId}", protected(s.handleListMessages())).Methods(http.MethodGet)
	api.Handle("/message/{messageId}/read", protected(s.handleMarkRead())).Methods(http.MethodPut)
}

// EnableVerboseLogging lets request logs carry message content. Call it
// before Start.
func (s *Server) EnableVerboseLogging() {
	s.baseCtx = service.WithVerbose(s.baseCtx, true)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.config.IdleTimeoutSec) * time.Second,
		BaseContext:  func(net.Listener) context.Context { return s.baseCtx },
	}

	s.logger.WithField("port", s.config.Port).Info("Starting server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// closes every push connection.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.cancelBase()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) writeTimeout() time.Duration {
	if s.push.WriteTimeoutSec <= 0 {
		return constants.DefaultWriteTimeoutSec * time.Second
	}
	return time.Duration(s.push.WriteTimeoutSec) * time.Second
}

func (s *Server) pingInterval() time.Duration {
	if s.push.PingIntervalSec <= 0 {
		return constants.DefaultPingIntervalSec * time.Second
	}
	return time.Duration(s.push.PingIntervalSec) * time.Second
}
