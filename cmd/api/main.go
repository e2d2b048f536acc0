// Package main is the entry point for the chat platform server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-platform/internal/auth"
	"github.com/capitalize-ai/chat-platform/internal/config"
	"github.com/capitalize-ai/chat-platform/internal/handler"
	"github.com/capitalize-ai/chat-platform/internal/middleware"
	natsclient "github.com/capitalize-ai/chat-platform/internal/nats"
	"github.com/capitalize-ai/chat-platform/internal/service"
	"github.com/capitalize-ai/chat-platform/internal/store"
	"github.com/capitalize-ai/chat-platform/internal/store/memory"
	"github.com/capitalize-ai/chat-platform/internal/store/natskv"
	"github.com/capitalize-ai/chat-platform/internal/ws"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
	"github.com/capitalize-ai/chat-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting chat platform server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Initialize stores: JetStream-backed when NATS is enabled, in-memory
	// otherwise.
	var (
		users         store.UserStore
		conversations store.ConversationStore
		messages      store.MessageStore
		natsClient    *natsclient.Client
	)
	if cfg.NATSEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		stores, err := natskv.Setup(ctx, natsClient.JetStream())
		if err != nil {
			log.Error("failed to set up JetStream stores", zap.Error(err))
			os.Exit(1)
		}
		users = stores.Users
		conversations = stores.Conversations
		messages = stores.Messages
	} else {
		log.Info("NATS disabled, using in-memory stores")
		users = memory.NewUserStore()
		conversations = memory.NewConversationStore()
		messages = memory.NewMessageStore()
	}

	// Token issuing and verification
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	// Initialize services
	userSvc := service.NewUserService(users, issuer, log)
	conversationSvc := service.NewConversationService(conversations, users, messages, log)
	messageSvc := service.NewMessageService(messages, conversationSvc, users, log)

	// Real-time layer
	hub := ws.NewHub(log)
	presence := ws.NewPresenceRegistry(users, log)
	authenticator := ws.NewAuthenticator(verifier, users)
	wsServer := ws.NewServer(authenticator, hub, presence, conversationSvc, messageSvc, ws.Config{
		MaxMessageSize: cfg.WSMaxMessageSize,
		SendBuffer:     cfg.WSSendBuffer,
	}, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	userHandler := handler.NewUserHandler(userSvc, log)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, hub, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Real-time endpoint; authentication happens in the handler before
	// the websocket upgrade.
	r.Get("/ws", wsServer.HandleWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/users/register", userHandler.Register)
		r.Post("/users/login", userHandler.Login)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(verifier))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Get("/users", userHandler.List)
			r.Get("/users/me", userHandler.Me)

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversationHandler.List)
				r.Post("/direct", conversationHandler.CreateDirect)
				r.Post("/group", conversationHandler.CreateGroup)

				r.Route("/{conversationID}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Get("/messages", messageHandler.List)
					r.Post("/messages", messageHandler.Send)
				})
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
