package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/supportflow/supportflow"
	"github.com/supportflow/supportflow/api/handlers"
	"github.com/supportflow/supportflow/config"
	"github.com/supportflow/supportflow/internal/server"
	"github.com/supportflow/supportflow/internal/telemetry"
)

// authSkipPaths are served without authentication.
var authSkipPaths = []string{"/health", "/ready", "/version", "/metrics"}

// Server ties the assembled system to the HTTP surface.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	sys    *supportflow.System
	otel   *telemetry.Providers

	httpManager       *server.Manager
	rateLimiterCancel context.CancelFunc
}

// NewServer creates the server around an assembled system.
func NewServer(cfg *config.Config, logger *zap.Logger, sys *supportflow.System, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		sys:    sys,
		otel:   otel,
	}
}

// Start registers routes and begins serving. Non-blocking.
func (s *Server) Start() error {
	askHandler := handlers.NewAskHandler(s.sys, s.logger)

	healthHandler := handlers.NewHealthHandler(s.logger)
	if client := s.sys.Redis(); client != nil {
		healthHandler.RegisterCheck(handlers.CheckFunc{
			CheckName: "redis",
			Fn: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	if conn := s.sys.DB(); conn != nil {
		healthHandler.RegisterCheck(handlers.CheckFunc{
			CheckName: "database",
			Fn:        conn.Ping,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReady)
	mux.HandleFunc("/version", handleVersion)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/ask", askHandler.HandleAsk)
	mux.HandleFunc("POST /v1/ask/stream", askHandler.HandleAskStream)
	mux.HandleFunc("GET /v1/ask/ws", askHandler.HandleAskWS)

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	middlewares = append(middlewares,
		Auth(s.cfg.Server.APIKeys, s.cfg.Server.JWTSecret, authSkipPaths, s.logger))

	handler := Chain(mux, middlewares...)

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// WaitForShutdown blocks until a termination signal, then cleans up.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown releases everything the server and system own.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}
	if err := s.sys.Close(); err != nil {
		s.logger.Error("system close error", zap.Error(err))
	}

	s.logger.Info("graceful shutdown completed")
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}
