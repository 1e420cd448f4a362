// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server wires bodhi's gin engine: the OpenAI- and
// Ollama-compatible inference routes, the admin/API CRUD routes, the
// auth routes, and the download-progress websocket. Grounded on
// services/orchestrator/routes/routes.go's route-group shape and
// services/orchestrator/handlers' streaming/websocket handlers, adapted
// from a RAG chat backend onto bodhi's alias/llama-server domain.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/bodhi-ml/bodhi/internal/auth"
	"github.com/bodhi-ml/bodhi/internal/catalog"
	"github.com/bodhi-ml/bodhi/internal/db"
	"github.com/bodhi-ml/bodhi/internal/downloadqueue"
	"github.com/bodhi-ml/bodhi/internal/llamactx"
	"github.com/bodhi-ml/bodhi/internal/secrets"
	"github.com/bodhi-ml/bodhi/internal/settings"
	"github.com/bodhi-ml/bodhi/internal/toolorch"
	"github.com/bodhi-ml/bodhi/pkg/logging"
)

// Deps bundles every collaborator the route handlers close over. It is
// built once at startup by cmd/bodhi and never mutated afterward.
type Deps struct {
	Settings    *settings.Service
	Catalog     *catalog.Service
	Llama       *llamactx.Context
	Queue       *downloadqueue.Queue
	Tools       *toolorch.Orchestrator
	AuthChain   gin.HandlerFunc
	Aliases     *db.AliasStore
	Tokens      *db.TokenStore
	Apps        *db.AppStore
	MCP         *db.McpStore
	Sessions    *db.SessionStore
	Encryptor   *secrets.Encryptor
	IdentityURL func(redirectURI, state string) string
	IdP         auth.IdentityProvider
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURI  string
	Logger      *logging.Logger
	Metrics     *Metrics
}

// Server owns the gin engine and the http.Server listening on top of it.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	deps   Deps
}

// New constructs a Server bound to host:port, with otelgin tracing and
// Prometheus metrics middleware installed ahead of the route groups.
func New(host string, port int, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("bodhi"))
	engine.Use(metricsMiddleware(deps.Metrics))

	registerRoutes(engine, deps)

	addr := fmt.Sprintf("%s:%d", host, port)
	return &Server{
		engine: engine,
		http:   &http.Server{Addr: addr, Handler: engine},
		deps:   deps,
	}
}

// Engine exposes the underlying gin engine, for tests that want to drive
// it with httptest without a real listener.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run starts accepting connections and blocks until the listener exits.
// ErrServerClosed from a graceful Shutdown is swallowed, matching
// net/http's own documented convention.
func (s *Server) Run() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections, waits up to timeout for
// inflight requests to drain, then stops the shared llama-server
// subprocess. Callers run this after cancelling background workers.
func (s *Server) Shutdown(ctx context.Context, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if s.deps.Llama != nil {
		if err := s.deps.Llama.TryStop(); err != nil {
			return fmt.Errorf("stopping llama-server: %w", err)
		}
	}
	return nil
}

func metricsMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		m.RequestsTotal.WithLabelValues(route, status).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
