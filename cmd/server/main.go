package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/agentgate/agentgate/internal/audit"
	"github.com/agentgate/agentgate/internal/auth"
	"github.com/agentgate/agentgate/internal/auth/oidc"
	"github.com/agentgate/agentgate/internal/config"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/events"
	"github.com/agentgate/agentgate/internal/handlers"
	"github.com/agentgate/agentgate/internal/lifecycle"
	"github.com/agentgate/agentgate/internal/logging"
	"github.com/agentgate/agentgate/internal/metrics"
	"github.com/agentgate/agentgate/internal/middleware"
	"github.com/agentgate/agentgate/internal/ratelimit"
	"github.com/agentgate/agentgate/internal/session"
	"github.com/agentgate/agentgate/internal/token"
	"github.com/agentgate/agentgate/internal/webhook"
)

const expirySweepInterval = time.Minute

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	logger.Info("Starting AgentGate server", nil)

	mode := auth.AuthMode(cfg.Auth.Mode)
	if !auth.ValidAuthMode(mode) {
		logger.Error("Invalid AUTH_MODE", fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode), nil)
		os.Exit(1)
	}
	if mode != auth.ModeAPIKeyOnly && cfg.Auth.AccessTokenSecret == "" {
		logger.Error("ACCESS_TOKEN_SECRET is required unless AUTH_MODE=api-key-only",
			fmt.Errorf("ACCESS_TOKEN_SECRET environment variable not set"), nil)
		os.Exit(1)
	}

	database, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		logger.Error("Failed to open database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	database.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	database.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", err, nil)
		os.Exit(1)
	}

	queries := db.NewQueries(database)
	if err := queries.Migrate(context.Background()); err != nil {
		logger.Error("Failed to apply schema", err, nil)
		os.Exit(1)
	}
	logger.Info("Connected to database", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
		"name": cfg.Database.Name,
	})

	// Core components
	keyManager := auth.NewAPIKeyManager(queries)
	signer := auth.NewTokenSigner([]byte(cfg.Auth.AccessTokenSecret), cfg.Session.AccessTTL)
	resolver := auth.NewResolver(mode, keyManager, signer, queries)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	authMW := auth.NewMiddleware(resolver, limiter, cfg.RateLimit.DefaultLimit)

	bus := events.NewMemoryBus()
	recorder := audit.NewRecorder(queries, logger)
	dispatcher := webhook.NewDispatcher(queries, cfg.Webhooks.Timeout, logger)
	coordinator := lifecycle.NewCoordinator(queries, recorder, dispatcher, bus, logger)
	tokenManager := token.NewManager(queries, cfg.Decisions.TokenTTL)
	sessionManager := session.NewManager(queries, signer, cfg.Session.RefreshTTL)

	// OIDC provider, required unless the gateway only accepts API keys
	var identity handlers.IdentityProvider
	if mode != auth.ModeAPIKeyOnly && cfg.Auth.OIDC.IssuerURL != "" {
		oidcProvider, err := oidc.NewProvider(
			context.Background(),
			cfg.Auth.OIDC.IssuerURL,
			cfg.Auth.OIDC.ClientID,
			cfg.Auth.OIDC.ClientSecret,
			cfg.Auth.OIDC.RedirectURL,
			cfg.Auth.OIDC.Scopes,
		)
		if err != nil {
			logger.Error("Failed to initialize OIDC provider", err, nil)
			os.Exit(1)
		}
		logger.Info("OIDC provider initialized", map[string]interface{}{
			"issuer": cfg.Auth.OIDC.IssuerURL,
		})
		identity = oidcProvider
	}

	// Handlers
	requestHandlers := handlers.NewRequestHandlers(coordinator, tokenManager, cfg.Server.PublicBaseURL)
	decideHandlers := handlers.NewDecideTokenHandler(tokenManager, coordinator)
	policyHandlers := handlers.NewPolicyHandlers(queries)
	keyHandlers := handlers.NewAPIKeyHandlers(keyManager, queries)
	webhookHandlers := handlers.NewWebhookHandlers(queries, dispatcher)
	sessionHandlers := handlers.NewSessionHandlers(identity, sessionManager, cfg.Session)
	eventHandlers := handlers.NewEventStreamHandlers(bus, logger)
	systemHandlers := handlers.NewSystemHandlers(logger)

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Unauthenticated surface
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteSuccess(w, map[string]string{"status": "ok"}, http.StatusOK)
	}).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/api/decide/{token}", decideHandlers.Redeem).Methods("GET")
	router.HandleFunc("/api/session/login", sessionHandlers.Login).Methods("GET")
	router.HandleFunc("/api/session/callback", sessionHandlers.Callback).Methods("GET")
	router.HandleFunc("/api/session/refresh", sessionHandlers.Refresh).Methods("POST")
	router.HandleFunc("/api/session/logout", sessionHandlers.Logout).Methods("POST")

	// Authenticated API
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMW.Authenticate)

	apiRouter.HandleFunc("/requests", auth.RequirePermission(auth.PermRequestCreate, requestHandlers.CreateRequest)).Methods("POST")
	apiRouter.HandleFunc("/requests", auth.RequirePermission(auth.PermRequestRead, requestHandlers.ListRequests)).Methods("GET")
	apiRouter.HandleFunc("/requests/{id}", auth.RequirePermission(auth.PermRequestRead, requestHandlers.GetRequest)).Methods("GET")
	apiRouter.HandleFunc("/requests/{id}/decide", auth.RequirePermission(auth.PermRequestDecide, requestHandlers.DecideRequest)).Methods("POST")
	apiRouter.HandleFunc("/requests/{id}/audit", auth.RequirePermission(auth.PermAuditRead, requestHandlers.GetAuditTrail)).Methods("GET")
	apiRouter.HandleFunc("/requests/{id}/tokens", auth.RequirePermission(auth.PermRequestDecide, requestHandlers.IssueTokens)).Methods("POST")

	apiRouter.HandleFunc("/policies", auth.RequirePermission(auth.PermPoliciesRead, policyHandlers.ListPolicies)).Methods("GET")
	apiRouter.HandleFunc("/policies", auth.RequirePermission(auth.PermPoliciesWrite, policyHandlers.CreatePolicy)).Methods("POST")
	apiRouter.HandleFunc("/policies/export", auth.RequirePermission(auth.PermPoliciesRead, policyHandlers.ExportPolicies)).Methods("GET")
	apiRouter.HandleFunc("/policies/import", auth.RequirePermission(auth.PermPoliciesWrite, policyHandlers.ImportPolicies)).Methods("POST")
	apiRouter.HandleFunc("/policies/{id}", auth.RequirePermission(auth.PermPoliciesRead, policyHandlers.GetPolicy)).Methods("GET")
	apiRouter.HandleFunc("/policies/{id}", auth.RequirePermission(auth.PermPoliciesWrite, policyHandlers.UpdatePolicy)).Methods("PUT")
	apiRouter.HandleFunc("/policies/{id}", auth.RequirePermission(auth.PermPoliciesWrite, policyHandlers.DeletePolicy)).Methods("DELETE")

	apiRouter.HandleFunc("/api-keys", auth.RequirePermission(auth.PermKeysManage, keyHandlers.GenerateAPIKey)).Methods("POST")
	apiRouter.HandleFunc("/api-keys", auth.RequirePermission(auth.PermKeysManage, keyHandlers.ListAPIKeys)).Methods("GET")
	apiRouter.HandleFunc("/api-keys/{id}", auth.RequirePermission(auth.PermKeysManage, keyHandlers.UpdateAPIKey)).Methods("PATCH")
	apiRouter.HandleFunc("/api-keys/{id}", auth.RequirePermission(auth.PermKeysManage, keyHandlers.RevokeAPIKey)).Methods("DELETE")

	apiRouter.HandleFunc("/webhooks", auth.RequirePermission(auth.PermWebhooksWrite, webhookHandlers.CreateWebhook)).Methods("POST")
	apiRouter.HandleFunc("/webhooks", auth.RequirePermission(auth.PermWebhooksRead, webhookHandlers.ListWebhooks)).Methods("GET")
	apiRouter.HandleFunc("/webhooks/{id}", auth.RequirePermission(auth.PermWebhooksRead, webhookHandlers.GetWebhook)).Methods("GET")
	apiRouter.HandleFunc("/webhooks/{id}", auth.RequirePermission(auth.PermWebhooksWrite, webhookHandlers.UpdateWebhook)).Methods("PATCH")
	apiRouter.HandleFunc("/webhooks/{id}", auth.RequirePermission(auth.PermWebhooksWrite, webhookHandlers.DisableWebhook)).Methods("DELETE")
	apiRouter.HandleFunc("/webhooks/{id}/test", auth.RequirePermission(auth.PermWebhooksWrite, webhookHandlers.TestWebhook)).Methods("POST")
	apiRouter.HandleFunc("/webhooks/{id}/deliveries", auth.RequirePermission(auth.PermWebhooksRead, webhookHandlers.ListDeliveries)).Methods("GET")

	apiRouter.HandleFunc("/events/ws", auth.RequirePermission(auth.PermRequestRead, eventHandlers.Stream)).Methods("GET")
	apiRouter.HandleFunc("/system", auth.RequirePermission(auth.PermSystemRead, systemHandlers.GetSystemSnapshot)).Methods("GET")

	// Expiry sweep. The conditional transition makes concurrent sweeps and
	// decides safe; the interval only affects how promptly overdue requests
	// expire.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(expirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				expired, err := coordinator.ExpireOverdue(sweepCtx, 100)
				if err != nil {
					logger.Error("Expiry sweep failed", err, nil)
				} else if expired > 0 {
					logger.Info("Expired overdue requests", map[string]interface{}{"count": expired})
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	// CORS wrapper at the handler level so preflight responses work even
	// when the router would return 404 for method mismatches. WebSocket
	// upgrades bypass it; they need the underlying connection.
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			router.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		allowed := false
		allowAll := false
		for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
			if allowedOrigin == "*" {
				allowAll = true
				allowed = true
				break
			} else if allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.CORS.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.CORS.AllowedHeaders, ", "))

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		router.ServeHTTP(w, r)
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server starting", map[string]interface{}{
			"address":   addr,
			"auth_mode": string(mode),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err, nil)
	}

	logger.Info("Server stopped", nil)
}
