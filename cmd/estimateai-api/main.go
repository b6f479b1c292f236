// Package main is the entry point for the estimateai-api server: the
// dashboard API, the embeddable widget session API, and the voice relay.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"

	"github.com/aiolosmedia/estimateai-api/internal/config"
	"github.com/aiolosmedia/estimateai-api/internal/crypto"
	"github.com/aiolosmedia/estimateai-api/internal/database"
	"github.com/aiolosmedia/estimateai-api/internal/http/handlers"
	"github.com/aiolosmedia/estimateai-api/internal/http/mw"
	"github.com/aiolosmedia/estimateai-api/internal/logging"
	"github.com/aiolosmedia/estimateai-api/internal/repository"
	"github.com/aiolosmedia/estimateai-api/internal/service"
	"github.com/aiolosmedia/estimateai-api/internal/version"
	"github.com/aiolosmedia/estimateai-api/internal/voice"
	"github.com/aiolosmedia/estimateai-api/internal/widget"
)

func main() {
	// Local development convenience; ignored when no .env file exists.
	_ = godotenv.Load()

	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting estimateai-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if schemaVersion, err := database.GetLatestSchemaVersion(db); err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	var encryptor *crypto.Encryptor
	if cfg.EncryptionEnabled() {
		encryptor, err = crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			logger.Error("failed to initialize encryptor", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("ENCRYPTION_KEY and EMBED_TOKEN_SECRET not set - lead credentials stored in plaintext")
	}

	store := repository.NewStore(db, encryptor)
	defer func() { _ = store.Close() }()

	// Services
	llmClient := service.NewLLMClient(logger)
	fetcher := service.NewPageFetcher(logger)
	generation := service.NewGenerationService(llmClient, fetcher, service.LLMConfig{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	}, cfg.AuditModel, logger)
	dispatch := service.NewDispatchService(cfg.ResendAPIKey, logger)

	storage, err := service.NewStorageService(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if storage.IsEnabled() {
		logger.Info("collateral storage enabled", "bucket", cfg.StorageBucket)
	}

	var voiceManager *voice.Manager
	if cfg.VoiceEnabled() {
		voiceManager = voice.NewManager(voice.AgentConfig{
			URL:    cfg.VoiceAgentURL,
			APIKey: cfg.VoiceAgentKey,
			Voice:  cfg.VoiceAgentVoice,
		}, logger)
		logger.Info("voice agent enabled", "url", cfg.VoiceAgentURL, "voice", cfg.VoiceAgentVoice)
	}

	// Widget session registry with idle eviction
	registry := widget.NewRegistry(cfg.SessionTTL, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go registry.Janitor(ctx, time.Minute)

	embedTokens := mw.NewEmbedTokens(cfg.EmbedTokenSecret, cfg.EmbedTokenExpiry)
	if !cfg.AdminAuthEnabled() {
		logger.Warn("ADMIN_API_KEY not set - dashboard routes are unprotected")
	}

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	// Request timeout middleware with different timeouts per endpoint type
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:  30 * time.Second,
		Extended: 150 * time.Second,
		// Oracle-backed operations get extended timeout (page fetch + inference)
		ExtendedPatterns: []string{"/generate", "/estimate"},
		// Websocket voice relays have no timeout (managed by client disconnect)
		SkipPatterns: []string{"/voice"},
	}))

	// CORS configuration. The widget is embedded on arbitrary customer sites.
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Request size limit (10MB) - estimate photos ride along as base64 data URLs
	router.Use(middleware.RequestSize(10 * 1024 * 1024))

	// Global rate limit by IP
	router.Use(httprate.LimitByIP(120, time.Minute))

	// Global concurrency throttle - prevent system overload
	router.Use(middleware.Throttle(100))

	// Main API with OpenAPI docs
	humaConfig := huma.DefaultConfig("EstimateAI API", v.Version)
	humaConfig.Info.Description = "Configurable AI quote estimator: embeddable widget sessions, profile generation, lead dispatch, and voice relay."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Dashboard routes take the admin API key; widget routes take a signed embed token.",
		},
	}
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("EstimateAI API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Config for grouped routes (served by the main docs, no separate spec)
	groupConfig := huma.DefaultConfig("EstimateAI API", v.Version)
	groupConfig.Info.Description = humaConfig.Info.Description
	groupConfig.Servers = humaConfig.Servers
	groupConfig.DocsPath = ""
	groupConfig.OpenAPIPath = ""
	groupConfig.SchemasPath = ""

	// Health check (public, shown in docs)
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	// Kubernetes probes (hidden from docs - internal use only)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	huma.Get(hiddenAPI, "/readyz", handlers.NewReadyzHandler(store).Readyz)

	// Admin dashboard routes
	router.Group(func(r chi.Router) {
		r.Use(mw.AdminAuth(cfg.AdminAPIKey))

		adminAPI := humachi.New(r, groupConfig)

		widgetsHandler := handlers.NewWidgetsHandler(store, embedTokens, cfg.BaseURL)
		huma.Get(adminAPI, "/api/v1/widgets", widgetsHandler.ListWidgets)
		huma.Post(adminAPI, "/api/v1/widgets", widgetsHandler.CreateWidget)
		huma.Get(adminAPI, "/api/v1/widgets/{id}", widgetsHandler.GetWidget)
		huma.Put(adminAPI, "/api/v1/widgets/{id}", widgetsHandler.UpdateWidget)
		huma.Delete(adminAPI, "/api/v1/widgets/{id}", widgetsHandler.DeleteWidget)
		huma.Get(adminAPI, "/api/v1/widgets/{id}/embed", widgetsHandler.EmbedSnippet)

		generateHandler := handlers.NewGenerateHandler(generation, storage, logger)
		huma.Post(adminAPI, "/api/v1/generate/audit", generateHandler.AuditProfile)
		huma.Post(adminAPI, "/api/v1/generate/outreach", generateHandler.GenerateOutreach)
		huma.Post(adminAPI, "/api/v1/generate/proposal", generateHandler.GenerateProposal)
		huma.Post(adminAPI, "/api/v1/generate/pricing", generateHandler.GeneratePricing)

		// Raw HTTP handler for format-aware responses (non-JSON content types)
		r.Get("/api/v1/collateral/{id}/export", generateHandler.ExportCollateral)

		settingsHandler := handlers.NewSettingsHandler(store, logger)
		huma.Put(adminAPI, "/api/v1/settings/store", settingsHandler.UpdateStore)
	})

	// Public widget routes (embed-token identified)
	router.Group(func(r chi.Router) {
		r.Use(mw.EmbedAuth(embedTokens))

		widgetAPI := humachi.New(r, groupConfig)

		sessionHandler := handlers.NewSessionHandler(registry, store, generation, dispatch, voiceManager, logger)
		huma.Post(widgetAPI, "/api/v1/widget/session", sessionHandler.OpenSession)
		huma.Get(widgetAPI, "/api/v1/widget/session/{id}", sessionHandler.GetSession)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/estimate", sessionHandler.Estimate)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/upsell", sessionHandler.ToggleUpsell)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/proceed", sessionHandler.Proceed)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/advance", sessionHandler.Advance)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/retreat", sessionHandler.Retreat)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/reset", sessionHandler.Reset)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/language", sessionHandler.SetLanguage)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/question", sessionHandler.QuickQuestion)
		huma.Post(widgetAPI, "/api/v1/widget/session/{id}/close", sessionHandler.CloseSession)

		// Raw HTTP handler for the websocket voice relay
		r.Get("/api/v1/widget/session/{id}/voice", sessionHandler.VoiceRelay)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Stop the session janitor and any live voice relays
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "voice", cfg.VoiceEnabled())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
