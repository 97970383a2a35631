// Vuddy - campus voice assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/vuddy-labs/vuddy/internal/agent"
	"github.com/vuddy-labs/vuddy/internal/api"
	"github.com/vuddy-labs/vuddy/internal/calendar"
	"github.com/vuddy-labs/vuddy/internal/config"
	"github.com/vuddy-labs/vuddy/internal/events"
	"github.com/vuddy-labs/vuddy/internal/hardware"
	"github.com/vuddy-labs/vuddy/internal/identity"
	"github.com/vuddy-labs/vuddy/internal/llm"
	"github.com/vuddy-labs/vuddy/internal/middleware"
	"github.com/vuddy-labs/vuddy/internal/profile"
	"github.com/vuddy-labs/vuddy/internal/school"
	"github.com/vuddy-labs/vuddy/internal/session"
	"github.com/vuddy-labs/vuddy/internal/store"
	"github.com/vuddy-labs/vuddy/internal/study"
	"github.com/vuddy-labs/vuddy/internal/telemetry"
	"github.com/vuddy-labs/vuddy/internal/tools"
	"github.com/vuddy-labs/vuddy/internal/tts"
	"github.com/vuddy-labs/vuddy/web"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"llm_provider", cfg.LLM.Provider,
		"hardware_mode", cfg.Hardware.Mode,
		"school", cfg.School,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "vuddy", ServiceVersion: version})
		if err != nil {
			slog.Error("Failed to initialize telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(flushCtx); err != nil {
				slog.Warn("Telemetry shutdown failed", "error", err)
			}
		}()
		slog.Info("Telemetry enabled")
	}

	// Persistence.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Data services.
	eventService := events.NewService(cfg.EventsDataPath, logger)
	slog.Info("Events loaded", "count", len(eventService.Load()))
	profiles := profile.NewService(repo, logger)
	recommender := events.NewRecommender(eventService, profiles)
	calendarService := calendar.NewService(repo)
	studyService := study.NewService(repo)
	schools := school.NewRegistry(cfg.School)

	// External collaborators.
	gateway, err := llm.New(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize reasoning gateway", "error", err)
		os.Exit(1)
	}
	probeCtx, cancelProbe := context.WithTimeout(ctx, 3*time.Second)
	if !gateway.Health(probeCtx) {
		slog.Warn("Reasoning backend not reachable yet", "provider", gateway.Name())
	}
	cancelProbe()

	synth := tts.NewElevenLabs(cfg.TTS, logger)
	sink := hardware.New(cfg.Hardware, logger)
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			slog.Warn("Failed to close actuator", "error", closeErr)
		}
	}()

	convLog, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Turn pipeline.
	dispatcher := tools.NewDispatcher(logger, tools.Builtin(tools.Services{
		Events:      eventService,
		Recommender: recommender,
		Calendar:    calendarService,
		Study:       studyService,
	})...)
	slog.Info("Tools registered", "tools", dispatcher.Names())

	orchestrator := agent.NewOrchestrator(agent.Deps{
		Gateway: gateway,
		Tools:   dispatcher,
		Synth:   synth,
		Sink:    sink,
		Profile: profiles,
		Persona: schools,
		ConvLog: convLog,
		Logger:  logger,
	})

	// Handlers.
	tracker := session.NewTracker()
	wsHandler := session.NewWebSocketHandler(session.HandlerConfig{
		Runner:         orchestrator,
		Sink:           sink,
		Persona:        schools,
		Tracker:        tracker,
		WakeWord:       cfg.WakeWord,
		LLMProvider:    gateway.Name(),
		TurnsPerMinute: cfg.RateLimit.TurnsPerMinute,
		Burst:          cfg.RateLimit.Burst,
		AllowedOrigins: cfg.CORSOrigins,
		IsDev:          cfg.IsDevelopment(),
		Logger:         logger,
	})
	healthHandler := api.NewHealthHandler(repo, gateway, tracker, api.HealthInfo{
		HardwareMode: cfg.Hardware.Mode,
		TTSEnabled:   cfg.TTS.Enabled,
		School:       schools.ActiveID,
	})
	dataHandler := api.NewDataHandler(eventService, recommender, calendarService)
	profileHandler := api.NewProfileHandler(profiles, schools)
	audioHandler := api.NewAudioHandler(synth.Dir())

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	dataHandler.RegisterRoutes(r)
	profileHandler.RegisterRoutes(r)
	audioHandler.RegisterRoutes(r)

	r.Get("/ws", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler(web.Dist()))

	// WebSocket sessions are long-lived, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...", "active_sessions", tracker.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	tracker.CloseAll("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
