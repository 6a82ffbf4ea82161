package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crewmate-app/crewmate/internal/api"
	"github.com/crewmate-app/crewmate/internal/auth"
	"github.com/crewmate-app/crewmate/internal/availability"
	"github.com/crewmate-app/crewmate/internal/chat"
	"github.com/crewmate-app/crewmate/internal/config"
	"github.com/crewmate-app/crewmate/internal/convmem"
	"github.com/crewmate-app/crewmate/internal/docstore"
	"github.com/crewmate-app/crewmate/internal/grading"
	"github.com/crewmate-app/crewmate/internal/health"
	"github.com/crewmate-app/crewmate/internal/llm"
	"github.com/crewmate-app/crewmate/internal/metrics"
	"github.com/crewmate-app/crewmate/internal/orchestrator"
	"github.com/crewmate-app/crewmate/internal/persona"
	"github.com/crewmate-app/crewmate/internal/projects"
	"github.com/crewmate-app/crewmate/internal/roster"
	"github.com/crewmate-app/crewmate/internal/selector"
	"github.com/crewmate-app/crewmate/internal/tasks"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Bool("generation_enabled", cfg.GenerationEnabled()).
		Msg("starting crewmate")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Document store
	var ds docstore.Store
	switch cfg.StoreBackend {
	case "file":
		fs, fsErr := docstore.NewFileStore(cfg.StorePath, logger)
		if fsErr != nil {
			logger.Fatal().Err(fsErr).Msg("failed to open file store")
		}
		ds = fs
	default:
		ss, ssErr := docstore.NewSQLiteStore(cfg.StorePath, logger)
		if ssErr != nil {
			logger.Fatal().Err(ssErr).Msg("failed to open sqlite store")
		}
		ds = ss
	}

	// Persona catalog (built-in unless a YAML override is given)
	catalog, err := persona.Load(cfg.PersonaCatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load persona catalog")
	}

	// Metrics
	collector := metrics.New()

	// Text-completion providers. OpenAI is primary when present; Gemini
	// serves as fallback, or primary when it is the only one configured.
	var primary, fallback llm.Provider
	if cfg.OpenAIEnabled() {
		primary = llm.NewOpenAIProvider(cfg.OpenAIAPIKey, logger, llm.WithOpenAIModel(cfg.OpenAIModel))
	}
	if cfg.GeminiEnabled() {
		gem := llm.NewGeminiProvider(cfg.GeminiAPIKey, logger, llm.WithGeminiModel(cfg.GeminiModel))
		if primary == nil {
			primary = gem
		} else {
			fallback = gem
		}
	}
	failover := llm.NewFailover(primary, fallback, logger).WithMetrics(collector)
	if !failover.Configured() {
		logger.Warn().Msg("no text-completion provider configured — generation endpoints will fail")
	}

	// Stores
	reg := roster.NewRegistry(ds, logger)
	projectStore := projects.NewStore(ds, reg, catalog, logger)
	taskStore := tasks.NewStore(ds, logger)
	chatStore := chat.NewStore(ds, logger)
	conv := convmem.New()

	// Turn-taking behavior
	var policy availability.Policy
	switch cfg.AvailabilityPolicy {
	case config.AvailabilityWindowed:
		policy = availability.Windowed{}
	default:
		policy = availability.AlwaysOn{}
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	sel := selector.New(cfg.ResponderTable, rnd.Float64)

	engine := orchestrator.New(orchestrator.Options{
		Roster:    reg,
		Catalog:   catalog,
		Policy:    policy,
		Selector:  sel,
		LLM:       failover,
		Chat:      chatStore,
		Conv:      conv,
		Tasks:     taskStore,
		Metrics:   collector,
		Logger:    logger,
		TurnDelay: cfg.TurnDelay,
		WordCap:   cfg.ReplyWordCap,
		Rand:      rnd.Float64,
	})

	generator := tasks.NewGenerator(failover, logger)
	grader := grading.New(failover, logger)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("docstore", health.DocstoreCheck(ds))
	checker.Register("provider", health.ProviderCheck(failover.Configured()))

	// Auth
	var verifier auth.Verifier
	switch cfg.AuthMode {
	case "jwt":
		jv, jvErr := auth.NewJWTVerifier(cfg.AuthJWTSecret)
		if jvErr != nil {
			logger.Fatal().Err(jvErr).Msg("failed to init JWT verifier")
		}
		verifier = jv
	case "dev":
		verifier = auth.DevVerifier{}
	case "none":
		verifier = nil
	default:
		logger.Fatal().Str("auth_mode", cfg.AuthMode).Msg("invalid AUTH_MODE, expected jwt, dev or none")
	}

	handlers := api.NewHandlers(projectStore, reg, taskStore, chatStore, engine, generator, grader, policy, logger)

	server := api.NewServer(api.ServerConfig{
		ListenAddr:  fmt.Sprintf(":%d", cfg.HTTPPort),
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		Verifier: verifier,
	}, handlers, checker, collector, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Int("port", cfg.HTTPPort).Msg("API server starting")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	if err := ds.Close(); err != nil {
		logger.Error().Err(err).Msg("document store close error")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("crewmate stopped")
}
