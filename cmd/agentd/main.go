// Command agentd runs the customer-support agent backend: a REST API over
// customers, messages, tickets and agent runs, with a deterministic
// orchestration pipeline, optional OpenAI reply generation, and an optional
// Gmail draft integration.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-support-agent/internal/config"
	"github.com/tbourn/go-support-agent/internal/gmail"
	httpapi "github.com/tbourn/go-support-agent/internal/http"
	"github.com/tbourn/go-support-agent/internal/kb"
	"github.com/tbourn/go-support-agent/internal/observability"
	"github.com/tbourn/go-support-agent/internal/reply"
	"github.com/tbourn/go-support-agent/internal/repo"
	"github.com/tbourn/go-support-agent/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("database open failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	if cfg.SeedOnStart {
		counts, seeded, err := repo.Seed(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("seed failed")
		}
		if seeded {
			log.Info().
				Int("customers", counts.Customers).
				Int("messages", counts.Messages).
				Int("tickets", counts.Tickets).
				Int("events", counts.Events).
				Msg("demo data seeded")
		}
	}

	kbIndex, err := kb.Load(cfg.KBPath)
	if err != nil {
		log.Fatal().Err(err).Str("kb_path", cfg.KBPath).Msg("knowledge base load failed")
	}
	log.Info().Int("chunks", kbIndex.Len()).Str("kb_path", cfg.KBPath).Msg("knowledge base loaded")

	var gen reply.Generator
	if cfg.OpenAI.APIKey != "" {
		gen = reply.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		log.Info().Str("model", cfg.OpenAI.Model).Msg("openai reply generator enabled")
	} else {
		gen = reply.TemplateGenerator{}
		log.Info().Msg("no OPENAI_API_KEY; using template reply generator")
	}

	gm := gmail.New(gmail.Config{
		Enabled:      cfg.Gmail.Enabled,
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		RedirectURI:  cfg.Gmail.RedirectURI,
		StateSecret:  cfg.Gmail.StateSecret,
	}, db)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, kbIndex, gen, gm, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
