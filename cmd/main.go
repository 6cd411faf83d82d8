// Package main is the entry point for chatdigest.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chatdigest/chatdigest/internal/config"
	"github.com/chatdigest/chatdigest/internal/monitoring"
	"github.com/chatdigest/chatdigest/internal/pipeline"
	"github.com/chatdigest/chatdigest/internal/store"
	"github.com/chatdigest/chatdigest/internal/summarizer"
	"github.com/chatdigest/chatdigest/internal/ultramsg"
	"github.com/chatdigest/chatdigest/internal/webhook"
)

func main() {
	// Secrets referenced by the config file may live in a local .env.
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	monitoring.Global(cfg.Logging)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx := context.Background()

	var st *store.SQLStore
	switch cfg.Storage.Driver {
	case "postgres":
		st, err = store.OpenPostgres(ctx, cfg.Storage.DSN)
	case "sqlite":
		st, err = store.OpenSQLite(ctx, cfg.Storage.DSN)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open message store")
	}

	sum, err := summarizer.New(ctx, summarizer.Config{
		APIKey:   cfg.Summarizer.APIKey,
		Model:    cfg.Summarizer.Model,
		Timeout:  cfg.Summarizer.Timeout.Std(),
		Location: cfg.Location(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create summarizer")
	}

	gateway, err := ultramsg.New(ultramsg.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		InstanceID: cfg.Gateway.InstanceID,
		Token:      cfg.Gateway.Token,
		Timeout:    cfg.Gateway.Timeout.Std(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway client")
	}

	p := pipeline.New(st, sum, gateway, cfg.Location())
	handler := webhook.NewHandler(st, p)
	server := webhook.NewServer(cfg.Server, cfg.Webhook.Path, handler)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close error")
		}
	}()

	log.Info().
		Int("port", cfg.Server.Port).
		Str("path", cfg.Webhook.Path).
		Str("storage", cfg.Storage.Driver).
		Msg("chatdigest listening")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("chatdigest stopped")
}
