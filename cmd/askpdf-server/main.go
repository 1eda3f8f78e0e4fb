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

	"github.com/rs/zerolog/log"

	"askpdf/internal/config"
	"askpdf/internal/helper"
	"askpdf/internal/server"
	"askpdf/internal/session"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the config file")
	addr := flag.String("addr", "", "Listen address (default from config)")
	flag.Parse()

	config.LoadEnv()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.SetupLogger("", os.Stdout)
		log.Fatal().Err(err).Msg("Error loading config")
	}
	cfg.ResolveCredentials()
	helper.SetupLogger(cfg.Log.Level, os.Stdout)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if cfg.Remote.APIKey == "" {
		log.Warn().Str("env", cfg.Remote.APIKeyEnv).Msg("No GitHub token set, remote embeddings will fail")
	}

	store := session.NewStore(cfg.RAG, session.NewProviderFactory(cfg))
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     server.New(store, cfg).Handler(),
		IdleTimeout: time.Minute,
		ReadTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}
