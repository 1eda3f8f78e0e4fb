package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"askpdf/internal/config"
	"askpdf/internal/helper"
	"askpdf/internal/llmservice"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the config file")
	flag.Parse()

	config.LoadEnv()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.SetupLogger("", os.Stderr)
		log.Fatal().Err(err).Msg("Error loading config")
	}
	cfg.ResolveCredentials()
	helper.SetupLogger(cfg.Log.Level, os.Stderr)

	answer, err := llmservice.Check(context.Background(), cfg.Remote)
	if err != nil {
		log.Fatal().Err(err).Msg("Chat completion check failed")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", llmservice.CheckQuestion)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n", answer)
}
