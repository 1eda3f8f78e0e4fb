package llmservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"askpdf/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	CheckQuestion    = "What is the capital of France?"
	checkTemperature = 1.0
	checkMaxTokens   = 256
	checkTopP        = 1.0
)

// GenerateContent sends one chat completion to the remote endpoint.
func GenerateContent(ctx context.Context, cfg config.RemoteConfig, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.ChatModel).Msg("Generating content")
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.ChatModel),
		openai.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub Models client: %w", err)
	}
	return llm.GenerateContent(ctx, messages, options...)
}

// Check asks the chat model a fixed question to verify the credential and
// the endpoint, and returns the answer.
func Check(ctx context.Context, cfg config.RemoteConfig) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ""),
		llms.TextParts(llms.ChatMessageTypeHuman, CheckQuestion),
	}
	res, err := GenerateContent(ctx, cfg, messages,
		llms.WithTemperature(checkTemperature),
		llms.WithMaxTokens(checkMaxTokens),
		llms.WithTopP(checkTopP),
	)
	if err != nil {
		return "", fmt.Errorf("GitHub chat completion failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("GitHub chat completion returned no choices")
	}
	return res.Choices[0].Content, nil
}
