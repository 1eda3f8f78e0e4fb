package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"askpdf/internal/config"
	"askpdf/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrMissingCredential = errors.New("missing GitHub token")

// RemoteProvider embeds through the OpenAI-compatible GitHub Models API.
// Failures never reach the caller: they are logged, reported to the notifier
// and turned into empty results.
type RemoteProvider struct {
	cfg    config.RemoteConfig
	client embeddings.EmbedderClient
	notify Notifier
	dims   dimension
}

func NewRemoteProvider(cfg config.RemoteConfig, notify Notifier) (*RemoteProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set %s in the environment or the .env file", ErrMissingCredential, cfg.APIKeyEnv)
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub Models client: %w", err)
	}

	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.EmbeddingModel).Msg("Created remote embedding provider")
	return &RemoteProvider{cfg: cfg, client: llm, notify: notify}, nil
}

func (p *RemoteProvider) Kind() Kind    { return KindRemote }
func (p *RemoteProvider) Name() string  { return models.RemoteProviderName }
func (p *RemoteProvider) Model() string { return p.cfg.EmbeddingModel }

func (p *RemoteProvider) Description() string {
	return fmt.Sprintf("%s (%d dimensions)", p.cfg.EmbeddingModel, p.dims.get(p.cfg.Dimensions))
}

// EmbedDocuments sends all texts in one request.
func (p *RemoteProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var vecs [][]float32
	embedder, err := embeddings.NewEmbedder(p.client, embeddings.WithBatchSize(len(texts)))
	if err == nil {
		// the embedder rewrites newlines in place
		vecs, err = embedder.EmbedDocuments(ctx, slices.Clone(texts))
	}
	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts))
	}
	if err == nil {
		err = p.dims.check(vecs)
	}
	if err != nil {
		p.degrade(err)
		return [][]float32{}, nil
	}
	return vecs, nil
}

func (p *RemoteProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, _ := p.EmbedDocuments(ctx, []string{text})
	if len(vecs) == 0 {
		return []float32{}, nil
	}
	return vecs[0], nil
}

func (p *RemoteProvider) degrade(err error) {
	log.Error().Err(err).Str("provider", p.Name()).Msg("Embedding request failed")
	if p.notify != nil {
		p.notify(fmt.Sprintf("GitHub embedding error: %v", err))
	}
}
