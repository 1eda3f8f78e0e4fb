package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"askpdf/internal/config"
	"askpdf/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const warmupText = "warm up"

// LocalProvider embeds with a model served by a local Ollama process. The
// client is created on first use and the model is loaded with one warm-up
// request; the model itself has to be pulled beforehand.
type LocalProvider struct {
	cfg        config.LLMConfig
	httpClient *http.Client

	mu       sync.Mutex
	embedder *embeddings.EmbedderImpl
	dims     dimension
}

func NewLocalProvider(cfg config.LLMConfig) (*LocalProvider, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid Ollama url %q: %w", cfg.BaseURL, err)
	}
	return &LocalProvider{cfg: cfg, httpClient: &http.Client{}}, nil
}

func (p *LocalProvider) Kind() Kind    { return KindLocal }
func (p *LocalProvider) Name() string  { return models.LocalProviderName }
func (p *LocalProvider) Model() string { return p.cfg.Model }

func (p *LocalProvider) Description() string {
	return fmt.Sprintf("%s (%d dimensions)", p.cfg.Model, p.dims.get(p.cfg.Dimensions))
}

func (p *LocalProvider) load(ctx context.Context) (*embeddings.EmbedderImpl, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedder != nil {
		return p.embedder, nil
	}

	llm, err := ollama.New(
		ollama.WithServerURL(p.cfg.BaseURL),
		ollama.WithModel(p.cfg.Model),
		ollama.WithKeepAlive(p.cfg.KeepAlive),
		ollama.WithHTTPClient(p.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama embedder: %w", err)
	}

	// load the model into the Ollama process
	if _, err := embedder.EmbedDocuments(ctx, []string{warmupText}); err != nil {
		return nil, fmt.Errorf("failed to load model %s (run `ollama pull %s`): %w", p.cfg.Model, p.cfg.Model, err)
	}
	log.Info().Str("model", p.cfg.Model).Str("base_url", p.cfg.BaseURL).Msg("Loaded local embedding model")

	p.embedder = embedder
	return embedder, nil
}

func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	embedder, err := p.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	vecs, err := embedder.EmbedDocuments(ctx, slices.Clone(texts))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to embed documents: %w", p.Name(), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%s: got %d vectors for %d texts", p.Name(), len(vecs), len(texts))
	}
	if err := p.dims.check(vecs); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	return vecs, nil
}

func (p *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
