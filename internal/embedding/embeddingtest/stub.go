// Package embeddingtest provides a deterministic embedding provider for tests.
package embeddingtest

import (
	"context"
	"strings"
	"sync"

	"askpdf/internal/embedding"
)

// Dimension is the length of every vector the stub produces.
const Dimension = 27

// Stub embeds text as its letter histogram plus a constant component, so
// texts made of the same letters are identical and no vector is zero.
type Stub struct {
	ProviderKind embedding.Kind
	Label        string
	// Fail makes every call return an empty result, like a degraded remote.
	Fail bool
	// Err is returned from every call when set.
	Err error

	mu    sync.Mutex
	calls int
}

func New(kind embedding.Kind) *Stub {
	return &Stub{ProviderKind: kind, Label: "stub " + string(kind)}
}

// Vector returns the embedding of text.
func Vector(text string) []float32 {
	v := make([]float32, Dimension)
	v[Dimension-1] = 0.01
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (s *Stub) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Fail {
		return [][]float32{}, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (s *Stub) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil || len(vecs) == 0 {
		return []float32{}, err
	}
	return vecs[0], nil
}

// Calls reports how many embedding requests were made.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Stub) Kind() embedding.Kind { return s.ProviderKind }
func (s *Stub) Name() string         { return s.Label }
func (s *Stub) Model() string        { return "letters" }
func (s *Stub) Description() string  { return "letters (27 dimensions)" }
