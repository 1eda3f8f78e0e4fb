package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"askpdf/internal/config"
)

// Kind selects one of the two embedding back ends.
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

var (
	ErrUnknownKind       = errors.New("unknown embedding provider")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider turns texts into vectors. EmbedDocuments returns one vector per
// text, in order.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Kind() Kind
	Name() string
	Model() string
	Description() string
}

// Notifier receives user-facing messages about degraded results.
type Notifier func(msg string)

// ParseKind accepts "remote" or "local", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindRemote, KindLocal:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// NewProvider builds the provider for kind from the application config.
func NewProvider(kind Kind, cfg *config.Config, notify Notifier) (Provider, error) {
	switch kind {
	case KindRemote:
		return NewRemoteProvider(cfg.Remote, notify)
	case KindLocal:
		return NewLocalProvider(cfg.Local)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// dimension remembers the length of the first non-empty vector seen.
type dimension struct {
	mu sync.Mutex
	n  int
}

func (d *dimension) check(vecs [][]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range vecs {
		if len(v) == 0 {
			continue
		}
		if d.n == 0 {
			d.n = len(v)
			continue
		}
		if len(v) != d.n {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), d.n)
		}
	}
	return nil
}

func (d *dimension) get(fallback int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		return fallback
	}
	return d.n
}
