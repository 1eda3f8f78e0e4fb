package session

import (
	"context"
	"fmt"
	"strings"

	"askpdf/internal/chunker"
	"askpdf/internal/config"
	"askpdf/internal/embedding"
	"askpdf/internal/knowledgebase"
	"askpdf/internal/models"
	"askpdf/internal/parser"

	"github.com/rs/zerolog/log"
)

type State int

const (
	Idle State = iota
	DocumentLoaded
	ChunksReady
	KnowledgeBaseBuilt
	QueryAnswered
)

var stateNames = map[State]string{
	Idle:               "idle",
	DocumentLoaded:     "document_loaded",
	ChunksReady:        "chunks_ready",
	KnowledgeBaseBuilt: "knowledge_base_built",
	QueryAnswered:      "query_answered",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ProviderFactory creates the embedding provider for kind. notify receives
// messages about degraded results.
type ProviderFactory func(kind embedding.Kind, notify embedding.Notifier) (embedding.Provider, error)

// NewProviderFactory returns a factory backed by the real providers.
func NewProviderFactory(cfg *config.Config) ProviderFactory {
	return func(kind embedding.Kind, notify embedding.Notifier) (embedding.Provider, error) {
		return embedding.NewProvider(kind, cfg, notify)
	}
}

// Session walks one document through upload, split, indexing and queries.
// It is not safe for concurrent use.
type Session struct {
	cfg     config.RAGConfig
	factory ProviderFactory

	state    State
	doc      *models.Document
	chunks   []models.Chunk
	kind     embedding.Kind
	provider embedding.Provider
	kb       *knowledgebase.KnowledgeBase
	matches  []models.Match
	notices  []string
}

func New(cfg config.RAGConfig, factory ProviderFactory) *Session {
	return &Session{
		cfg:     cfg,
		factory: factory,
		kind:    embedding.KindRemote,
	}
}

func (s *Session) State() State                                { return s.state }
func (s *Session) Document() *models.Document                  { return s.doc }
func (s *Session) Chunks() []models.Chunk                      { return s.chunks }
func (s *Session) KnowledgeBase() *knowledgebase.KnowledgeBase { return s.kb }
func (s *Session) LastMatches() []models.Match                 { return s.matches }
func (s *Session) Provider() embedding.Kind                    { return s.kind }

// Preview returns the first n chunks.
func (s *Session) Preview(n int) []models.Chunk {
	if n > len(s.chunks) {
		n = len(s.chunks)
	}
	if n < 0 {
		n = 0
	}
	return s.chunks[:n]
}

// Notices returns and clears the messages reported by the provider since
// the last call.
func (s *Session) Notices() []string {
	out := s.notices
	s.notices = nil
	return out
}

// Upload loads and splits a new document, discarding everything derived
// from the previous one. Empty data returns the session to Idle.
func (s *Session) Upload(name string, data []byte) error {
	s.dropKnowledgeBase()
	s.doc, s.chunks, s.matches = nil, nil, nil
	s.state = Idle

	if len(data) == 0 {
		return nil
	}

	doc, err := parser.Load(name, data)
	if err != nil {
		return err
	}
	s.doc = doc
	s.state = DocumentLoaded

	chunks, err := chunker.New(s.cfg).Split(doc.Text)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		log.Warn().Str("file", name).Msg("Document has no text")
		return nil
	}
	s.chunks = chunks
	s.state = ChunksReady
	log.Info().Str("file", name).Int("chunks", len(chunks)).Msg("Document split into chunks")
	return nil
}

// SelectProvider switches the embedding back end. A knowledge base built
// with the previous one is discarded.
func (s *Session) SelectProvider(kind embedding.Kind) error {
	if _, err := embedding.ParseKind(string(kind)); err != nil {
		return err
	}
	if kind == s.kind {
		return nil
	}
	s.kind = kind
	s.provider = nil
	s.dropKnowledgeBase()
	s.matches = nil
	if s.state > ChunksReady {
		s.state = ChunksReady
	}
	log.Debug().Str("provider", string(kind)).Msg("Selected embedding provider")
	return nil
}

// BuildKnowledgeBase embeds the chunks with the selected provider. On failure
// the session stays in ChunksReady and the error is a *BuildError.
func (s *Session) BuildKnowledgeBase(ctx context.Context) error {
	if err := s.requireChunks(); err != nil {
		return err
	}

	s.dropKnowledgeBase()
	s.matches = nil
	s.state = ChunksReady

	provider, err := s.currentProvider()
	if err == nil {
		s.kb, err = knowledgebase.Build(ctx, s.chunks, provider)
	}
	if err != nil {
		name := providerName(s.kind)
		log.Error().Err(err).Str("provider", name).Msg("Failed to build knowledge base")
		return &BuildError{Provider: name, Err: err, Hints: Troubleshoot(err)}
	}
	s.state = KnowledgeBaseBuilt
	return nil
}

// Query searches the knowledge base for the k chunks nearest to q. A blank
// query does nothing. The knowledge base is built first when it is missing
// or was built with another provider.
func (s *Session) Query(ctx context.Context, q string, k int) ([]models.Match, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	if err := s.requireChunks(); err != nil {
		return nil, err
	}
	if s.kb == nil || s.kb.Provider().Kind() != s.kind {
		if err := s.BuildKnowledgeBase(ctx); err != nil {
			return nil, err
		}
	}

	matches, err := s.kb.SimilaritySearch(ctx, q, k)
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("Search failed")
		return nil, &SearchError{Query: q, Err: err}
	}
	s.matches = matches
	s.state = QueryAnswered
	return matches, nil
}

// Reset returns the session to Idle.
func (s *Session) Reset() {
	s.dropKnowledgeBase()
	s.doc, s.chunks, s.matches, s.notices = nil, nil, nil, nil
	s.state = Idle
}

func (s *Session) requireChunks() error {
	switch {
	case s.doc == nil:
		return ErrNoDocument
	case len(s.chunks) == 0:
		return ErrNoChunks
	}
	return nil
}

func (s *Session) currentProvider() (embedding.Provider, error) {
	if s.provider != nil {
		return s.provider, nil
	}
	if s.factory == nil {
		return nil, ErrNoProvider
	}
	p, err := s.factory(s.kind, s.notify)
	if err != nil {
		return nil, err
	}
	s.provider = p
	return p, nil
}

func (s *Session) notify(msg string) {
	s.notices = append(s.notices, msg)
}

func (s *Session) dropKnowledgeBase() {
	if s.kb == nil {
		return
	}
	if err := s.kb.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to drop knowledge base")
	}
	s.kb = nil
}

func providerName(kind embedding.Kind) string {
	if kind == embedding.KindLocal {
		return models.LocalProviderName
	}
	return models.RemoteProviderName
}
