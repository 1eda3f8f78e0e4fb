package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"askpdf/internal/embedding"
	"askpdf/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const DefaultTopK = 3

var (
	ErrNoChunks            = errors.New("no chunks to index")
	ErrNoEmbeddings        = errors.New("no embeddings were produced")
	ErrVectorCountMismatch = errors.New("number of vectors does not match number of chunks")
	ErrEmptyQueryVector    = errors.New("query embedding is empty")
)

// KnowledgeBase holds the chunks of one document and their vectors in an
// in-memory chromem collection. All vectors come from the same provider.
type KnowledgeBase struct {
	db         *chromem.DB
	collection *chromem.Collection
	provider   embedding.Provider
	chunks     []models.Chunk
	dimension  int
}

// Build embeds every chunk with provider in one batch and indexes the result.
func Build(ctx context.Context, chunks []models.Chunk, provider embedding.Provider) (*KnowledgeBase, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%s: %w", provider.Name(), ErrNoEmbeddings)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", ErrVectorCountMismatch, len(vecs), len(chunks))
	}
	dim := len(vecs[0])
	for i, v := range vecs {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, want %d", embedding.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	kb := &KnowledgeBase{
		db:        chromem.NewDB(),
		provider:  provider,
		chunks:    chunks,
		dimension: dim,
	}
	kb.collection, err = kb.db.CreateCollection(collectionName(provider), map[string]string{"model": provider.Model()}, kb.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        chunkID(i),
			Content:   c.Content,
			Metadata:  map[string]string{models.MetadataChunkIndex: strconv.Itoa(i)},
			Embedding: vecs[i],
		}
	}
	if err := kb.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %v", err)
	}

	log.Info().Str("provider", provider.Name()).Int("vectors", kb.Count()).Int("dimension", dim).Msg("Built knowledge base")
	return kb, nil
}

func (kb *KnowledgeBase) Count() int                   { return kb.collection.Count() }
func (kb *KnowledgeBase) Dimension() int               { return kb.dimension }
func (kb *KnowledgeBase) Provider() embedding.Provider { return kb.provider }
func (kb *KnowledgeBase) Description() string          { return kb.provider.Description() }

func (kb *KnowledgeBase) Info() models.KnowledgeBaseInfo {
	return models.KnowledgeBaseInfo{
		Provider:  kb.provider.Name(),
		Model:     kb.provider.Model(),
		Vectors:   kb.Count(),
		Dimension: kb.dimension,
		Chunks:    len(kb.chunks),
	}
}

// SimilaritySearch returns the min(k, Count()) chunks nearest to query,
// nearest first. k <= 0 means DefaultTopK.
func (kb *KnowledgeBase) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Match, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	k = min(k, kb.Count())

	results, err := kb.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		idx, err := strconv.Atoi(r.Metadata[models.MetadataChunkIndex])
		if err != nil || idx < 0 || idx >= len(kb.chunks) {
			return nil, fmt.Errorf("corrupt chunk index %q on %s", r.Metadata[models.MetadataChunkIndex], r.ID)
		}
		matches = append(matches, models.Match{Chunk: kb.chunks[idx], Similarity: r.Similarity})
	}
	log.Debug().Str("query", query).Int("k", k).Int("matches", len(matches)).Msg("Similarity search")
	return matches, nil
}

// Close drops the collection.
func (kb *KnowledgeBase) Close() error {
	if err := kb.db.DeleteCollection(kb.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

// embeddingFunc embeds query text for chromem with the provider that built
// the collection.
func (kb *KnowledgeBase) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := kb.provider.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%s: %w", kb.provider.Name(), ErrEmptyQueryVector)
		}
		if len(vec) != kb.dimension {
			return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", embedding.ErrDimensionMismatch, len(vec), kb.dimension)
		}
		return vec, nil
	}
}

func collectionName(p embedding.Provider) string {
	return "chunks-" + string(p.Kind())
}

func chunkID(index int) string {
	return "chunk-" + strconv.Itoa(index)
}
