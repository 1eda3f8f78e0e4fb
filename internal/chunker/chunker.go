package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"askpdf/internal/config"
	"askpdf/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("chunk overlap must be non-negative and smaller than the chunk size")
)

// Chunker splits document text into overlapping pieces of at most
// ChunkSize runes. It splits on the separator first and falls back to
// character boundaries for pieces that are still too long.
type Chunker struct {
	separator string
	size      int
	overlap   int
}

func New(cfg config.RAGConfig) *Chunker {
	return &Chunker{
		separator: cfg.Separator,
		size:      cfg.ChunkSize,
		overlap:   cfg.ChunkOverlap,
	}
}

func (c *Chunker) Validate() error {
	if c.size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.size)
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, c.overlap, c.size)
	}
	return nil
}

// Split returns the chunks of text in document order. Whitespace-only
// pieces are dropped.
func (c *Chunker) Split(text string) ([]models.Chunk, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	separators := []string{""}
	if c.separator != "" {
		separators = []string{c.separator, ""}
	}
	pieces, err := c.splitter(separators).SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	// Merging can carry the overlap into a piece that then exceeds the size.
	pieces, err = c.fit(pieces)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(pieces))
	dropped := 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			dropped++
			continue
		}
		chunks = append(chunks, models.Chunk{Index: len(chunks), Content: piece})
	}
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("Dropped blank chunks")
	}
	log.Debug().Int("chunks", len(chunks)).Int("size", c.size).Int("overlap", c.overlap).Msg("Split text")
	return chunks, nil
}

func (c *Chunker) splitter(separators []string) textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators(separators),
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
}

// fit re-splits pieces longer than the chunk size on character boundaries.
func (c *Chunker) fit(pieces []string) ([]string, error) {
	out := make([]string, 0, len(pieces))
	resplit := 0
	for _, piece := range pieces {
		if utf8.RuneCountInString(piece) <= c.size {
			out = append(out, piece)
			continue
		}
		parts, err := c.splitter([]string{""}).SplitText(piece)
		if err != nil {
			return nil, fmt.Errorf("failed to split oversized chunk: %w", err)
		}
		out = append(out, parts...)
		resplit++
	}
	if resplit > 0 {
		log.Debug().Int("resplit", resplit).Int("size", c.size).Msg("Re-split oversized chunks")
	}
	return out, nil
}
