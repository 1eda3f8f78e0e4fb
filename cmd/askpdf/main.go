package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"askpdf/internal/config"
	"askpdf/internal/embedding"
	"askpdf/internal/helper"
	"askpdf/internal/models"
	"askpdf/internal/parser"
	"askpdf/internal/session"
	"askpdf/internal/tui"
)

// report is what the one-shot mode prints.
type report struct {
	Document      string                    `json:"document"`
	Pages         int                       `json:"pages"`
	Chunks        int                       `json:"chunks"`
	KnowledgeBase *models.KnowledgeBaseInfo `json:"knowledge_base,omitempty"`
	Query         string                    `json:"query,omitempty"`
	Matches       []match                   `json:"matches,omitempty"`
	Notices       []string                  `json:"notices,omitempty"`
}

type match struct {
	Chunk      int     `json:"chunk"`
	Similarity float32 `json:"similarity"`
	Content    string  `json:"content"`
}

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the config file")
	filePath := flag.String("file", "", "Document to index; runs once and prints JSON instead of starting the UI")
	provider := flag.String("provider", string(embedding.KindRemote), "Embedding provider: remote or local")
	query := flag.String("query", "", "Question to search for, used with -file")
	topK := flag.Int("k", 0, "Number of chunks to return (default from config)")
	flag.Parse()

	config.LoadEnv()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ResolveCredentials()
	if *topK <= 0 {
		*topK = cfg.RAG.TopK
	}

	kind, err := embedding.ParseKind(*provider)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()
	sess := session.New(cfg.RAG, session.NewProviderFactory(cfg))
	if err := sess.SelectProvider(kind); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *filePath != "" {
		helper.SetupLogger(cfg.Log.Level, os.Stderr)
		if err := runOnce(ctx, sess, *filePath, *query, *topK); err != nil {
			log.Error().Err(err).Msg("Failed")
			os.Exit(1)
		}
		return
	}

	logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	helper.SetupLogger(cfg.Log.Level, logFile)
	log.Debug().Interface("rag", cfg.RAG).Str("provider", string(kind)).Msg("Loaded config")

	m := tui.New(ctx, sess, *topK)
	if paths, err := parser.FindDocuments("."); err != nil {
		log.Warn().Err(err).Msg("No path suggestions")
	} else {
		m = m.WithSuggestions(paths)
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Error().Err(err).Msg("UI exited with error")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, sess *session.Session, path, query string, k int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := sess.Upload(filepath.Base(path), data); err != nil {
		return err
	}

	doc := sess.Document()
	if doc == nil {
		return fmt.Errorf("%s is empty", path)
	}
	out := report{Document: doc.Name, Pages: doc.Pages, Chunks: len(sess.Chunks()), Query: query}
	if sess.State() == session.ChunksReady {
		err := sess.BuildKnowledgeBase(ctx)
		out.Notices = append(out.Notices, sess.Notices()...)
		if err != nil {
			printHints(err, out.Notices)
			return err
		}
		info := sess.KnowledgeBase().Info()
		out.KnowledgeBase = &info

		matches, err := sess.Query(ctx, query, k)
		out.Notices = append(out.Notices, sess.Notices()...)
		if err != nil {
			return err
		}
		for _, m := range matches {
			out.Matches = append(out.Matches, match{Chunk: m.Chunk.Index, Similarity: m.Similarity, Content: m.Chunk.Content})
		}
	}
	return helper.PrettyPrint(os.Stdout, out)
}

func printHints(err error, notices []string) {
	hints := notices
	var buildErr *session.BuildError
	if errors.As(err, &buildErr) {
		hints = append(hints, buildErr.Hints...)
	}
	for _, h := range hints {
		fmt.Fprintf(os.Stderr, "  - %s\n", h)
	}
}
