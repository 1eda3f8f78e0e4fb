package server

import (
	"askpdf/internal/models"
	"askpdf/internal/session"
)

type errorResponse struct {
	Error string   `json:"error"`
	Hints []string `json:"hints,omitempty"`
}

type chunkResponse struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

type matchResponse struct {
	chunkResponse
	Similarity float32 `json:"similarity"`
}

type documentResponse struct {
	Name        string          `json:"name"`
	Pages       int             `json:"pages"`
	State       string          `json:"state"`
	TextPreview string          `json:"text_preview"`
	ChunkCount  int             `json:"chunk_count"`
	Chunks      []chunkResponse `json:"chunks"`
}

type providerRequest struct {
	Provider string `json:"provider"`
}

type providerResponse struct {
	Provider      string                    `json:"provider"`
	State         string                    `json:"state"`
	KnowledgeBase *models.KnowledgeBaseInfo `json:"knowledge_base"`
	Notices       []string                  `json:"notices,omitempty"`
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type queryResponse struct {
	Query   string          `json:"query"`
	State   string          `json:"state"`
	Matches []matchResponse `json:"matches"`
	Notices []string        `json:"notices,omitempty"`
}

type sessionResponse struct {
	ID            string                    `json:"id"`
	State         string                    `json:"state"`
	Provider      string                    `json:"provider"`
	Document      string                    `json:"document,omitempty"`
	Pages         int                       `json:"pages,omitempty"`
	Chunks        int                       `json:"chunks"`
	KnowledgeBase *models.KnowledgeBaseInfo `json:"knowledge_base"`
}

func chunksResponse(chunks []models.Chunk) []chunkResponse {
	out := make([]chunkResponse, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, chunkResponse{Index: c.Index, Content: c.Content})
	}
	return out
}

func matchesResponse(matches []models.Match) []matchResponse {
	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchResponse{
			chunkResponse: chunkResponse{Index: m.Chunk.Index, Content: m.Chunk.Content},
			Similarity:    m.Similarity,
		})
	}
	return out
}

func summarize(id string, s *session.Session) sessionResponse {
	resp := sessionResponse{
		ID:       id,
		State:    s.State().String(),
		Provider: string(s.Provider()),
		Chunks:   len(s.Chunks()),
	}
	if doc := s.Document(); doc != nil {
		resp.Document = doc.Name
		resp.Pages = doc.Pages
	}
	if kb := s.KnowledgeBase(); kb != nil {
		info := kb.Info()
		resp.KnowledgeBase = &info
	}
	return resp
}

func previewText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
