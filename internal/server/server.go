package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"askpdf/internal/config"
	"askpdf/internal/embedding"
	"askpdf/internal/models"
	"askpdf/internal/parser"
	"askpdf/internal/session"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/urfave/negroni"
)

const uploadField = "file"

// Server exposes sessions over a JSON API.
type Server struct {
	store     *session.Store
	topK      int
	maxUpload int64
}

func New(store *session.Store, cfg *config.Config) *Server {
	return &Server{
		store:     store,
		topK:      cfg.RAG.TopK,
		maxUpload: cfg.Server.MaxUploadMB << 20,
	}
}

func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/document", s.uploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/provider", s.selectProvider).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/query", s.query).Methods(http.MethodPost)
	return r
}

// Handler returns the routes wrapped in the recovery and request logging
// middleware.
func (s *Server) Handler() http.Handler {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.HandlerFunc(logRequest))
	n.UseHandler(s.SetupRoutes())
	return n
}

func logRequest(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(rw, r)
	status := 0
	if nrw, ok := rw.(negroni.ResponseWriter); ok {
		status = nrw.Status()
	}
	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("Handled request")
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.Create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "state": session.Idle.String()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var resp sessionResponse
	err := s.store.With(id, func(sess *session.Session) error {
		resp = summarize(id, sess)
		return nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing form field %q: %w", uploadField, err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	var resp documentResponse
	err = s.store.With(mux.Vars(r)["id"], func(sess *session.Session) error {
		if err := sess.Upload(header.Filename, data); err != nil {
			return err
		}
		resp = documentResponse{
			Name:       header.Filename,
			State:      sess.State().String(),
			ChunkCount: len(sess.Chunks()),
			Chunks:     chunksResponse(sess.Preview(models.PreviewChunks)),
		}
		if doc := sess.Document(); doc != nil {
			resp.Pages = doc.Pages
			resp.TextPreview = previewText(doc.Text, models.TextPreviewChars)
		}
		return nil
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) selectProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	kind, err := embedding.ParseKind(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var resp providerResponse
	var notices []string
	err = s.store.With(mux.Vars(r)["id"], func(sess *session.Session) error {
		if err := sess.SelectProvider(kind); err != nil {
			return err
		}
		err := sess.BuildKnowledgeBase(r.Context())
		notices = sess.Notices()
		if err != nil {
			return err
		}
		info := sess.KnowledgeBase().Info()
		resp = providerResponse{
			Provider:      string(kind),
			State:         sess.State().String(),
			KnowledgeBase: &info,
			Notices:       notices,
		}
		return nil
	})
	if err != nil {
		writeErrorHints(w, statusFor(err), err, append(hintsFor(err), notices...))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.K <= 0 {
		req.K = s.topK
	}

	var resp queryResponse
	var notices []string
	err := s.store.With(mux.Vars(r)["id"], func(sess *session.Session) error {
		matches, err := sess.Query(r.Context(), req.Query, req.K)
		notices = sess.Notices()
		if err != nil {
			return err
		}
		resp = queryResponse{
			Query:   req.Query,
			State:   sess.State().String(),
			Matches: matchesResponse(matches),
			Notices: notices,
		}
		return nil
	})
	if err != nil {
		writeErrorHints(w, statusFor(err), err, append(hintsFor(err), notices...))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	var buildErr *session.BuildError
	var searchErr *session.SearchError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrNoChunks):
		return http.StatusConflict
	case errors.Is(err, embedding.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &buildErr), errors.As(err, &searchErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func hintsFor(err error) []string {
	var buildErr *session.BuildError
	if errors.As(err, &buildErr) {
		return append([]string(nil), buildErr.Hints...)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorHints(w, status, err, nil)
}

func writeErrorHints(w http.ResponseWriter, status int, err error, hints []string) {
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Hints: hints})
}
