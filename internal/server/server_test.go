package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askpdf/internal/config"
	"askpdf/internal/embedding"
	"askpdf/internal/embedding/embeddingtest"
	"askpdf/internal/models"
	"askpdf/internal/parser/pdftest"
	"askpdf/internal/session"
)

type fixture struct {
	srv     *httptest.Server
	handler http.Handler
	remote  *embeddingtest.Stub
	local   *embeddingtest.Stub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		remote: embeddingtest.New(embedding.KindRemote),
		local:  embeddingtest.New(embedding.KindLocal),
	}
	f.remote.Label = models.RemoteProviderName
	f.local.Label = models.LocalProviderName
	factory := func(kind embedding.Kind, _ embedding.Notifier) (embedding.Provider, error) {
		if kind == embedding.KindLocal {
			return f.local, nil
		}
		return f.remote, nil
	}

	cfg := config.Default()
	cfg.RAG = config.RAGConfig{Separator: "\n", ChunkSize: 2, ChunkOverlap: 0, TopK: 3}
	cfg.Server.MaxUploadMB = 1
	store := session.NewStore(cfg.RAG, factory)
	f.handler = New(store, cfg).Handler()
	f.srv = httptest.NewServer(f.handler)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return f.send(t, req, out)
}

func (f *fixture) upload(t *testing.T, id, name string, data []byte, out any) int {
	t.Helper()
	return f.send(t, uploadRequest(t, f.srv.URL, id, name, data), out)
}

func uploadRequest(t *testing.T, base, id, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, base+"/sessions/"+id+"/document", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (f *fixture) send(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	var created map[string]string
	if code := f.do(t, http.MethodPost, "/sessions", nil, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created["state"] != "idle" || created["id"] == "" {
		t.Fatalf("created = %v", created)
	}
	return created["id"]
}

func TestSessionFlow(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	var doc documentResponse
	if code := f.upload(t, id, "letters.pdf", pdftest.Build([]string{"A", "B", "C"}), &doc); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}
	if doc.ChunkCount != 3 || len(doc.Chunks) != 3 || doc.State != "chunks_ready" {
		t.Fatalf("document = %+v", doc)
	}
	if doc.TextPreview != "A\nB\nC\n" {
		t.Errorf("preview = %q", doc.TextPreview)
	}

	var prov providerResponse
	if code := f.do(t, http.MethodPut, "/sessions/"+id+"/provider", providerRequest{Provider: "local"}, &prov); code != http.StatusOK {
		t.Fatalf("provider status = %d", code)
	}
	if prov.KnowledgeBase == nil || prov.KnowledgeBase.Vectors != 3 || prov.KnowledgeBase.Dimension != embeddingtest.Dimension {
		t.Fatalf("knowledge base = %+v", prov.KnowledgeBase)
	}
	if prov.KnowledgeBase.Provider != models.LocalProviderName {
		t.Errorf("provider = %q", prov.KnowledgeBase.Provider)
	}

	var q queryResponse
	if code := f.do(t, http.MethodPost, "/sessions/"+id+"/query", queryRequest{Query: "B", K: 1}, &q); code != http.StatusOK {
		t.Fatalf("query status = %d", code)
	}
	if len(q.Matches) != 1 || q.Matches[0].Content != "B" {
		t.Fatalf("matches = %+v", q.Matches)
	}
	if q.State != "query_answered" {
		t.Errorf("state = %q", q.State)
	}

	var summary sessionResponse
	if code := f.do(t, http.MethodGet, "/sessions/"+id, nil, &summary); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if summary.Provider != "local" || summary.Chunks != 3 || summary.Document != "letters.pdf" {
		t.Errorf("summary = %+v", summary)
	}

	if code := f.do(t, http.MethodDelete, "/sessions/"+id, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete status = %d", code)
	}
	var gone errorResponse
	if code := f.do(t, http.MethodGet, "/sessions/"+id, nil, &gone); code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", code)
	}
}

func TestQueryBuildsWithDefaultProvider(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	if code := f.upload(t, id, "notes.txt", []byte("A\nB\nC"), nil); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}

	var q queryResponse
	if code := f.do(t, http.MethodPost, "/sessions/"+id+"/query", queryRequest{Query: "C"}, &q); code != http.StatusOK {
		t.Fatalf("query status = %d", code)
	}
	if len(q.Matches) != 3 || q.Matches[0].Content != "C" {
		t.Fatalf("matches = %+v", q.Matches)
	}
	if f.remote.Calls() == 0 {
		t.Errorf("remote provider was not used")
	}
}

func TestBuildFailureReturnsHints(t *testing.T) {
	f := newFixture(t)
	f.remote.Err = errors.New("GitHub embedding error: unauthorized")
	id := f.create(t)
	if code := f.upload(t, id, "notes.txt", []byte("A\nB"), nil); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}

	var e errorResponse
	code := f.do(t, http.MethodPut, "/sessions/"+id+"/provider", providerRequest{Provider: "remote"}, &e)
	if code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", code)
	}
	if !strings.Contains(e.Error, "unauthorized") {
		t.Errorf("error = %q", e.Error)
	}
	if len(e.Hints) != len(models.RemoteTroubleshooting) || e.Hints[0] != models.RemoteTroubleshooting[0] {
		t.Errorf("hints = %v", e.Hints)
	}
}

func TestErrors(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown session", http.MethodGet, "/sessions/nope", nil, http.StatusNotFound},
		{"query before upload", http.MethodPost, "/sessions/" + id + "/query", queryRequest{Query: "A"}, http.StatusConflict},
		{"unknown provider", http.MethodPut, "/sessions/" + id + "/provider", providerRequest{Provider: "cloud"}, http.StatusBadRequest},
		{"provider before upload", http.MethodPut, "/sessions/" + id + "/provider", providerRequest{Provider: "local"}, http.StatusConflict},
		{"delete unknown", http.MethodDelete, "/sessions/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResponse
			if code := f.do(t, tt.method, tt.path, tt.body, &e); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
			if e.Error == "" {
				t.Errorf("missing error message")
			}
		})
	}
}

func TestUploadErrors(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	var e errorResponse
	if code := f.upload(t, id, "image.png", []byte("png"), &e); code != http.StatusUnsupportedMediaType {
		t.Errorf("unsupported status = %d", code)
	}
	if code := f.upload(t, id, "broken.pdf", []byte("not a pdf"), &e); code != http.StatusUnprocessableEntity {
		t.Errorf("broken pdf status = %d", code)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, uploadRequest(t, "", id, "big.txt", bytes.Repeat([]byte("a"), 2<<20)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status = %d, want 413", rec.Code)
	}
}

func TestBlankQueryReturnsNoMatches(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	if code := f.upload(t, id, "notes.txt", []byte("A\nB"), nil); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}

	var q queryResponse
	if code := f.do(t, http.MethodPost, "/sessions/"+id+"/query", queryRequest{Query: "  "}, &q); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(q.Matches) != 0 || q.State != "chunks_ready" {
		t.Errorf("response = %+v", q)
	}
}

func TestSearchFailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	if code := f.upload(t, id, "notes.txt", []byte("A\nB"), nil); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}
	if code := f.do(t, http.MethodPut, "/sessions/"+id+"/provider", providerRequest{Provider: "local"}, nil); code != http.StatusOK {
		t.Fatalf("provider status = %d", code)
	}

	f.local.Fail = true
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/query", strings.NewReader(`{"query":"A"}`))
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(e.Error, "search error") {
		t.Errorf("error = %q", e.Error)
	}
}
