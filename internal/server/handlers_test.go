package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/mitsukeru/internal/config"
	"github.com/hyperjump/mitsukeru/internal/extract"
	"github.com/hyperjump/mitsukeru/internal/fileid"
	"github.com/hyperjump/mitsukeru/internal/indexer"
	"github.com/hyperjump/mitsukeru/internal/keyword"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/search"
	"github.com/hyperjump/mitsukeru/internal/session"
	"github.com/hyperjump/mitsukeru/internal/storage"
	"go.uber.org/zap"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	store   storage.Storage
	idx     *indexer.Indexer
	cfg     *config.Config
	docs    string
}

func newTestServer(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "db.sqlite"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
		},
		Search: config.SearchConfig{PageSize: 50, MaxPageSize: 500},
		Watch:  config.WatchConfig{Extensions: []string{".txt", ".md"}},
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	engine := search.NewEngine(store, kw, &cfg.Search)
	idx := indexer.NewIndexer(store, kw, extract.NewExtractor())
	srv := NewServer(engine, idx, store, cfg, zap.NewNop(), opts...)
	t.Cleanup(srv.sessions.closeAll)

	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	return &testEnv{srv: srv, handler: srv.Handler(), store: store, idx: idx, cfg: cfg, docs: docs}
}

func (e *testEnv) addFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.docs, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := e.idx.IndexFile(context.Background(), path, nil); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: got %d", w.Code)
	}
	var out struct {
		ID string `json:"id"`
	}
	decode(t, w, &out)
	if out.ID == "" {
		t.Fatal("empty session id")
	}
	return out.ID
}

func TestHandleHealth(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleParse(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/api/v1/parse",
		map[string]string{"query": `hello -draft "project x" 2024-03-01 to 2024-03-05`})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out parseResponse
	decode(t, w, &out)
	if out.DateRange == nil {
		t.Fatal("expected a date range")
	}
	if strings.Contains(out.Residual, "2024") {
		t.Errorf("residual still holds the date: %q", out.Residual)
	}
	seg := out.Segments
	if len(seg.Prefix) != 1 || seg.Prefix[0].Text != "hello" {
		t.Errorf("prefix: %+v", seg.Prefix)
	}
	if len(seg.Negated) != 1 || seg.Negated[0].Text != "draft" {
		t.Errorf("negated: %+v", seg.Negated)
	}
	if len(seg.Quoted) != 1 || seg.Quoted[0].Text != "project x" {
		t.Errorf("quoted: %+v", seg.Quoted)
	}
	if out.Rendered == "" {
		t.Error("rendered query is empty")
	}
}

func TestHandleParse_InvalidBody(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodPost, "/api/v1/parse", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestServer(t)
	env.addFile(t, "report.txt", "quarterly report")
	env.addFile(t, "notes.txt", "meeting minutes")
	id := env.createSession(t)
	base := "/api/v1/sessions/" + id

	w := env.do(t, http.MethodPost, base+"/search", session.Request{Query: "report"})
	if w.Code != http.StatusOK {
		t.Fatalf("search: got %d: %s", w.Code, w.Body.String())
	}
	var page models.ResultPage
	decode(t, w, &page)
	if len(page.Items) != 1 || page.Items[0].Name != "report.txt" {
		t.Fatalf("search items: %+v", page.Items)
	}
	if !page.Exhausted {
		t.Error("short first page should exhaust the session")
	}

	w = env.do(t, http.MethodPost, base+"/more", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("more: got %d", w.Code)
	}
	page = models.ResultPage{}
	decode(t, w, &page)
	if len(page.Items) != 0 || !page.Exhausted || page.Total != 1 {
		t.Errorf("more on exhausted session: %+v", page)
	}

	w = env.do(t, http.MethodGet, base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	var st session.State
	decode(t, w, &st)
	if st.Query != "report" || len(st.Results) != 1 || st.Mode != session.ModeSearch {
		t.Errorf("state: %+v", st)
	}

	if w := env.do(t, http.MethodDelete, base, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", w.Code)
	}
}

func TestSession_RecentDocuments(t *testing.T) {
	env := newTestServer(t)
	env.addFile(t, "a.txt", "alpha")
	env.addFile(t, "b.md", "beta")
	id := env.createSession(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/search", session.Request{Query: "  ", FileType: "any"})
	if w.Code != http.StatusOK {
		t.Fatalf("search: got %d", w.Code)
	}
	var page models.ResultPage
	decode(t, w, &page)
	if len(page.Items) != 2 {
		t.Errorf("recent documents: got %d items", len(page.Items))
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/search", session.Request{FileType: "md"})
	page = models.ResultPage{}
	decode(t, w, &page)
	if len(page.Items) != 1 || page.Items[0].Name != "b.md" {
		t.Errorf("filtered recent documents: %+v", page.Items)
	}
}

func TestSession_Errors(t *testing.T) {
	env := newTestServer(t)
	id := env.createSession(t)

	tests := []struct {
		name   string
		method string
		target string
		body   interface{}
		want   int
	}{
		{"unknown session more", http.MethodPost, "/api/v1/sessions/nope/more", nil, http.StatusNotFound},
		{"unknown session delete", http.MethodDelete, "/api/v1/sessions/nope", nil, http.StatusNotFound},
		{"more before search", http.MethodPost, "/api/v1/sessions/" + id + "/more", nil, http.StatusBadRequest},
		{"invalid search body", http.MethodPost, "/api/v1/sessions/" + id + "/search", "[", http.StatusBadRequest},
		{"thumbnail without path", http.MethodGet, "/api/v1/sessions/" + id + "/thumbnail", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.target, tt.body)
			if w.Code != tt.want {
				t.Errorf("got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSession_ThumbnailPlaceholder(t *testing.T) {
	env := newTestServer(t)
	id := env.createSession(t)
	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/thumbnail?path=/tmp/x.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var th models.Thumbnail
	decode(t, w, &th)
	if th.Path != "/tmp/x.png" || th.Base64 != "" {
		t.Errorf("thumbnail: %+v", th)
	}
}

func TestDocumentOpenAndPin(t *testing.T) {
	env := newTestServer(t)
	env.addFile(t, "first.txt", "one")
	second := env.addFile(t, "second.txt", "two")

	if w := env.do(t, http.MethodPost, "/api/v1/documents/pin", map[string]interface{}{"path": second, "pinned": true}); w.Code != http.StatusOK {
		t.Fatalf("pin: got %d", w.Code)
	}
	id := env.createSession(t)
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/search", session.Request{})
	var page models.ResultPage
	decode(t, w, &page)
	if len(page.Items) != 2 || page.Items[0].Path != second {
		t.Errorf("pinned document should lead recent documents: %+v", page.Items)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/documents/open", map[string]string{"path": second}); w.Code != http.StatusOK {
		t.Errorf("open: got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/documents/open", map[string]string{"path": "/missing.txt"}); w.Code != http.StatusNotFound {
		t.Errorf("open unknown: got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/documents/pin", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("pin without path: got %d", w.Code)
	}
}

func TestGetAndDeleteDocument(t *testing.T) {
	env := newTestServer(t)
	path := env.addFile(t, "keep.txt", "content")
	id := fileid.ForPath(path)

	w := env.do(t, http.MethodGet, "/api/v1/documents/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	var doc models.Document
	decode(t, w, &doc)
	if doc.Path != path {
		t.Errorf("path: got %q want %q", doc.Path, path)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/documents/"+id, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/documents/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", w.Code)
	}
}

func TestHandleIndex(t *testing.T) {
	env := newTestServer(t)
	if err := os.WriteFile(filepath.Join(env.docs, "new.txt"), []byte("fresh"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.docs, "skip.bin"), []byte{0, 1}, 0600); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/api/v1/index", map[string]string{"path": env.docs})
	if w.Code != http.StatusOK {
		t.Fatalf("index dir: got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Stats indexer.Stats `json:"stats"`
	}
	decode(t, w, &out)
	if out.Stats.Indexed != 1 {
		t.Errorf("indexed: got %+v", out.Stats)
	}

	w = env.do(t, http.MethodPost, "/api/v1/index", map[string]string{"path": filepath.Join(env.docs, "skip.bin")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("filtered extension: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/index", map[string]string{"path": filepath.Join(env.docs, "nope.txt")})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing path: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestServer(t)
	env.addFile(t, "a.txt", "alpha")
	env.addFile(t, "b.md", "beta")
	env.createSession(t)

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Documents      int64            `json:"documents"`
		Indexed        uint64           `json:"indexed"`
		ByFileType     map[string]int64 `json:"by_file_type"`
		Sessions       int              `json:"sessions"`
		DiskUsageBytes *int64           `json:"disk_usage_bytes"`
	}
	decode(t, w, &out)
	if out.Documents != 2 || out.Indexed != 2 {
		t.Errorf("counts: %+v", out)
	}
	if out.ByFileType["txt"] != 1 || out.ByFileType["md"] != 1 {
		t.Errorf("by file type: %v", out.ByFileType)
	}
	if out.Sessions != 1 {
		t.Errorf("sessions: got %d", out.Sessions)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes <= 0 {
		t.Error("expected positive disk_usage_bytes")
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/tmp/docs"}}
	env := newTestServer(t, WithWatch(mock, ""))

	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/docs" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleWatchDirectoriesAddRemove(t *testing.T) {
	mock := &mockWatchService{}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	env := newTestServer(t, WithWatch(mock, configPath))
	dir := t.TempDir()

	w := env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]interface{}{"path": dir, "sync": false})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d: %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 1 || mock.dirs[0] != dir {
		t.Errorf("mock dirs after add: %v", mock.dirs)
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load persisted config: %v", err)
	}
	if len(saved.Watch.Directories) != 1 {
		t.Errorf("persisted directories: %v", saved.Watch.Directories)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove: got %d", w.Code)
	}
	if len(mock.dirs) != 0 {
		t.Errorf("mock dirs after remove: %v", mock.dirs)
	}
}

func TestHandleWatchDirectoriesAdd_InvalidPath(t *testing.T) {
	env := newTestServer(t, WithWatch(&mockWatchService{}, ""))
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		body interface{}
		want int
	}{
		{map[string]string{"path": "/nonexistent/path/12345"}, http.StatusNotFound},
		{map[string]string{"path": file}, http.StatusBadRequest},
		{map[string]string{}, http.StatusBadRequest},
		{"nope", http.StatusBadRequest},
	}
	for i, tt := range tests {
		w := env.do(t, http.MethodPost, "/api/v1/watch/directories", tt.body)
		if w.Code != tt.want {
			t.Errorf("case %d: got %d, want %d", i, w.Code, tt.want)
		}
	}
}

func TestRespondFailure(t *testing.T) {
	env := newTestServer(t)
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSearchInProgress, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", session.ErrSuperseded), http.StatusConflict},
		{errUnknownSession, http.StatusNotFound},
		{fmt.Errorf("%w: id", storage.ErrNotFound), http.StatusNotFound},
		{session.ErrNoSearch, http.StatusBadRequest},
		{search.ErrNotImage, http.StatusBadRequest},
		{errors.New("search backend: boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		env.srv.respondFailure(w, tt.err)
		if w.Code != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, w.Code, tt.want)
		}
		var body map[string]string
		decode(t, w, &body)
		if body["error"] == "" {
			t.Errorf("%v: missing error message", tt.err)
		}
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	env := newTestServer(t)
	reg := newRegistry(env.srv.sessions.factory, time.Minute, zap.NewNop())
	id, _ := reg.create(10)
	if n := reg.evictIdle(); n != 0 {
		t.Errorf("fresh session evicted: %d", n)
	}
	reg.now = func() time.Time { return time.Now().Add(time.Hour) }
	if n := reg.evictIdle(); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if _, ok := reg.get(id); ok {
		t.Error("evicted session still registered")
	}

	reg = newRegistry(env.srv.sessions.factory, 0, zap.NewNop())
	reg.create(10)
	reg.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if n := reg.evictIdle(); n != 0 {
		t.Errorf("zero timeout should disable eviction, evicted %d", n)
	}
	reg.closeAll()
	if reg.len() != 0 {
		t.Errorf("closeAll left %d sessions", reg.len())
	}
}

func TestSession_PageSize(t *testing.T) {
	env := newTestServer(t)
	env.addFile(t, "a.txt", "alpha")
	env.addFile(t, "b.txt", "beta")

	w := env.do(t, http.MethodPost, "/api/v1/sessions", map[string]int{"page_size": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d", w.Code)
	}
	var created struct {
		ID    string        `json:"id"`
		State session.State `json:"state"`
	}
	decode(t, w, &created)
	if created.State.PageSize != 1 {
		t.Fatalf("page size: got %d", created.State.PageSize)
	}
	base := "/api/v1/sessions/" + created.ID

	var pages []models.ResultPage
	w = env.do(t, http.MethodPost, base+"/search", session.Request{})
	for i := 0; i < 3; i++ {
		if w.Code != http.StatusOK {
			t.Fatalf("page %d: got %d", i, w.Code)
		}
		var p models.ResultPage
		decode(t, w, &p)
		pages = append(pages, p)
		w = env.do(t, http.MethodPost, base+"/more", nil)
	}
	if len(pages[0].Items) != 1 || len(pages[1].Items) != 1 || len(pages[2].Items) != 0 {
		t.Errorf("page sizes: %d %d %d", len(pages[0].Items), len(pages[1].Items), len(pages[2].Items))
	}
	if pages[1].Exhausted || !pages[2].Exhausted {
		t.Errorf("exhaustion: %v %v", pages[1].Exhausted, pages[2].Exhausted)
	}
	if pages[0].Items[0].Path == pages[1].Items[0].Path {
		t.Error("pages repeated a document")
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions", map[string]int{"page_size": 100000})
	created = struct {
		ID    string        `json:"id"`
		State session.State `json:"state"`
	}{}
	decode(t, w, &created)
	if created.State.PageSize != 500 {
		t.Errorf("page size should clamp to max, got %d", created.State.PageSize)
	}
}
