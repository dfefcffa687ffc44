package search

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/mitsukeru/internal/config"
	"github.com/hyperjump/mitsukeru/internal/keyword"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/query"
	"github.com/hyperjump/mitsukeru/internal/session"
	"github.com/hyperjump/mitsukeru/internal/storage"
)

var _ session.Backend = (*Engine)(nil)

type testEnv struct {
	engine *Engine
	store  storage.Storage
	kw     keyword.KeywordIndex
	dir    string
}

func newTestEnv(t *testing.T, cfg *config.SearchConfig, opts ...EngineOption) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	if cfg == nil {
		cfg = &config.SearchConfig{PageSize: 50, MaxPageSize: 500}
	}
	return &testEnv{engine: NewEngine(store, kw, cfg, opts...), store: store, kw: kw, dir: dir}
}

func (e *testEnv) add(t *testing.T, name, body string, modified int64) *models.Document {
	t.Helper()
	ctx := context.Background()
	d := models.Document{
		ID:           "file:" + name,
		Name:         name,
		Path:         filepath.Join(e.dir, name),
		FileType:     models.NormalizeFileType(filepath.Ext(name)),
		LastModified: modified,
	}
	if err := e.store.UpsertDocument(ctx, &d); err != nil {
		t.Fatal(err)
	}
	if err := e.kw.Index(ctx, &models.IndexedDocument{Document: d, Body: body}); err != nil {
		t.Fatal(err)
	}
	return &d
}

func names(docs []*models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}

func TestEngine_Search(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.add(t, "budget 2024.xlsx", "quarterly numbers", 100)
	env.add(t, "minutes.docx", "we discussed the budget", 200)
	env.add(t, "cat.png", "", 300)

	docs, err := env.engine.Search(ctx, &models.SearchRequest{Query: query.Segment("budg"), Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	got := names(docs)
	if len(got) != 2 || got[0] != "budget 2024.xlsx" {
		t.Errorf("budg = %v, want filename match first", got)
	}

	docs, err = env.engine.Search(ctx, &models.SearchRequest{
		Query:     query.Segment("budg"),
		FileTypes: []string{".DOCX"},
		Limit:     10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := names(docs); len(got) != 1 || got[0] != "minutes.docx" {
		t.Errorf("docx filter = %v", got)
	}

	docs, err = env.engine.Search(ctx, &models.SearchRequest{
		DateRange: &models.DateRange{Start: 250, End: 400},
		Limit:     10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := names(docs); len(got) != 1 || got[0] != "cat.png" {
		t.Errorf("date-only = %v", got)
	}
}

func TestEngine_SearchSkipsHitsMissingFromStorage(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	gone := env.add(t, "report a.txt", "", 1)
	env.add(t, "report b.txt", "", 2)
	if err := env.store.DeleteDocument(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}
	docs, err := env.engine.Search(ctx, &models.SearchRequest{Query: query.Segment("report"), Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if got := names(docs); len(got) != 1 || got[0] != "report b.txt" {
		t.Errorf("got %v", got)
	}
}

func TestEngine_SearchFillsPageAfterStaleHits(t *testing.T) {
	env := newTestEnv(t, &config.SearchConfig{PageSize: 2, MaxPageSize: 10})
	ctx := context.Background()
	var added []*models.Document
	for i, n := range []string{"a", "b", "c", "d", "e"} {
		added = append(added, env.add(t, n+" note.txt", "", int64(i)))
	}
	for _, d := range added[3:] {
		if err := env.store.DeleteDocument(ctx, d.ID); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[string]bool{}
	for page, want := range []int{2, 1, 0} {
		docs, err := env.engine.Search(ctx, &models.SearchRequest{Query: query.Segment("note"), Page: page, Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != want {
			t.Errorf("page %d = %v, want %d results", page, names(docs), want)
		}
		for _, d := range docs {
			if seen[d.Name] {
				t.Errorf("page %d repeats %s", page, d.Name)
			}
			seen[d.Name] = true
		}
	}
	for _, n := range []string{"a note.txt", "b note.txt", "c note.txt"} {
		if !seen[n] {
			t.Errorf("%s never returned; got %v", n, seen)
		}
	}
	if n, err := env.kw.DocCount(); err != nil || n != 3 {
		t.Errorf("DocCount = %d, %v; want stale entries purged", n, err)
	}
}

func TestEngine_SearchClampsLimit(t *testing.T) {
	env := newTestEnv(t, &config.SearchConfig{PageSize: 2, MaxPageSize: 3})
	ctx := context.Background()
	for i, n := range []string{"a", "b", "c", "d", "e"} {
		env.add(t, n+" note.txt", "", int64(i))
	}
	docs, err := env.engine.Search(ctx, &models.SearchRequest{Query: query.Segment("note"), Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Errorf("limit 100 with max 3 returned %d", len(docs))
	}
	docs, err = env.engine.Search(ctx, &models.SearchRequest{Query: query.Segment("note")})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("default limit returned %d, want 2", len(docs))
	}
	if _, err := env.engine.Search(ctx, &models.SearchRequest{Page: -1}); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("negative page: got %v", err)
	}
}

func TestEngine_RecentDocumentsAndUserState(t *testing.T) {
	opened := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, nil, WithClock(func() time.Time { return opened }))
	ctx := context.Background()
	a := env.add(t, "a.pdf", "", 100)
	env.add(t, "b.pdf", "", 300)
	c := env.add(t, "c.txt", "", 200)

	docs, err := env.engine.RecentDocuments(ctx, 0, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(docs); len(got) != 3 || got[0] != "b.pdf" || got[1] != "c.txt" || got[2] != "a.pdf" {
		t.Errorf("by modified = %v", got)
	}

	if err := env.engine.MarkOpened(ctx, a.Path); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.SetPinned(ctx, c.Path, true); err != nil {
		t.Fatal(err)
	}
	docs, err = env.engine.RecentDocuments(ctx, 0, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(docs); len(got) != 3 || got[0] != "c.txt" || got[1] != "a.pdf" || got[2] != "b.pdf" {
		t.Errorf("after open/pin = %v", got)
	}
	if docs[1].LastOpened != opened.Unix() {
		t.Errorf("LastOpened = %d, want %d", docs[1].LastOpened, opened.Unix())
	}

	docs, err = env.engine.RecentDocuments(ctx, 1, 2, []string{"pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if got := names(docs); len(got) != 0 {
		t.Errorf("second pdf page = %v, want empty", got)
	}

	if err := env.engine.MarkOpened(ctx, "/missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MarkOpened missing: %v", err)
	}
}

func TestEngine_FetchThumbnail(t *testing.T) {
	env := newTestEnv(t, nil, WithThumbnailSize(32))
	ctx := context.Background()

	img := env.add(t, "photo.png", "", 1)
	f, err := os.Create(img.Path)
	if err != nil {
		t.Fatal(err)
	}
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	src.Set(1, 1, color.Black)
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	b64, err := env.engine.FetchThumbnail(ctx, img.Path)
	if err != nil {
		t.Fatal(err)
	}
	if b64 == "" {
		t.Error("expected thumbnail data")
	}

	txt := env.add(t, "notes.txt", "", 1)
	if _, err := env.engine.FetchThumbnail(ctx, txt.Path); !errors.Is(err, ErrNotImage) {
		t.Errorf("non-image: got %v", err)
	}
	if _, err := env.engine.FetchThumbnail(ctx, "/nope.png"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown path: got %v", err)
	}
}

func TestEngine_Status(t *testing.T) {
	env := newTestEnv(t, nil)
	env.add(t, "a.pdf", "", 1)
	env.add(t, "b.pdf", "", 1)
	env.add(t, "c.txt", "", 1)
	st, err := env.engine.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != 3 || st.Indexed != 3 || st.ByFileType["pdf"] != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestProcessRequest(t *testing.T) {
	cfg := &config.SearchConfig{PageSize: 10, MaxPageSize: 20}
	req := &models.SearchRequest{FileTypes: []string{".PDF", "", "docx"}, Limit: 50}
	if err := ProcessRequest(req, cfg); err != nil {
		t.Fatal(err)
	}
	if req.Limit != 20 {
		t.Errorf("Limit = %d, want 20", req.Limit)
	}
	if len(req.FileTypes) != 2 || req.FileTypes[0] != "pdf" || req.FileTypes[1] != "docx" {
		t.Errorf("FileTypes = %v", req.FileTypes)
	}
}
