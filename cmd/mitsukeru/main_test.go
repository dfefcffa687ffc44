package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/mitsukeru/internal/cli"
	"github.com/hyperjump/mitsukeru/internal/config"
	"github.com/hyperjump/mitsukeru/internal/dates"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/server"
	"github.com/hyperjump/mitsukeru/internal/session"
	"go.uber.org/zap"
)

func searchFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.String("output", "text", "")
	fs.Int("limit", 0, "")
	fs.Bool("verbose", false, "")
	return fs
}

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"invoice from microsoft", "-limit", "5"},
			expected: []string{"-limit", "5", "--", "invoice from microsoft"},
		},
		{
			name:     "flags first keep their order",
			args:     []string{"-limit", "5", "invoice from microsoft"},
			expected: []string{"-limit", "5", "--", "invoice from microsoft"},
		},
		{
			name:     "query only",
			args:     []string{"invoice from microsoft"},
			expected: []string{"--", "invoice from microsoft"},
		},
		{
			name:     "negated term stays in the query",
			args:     []string{"-draft", "report", "--output=json"},
			expected: []string{"--output=json", "--", "-draft", "report"},
		},
		{
			name:     "bool flag takes no value",
			args:     []string{"report", "-verbose", "notes"},
			expected: []string{"-verbose", "--", "report", "notes"},
		},
		{
			name:     "explicit separator",
			args:     []string{"a", "--", "-limit"},
			expected: []string{"--", "a", "-limit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args, searchFlagSet())
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
	if got := searchArgsReorder(nil, searchFlagSet()); len(got) != 0 {
		t.Errorf("empty args: got %v", got)
	}
}

func TestSearchArgsReorder_parses(t *testing.T) {
	fs := searchFlagSet()
	args := searchArgsReorder([]string{"hello", "-draft", `"project x"`, "-limit", "7"}, fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	if got := fs.Lookup("limit").Value.String(); got != "7" {
		t.Errorf("limit = %s", got)
	}
	if got := buildSearchQuery(fs.Args()); got != `hello -draft "project x"` {
		t.Errorf("query = %q", got)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"budget"}, "budget"},
		{"multiple words", []string{"budget", "2024"}, "budget 2024"},
		{"single quoted phrase", []string{"budget 2024"}, "budget 2024"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	chdir(t, t.TempDir())
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Server.Port != 8080 || cfg.Search.PageSize != 50 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
dates:
  order: day_first
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func TestWritePages(t *testing.T) {
	page := func(n int, exhausted bool) *models.ResultPage {
		return &models.ResultPage{Items: []*models.Document{{Name: "doc", Path: "/p"}}, Page: n, Exhausted: exhausted}
	}
	t.Run("stops when exhausted", func(t *testing.T) {
		calls := 0
		var buf bytes.Buffer
		err := writePages(&buf, cli.OutputCompact, 5,
			func() (*models.ResultPage, error) { return page(0, false), nil },
			func() (*models.ResultPage, error) { calls++; return page(calls, true), nil },
		)
		if err != nil {
			t.Fatal(err)
		}
		if calls != 1 {
			t.Errorf("more called %d times, want 1", calls)
		}
		if n := strings.Count(buf.String(), "\n"); n != 2 {
			t.Errorf("wrote %d lines, want 2", n)
		}
	})
	t.Run("stops at page count", func(t *testing.T) {
		calls := 0
		err := writePages(&bytes.Buffer{}, cli.OutputText, 1,
			func() (*models.ResultPage, error) { return page(0, false), nil },
			func() (*models.ResultPage, error) { calls++; return page(1, false), nil },
		)
		if err != nil || calls != 0 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})
	t.Run("propagates errors", func(t *testing.T) {
		boom := errors.New("boom")
		err := writePages(&bytes.Buffer{}, cli.OutputText, 3,
			func() (*models.ResultPage, error) { return page(0, false), nil },
			func() (*models.ResultPage, error) { return nil, boom },
		)
		if !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestParseQuery(t *testing.T) {
	p := parseQuery(dates.NewExtractor(), `hello -draft "project x" 2024-03-01 to 2024-03-05`)
	if p.DateRange == nil {
		t.Fatal("expected a date range")
	}
	if strings.Contains(p.Residual, "2024") {
		t.Errorf("residual = %q", p.Residual)
	}
	if len(p.Segments.Prefix) != 1 || len(p.Segments.Negated) != 1 || len(p.Segments.Quoted) != 1 {
		t.Errorf("segments = %+v", p.Segments)
	}

	p = parseQuery(dates.NewExtractor(), "plain words")
	if p.DateRange != nil || p.Residual != "plain words" {
		t.Errorf("no-date query: %+v", p)
	}
}

func TestNewDateExtractor_invalid(t *testing.T) {
	if _, err := newDateExtractor(&config.DatesConfig{Order: "sideways"}); err == nil {
		t.Error("invalid order should fail")
	}
	if _, err := newDateExtractor(&config.DatesConfig{Timezone: "Nowhere/Special"}); err == nil {
		t.Error("invalid timezone should fail")
	}
}

func testComponents(t *testing.T) (*Components, *config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "db.sqlite"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
		},
		Dates: config.DatesConfig{Order: "month_first", Timezone: "UTC"},
	}
	config.ApplyDefaults(cfg)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(filepath.Join(docs, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	return c, cfg, docs
}

func writeAndIndex(t *testing.T, c *Components, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Indexer.IndexFile(context.Background(), path, nil); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveIndexedPaths(t *testing.T) {
	c, _, docs := testComponents(t)
	ctx := context.Background()
	writeAndIndex(t, c, filepath.Join(docs, "sub", "a.txt"), "alpha")
	writeAndIndex(t, c, filepath.Join(docs, "sub", "b.txt"), "beta")
	writeAndIndex(t, c, filepath.Join(docs, "c.txt"), "gamma")

	n, err := removeIndexedPaths(ctx, c.Storage, c.Indexer, filepath.Join(docs, "sub"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	count, err := c.Storage.CountDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("remaining documents = %d, want 1", count)
	}

	n, err = removeIndexedPaths(ctx, c.Storage, c.Indexer, filepath.Join(docs, "c.txt"))
	if err != nil || n != 1 {
		t.Errorf("single file: n=%d err=%v", n, err)
	}
}

func TestWatchHandler(t *testing.T) {
	c, cfg, docs := testComponents(t)
	ctx := context.Background()
	h := watchHandler(ctx, c, cfg.Watch.Extensions, zap.NewNop())

	path := filepath.Join(docs, "watched.md")
	if err := os.WriteFile(path, []byte("watched content"), 0600); err != nil {
		t.Fatal(err)
	}
	h.IndexPath(path)
	h.IndexPath(filepath.Join(docs, "ignored.exe"))
	if n, _ := c.Storage.CountDocuments(ctx); n != 1 {
		t.Fatalf("documents after index = %d, want 1", n)
	}
	h.RemovePath(docs)
	if n, _ := c.Storage.CountDocuments(ctx); n != 0 {
		t.Errorf("documents after removing the directory = %d, want 0", n)
	}
}

func TestAPIClient(t *testing.T) {
	c, cfg, docs := testComponents(t)
	writeAndIndex(t, c, filepath.Join(docs, "report.txt"), "quarterly report")
	writeAndIndex(t, c, filepath.Join(docs, "notes.txt"), "meeting notes")

	srv := server.NewServer(c.Engine, c.Indexer, c.Storage, cfg, zap.NewNop(),
		server.WithExtractor(c.Extractor),
		server.WithSessionFactory(sessionFactory(c, cfg, zap.NewNop())),
	)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer func() { _ = srv.Stop(context.Background()) }()

	ctx := context.Background()
	client := newAPIClient(ts.URL + "/")
	id, err := client.createSession(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err = writePages(&buf, cli.OutputCompact, 10,
		func() (*models.ResultPage, error) { return client.search(ctx, id, session.Request{FileType: "txt"}) },
		func() (*models.ResultPage, error) { return client.more(ctx, id) },
	)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "report.txt") || !strings.Contains(buf.String(), "notes.txt") {
		t.Errorf("paged output missing documents:\n%s", buf.String())
	}

	page, err := client.search(ctx, id, session.Request{Query: "quarterly"})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "report.txt" {
		t.Errorf("search items: %+v", page.Items)
	}

	report, err := client.status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 2 || report.DatabasePath != cfg.Storage.DatabasePath {
		t.Errorf("status: %+v", report)
	}

	if err := client.deleteSession(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := client.more(ctx, id); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("more on deleted session: %v", err)
	}
	if _, err := client.listWatch(ctx); err == nil || !strings.Contains(err.Error(), "watch not enabled") {
		t.Errorf("listWatch without watcher: %v", err)
	}
}
