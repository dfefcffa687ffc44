// Package search provides the local search engine behind a session: full-text
// queries on the keyword index, recent-document listings and thumbnails, all
// resolved to document metadata from storage.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/mitsukeru/internal/config"
	"github.com/hyperjump/mitsukeru/internal/keyword"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/storage"
	"github.com/hyperjump/mitsukeru/internal/thumbnail"
	"go.uber.org/zap"
)

// ErrNotImage is returned when a thumbnail is requested for a non-image document.
var ErrNotImage = errors.New("document is not an image")

// Engine runs keyword search and recent listings over indexed documents.
type Engine struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	thumbSize    int
	now          func() time.Time
	logger       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithThumbnailSize bounds the longest edge of rendered thumbnails.
func WithThumbnailSize(px int) EngineOption {
	return func(e *Engine) {
		if px > 0 {
			e.thumbSize = px
		}
	}
}

// WithClock overrides the time source used for MarkOpened.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(store storage.Storage, keywordIndex keyword.KeywordIndex, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = &config.SearchConfig{}
	}
	e := &Engine{
		storage:      store,
		keywordIndex: keywordIndex,
		config:       cfg,
		thumbSize:    thumbnail.DefaultMaxDimension,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecentDocuments lists documents pinned first, then by last opened and last
// modified. page is zero-based.
func (e *Engine) RecentDocuments(ctx context.Context, page, limit int, fileTypes []string) ([]*models.Document, error) {
	if page < 0 {
		return nil, ErrInvalidPage
	}
	limit = e.config.ClampPageSize(limit)
	docs, err := e.storage.ListRecent(ctx, page*limit, limit, fileTypes)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return docs, nil
}

// orphanPasses bounds how often Search re-runs a page after purging stale hits.
const orphanPasses = 3

// Search runs req against the keyword index and returns the matching documents
// in rank order. Hits whose metadata is gone from storage are removed from the
// keyword index and the page is re-run, so a page is only short when the
// result set really ends there.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) ([]*models.Document, error) {
	startTime := time.Now()
	r := *req
	if err := ProcessRequest(&r, e.config); err != nil {
		return nil, err
	}
	var docs []*models.Document
	for pass := 1; ; pass++ {
		hits, err := e.keywordIndex.Search(ctx, &r)
		if err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
		var orphans []string
		docs, orphans, err = e.hydrate(ctx, hits)
		if err != nil {
			return nil, err
		}
		if len(orphans) == 0 || pass == orphanPasses {
			break
		}
		e.logger.Debug("purging search hits missing from storage", zap.Int("hits", len(hits)), zap.Int("missing", len(orphans)))
		if err := e.purge(ctx, orphans); err != nil {
			e.logger.Warn("purge stale index entries", zap.Error(err))
			break
		}
	}
	e.logger.Debug("search completed",
		zap.String("query", r.Query.String()),
		zap.Int("page", r.Page),
		zap.Int("results", len(docs)),
		zap.Duration("took", time.Since(startTime)))
	return docs, nil
}

// hydrate loads the documents for hits and reports the hit ids storage does not know.
func (e *Engine) hydrate(ctx context.Context, hits []*keyword.KeywordResult) ([]*models.Document, []string, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	docs, err := e.storage.GetDocuments(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == len(ids) {
		return docs, nil, nil
	}
	found := make(map[string]bool, len(docs))
	for _, d := range docs {
		found[d.ID] = true
	}
	var orphans []string
	for _, id := range ids {
		if !found[id] {
			orphans = append(orphans, id)
		}
	}
	return docs, orphans, nil
}

func (e *Engine) purge(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := e.keywordIndex.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return nil
}

// FetchThumbnail renders a base64 JPEG preview of the indexed image at path.
func (e *Engine) FetchThumbnail(ctx context.Context, path string) (string, error) {
	doc, err := e.storage.GetDocumentByPath(ctx, path)
	if err != nil {
		return "", err
	}
	if !thumbnail.IsImage(doc.FileType) {
		return "", fmt.Errorf("%w: %s", ErrNotImage, path)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return thumbnail.Render(doc.Path, e.thumbSize)
}

// MarkOpened records that the document at path was opened now.
func (e *Engine) MarkOpened(ctx context.Context, path string) error {
	return e.storage.MarkOpened(ctx, path, e.now().Unix())
}

// SetPinned pins or unpins the document at path.
func (e *Engine) SetPinned(ctx context.Context, path string, pinned bool) error {
	return e.storage.SetPinned(ctx, path, pinned)
}

// Status summarizes the indexed corpus.
type Status struct {
	Documents  int64            `json:"documents"`
	Indexed    uint64           `json:"indexed"`
	ByFileType map[string]int64 `json:"by_file_type"`
}

// Status returns document counts from storage and the keyword index.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	n, err := e.storage.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	byType, err := e.storage.CountByFileType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by file type: %w", err)
	}
	indexed, err := e.keywordIndex.DocCount()
	if err != nil {
		return nil, fmt.Errorf("keyword doc count: %w", err)
	}
	return &Status{Documents: n, Indexed: indexed, ByFileType: byType}, nil
}
