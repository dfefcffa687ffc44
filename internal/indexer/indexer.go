// Package indexer keeps storage and the keyword index in step with files on disk.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/hyperjump/mitsukeru/internal/extract"
	"github.com/hyperjump/mitsukeru/internal/fileid"
	"github.com/hyperjump/mitsukeru/internal/keyword"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent extraction in IndexDirectory.
const DefaultWorkers = 4

// ErrExtensionNotAllowed is returned by IndexFile for filtered-out extensions.
var ErrExtensionNotAllowed = errors.New("extension not in allowed list")

// Indexer indexes files into storage and the keyword index.
type Indexer struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	extractor    *extract.Extractor
	workers      int
	force        bool
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithWorkers sets how many files IndexDirectory extracts at once.
func WithWorkers(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// WithForce re-indexes files even when their size and mtime are unchanged.
func WithForce(force bool) IndexerOption {
	return func(idx *Indexer) { idx.force = force }
}

// NewIndexer creates an indexer with the given dependencies.
// extractor may be nil; when nil, IndexFile treats all files as plain text.
func NewIndexer(store storage.Storage, keywordIndex keyword.KeywordIndex, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:      store,
		keywordIndex: keywordIndex,
		extractor:    extractor,
		workers:      DefaultWorkers,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexFile indexes the file at path under an ID derived from its absolute path,
// so re-indexing updates the same document. If allowedExts is non-empty the
// extension must be listed (case-insensitive). Files whose size and mtime match
// the stored document are skipped; indexed reports whether work was done.
// A file whose body cannot be extracted is still indexed by name.
func (idx *Indexer) IndexFile(ctx context.Context, path string, allowedExts []string) (indexed bool, err error) {
	absPath, err := fileid.Canonical(path)
	if err != nil {
		return false, err
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return false, fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}

	docID := fileid.ForPath(absPath)
	existing, err := idx.storage.GetDocument(ctx, docID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("load document: %w", err)
	}
	if existing != nil && !idx.force && unchanged(existing, info) {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return false, nil
	}

	body, err := idx.extractContent(absPath)
	if err != nil {
		idx.logger.Debug("indexer extraction failed, indexing name only",
			zap.String("path", absPath), zap.Error(err))
		body = ""
	}

	doc := models.Document{
		ID:           docID,
		Name:         filepath.Base(absPath),
		Path:         absPath,
		FileType:     models.NormalizeFileType(ext),
		Size:         info.Size(),
		CreatedAt:    info.ModTime().Unix(),
		LastModified: info.ModTime().Unix(),
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
	}
	if err := idx.storage.UpsertDocument(ctx, &doc); err != nil {
		return false, fmt.Errorf("failed to store document: %w", err)
	}
	if err := idx.keywordIndex.Index(ctx, &models.IndexedDocument{Document: doc, Body: Preprocess(body)}); err != nil {
		return false, fmt.Errorf("failed to index keywords: %w", err)
	}
	idx.logger.Debug("indexer file indexed", zap.String("path", absPath), zap.String("doc_id", docID))
	return true, nil
}

func unchanged(doc *models.Document, info os.FileInfo) bool {
	return doc.Size == info.Size() && doc.LastModified == info.ModTime().Unix()
}

// Stats summarizes an IndexDirectory run.
type Stats struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

// IndexDirectory walks dir recursively and indexes each regular file whose
// extension is in allowedExts (all files when empty). Stored documents under
// dir whose files are gone are removed. Per-file failures are logged and
// counted; only walk and cancellation errors are returned.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string) (Stats, error) {
	var stats Stats
	absDir, err := fileid.Canonical(dir)
	if err != nil {
		return stats, err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return stats, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("not a directory: %s", absDir)
	}

	var files []string
	seen := make(map[string]bool)
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absDir {
				return walkErr
			}
			idx.logger.Debug("indexer walk error", zap.String("path", path), zap.Error(walkErr))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		seen[path] = true
		return nil
	})
	if err != nil {
		return stats, err
	}

	var indexed, skipped, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			did, err := idx.IndexFile(gctx, path, nil)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				idx.logger.Warn("indexer failed to index file", zap.String("path", path), zap.Error(err))
			case did:
				atomic.AddInt64(&indexed, 1)
			default:
				atomic.AddInt64(&skipped, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	stats.Indexed, stats.Skipped, stats.Failed = int(indexed), int(skipped), int(failed)

	stored, err := idx.storage.ListPaths(ctx, absDir)
	if err != nil {
		return stats, fmt.Errorf("list stored paths: %w", err)
	}
	for _, p := range stored {
		if seen[p] {
			continue
		}
		if _, statErr := os.Stat(p); statErr == nil {
			continue
		}
		if err := idx.DeletePath(ctx, p); err != nil {
			return stats, err
		}
		stats.Removed++
	}
	idx.logger.Debug("indexer directory done", zap.String("dir", absDir),
		zap.Int("indexed", stats.Indexed), zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed), zap.Int("removed", stats.Removed))
	return stats, nil
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := models.NormalizeFileType(ext)
	for _, a := range allowed {
		if models.NormalizeFileType(a) == extNorm {
			return true
		}
	}
	return false
}

// DeleteDocument removes a document from the keyword index and storage.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	idx.logger.Debug("indexer deleting document", zap.String("id", id))
	if err := idx.keywordIndex.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// DeletePath removes the document indexed for path, if any.
func (idx *Indexer) DeletePath(ctx context.Context, path string) error {
	absPath, err := fileid.Canonical(path)
	if err != nil {
		return err
	}
	return idx.DeleteDocument(ctx, fileid.ForPath(absPath))
}
