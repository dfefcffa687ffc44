package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mitsukeru/internal/models"
)

const documentColumns = `id, name, path, file_type, size, created_at, last_modified, last_opened, is_pinned`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		file_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL DEFAULT 0,
		last_opened INTEGER NOT NULL DEFAULT 0,
		is_pinned INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_documents_file_type ON documents(file_type);
	CREATE INDEX IF NOT EXISTS idx_documents_recent ON documents(is_pinned DESC, last_opened DESC, last_modified DESC);
	`
	_, err := db.Exec(schema)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Path, &doc.FileType, &doc.Size,
		&doc.CreatedAt, &doc.LastModified, &doc.LastOpened, &doc.IsPinned); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpsertDocument inserts a document or refreshes its file metadata.
// LastOpened and IsPinned of an existing row are preserved.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			file_type = excluded.file_type,
			size = excluded.size,
			created_at = excluded.created_at,
			last_modified = excluded.last_modified`,
		doc.ID, doc.Name, doc.Path, doc.FileType, doc.Size,
		doc.CreatedAt, doc.LastModified, doc.LastOpened, doc.IsPinned,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, err
}

// GetDocumentByPath returns a document by its absolute path.
func (s *SQLiteStorage) GetDocumentByPath(ctx context.Context, path string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return doc, err
}

// GetDocuments returns the documents for ids in the order given. Unknown ids are skipped.
func (s *SQLiteStorage) GetDocuments(ctx context.Context, ids []string) ([]*models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	docs, err := s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]*models.Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
			delete(byID, id)
		}
	}
	return out, nil
}

// DeleteDocument removes a document by ID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListRecent returns documents ordered pinned first, then by last opened and
// last modified, newest first. An empty fileTypes matches every type.
func (s *SQLiteStorage) ListRecent(ctx context.Context, offset, limit int, fileTypes []string) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []interface{}
	if len(fileTypes) > 0 {
		query += ` WHERE file_type IN (` + placeholders(len(fileTypes)) + `)`
		for _, ft := range fileTypes {
			args = append(args, ft)
		}
	}
	query += ` ORDER BY is_pinned DESC, last_opened DESC, last_modified DESC, name ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return s.queryDocuments(ctx, query, args...)
}

// ListPaths returns the stored paths under prefix, or all paths if prefix is empty.
func (s *SQLiteStorage) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT path FROM documents`
	var args []interface{}
	if prefix != "" {
		query += ` WHERE path = ? OR instr(path, ?) = 1`
		dir := strings.TrimSuffix(prefix, string(filepath.Separator)) + string(filepath.Separator)
		args = append(args, prefix, dir)
	}
	query += ` ORDER BY path`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// MarkOpened records that the document at path was opened at the given epoch second.
func (s *SQLiteStorage) MarkOpened(ctx context.Context, path string, at int64) error {
	return s.updateByPath(ctx, `UPDATE documents SET last_opened = ? WHERE path = ?`, at, path)
}

// SetPinned pins or unpins the document at path.
func (s *SQLiteStorage) SetPinned(ctx context.Context, path string, pinned bool) error {
	return s.updateByPath(ctx, `UPDATE documents SET is_pinned = ? WHERE path = ?`, pinned, path)
}

func (s *SQLiteStorage) updateByPath(ctx context.Context, query string, value interface{}, path string) error {
	result, err := s.db.ExecContext(ctx, query, value, path)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountByFileType returns document counts keyed by file type.
func (s *SQLiteStorage) CountByFileType(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_type, COUNT(*) FROM documents GROUP BY file_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var ft string
		var n int64
		if err := rows.Scan(&ft, &n); err != nil {
			return nil, err
		}
		counts[ft] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
