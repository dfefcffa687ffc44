// Package storage defines the persistence interface for document metadata.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/mitsukeru/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Storage defines document metadata persistence operations.
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentByPath(ctx context.Context, path string) (*models.Document, error)
	GetDocuments(ctx context.Context, ids []string) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Listing
	ListRecent(ctx context.Context, offset, limit int, fileTypes []string) ([]*models.Document, error)
	ListPaths(ctx context.Context, prefix string) ([]string, error)

	// User state
	MarkOpened(ctx context.Context, path string, at int64) error
	SetPinned(ctx context.Context, path string, pinned bool) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountByFileType(ctx context.Context) (map[string]int64, error)

	Close() error
}
