// Package keyword provides full-text indexing and segmented-query search.
package keyword

import (
	"context"

	"github.com/hyperjump/mitsukeru/internal/models"
)

// Field names in the keyword index.
const (
	FieldName         = "name"
	FieldBody         = "body"
	FieldPath         = "path"
	FieldFileType     = "file_type"
	FieldLastModified = "last_modified"
)

// DefaultNameBoost weights filename matches over body matches.
const DefaultNameBoost = 10.0

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, doc *models.IndexedDocument) error
	// Search returns one page of hits for req, best first.
	Search(ctx context.Context, req *models.SearchRequest) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}
