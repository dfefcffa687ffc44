package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hyperjump/mitsukeru/internal/models"
	"go.uber.org/zap"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index     bleve.Index
	nameBoost float64
	logger    *zap.Logger
}

// BleveOption configures a BleveIndex.
type BleveOption func(*BleveIndex)

// WithNameBoost sets the weight of filename matches relative to body matches.
func WithNameBoost(boost float64) BleveOption {
	return func(b *BleveIndex) {
		if boost > 0 {
			b.nameBoost = boost
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) BleveOption {
	return func(b *BleveIndex) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened so unchanged files need not be re-indexed.
// If the mapping changes, remove the index directory to force a full re-index.
func NewBleveIndex(path string, opts ...BleveOption) (*BleveIndex, error) {
	b := &BleveIndex{nameBoost: DefaultNameBoost, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		b.index = index
		return b, nil
	}

	index, err := bleve.New(path, newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	b.index = index
	return b, nil
}

func newIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer lowercases and tokenizes without stemming, so prefix
	// terms line up with what the user typed.
	nameMapping := bleve.NewTextFieldMapping()
	nameMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(FieldName, nameMapping)

	bodyMapping := bleve.NewTextFieldMapping()
	bodyMapping.Analyzer = standard.Name
	bodyMapping.Store = false
	docMapping.AddFieldMappingsAt(FieldBody, bodyMapping)

	docMapping.AddFieldMappingsAt(FieldPath, bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt(FieldFileType, bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt(FieldLastModified, bleve.NewNumericFieldMapping())

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// Index adds or replaces doc under doc.ID.
func (b *BleveIndex) Index(ctx context.Context, doc *models.IndexedDocument) error {
	return b.index.Index(doc.ID, map[string]interface{}{
		FieldName:         searchableName(doc.Name),
		FieldBody:         doc.Body,
		FieldPath:         doc.Path,
		FieldFileType:     doc.FileType,
		FieldLastModified: float64(doc.LastModified),
	})
}

// searchableName splits filenames on separators the tokenizer keeps inside
// words, so "q3_budget.xlsx" indexes as "q3 budget xlsx".
func searchableName(name string) string {
	return nameSeparators.Replace(name)
}

var nameSeparators = strings.NewReplacer("_", " ", ".", " ")

// Search runs the segmented query in req and returns the hits on req.Page.
// Ties in score are broken by most recently modified.
func (b *BleveIndex) Search(ctx context.Context, req *models.SearchRequest) ([]*KeywordResult, error) {
	if req.Limit <= 0 {
		return nil, nil
	}
	q := BuildQuery(req.Query, req.FileTypes, req.DateRange, b.nameBoost)
	search := bleve.NewSearchRequestOptions(q, req.Limit, req.Offset(), false)
	search.SortBy([]string{"-_score", "-" + FieldLastModified, "_id"})
	results, err := b.index.SearchInContext(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	b.logger.Debug("keyword search",
		zap.String("query", req.Query.String()),
		zap.Int("page", req.Page),
		zap.Uint64("total", results.Total),
		zap.Int("hits", len(results.Hits)),
		zap.Duration("took", results.Took))
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
