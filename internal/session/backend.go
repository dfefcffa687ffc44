package session

import (
	"context"
	"strings"

	"github.com/hyperjump/mitsukeru/internal/models"
)

// Backend is the search engine a Session drives.
type Backend interface {
	// RecentDocuments lists documents without a query, most relevant first.
	RecentDocuments(ctx context.Context, page, limit int, fileTypes []string) ([]*models.Document, error)
	// Search runs a segmented query.
	Search(ctx context.Context, req *models.SearchRequest) ([]*models.Document, error)
	// FetchThumbnail returns a base64 preview for an image document.
	FetchThumbnail(ctx context.Context, path string) (string, error)
}

// AnyFileType is the filter value meaning "no filter".
const AnyFileType = "any"

// NormalizeFileTypes turns a comma-separated filter into lowercase extensions
// without dots. "any" and empty entries are dropped; nil means no filter.
func NormalizeFileTypes(filter string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(filter, ",") {
		ft := models.NormalizeFileType(part)
		if ft == "" || ft == AnyFileType || seen[ft] {
			continue
		}
		seen[ft] = true
		out = append(out, ft)
	}
	return out
}
