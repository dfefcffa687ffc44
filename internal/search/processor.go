package search

import (
	"errors"

	"github.com/hyperjump/mitsukeru/internal/config"
	"github.com/hyperjump/mitsukeru/internal/models"
)

// ErrInvalidPage is returned for negative page numbers.
var ErrInvalidPage = errors.New("page must be >= 0")

// ProcessRequest validates req and applies paging limits from cfg in place.
func ProcessRequest(req *models.SearchRequest, cfg *config.SearchConfig) error {
	if req.Page < 0 {
		return ErrInvalidPage
	}
	req.Limit = cfg.ClampPageSize(req.Limit)
	ft := req.FileTypes[:0:0]
	for _, t := range req.FileTypes {
		if t = models.NormalizeFileType(t); t != "" {
			ft = append(ft, t)
		}
	}
	req.FileTypes = ft
	return nil
}
