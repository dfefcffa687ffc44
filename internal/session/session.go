// Package session drives paginated searches against a Backend: it parses the
// raw query, tracks the page cursor and exhaustion, and prefetches thumbnails
// for image results.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mitsukeru/internal/dates"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/query"
	"github.com/hyperjump/mitsukeru/internal/thumbnail"
)

// DefaultPageSize is the number of results requested per page.
const DefaultPageSize = 50

var (
	// ErrSearchInProgress is returned by LoadMore while another call is running.
	ErrSearchInProgress = errors.New("search already in progress")
	// ErrSuperseded is returned by a call whose results were discarded because
	// NewSearch was called while it ran.
	ErrSuperseded = errors.New("search superseded by a newer query")
	// ErrNoSearch is returned by LoadMore before the first NewSearch.
	ErrNoSearch = errors.New("no search has been started")
)

// Mode is the retrieval path used for the current query.
type Mode string

const (
	ModeRecent Mode = "recent"
	ModeSearch Mode = "search"
)

// Request is a raw query as typed by the user.
type Request struct {
	Query    string `json:"query"`
	FileType string `json:"file_type,omitempty"`
	// DateRange is a range computed by an earlier parse of the same query. It is
	// reused when it matches the fresh parse.
	DateRange *models.DateRange `json:"date_range,omitempty"`
}

// State is a read-only view of a session.
type State struct {
	Query     string                `json:"query"`
	FileType  string                `json:"file_type,omitempty"`
	FileTypes []string              `json:"file_types,omitempty"`
	Mode      Mode                  `json:"mode,omitempty"`
	DateRange *models.DateRange     `json:"date_range,omitempty"`
	Segments  models.SegmentedQuery `json:"segments"`
	Page      int                   `json:"page"`
	PageSize  int                   `json:"page_size"`
	Exhausted bool                  `json:"exhausted"`
	Searching bool                  `json:"searching"`
	Results   []*models.Document    `json:"results"`
}

// Session holds the state of one search context. NewSearch may be called at
// any time and supersedes running calls; LoadMore calls must not overlap.
type Session struct {
	backend    Backend
	extractor  *dates.Extractor
	cache      *thumbnail.Cache
	prefetcher *thumbnail.Prefetcher
	pageSize   int
	logger     *zap.Logger

	thumbnails    bool
	thumbnailOpts []thumbnail.PrefetcherOption

	mu         sync.Mutex
	state      State
	paths      map[string]struct{}
	generation uint64
	inFlight   bool
	started    bool
	loaded     bool // a page of the current query has been applied
	lastUsed   time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithPageSize sets the page size. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithExtractor sets the date extractor.
func WithExtractor(e *dates.Extractor) Option {
	return func(s *Session) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithThumbnails enables background thumbnail fetching through the backend.
func WithThumbnails(opts ...thumbnail.PrefetcherOption) Option {
	return func(s *Session) {
		s.thumbnails = true
		s.thumbnailOpts = append(s.thumbnailOpts, opts...)
	}
}

// New returns an idle session.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:  backend,
		cache:    thumbnail.NewCache(),
		pageSize: DefaultPageSize,
		logger:   zap.NewNop(),
		paths:    make(map[string]struct{}),
		lastUsed: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = dates.NewExtractor()
	}
	if s.thumbnails {
		opts := append([]thumbnail.PrefetcherOption{thumbnail.WithLogger(s.logger)}, s.thumbnailOpts...)
		opts = append(opts, thumbnail.WithKeep(s.hasResult))
		s.prefetcher = thumbnail.NewPrefetcher(s.backend.FetchThumbnail, s.cache, opts...)
	}
	s.state.PageSize = s.pageSize
	return s
}

// NewSearch resets the session for req and fetches the first page.
func (s *Session) NewSearch(ctx context.Context, req Request) (*models.ResultPage, error) {
	fresh := s.extractor.Extract(req.Query)
	dr := fresh
	if req.DateRange != nil && req.DateRange.Equal(fresh) {
		dr = req.DateRange
	}
	residual := req.Query
	if dr != nil {
		residual = dr.Text
	}
	segments := query.Segment(residual)
	mode := ModeSearch
	if segments.IsEmpty() && dr == nil {
		mode = ModeRecent
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = State{
		Query:     req.Query,
		FileType:  req.FileType,
		FileTypes: NormalizeFileTypes(req.FileType),
		Mode:      mode,
		DateRange: dr,
		Segments:  segments,
		PageSize:  s.pageSize,
		Searching: true,
	}
	s.paths = make(map[string]struct{})
	s.cache.Reset()
	s.inFlight = true
	s.started = true
	s.loaded = false
	s.lastUsed = time.Now()
	call := s.callLocked(0)
	s.mu.Unlock()

	s.logger.Debug("new search",
		zap.String("query", req.Query),
		zap.String("mode", string(mode)),
		zap.Strings("file_types", call.req.FileTypes),
		zap.Stringer("segments", segments),
		zap.Bool("date_range", dr != nil),
	)
	items, err := call.run(ctx, s.backend)
	return s.complete(gen, 0, items, err)
}

// LoadMore fetches the next page of the current query and appends it. If the
// first page of the query failed, LoadMore fetches it again. An exhausted
// session returns an empty page without calling the backend.
func (s *Session) LoadMore(ctx context.Context) (*models.ResultPage, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrNoSearch
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrSearchInProgress
	}
	s.lastUsed = time.Now()
	if s.state.Exhausted {
		page := &models.ResultPage{Items: []*models.Document{}, Page: s.state.Page, Exhausted: true, Total: len(s.state.Results)}
		s.mu.Unlock()
		return page, nil
	}
	gen := s.generation
	next := 0
	if s.loaded {
		next = s.state.Page + 1
	}
	s.inFlight = true
	s.state.Searching = true
	call := s.callLocked(next)
	s.mu.Unlock()

	s.logger.Debug("load more", zap.Int("page", next))
	items, err := call.run(ctx, s.backend)
	return s.complete(gen, next, items, err)
}

// complete applies a finished backend call if it still belongs to the current query.
func (s *Session) complete(gen uint64, page int, items []*models.Document, err error) (*models.ResultPage, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	s.inFlight = false
	s.state.Searching = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("search backend failed", zap.Int("page", page), zap.Error(err))
		return nil, fmt.Errorf("search backend: %w", err)
	}

	s.state.Page = page
	s.loaded = true
	if len(items) == 0 {
		s.state.Exhausted = true
	} else {
		s.state.Results = append(s.state.Results, items...)
		for _, item := range items {
			if item != nil {
				s.paths[item.Path] = struct{}{}
			}
		}
		if len(items) < s.pageSize {
			s.state.Exhausted = true
		}
	}
	if items == nil {
		items = []*models.Document{}
	}
	result := &models.ResultPage{
		Items:     items,
		Page:      page,
		Exhausted: s.state.Exhausted,
		Total:     len(s.state.Results),
	}
	prefetcher := s.prefetcher
	s.mu.Unlock()

	if prefetcher != nil && len(items) > 0 {
		prefetcher.Prefetch(items)
	}
	return result, nil
}

// backendCall is a snapshot of the arguments for one backend request.
type backendCall struct {
	mode Mode
	req  models.SearchRequest
}

func (s *Session) callLocked(page int) backendCall {
	return backendCall{
		mode: s.state.Mode,
		req: models.SearchRequest{
			Query:     s.state.Segments,
			FileTypes: s.state.FileTypes,
			DateRange: s.state.DateRange,
			Page:      page,
			Limit:     s.pageSize,
		},
	}
}

func (c backendCall) run(ctx context.Context, b Backend) ([]*models.Document, error) {
	if c.mode == ModeRecent {
		return b.RecentDocuments(ctx, c.req.Page, c.req.Limit, c.req.FileTypes)
	}
	req := c.req
	return b.Search(ctx, &req)
}

func (s *Session) hasResult(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Results = append([]*models.Document(nil), s.state.Results...)
	if st.Results == nil {
		st.Results = []*models.Document{}
	}
	return st
}

// Thumbnail returns the cached preview for path, or an empty placeholder.
func (s *Session) Thumbnail(path string) models.Thumbnail {
	return s.cache.Get(path)
}

// WaitThumbnails blocks until running thumbnail fetches finish.
func (s *Session) WaitThumbnails() {
	if s.prefetcher != nil {
		s.prefetcher.Wait()
	}
}

// LastUsed returns when the session last served a call.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close stops background thumbnail fetches.
func (s *Session) Close() {
	if s.prefetcher != nil {
		s.prefetcher.Close()
	}
}
