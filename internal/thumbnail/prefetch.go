package thumbnail

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/mitsukeru/internal/models"
)

const defaultConcurrency = 4

var imageTypes = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"webp": true, "bmp": true, "tif": true, "tiff": true,
}

// IsImage reports whether fileType (with or without a leading dot) has a preview.
func IsImage(fileType string) bool {
	return imageTypes[strings.TrimPrefix(strings.ToLower(fileType), ".")]
}

// FetchFunc returns a base64 preview for path.
type FetchFunc func(ctx context.Context, path string) (string, error)

// Prefetcher fills a Cache with previews for image results. Each fetch runs in
// its own goroutine; failures leave the entry empty.
type Prefetcher struct {
	fetch   FetchFunc
	cache   *Cache
	keep    func(path string) bool
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]uint64
}

// PrefetcherOption configures a Prefetcher.
type PrefetcherOption func(*Prefetcher)

// WithConcurrency bounds the number of fetches running at once.
func WithConcurrency(n int) PrefetcherOption {
	return func(p *Prefetcher) {
		if n > 0 {
			p.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTimeout bounds each fetch. Zero means no timeout.
func WithTimeout(d time.Duration) PrefetcherOption {
	return func(p *Prefetcher) { p.timeout = d }
}

// WithKeep sets a filter consulted before a completed fetch is stored. Paths
// for which keep returns false are discarded.
func WithKeep(keep func(path string) bool) PrefetcherOption {
	return func(p *Prefetcher) { p.keep = keep }
}

// WithLogger sets a logger for fetch failures.
func WithLogger(l *zap.Logger) PrefetcherOption {
	return func(p *Prefetcher) { p.logger = l }
}

// NewPrefetcher returns a prefetcher writing into cache.
func NewPrefetcher(fetch FetchFunc, cache *Cache, opts ...PrefetcherOption) *Prefetcher {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Prefetcher{
		fetch:    fetch,
		cache:    cache,
		sem:      semaphore.NewWeighted(defaultConcurrency),
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prefetch starts a fetch for every image item without a cached preview. It
// does not wait for the fetches.
func (p *Prefetcher) Prefetch(items []*models.Document) {
	if p.ctx.Err() != nil {
		return
	}
	gen := p.cache.Generation()
	for _, item := range items {
		if item == nil || item.Path == "" || !IsImage(item.FileType) || p.cache.Has(item.Path) {
			continue
		}
		p.mu.Lock()
		if g, ok := p.inFlight[item.Path]; ok && g == gen {
			p.mu.Unlock()
			continue
		}
		p.inFlight[item.Path] = gen
		p.mu.Unlock()

		p.wg.Add(1)
		go p.run(item.Path, gen)
	}
}

func (p *Prefetcher) run(path string, gen uint64) {
	defer p.wg.Done()
	defer p.release(path, gen)

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)
	if p.cache.Generation() != gen {
		return
	}

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	b64, err := p.fetch(ctx, path)
	if err != nil {
		p.logger.Debug("thumbnail fetch failed", zap.String("path", path), zap.Error(err))
		return
	}
	if b64 == "" {
		return
	}
	if p.keep != nil && !p.keep(path) {
		p.logger.Debug("thumbnail dropped for stale result", zap.String("path", path))
		return
	}
	p.cache.PutIfGeneration(gen, path, b64)
}

func (p *Prefetcher) release(path string, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[path] == gen {
		delete(p.inFlight, path)
	}
}

// Wait blocks until every started fetch has finished.
func (p *Prefetcher) Wait() {
	p.wg.Wait()
}

// Close cancels outstanding fetches and waits for them to return.
func (p *Prefetcher) Close() {
	p.cancel()
	p.wg.Wait()
}
