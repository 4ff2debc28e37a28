package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/visa-navigator/internal/db"
)

// PageStore persists fetched pages. *db.DB implements it.
type PageStore interface {
	ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error)
	GetFreshGuidePage(ctx context.Context, pageURL string, maxAge time.Duration) (*db.GuidePage, error)
	UpsertGuidePage(ctx context.Context, page *db.GuidePage) error
	RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string) error
	ExpireGuidePage(ctx context.Context, pageURL string) error
}

// CachedFetcher wraps URL fetching with a page cache and an optional browser fallback.
type CachedFetcher struct {
	store     PageStore
	options   *Options
	cacheTTL  time.Duration
	skipCache bool
	renderer  Renderer
	logger    *slog.Logger
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL  time.Duration
	SkipCache bool
	Options   *Options
	// Renderer is used when plain HTTP yields too little text. Nil disables the fallback.
	Renderer Renderer
	Logger   *slog.Logger
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL: db.DefaultPageCacheTTL,
		Options:  DefaultOptions(),
	}
}

// NewCachedFetcher creates a new cached fetcher. store may be nil.
func NewCachedFetcher(store PageStore, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	f := &CachedFetcher{
		store:     store,
		options:   config.Options,
		cacheTTL:  config.CacheTTL,
		skipCache: config.SkipCache,
		renderer:  config.Renderer,
		logger:    config.Logger,
	}
	if f.options == nil {
		f.options = DefaultOptions()
	}
	if f.cacheTTL == 0 {
		f.cacheTTL = db.DefaultPageCacheTTL
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	Source      Source
	FromCache   bool
	UsedBrowser bool
	PageID      uuid.UUID
}

// Fetch retrieves a URL for a route, using the cache when a fresh copy exists.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr, routeID string) (*CachedResult, error) {
	source := DetectSource(urlStr)
	useCache := !f.skipCache && f.store != nil

	if useCache {
		shouldSkip, reason, err := f.store.ShouldSkipURL(ctx, urlStr)
		if err != nil {
			return nil, fmt.Errorf("failed to check skip status: %w", err)
		}
		if shouldSkip {
			return nil, &Error{URL: urlStr, Message: fmt.Sprintf("URL skipped: %s", reason)}
		}

		cached, err := f.store.GetFreshGuidePage(ctx, urlStr, f.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check cache: %w", err)
		}
		if cached != nil {
			return &CachedResult{
				Result: &Result{
					URL:        cached.URL,
					HTML:       derefString(cached.RawHTML),
					Title:      derefString(cached.Title),
					Text:       derefString(cached.ParsedText),
					StatusCode: derefInt(cached.HTTPStatus),
				},
				Source:    source,
				FromCache: true,
				PageID:    cached.ID,
			}, nil
		}
	}

	result, err := Get(ctx, urlStr, f.options)
	if err != nil {
		if f.store != nil {
			statusCode := 0
			if result != nil {
				statusCode = result.StatusCode
			}
			if recErr := f.store.RecordFailedFetch(ctx, urlStr, statusCode, err.Error()); recErr != nil {
				f.logger.Warn("failed to record failed fetch", "url", urlStr, "error", recErr)
			}
		}
		return nil, err
	}

	page, err := Extract(result.HTML, source)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to extract text", Cause: err}
	}

	usedBrowser := false
	if f.renderer != nil && needsRendering(page.Text) {
		f.logger.Info("page text too short, rendering in browser", "url", urlStr, "chars", len(page.Text))
		html, rerr := f.renderer.Render(ctx, urlStr)
		if rerr != nil {
			f.logger.Warn("browser rendering failed, keeping HTTP result", "url", urlStr, "error", rerr)
		} else if rendered, perr := Extract(html, source); perr == nil {
			result.HTML = html
			page = rendered
			usedBrowser = true
		}
	}
	result.Title = page.Title
	result.Text = page.Text

	out := &CachedResult{Result: result, Source: source, UsedBrowser: usedBrowser}
	if f.store != nil {
		var route *string
		if routeID != "" {
			route = &routeID
		}
		stored := &db.GuidePage{
			URL:         urlStr,
			RouteID:     route,
			Title:       &result.Title,
			RawHTML:     &result.HTML,
			ParsedText:  &result.Text,
			HTTPStatus:  &result.StatusCode,
			FetchStatus: db.FetchStatusSuccess,
		}
		if err := f.store.UpsertGuidePage(ctx, stored); err != nil {
			f.logger.Warn("failed to cache guide page", "url", urlStr, "error", err)
		} else {
			out.PageID = stored.ID
		}
	}

	return out, nil
}

// InvalidateCache marks a cached page as stale, forcing a re-fetch on next request.
func (f *CachedFetcher) InvalidateCache(ctx context.Context, urlStr string) error {
	if f.store == nil {
		return nil
	}
	return f.store.ExpireGuidePage(ctx, urlStr)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
