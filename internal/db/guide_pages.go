package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultPageCacheTTL is how long a fetched guidance page is served from the
// cache. A day keeps fee and threshold figures current.
const DefaultPageCacheTTL = 24 * time.Hour

// Fetch outcomes stored in guide_pages.fetch_status.
const (
	FetchStatusSuccess  = "success"
	FetchStatusError    = "error"
	FetchStatusNotFound = "not_found" // 404, 410, 451
	FetchStatusBlocked  = "blocked"   // 403, 429
)

// GuidePage is a cached gov.uk guidance page, or the record of failing to
// fetch one.
type GuidePage struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	RouteID     *string   `json:"route_id,omitempty"`
	Title       *string   `json:"title,omitempty"`
	RawHTML     *string   `json:"-"`
	ParsedText  *string   `json:"parsed_text,omitempty"`
	ContentHash *string   `json:"content_hash,omitempty"`
	HTTPStatus  *int      `json:"http_status,omitempty"`

	FetchStatus        string     `json:"fetch_status"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	IsPermanentFailure bool       `json:"is_permanent_failure"`
	RetryCount         int        `json:"retry_count"`
	RetryAfter         *time.Time `json:"retry_after,omitempty"`

	FetchedAt      time.Time  `json:"fetched_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ClassifyHTTPStatus maps a failed fetch's HTTP status (0 for transport
// errors) to a fetch status, and reports whether retrying is pointless.
func ClassifyHTTPStatus(status int) (fetchStatus string, permanent bool) {
	switch status {
	case 404, 410:
		return FetchStatusNotFound, true
	case 451:
		return FetchStatusError, true
	case 403, 429:
		return FetchStatusBlocked, false
	default:
		return FetchStatusError, false
	}
}

// HashContent returns the hex SHA-256 of content, used to spot guidance changes.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

const guidePageColumns = `id, url, route_id, title, raw_html, parsed_text, content_hash,
	http_status, fetch_status, error_message, is_permanent_failure, retry_count, retry_after,
	fetched_at, expires_at, last_accessed_at, created_at, updated_at`

func scanGuidePage(row pgx.Row) (*GuidePage, error) {
	var p GuidePage
	err := row.Scan(&p.ID, &p.URL, &p.RouteID, &p.Title, &p.RawHTML, &p.ParsedText, &p.ContentHash,
		&p.HTTPStatus, &p.FetchStatus, &p.ErrorMessage, &p.IsPermanentFailure, &p.RetryCount, &p.RetryAfter,
		&p.FetchedAt, &p.ExpiresAt, &p.LastAccessedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetFreshGuidePage returns the successfully fetched copy of pageURL if it
// is younger than maxAge and not expired, marking it accessed. It returns
// nil when there is no such copy.
func (db *DB) GetFreshGuidePage(ctx context.Context, pageURL string, maxAge time.Duration) (*GuidePage, error) {
	page, err := scanGuidePage(db.pool.QueryRow(ctx,
		`UPDATE guide_pages SET last_accessed_at = NOW()
		 WHERE url = $1
		   AND fetch_status = 'success'
		   AND fetched_at > NOW() - make_interval(secs => $2)
		   AND (expires_at IS NULL OR expires_at > NOW())
		 RETURNING `+guidePageColumns,
		pageURL, maxAge.Seconds(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to get guide page: %w", err)
	}
	return page, nil
}

// ShouldSkipURL reports whether pageURL failed permanently or is still in
// its retry backoff, with a reason for the log.
func (db *DB) ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error) {
	var (
		permanent  bool
		errMsg     *string
		retryAfter *time.Time
	)
	err := db.pool.QueryRow(ctx,
		`SELECT is_permanent_failure, error_message, retry_after FROM guide_pages WHERE url = $1`,
		pageURL,
	).Scan(&permanent, &errMsg, &retryAfter)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, "", nil
	case err != nil:
		return false, "", fmt.Errorf("failed to check guide page: %w", err)
	case permanent && errMsg != nil:
		return true, *errMsg, nil
	case permanent:
		return true, "permanent failure", nil
	case retryAfter != nil && time.Now().Before(*retryAfter):
		return true, "retry backoff", nil
	}
	return false, "", nil
}

// UpsertGuidePage stores a successful fetch, clearing any failure state.
// It fills page.ID and the timestamps.
func (db *DB) UpsertGuidePage(ctx context.Context, page *GuidePage) error {
	var hash *string
	if page.RawHTML != nil {
		h := HashContent(*page.RawHTML)
		hash = &h
	}
	expires := page.ExpiresAt
	if expires == nil {
		t := time.Now().Add(DefaultPageCacheTTL)
		expires = &t
	}
	if page.FetchStatus == "" {
		page.FetchStatus = FetchStatusSuccess
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO guide_pages (url, route_id, title, raw_html, parsed_text, content_hash,
		                          http_status, fetch_status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (url) DO UPDATE SET
		     route_id = COALESCE(EXCLUDED.route_id, guide_pages.route_id),
		     title = EXCLUDED.title,
		     raw_html = EXCLUDED.raw_html,
		     parsed_text = EXCLUDED.parsed_text,
		     content_hash = EXCLUDED.content_hash,
		     http_status = EXCLUDED.http_status,
		     fetch_status = EXCLUDED.fetch_status,
		     error_message = NULL,
		     is_permanent_failure = FALSE,
		     retry_count = 0,
		     retry_after = NULL,
		     fetched_at = NOW(),
		     expires_at = EXCLUDED.expires_at,
		     updated_at = NOW()
		 RETURNING id, fetched_at, created_at, updated_at`,
		page.URL, page.RouteID, page.Title, page.RawHTML, page.ParsedText, hash,
		page.HTTPStatus, page.FetchStatus, expires,
	).Scan(&page.ID, &page.FetchedAt, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert guide page: %w", err)
	}
	return nil
}

// RecordFailedFetch notes a failed fetch. Transient failures back off for
// 1, 5, 25 and then 120 minutes; permanent ones are never retried.
func (db *DB) RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string) error {
	status, permanent := ClassifyHTTPStatus(httpStatus)

	_, err := db.pool.Exec(ctx,
		`INSERT INTO guide_pages (url, http_status, fetch_status, error_message, is_permanent_failure,
		                          retry_count, retry_after)
		 VALUES ($1, $2, $3, $4, $5, 1, CASE WHEN $5 THEN NULL ELSE NOW() + INTERVAL '1 minute' END)
		 ON CONFLICT (url) DO UPDATE SET
		     http_status = $2,
		     fetch_status = $3,
		     error_message = $4,
		     is_permanent_failure = $5 OR guide_pages.is_permanent_failure,
		     retry_count = guide_pages.retry_count + 1,
		     retry_after = CASE
		         WHEN $5 OR guide_pages.is_permanent_failure THEN NULL
		         ELSE NOW() + make_interval(mins => LEAST(POWER(5, LEAST(guide_pages.retry_count, 3)), 120)::int)
		     END,
		     fetched_at = NOW(),
		     updated_at = NOW()`,
		pageURL, httpStatus, status, errorMsg, permanent,
	)
	if err != nil {
		return fmt.Errorf("failed to record failed fetch: %w", err)
	}
	return nil
}

// ExpireGuidePage marks a cached page stale so the next request re-fetches it.
func (db *DB) ExpireGuidePage(ctx context.Context, pageURL string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE guide_pages SET expires_at = NOW() - INTERVAL '1 second', updated_at = NOW() WHERE url = $1`,
		pageURL,
	)
	if err != nil {
		return fmt.Errorf("failed to expire guide page: %w", err)
	}
	return nil
}
