// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

/*
client.go - History Backend API Client

This file provides the core Client struct and HTTP communication layer for
the watch-history backend (Trakt v2 API dialect).

Client Features:
  - HTTP client with configurable timeout
  - API key plus optional bearer-token authentication
  - Automatic HTTP 429 rate limit handling with exponential backoff
  - Paginated history and listing fetches with total-limit caps
  - Context support for cancellation and timeouts

Error Contract:
  - Network failures, timeouts, 5xx and exhausted 429 retries wrap
    models.ErrTransientIO
  - Undecodable payloads wrap models.ErrMalformedResponse
  - 401/403 return plain errors: credentials are operator config, retrying
    cannot fix them

Related Files:
  - types.go: wire payloads and conversions to domain records
  - breaker.go: circuit-breaker wrapper used by the pipeline
*/

//nolint:staticcheck // File documentation, not package doc
package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

const (
	// maxErrorBodySize limits how much of an error response body is read
	// for diagnostics, preventing unbounded allocation on large payloads
	maxErrorBodySize = 64 * 1024 // 64KB

	// maxPageSize is the backend's hard cap on items per page
	maxPageSize = 100

	// defaultListingLimit is the pool depth fetched when the caller does
	// not ask for a specific total
	defaultListingLimit = 100

	// castDepth bounds how many credits a title cast listing yields
	castDepth = 25
)

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// ClientInterface defines the history backend operations the pipeline
// consumes. It is implemented by Client for direct use, by BreakerClient
// for production use, and by mocks in tests.
//
// All methods accept a context for cancellation, return domain records
// rather than wire payloads, and are safe for concurrent use.
type ClientInterface interface {
	Ping(ctx context.Context) error
	FetchHistory(ctx context.Context, profileID string, contentType models.ContentType, limit int) ([]models.HistoryItem, error)
	FetchListings(ctx context.Context, category string, contentType models.ContentType) ([]models.Candidate, error)
	FetchListingsFiltered(ctx context.Context, category string, contentType models.ContentType, genres []string, total int) ([]models.Candidate, error)
	FetchRelated(ctx context.Context, contentType models.ContentType, traktID int64, limit int) ([]models.Candidate, error)
	FetchCast(ctx context.Context, contentType models.ContentType, traktID int64) ([]CastMember, error)
	FetchPersonCredits(ctx context.Context, personID int64, contentType models.ContentType) ([]models.Candidate, error)
}

// Client handles communication with the watch-history backend.
//
// History is fetched per profile via the public users endpoint; listing
// pools (recommended, trending, popular, related, filmographies) are
// account-scoped and shared across profiles. Personalized recommendations
// require the configured access token and degrade to an empty pool without
// one.
//
// Thread Safety: safe for concurrent use. Each request builds its own
// http.Request.
type Client struct {
	baseURL        string
	apiKey         string
	accessToken    string
	pageLimit      int
	historyLimit   int
	client         *http.Client
	maxRetries     int           // Maximum retries for rate limiting
	retryBaseDelay time.Duration // Base delay for exponential backoff
}

// NewClient creates a history backend client from configuration.
//
// The client is configured with a 30-second default timeout, up to 5
// retries on HTTP 429, and a 1-second base delay for exponential backoff.
func NewClient(cfg *config.HistoryConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 || pageLimit > maxPageSize {
		pageLimit = maxPageSize
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		apiKey:         cfg.APIKey,
		accessToken:    cfg.AccessToken,
		pageLimit:      pageLimit,
		historyLimit:   cfg.Limit,
		client:         &http.Client{Timeout: timeout},
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// doRequestWithRateLimit performs a GET with automatic rate limit handling.
// Implements exponential backoff for HTTP 429 responses (1s, 2s, 4s, 8s,
// 16s), honoring a Retry-After header when present. The context is used for
// cancellation during backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("trakt-api-version", "2")
		if c.apiKey != "" {
			req.Header.Set("trakt-api-key", c.apiKey)
		}
		if c.accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.accessToken)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited - close body and retry with backoff
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Retry-After (RFC 6585) overrides the computed backoff
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// getJSON is the generic request helper. It builds the URL, performs the
// rate-limited request, checks HTTP status, and decodes the JSON body into
// result. Failures are classified into the pipeline's error taxonomy and
// recorded under the given endpoint label.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, result interface{}) (header http.Header, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryRequest(endpoint, time.Since(start), err)
	}()

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	resp, reqErr := c.doRequestWithRateLimit(ctx, reqURL)
	if reqErr != nil {
		err = fmt.Errorf("%s request failed: %w: %v", endpoint, models.ErrTransientIO, reqErr)
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		err = fmt.Errorf("%s request rejected with status %d: check api key and access token", endpoint, resp.StatusCode)
		return nil, err
	case resp.StatusCode >= http.StatusInternalServerError:
		body := readBodyForError(resp.Body)
		err = fmt.Errorf("%s request failed with status %d: %w: %s", endpoint, resp.StatusCode, models.ErrTransientIO, string(body))
		return nil, err
	default:
		body := readBodyForError(resp.Body)
		err = fmt.Errorf("%s request failed with status %d: %s", endpoint, resp.StatusCode, string(body))
		return nil, err
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(result); decodeErr != nil {
		err = fmt.Errorf("failed to decode %s response: %w: %v", endpoint, models.ErrMalformedResponse, decodeErr)
		return nil, err
	}

	return resp.Header, nil
}

// paginationTotal extracts the backend's reported total item count, 0 when
// the header is absent or unparseable.
func paginationTotal(header http.Header) int {
	value := header.Get("X-Pagination-Item-Count")
	if value == "" {
		return 0
	}
	total, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return total
}

// Ping verifies connectivity by fetching a single trending title. The
// backend has no dedicated health endpoint, so the cheapest public listing
// stands in for one.
func (c *Client) Ping(ctx context.Context) error {
	var entries []trendingEntry
	params := url.Values{}
	params.Set("limit", "1")
	if _, err := c.getJSON(ctx, "ping", "/movies/trending", params, &entries); err != nil {
		return fmt.Errorf("history backend ping failed: %w", err)
	}
	return nil
}

// FetchHistory retrieves the profile's watch history for one content type,
// paging until the requested limit or the backend's total is reached.
//
// An empty profile ID targets the account the access token belongs to;
// anything else targets that profile's public history. limit <= 0 falls
// back to the configured default, where 0 still means fetch everything.
// Entries without a usable media object are dropped.
func (c *Client) FetchHistory(ctx context.Context, profileID string, contentType models.ContentType, limit int) ([]models.HistoryItem, error) {
	path := "/sync/history/" + typePath(contentType)
	if profileID != "" && profileID != "me" {
		path = "/users/" + url.PathEscape(profileID) + "/history/" + typePath(contentType)
	}
	if limit <= 0 {
		limit = c.historyLimit
	}

	perPage := c.pageLimit
	if limit > 0 && limit < perPage {
		perPage = limit
	}

	var items []models.HistoryItem
	dropped := 0
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(perPage))
		params.Set("extended", "full")

		var batch []historyEntry
		header, err := c.getJSON(ctx, "history", path, params, &batch)
		if err != nil {
			return nil, err
		}

		for _, entry := range batch {
			item, ok := entry.item(contentType)
			if !ok {
				dropped++
				continue
			}
			items = append(items, item)
		}

		if limit > 0 && len(items) >= limit {
			items = items[:limit]
			break
		}
		if len(batch) < perPage {
			break
		}
		if total := paginationTotal(header); total > 0 && page*perPage >= total {
			break
		}
	}

	metrics.AddHistoryRecords(len(items))
	logging.Debug().
		Str("profile_id", profileID).
		Str("content_type", string(contentType)).
		Int("records", len(items)).
		Int("dropped", dropped).
		Msg("Fetched watch history")
	return items, nil
}

// FetchListings retrieves one listing pool at the default depth. See
// FetchListingsFiltered for genre filtering and explicit depths.
func (c *Client) FetchListings(ctx context.Context, category string, contentType models.ContentType) ([]models.Candidate, error) {
	return c.FetchListingsFiltered(ctx, category, contentType, nil, 0)
}

// FetchListingsFiltered retrieves one listing pool, optionally filtered by
// genre slugs, paging until total items are collected or the backend runs
// out. total <= 0 uses the default pool depth.
//
// Categories: "recommended" (personalized, needs the access token, empty
// pool without one), "trending", "popular". The related pool is seeded per
// title and served by FetchRelated instead.
func (c *Client) FetchListingsFiltered(ctx context.Context, category string, contentType models.ContentType, genres []string, total int) ([]models.Candidate, error) {
	if total <= 0 {
		total = defaultListingLimit
	}

	switch category {
	case models.PoolRecommended:
		if c.accessToken == "" {
			logging.Debug().Msg("No access token configured, skipping personalized recommendations")
			return nil, nil
		}
		if total > maxPageSize {
			total = maxPageSize // backend caps personalized recommendations
		}
		return c.fetchMediaPage(ctx, "recommendations", "/recommendations/"+typePath(contentType), singlePageParams(total, genres), false, contentType, models.PoolRecommended)
	case models.PoolTrending:
		return c.collectListing(ctx, "trending", "/"+typePath(contentType)+"/trending", contentType, models.PoolTrending, genres, total, true)
	case models.PoolPopular:
		return c.collectListing(ctx, "popular", "/"+typePath(contentType)+"/popular", contentType, models.PoolPopular, genres, total, false)
	case models.PoolRelated:
		return nil, fmt.Errorf("related listings require a seed title: use FetchRelated")
	default:
		return nil, fmt.Errorf("unknown listing category %q", category)
	}
}

// FetchRelated retrieves titles related to one seed title, tagged into the
// related pool.
func (c *Client) FetchRelated(ctx context.Context, contentType models.ContentType, traktID int64, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = defaultListingLimit
	}
	path := "/" + typePath(contentType) + "/" + strconv.FormatInt(traktID, 10) + "/related"
	return c.collectListing(ctx, "related", path, contentType, models.PoolRelated, nil, limit, false)
}

// FetchCast retrieves the leading cast of one title. Credits without a
// name or person ID are skipped; the list is capped so ensemble casts do
// not flood the actor tally.
func (c *Client) FetchCast(ctx context.Context, contentType models.ContentType, traktID int64) ([]CastMember, error) {
	path := "/" + typePath(contentType) + "/" + strconv.FormatInt(traktID, 10) + "/people"

	var payload creditsPayload
	if _, err := c.getJSON(ctx, "people", path, nil, &payload); err != nil {
		return nil, err
	}

	members := make([]CastMember, 0, len(payload.Cast))
	for _, credit := range payload.Cast {
		if credit.Person == nil || credit.Person.Name == "" || credit.Person.IDs.Trakt == 0 {
			continue
		}
		members = append(members, CastMember{
			Name:    credit.Person.Name,
			TraktID: credit.Person.IDs.Trakt,
		})
		if len(members) >= castDepth {
			break
		}
	}
	return members, nil
}

// FetchPersonCredits retrieves one actor's filmography for a content type,
// tagged into the people pool.
func (c *Client) FetchPersonCredits(ctx context.Context, personID int64, contentType models.ContentType) ([]models.Candidate, error) {
	path := "/people/" + strconv.FormatInt(personID, 10) + "/" + typePath(contentType)
	params := url.Values{}
	params.Set("extended", "full")

	var payload creditsPayload
	if _, err := c.getJSON(ctx, "credits", path, params, &payload); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(payload.Cast))
	for _, credit := range payload.Cast {
		m := credit.media(contentType)
		if m == nil || strings.TrimSpace(m.Title) == "" {
			continue
		}
		candidates = append(candidates, m.candidate(contentType, models.PoolPeople))
	}
	return candidates, nil
}

// collectListing walks a paginated listing endpoint until total items are
// collected or a short page signals exhaustion. wrapped selects the
// trending envelope decode.
func (c *Client) collectListing(ctx context.Context, endpoint, path string, contentType models.ContentType, pool string, genres []string, total int, wrapped bool) ([]models.Candidate, error) {
	perPage := total
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	var out []models.Candidate
	for page := 1; len(out) < total; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(perPage))
		params.Set("extended", "full")
		if len(genres) > 0 {
			params.Set("genres", strings.Join(genres, ","))
		}

		batch, err := c.fetchMediaPage(ctx, endpoint, path, params, wrapped, contentType, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < perPage {
			break
		}
	}

	if len(out) > total {
		out = out[:total]
	}
	return out, nil
}

// fetchMediaPage fetches one page of a listing and converts it to
// candidates, skipping entries without a usable title.
func (c *Client) fetchMediaPage(ctx context.Context, endpoint, path string, params url.Values, wrapped bool, contentType models.ContentType, pool string) ([]models.Candidate, error) {
	if wrapped {
		var entries []trendingEntry
		if _, err := c.getJSON(ctx, endpoint, path, params, &entries); err != nil {
			return nil, err
		}
		candidates := make([]models.Candidate, 0, len(entries))
		for _, entry := range entries {
			m := entry.media(contentType)
			if m == nil || strings.TrimSpace(m.Title) == "" {
				continue
			}
			candidates = append(candidates, m.candidate(contentType, pool))
		}
		return candidates, nil
	}

	var media []mediaPayload
	if _, err := c.getJSON(ctx, endpoint, path, params, &media); err != nil {
		return nil, err
	}
	candidates := make([]models.Candidate, 0, len(media))
	for i := range media {
		if strings.TrimSpace(media[i].Title) == "" {
			continue
		}
		candidates = append(candidates, media[i].candidate(contentType, pool))
	}
	return candidates, nil
}

func singlePageParams(limit int, genres []string) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("extended", "full")
	if len(genres) > 0 {
		params.Set("genres", strings.Join(genres, ","))
	}
	return params
}
