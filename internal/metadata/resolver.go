// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package metadata enriches generated candidates with identifiers and
// artwork from a Stremio-style catalog metadata service (Cinemeta by
// default). Enrichment is strictly additive: a candidate the service
// cannot match keeps its lane slot and simply stays bare.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

// ErrNotFound is returned when the service has no match for a title.
var ErrNotFound = errors.New("metadata: no match")

const maxResponseBytes = 4 << 20

var yearPattern = regexp.MustCompile(`(19|20|21)\d{2}`)

// Resolver looks titles up against the metadata service.
//
// Thread Safety: safe for concurrent use. The semaphore bounds in-flight
// lookups across all lanes of a cycle.
type Resolver struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	sem     chan struct{}
}

// NewResolver creates a resolver from configuration. Returns nil when no
// service URL is configured; a nil Resolver skips enrichment entirely.
func NewResolver(cfg *config.MetadataConfig) *Resolver {
	if cfg.URL == "" {
		return nil
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		sem:     make(chan struct{}, concurrency),
	}
}

// Match is the metadata the service returned for one title.
type Match struct {
	IMDBID     string
	Name       string
	Year       int
	Poster     string
	Background string
	Overview   string
}

type metaEntry struct {
	ID          string `json:"id"`
	IMDBID      string `json:"imdb_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	ReleaseInfo string `json:"releaseInfo"`
	Poster      string `json:"poster"`
	Background  string `json:"background"`
	Description string `json:"description"`
}

type searchPayload struct {
	Metas []metaEntry `json:"metas"`
}

// Resolve searches the service for one title and picks the best match:
// exact slug and year, then matching slug with the closest year, then the
// closest year alone, then the first result. ErrNotFound when the search
// comes back empty.
func (r *Resolver) Resolve(ctx context.Context, title string, year int, ct models.ContentType) (*Match, error) {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/catalog/%s/top/search=%s.json", r.baseURL, ct, url.PathEscape(title))

	start := time.Now()
	payload, err := r.search(callCtx, endpoint)
	if err != nil {
		// One retry covers the service's transient refusals; anything
		// persistent is not worth stalling the cycle for.
		payload, err = r.search(callCtx, endpoint)
	}
	if err != nil {
		metrics.RecordMetadataLookup("error", time.Since(start))
		return nil, err
	}
	if len(payload.Metas) == 0 {
		metrics.RecordMetadataLookup("unmatched", time.Since(start))
		return nil, fmt.Errorf("%q (%s): %w", title, ct, ErrNotFound)
	}

	best := pickBest(payload.Metas, title, year)
	metrics.RecordMetadataLookup("matched", time.Since(start))
	return &Match{
		IMDBID:     imdbID(best),
		Name:       best.Name,
		Year:       releaseYear(best.ReleaseInfo),
		Poster:     best.Poster,
		Background: best.Background,
		Overview:   best.Description,
	}, nil
}

func (r *Resolver) search(ctx context.Context, endpoint string) (*searchPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building metadata request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling metadata service: %v: %w", err, models.ErrTransientIO)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata service returned %d: %w", resp.StatusCode, models.ErrTransientIO)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading metadata response: %v: %w", err, models.ErrTransientIO)
	}

	var payload searchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding metadata response: %v: %w", err, models.ErrMalformedResponse)
	}
	return &payload, nil
}

// pickBest applies the match ladder over the search results.
func pickBest(metas []metaEntry, title string, year int) metaEntry {
	slug := models.Slugify(title)

	type ranked struct {
		entry     metaEntry
		slugMatch bool
		yearDelta int
	}
	rankings := make([]ranked, 0, len(metas))
	for _, m := range metas {
		r := ranked{entry: m, yearDelta: 1 << 20}
		if models.Slugify(m.Name) == slug {
			r.slugMatch = true
		}
		if year > 0 {
			if my := releaseYear(m.ReleaseInfo); my > 0 {
				if my > year {
					r.yearDelta = my - year
				} else {
					r.yearDelta = year - my
				}
			}
		}
		rankings = append(rankings, r)
	}

	// Exact slug and year.
	if year > 0 {
		for _, r := range rankings {
			if r.slugMatch && r.yearDelta == 0 {
				return r.entry
			}
		}
	}
	// Matching slug, closest year.
	bestIdx, bestDelta := -1, 1<<20
	for i, r := range rankings {
		if r.slugMatch && r.yearDelta < bestDelta {
			bestIdx, bestDelta = i, r.yearDelta
		}
	}
	if bestIdx >= 0 {
		return rankings[bestIdx].entry
	}
	// Closest year regardless of name.
	if year > 0 {
		bestIdx, bestDelta = -1, 1<<20
		for i, r := range rankings {
			if r.yearDelta < bestDelta {
				bestIdx, bestDelta = i, r.yearDelta
			}
		}
		if bestIdx >= 0 && bestDelta < 1<<20 {
			return rankings[bestIdx].entry
		}
	}
	return metas[0]
}

func imdbID(m metaEntry) string {
	if m.IMDBID != "" {
		return m.IMDBID
	}
	if strings.HasPrefix(m.ID, "tt") {
		return m.ID
	}
	return ""
}

// releaseYear extracts the first plausible year from a releaseInfo string
// such as "1995", "2002-2008" or "2024-".
func releaseYear(info string) int {
	match := yearPattern.FindString(info)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}

// Enrich resolves every candidate in place, concurrently up to the
// configured limit, one lookup per candidate. Unmatched candidates are
// kept as generated; enrichment never removes a lane item.
func (r *Resolver) Enrich(ctx context.Context, items []models.Candidate) {
	if r == nil || len(items) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range items {
		if items[i].IDs.IMDB != "" && items[i].Poster != "" {
			continue
		}
		wg.Add(1)
		go func(c *models.Candidate) {
			defer wg.Done()

			match, err := r.Resolve(ctx, c.Title, c.Year, c.ContentType)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					logging.Debug().
						Err(err).
						Str("title", c.Title).
						Msg("Metadata lookup failed")
				}
				return
			}
			applyMatch(c, match)
		}(&items[i])
	}
	wg.Wait()
}

// applyMatch copies matched fields onto the candidate without clobbering
// anything the generator already knew.
func applyMatch(c *models.Candidate, m *Match) {
	if c.IDs.IMDB == "" {
		c.IDs.IMDB = m.IMDBID
	}
	if c.Year == 0 {
		c.Year = m.Year
	}
	if c.Poster == "" {
		c.Poster = m.Poster
	}
	if c.Background == "" {
		c.Background = m.Background
	}
	if c.Overview == "" {
		c.Overview = m.Overview
	}
}
