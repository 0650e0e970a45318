// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package models

import (
	"time"
)

// ContentType identifies the kind of media a candidate or lane refers to.
// Lanewise works with exactly two content types; anything else coming from
// an upstream source is normalized or rejected at the ingestion boundary.
type ContentType string

const (
	// ContentTypeMovie is a feature-length film.
	ContentTypeMovie ContentType = "movie"
	// ContentTypeSeries is an episodic show.
	ContentTypeSeries ContentType = "series"
)

// Valid reports whether the content type is one of the supported values.
func (c ContentType) Valid() bool {
	return c == ContentTypeMovie || c == ContentTypeSeries
}

// CandidateSource records which generation path produced a candidate.
//
// Values:
//   - "remote": produced by the remote generation backend
//   - "local": produced by the local heuristic generator
//   - "fallback": produced by the history-derived fallback path
type CandidateSource string

const (
	SourceRemote   CandidateSource = "remote"
	SourceLocal    CandidateSource = "local"
	SourceFallback CandidateSource = "fallback"
)

// Listing pool names tagged on Candidate.Pool by the history provider.
// The local generator weights pools differently when ranking, so the tag
// must survive from fetch to scoring.
const (
	PoolRecommended = "recommended"
	PoolRelated     = "related"
	PoolTrending    = "trending"
	PoolPopular     = "popular"
	PoolPeople      = "people"
)

// ExternalIDs holds the upstream identifiers known for a title. Any subset
// may be present; identity matching falls back to slug and finally to the
// normalized title when no ID is available.
type ExternalIDs struct {
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int64  `json:"tmdb,omitempty"`
	Trakt int64  `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// Empty reports whether no external identifier is set.
func (e ExternalIDs) Empty() bool {
	return e.IMDB == "" && e.TMDB == 0 && e.Trakt == 0 && e.Slug == ""
}

// Candidate is a single recommended title inside a lane.
//
// A candidate is created by one of the three generation paths with at least
// Title, Year, ContentType and Source populated, then optionally enriched
// with catalog metadata (artwork, overview, external IDs) by the metadata
// stitcher. Enrichment failures never remove a candidate; an unenriched
// candidate ships with whatever fields the generator produced.
//
// The Pool field is generation-internal bookkeeping (which listing pool the
// local generator drew the title from) and is never serialized.
type Candidate struct {
	Title       string          `json:"title"`
	Year        int             `json:"year,omitempty"`
	ContentType ContentType     `json:"content_type"`
	Source      CandidateSource `json:"source"`

	// Catalog metadata, populated by enrichment when available.
	IDs        ExternalIDs `json:"ids,omitempty"`
	Genres     []string    `json:"genres,omitempty"`
	Language   string      `json:"language,omitempty"`
	Runtime    int         `json:"runtime,omitempty"` // minutes
	Rating     float64     `json:"rating,omitempty"`  // 0..10
	Overview   string      `json:"overview,omitempty"`
	Poster     string      `json:"poster,omitempty"`
	Background string      `json:"background,omitempty"`

	Pool string `json:"-"`
}

// LaneResult is the generated content of one lane for one profile.
//
// Results are immutable once committed: a refresh cycle builds a complete
// replacement and swaps it in atomically, or leaves the previous result
// untouched when the new cycle produced nothing for the lane.
type LaneResult struct {
	LaneKey     string      `json:"lane_key"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	ContentType ContentType `json:"content_type"`

	// Source is the lane-level provenance: "remote" when any item came from
	// the remote backend, otherwise "local" when any item came from the
	// heuristic generator, otherwise "fallback".
	Source CandidateSource `json:"source"`

	Items       []Candidate `json:"items"`
	GeneratedAt time.Time   `json:"generated_at"`
	CycleID     string      `json:"cycle_id,omitempty"`
}

// LaneSummary is the per-lane row returned by the lane index endpoint.
type LaneSummary struct {
	LaneKey     string          `json:"lane_key"`
	Title       string          `json:"title"`
	ContentType ContentType     `json:"content_type"`
	Source      CandidateSource `json:"source,omitempty"`
	ItemCount   int             `json:"item_count"`
	GeneratedAt *time.Time      `json:"generated_at,omitempty"`
}

// ProfileState describes where a profile sits in the refresh lifecycle.
//
// State transitions:
//   - idle -> refreshing: a refresh cycle was admitted
//   - refreshing -> idle: the cycle finished and produced usable lanes
//   - refreshing -> degraded: the cycle finished without usable output
//   - degraded -> refreshing: a later cycle was admitted (retry or force)
type ProfileState string

const (
	StateIdle       ProfileState = "idle"
	StateRefreshing ProfileState = "refreshing"
	StateDegraded   ProfileState = "degraded"
)

// ProfileStatus is the externally visible snapshot of one profile's cache.
// It is returned by the status endpoint and by Prepare.
type ProfileStatus struct {
	ProfileID     string        `json:"profile_id"`
	State         ProfileState  `json:"state"`
	LaneCount     int           `json:"lane_count"`
	ReadyLanes    int           `json:"ready_lanes"`
	LastRefreshAt *time.Time    `json:"last_refresh_at,omitempty"`
	NextRefreshAt *time.Time    `json:"next_refresh_at,omitempty"`
	LastCycleID   string        `json:"last_cycle_id,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
	Lanes         []LaneSummary `json:"lanes,omitempty"`
}

// ProfileMeta is the persisted refresh bookkeeping for one profile. It is
// stored alongside the profile's lane results and drives both the freshness
// gate (skip refreshes while results are fresh) and the background refresh
// schedule.
type ProfileMeta struct {
	ProfileID     string       `json:"profile_id"`
	State         ProfileState `json:"state"`
	LastRefreshAt time.Time    `json:"last_refresh_at"`
	LastCycleID   string       `json:"last_cycle_id,omitempty"`
	LastSeed      string       `json:"last_seed,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// HistoryItem is one normalized watch-history record fetched from the media
// backend. It is the raw material for taste profiling and for the fallback
// generation path.
type HistoryItem struct {
	Title       string      `json:"title"`
	Year        int         `json:"year,omitempty"`
	ContentType ContentType `json:"content_type"`
	IDs         ExternalIDs `json:"ids,omitempty"`
	Genres      []string    `json:"genres,omitempty"`
	People      []string    `json:"people,omitempty"`
	Language    string      `json:"language,omitempty"`
	Country     string      `json:"country,omitempty"`
	Runtime     int         `json:"runtime,omitempty"`
	Rating      float64     `json:"rating,omitempty"`
	PlayCount   int         `json:"play_count,omitempty"`
	WatchedAt   time.Time   `json:"watched_at,omitempty"`
}

// Highlight is a recently watched title carried inside a taste profile.
// Highlights seed the remote generation prompt and the fallback lanes.
type Highlight struct {
	Title       string      `json:"title"`
	Year        int         `json:"year,omitempty"`
	ContentType ContentType `json:"content_type"`
	Genres      []string    `json:"genres,omitempty"`
	WatchedAt   time.Time   `json:"watched_at,omitempty"`
}

// TasteProfile is the aggregate taste model derived from a profile's watch
// history. An empty profile (no counts, no highlights) is valid and routes
// generation to the fallback path.
//
// FingerprintSet holds the identity fingerprints of every title in history
// and is the seed of each cycle's exclusion set: lanes never recommend what
// the profile already watched.
type TasteProfile struct {
	ProfileID string `json:"profile_id"`

	// Tallies are recency-decayed: each history record contributes its
	// decay weight rather than 1, so a binge from three years ago counts
	// less than last week's single watch. Keys are lowercased.
	GenreCounts    map[string]float64 `json:"genre_counts,omitempty"`
	PersonCounts   map[string]float64 `json:"person_counts,omitempty"`
	LanguageCounts map[string]float64 `json:"language_counts,omitempty"`
	CountryCounts  map[string]float64 `json:"country_counts,omitempty"`
	DecadeCounts   map[string]int     `json:"decade_counts,omitempty"`

	// Ranked views derived from the decayed tallies.
	TopGenres    []string `json:"top_genres,omitempty"`
	TopPeople    []string `json:"top_people,omitempty"`
	TopLanguages []string `json:"top_languages,omitempty"`

	// FatiguedGenres are genres watched heavily but not recently; lanes
	// de-emphasize them. CuriosityGenres are lightly sampled genres used by
	// the horizon-expanding lanes.
	FatiguedGenres  []string `json:"fatigued_genres,omitempty"`
	CuriosityGenres []string `json:"curiosity_genres,omitempty"`

	RecentHighlights []Highlight     `json:"recent_highlights,omitempty"`
	FingerprintSet   map[string]bool `json:"fingerprint_set,omitempty"`

	MovieCount  int       `json:"movie_count"`
	SeriesCount int       `json:"series_count"`
	AvgRuntime  int       `json:"avg_runtime,omitempty"`
	BuiltAt     time.Time `json:"built_at"`
}

// Empty reports whether the profile carries no usable taste signal.
func (t *TasteProfile) Empty() bool {
	return t == nil || (len(t.GenreCounts) == 0 && len(t.RecentHighlights) == 0 && len(t.FingerprintSet) == 0)
}

// TopGenre returns the n-th ranked genre (0-based) or "" when the profile
// has fewer ranked genres.
func (t *TasteProfile) TopGenre(n int) string {
	if t == nil || n < 0 || n >= len(t.TopGenres) {
		return ""
	}
	return t.TopGenres[n]
}
