// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package history

import (
	"strings"
	"time"

	"github.com/dankeller/lanewise/internal/models"
)

// idsPayload mirrors the backend's "ids" object. Any subset of the
// identifiers may be present.
type idsPayload struct {
	Trakt int64  `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int64  `json:"tmdb,omitempty"`
}

// mediaPayload is the extended media object the backend returns for both
// movies and shows. Only the fields the pipeline consumes are decoded.
type mediaPayload struct {
	Title    string     `json:"title"`
	Year     int        `json:"year,omitempty"`
	IDs      idsPayload `json:"ids"`
	Genres   []string   `json:"genres,omitempty"`
	Language string     `json:"language,omitempty"`
	Country  string     `json:"country,omitempty"`
	Runtime  int        `json:"runtime,omitempty"`
	Rating   float64    `json:"rating,omitempty"`
	Overview string     `json:"overview,omitempty"`
}

// historyEntry is one watch event. Movie entries carry a "movie" object,
// episode plays carry both "show" and "episode"; the pipeline tracks shows
// at series granularity and ignores the episode detail.
type historyEntry struct {
	ID        int64         `json:"id,omitempty"`
	WatchedAt string        `json:"watched_at,omitempty"`
	Action    string        `json:"action,omitempty"`
	Type      string        `json:"type,omitempty"`
	Movie     *mediaPayload `json:"movie,omitempty"`
	Show      *mediaPayload `json:"show,omitempty"`
}

// trendingEntry wraps a media object with its live watcher count. The
// trending listing is the only one served in this wrapped form.
type trendingEntry struct {
	Watchers int64         `json:"watchers,omitempty"`
	Movie    *mediaPayload `json:"movie,omitempty"`
	Show     *mediaPayload `json:"show,omitempty"`
}

// personPayload is the backend's person object inside cast listings.
type personPayload struct {
	Name string     `json:"name"`
	IDs  idsPayload `json:"ids"`
}

// castEntry is one cast credit. Title cast listings populate Person;
// person filmographies populate Movie or Show.
type castEntry struct {
	Character string         `json:"character,omitempty"`
	Person    *personPayload `json:"person,omitempty"`
	Movie     *mediaPayload  `json:"movie,omitempty"`
	Show      *mediaPayload  `json:"show,omitempty"`
}

// creditsPayload is the wrapper around cast listings and filmographies.
// Crew credits exist upstream but are not consumed.
type creditsPayload struct {
	Cast []castEntry `json:"cast,omitempty"`
}

// CastMember is a single credited actor on a title, carrying just enough
// identity to fetch their filmography.
type CastMember struct {
	Name    string
	TraktID int64
}

// media returns the payload matching the requested content type, nil when
// the entry does not carry one.
func (e historyEntry) media(ct models.ContentType) *mediaPayload {
	if ct == models.ContentTypeSeries {
		return e.Show
	}
	return e.Movie
}

func (t trendingEntry) media(ct models.ContentType) *mediaPayload {
	if ct == models.ContentTypeSeries {
		return t.Show
	}
	return t.Movie
}

func (c castEntry) media(ct models.ContentType) *mediaPayload {
	if ct == models.ContentTypeSeries {
		return c.Show
	}
	return c.Movie
}

// item converts a history entry into the normalized domain record. Entries
// without a usable media object or title are reported unusable rather than
// converted to empty records.
func (e historyEntry) item(ct models.ContentType) (models.HistoryItem, bool) {
	m := e.media(ct)
	if m == nil || strings.TrimSpace(m.Title) == "" {
		return models.HistoryItem{}, false
	}
	item := models.HistoryItem{
		Title:       strings.TrimSpace(m.Title),
		Year:        m.Year,
		ContentType: ct,
		IDs:         m.IDs.external(),
		Genres:      m.Genres,
		Language:    m.Language,
		Country:     m.Country,
		Runtime:     m.Runtime,
		Rating:      m.Rating,
		PlayCount:   1,
	}
	if e.WatchedAt != "" {
		if watched, err := time.Parse(time.RFC3339, e.WatchedAt); err == nil {
			item.WatchedAt = watched
		}
	}
	return item, true
}

// candidate converts a listing media object into a pool-tagged candidate.
// Source is left unset; the generator that admits the candidate stamps it.
func (m *mediaPayload) candidate(ct models.ContentType, pool string) models.Candidate {
	return models.Candidate{
		Title:       strings.TrimSpace(m.Title),
		Year:        m.Year,
		ContentType: ct,
		IDs:         m.IDs.external(),
		Genres:      m.Genres,
		Language:    m.Language,
		Runtime:     m.Runtime,
		Rating:      m.Rating,
		Overview:    m.Overview,
		Pool:        pool,
	}
}

func (i idsPayload) external() models.ExternalIDs {
	return models.ExternalIDs{
		IMDB:  i.IMDB,
		TMDB:  i.TMDB,
		Trakt: i.Trakt,
		Slug:  i.Slug,
	}
}

// typePath maps a content type onto the backend's plural path segment.
func typePath(ct models.ContentType) string {
	if ct == models.ContentTypeSeries {
		return "shows"
	}
	return "movies"
}
