// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package lanes

import (
	"github.com/dankeller/lanewise/internal/models"
)

// PoolStrategy selects how candidate pools are assembled for a lane.
// Most lanes draw from the shared per-content-type pools; a few build
// lane-local pools to avoid starvation or to reach content the shared
// pools rarely surface.
type PoolStrategy string

const (
	// PoolsShared draws from the shared recommended/related/trending/popular
	// pools built once per content type.
	PoolsShared PoolStrategy = ""

	// PoolsInternational builds lane-local pools biased toward the
	// profile's top non-English languages.
	PoolsInternational PoolStrategy = "international"

	// PoolsPeople builds a lane-local pool from the filmographies of the
	// actors who appear most often in the profile's history.
	PoolsPeople PoolStrategy = "people"

	// PoolsUniverse builds a lane-local related pool seeded from the
	// profile's own history to surface shared-universe entries.
	PoolsUniverse PoolStrategy = "universe"

	// PoolsDocumentary builds lane-local pools pre-filtered to
	// documentaries.
	PoolsDocumentary PoolStrategy = "documentary"

	// PoolsIndie builds lane-local pools pre-filtered to indie tags.
	PoolsIndie PoolStrategy = "indie"
)

// Definition describes one discovery lane: its identity, the content type
// it serves, and the selection rules applied when filling it.
//
// Genre targeting works in one of two ways:
//   - GenreLow/GenreHigh select a half-open window into the profile's
//     ranked top genres (e.g. [0,3) means the top three).
//   - FixedGenres names the genres directly. When IntersectTopGenres is
//     set the fixed set is restricted to genres the profile actually
//     ranks; otherwise it applies as-is.
//
// StrictGenres marks lanes whose genre constraint is identity-defining
// and must never be relaxed during fill (an animation lane with live
// action in it is broken, not degraded).
type Definition struct {
	Key         string             `json:"key"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ContentType models.ContentType `json:"content_type"`

	// ItemTarget is the number of items this lane aims for. Zero until
	// resolved against configuration.
	ItemTarget int `json:"item_target,omitempty"`

	// Genre targeting. See type doc.
	GenreLow           int      `json:"-"`
	GenreHigh          int      `json:"-"`
	FixedGenres        []string `json:"-"`
	IntersectTopGenres bool     `json:"-"`
	StrictGenres       bool     `json:"-"`

	// Runtime bounds in minutes. Zero means unconstrained. Candidates
	// with unknown runtime fail a bound until the bound is relaxed.
	MinRuntime int `json:"-"`
	MaxRuntime int `json:"-"`

	// NonEnglish requires a known language other than English. The
	// constraint is never relaxed: an international lane full of
	// English titles is broken.
	NonEnglish bool `json:"-"`

	// PreferRelated iterates the related pool before recommended when
	// filling, for lanes anchored in what the profile already follows.
	PreferRelated bool `json:"-"`

	// OlderHistoryFirst reverses history recency when seeding, for
	// lanes that deliberately reach back in time.
	OlderHistoryFirst bool `json:"-"`

	// Pools selects the pool assembly strategy.
	Pools PoolStrategy `json:"-"`
}

// catalog is the fixed lane set, in presentation order. Order matters:
// cross-lane deduplication walks lanes in this order, so earlier lanes
// keep contested titles.
var catalog = []Definition{
	{
		Key:         "movies-for-you",
		Title:       "Movies For You",
		Description: "Movies that represent your overall taste profile across favourite genres and moods.",
		ContentType: models.ContentTypeMovie,
		GenreHigh:   3,
	},
	{
		Key:         "series-for-you",
		Title:       "Series For You",
		Description: "Series that represent your overall taste profile across favourite genres and moods.",
		ContentType: models.ContentTypeSeries,
		GenreHigh:   3,
	},
	{
		Key:         "your-comfort-zone",
		Title:       "Your Comfort Zone",
		Description: "Safe film picks that align perfectly with the patterns you already love to revisit.",
		ContentType: models.ContentTypeMovie,
		GenreHigh:   2,
	},
	{
		Key:         "expand-your-horizons",
		Title:       "Expand Your Horizons",
		Description: "Quality films just outside your normal rotation, ready to broaden your taste without losing your vibe.",
		ContentType: models.ContentTypeMovie,
		GenreLow:    2,
		GenreHigh:   6,
	},
	{
		Key:         "your-next-obsession",
		Title:       "Your Next Obsession",
		Description: "Binge-ready series poised to become your newest favourites based on deep taste analysis.",
		ContentType: models.ContentTypeSeries,
		GenreHigh:   3,
		MinRuntime:  40,
	},
	{
		Key:               "you-missed-these",
		Title:             "You Missed These",
		Description:       "Noteworthy films that slipped past you the first time but match what you already enjoy.",
		ContentType:       models.ContentTypeMovie,
		GenreHigh:         4,
		OlderHistoryFirst: true,
	},
	{
		Key:                "critics-love-youll-love",
		Title:              "Critics Love, You'll Love",
		Description:        "Critically adored movies curated to mirror your personal preferences and pacing.",
		ContentType:        models.ContentTypeMovie,
		FixedGenres:        []string{"drama", "biography", "history"},
		IntersectTopGenres: true,
	},
	{
		Key:         "international-picks",
		Title:       "International Picks",
		Description: "Foreign films matched to your favourite genres and storytelling moods.",
		ContentType: models.ContentTypeMovie,
		NonEnglish:  true,
		Pools:       PoolsInternational,
	},
	{
		Key:                "your-guilty-pleasures-extended",
		Title:              "Your Guilty Pleasures Extended",
		Description:        "More of the indulgent movies you watch on repeat—even if you never mention them.",
		ContentType:        models.ContentTypeMovie,
		FixedGenres:        []string{"action", "horror", "romance", "comedy", "thriller"},
		IntersectTopGenres: true,
	},
	{
		Key:         "starring-your-favorite-actors",
		Title:       "Starring Your Favorite Actors",
		Description: "Films featuring the actors who dominate your watch history and never disappoint.",
		ContentType: models.ContentTypeMovie,
		Pools:       PoolsPeople,
	},
	{
		Key:                "visually-stunning-for-you",
		Title:              "Visually Stunning For You",
		Description:        "Cinematography showcases that match your genre preferences and appetite for lush visuals.",
		ContentType:        models.ContentTypeMovie,
		FixedGenres:        []string{"sci-fi", "fantasy", "adventure", "drama", "animation"},
		IntersectTopGenres: true,
	},
	{
		Key:           "background-watching",
		Title:         "Background Watching",
		Description:   "Easy-flowing series perfect for multitasking without losing the narrative thread.",
		ContentType:   models.ContentTypeSeries,
		GenreHigh:     4,
		MaxRuntime:    40,
		PreferRelated: true,
	},
	{
		Key:           "same-universe-different-story",
		Title:         "Same Universe, Different Story",
		Description:   "Spin-offs and related series expanding the franchises you already follow.",
		ContentType:   models.ContentTypeSeries,
		GenreHigh:     3,
		PreferRelated: true,
		Pools:         PoolsUniverse,
	},
	{
		Key:          "animation-worth-your-time",
		Title:        "Animation Worth Your Time",
		Description:  "Animated series that transcend age brackets while still fitting your preferred tones.",
		ContentType:  models.ContentTypeSeries,
		FixedGenres:  []string{"animation"},
		StrictGenres: true,
	},
	{
		Key:          "documentaries-youll-like",
		Title:        "Documentaries You’ll Like",
		Description:  "Feature documentaries tied to the crime, sports, and history stories you revisit often.",
		ContentType:  models.ContentTypeMovie,
		FixedGenres:  []string{"documentary"},
		StrictGenres: true,
		Pools:        PoolsDocumentary,
	},
	{
		Key:         "your-top-genre",
		Title:       "Your Top Genre",
		Description: "Essential films from the genre you stream most, dialled in to your signature moods.",
		ContentType: models.ContentTypeMovie,
		GenreHigh:   1,
	},
	{
		Key:         "your-second-genre",
		Title:       "Your Second Genre",
		Description: "Series highlights from the runner-up genre in your history, tuned to familiar beats.",
		ContentType: models.ContentTypeSeries,
		GenreLow:    1,
		GenreHigh:   2,
	},
	{
		Key:         "your-third-genre",
		Title:       "Your Third Genre",
		Description: "Hand-picked films exploring the third pillar of your taste profile with fresh twists.",
		ContentType: models.ContentTypeMovie,
		GenreLow:    2,
		GenreHigh:   3,
	},
	{
		Key:           "franchises-you-started",
		Title:         "Franchises You Started",
		Description:   "Series sequels, prequels, and spin-offs tied to universes you've begun but not finished.",
		ContentType:   models.ContentTypeSeries,
		GenreHigh:     3,
		PreferRelated: true,
	},
	{
		Key:           "independent-films",
		Title:         "Independent Films That Mirror Your Taste",
		Description:   "Indie standouts with daring storytelling and strong buzz that align with your preferences.",
		ContentType:   models.ContentTypeMovie,
		FixedGenres:   []string{"independent", "indie"},
		PreferRelated: true,
		Pools:         PoolsIndie,
	},
}

// Catalog returns the full lane catalog in presentation order.
// The returned slice is a copy; callers may not mutate lane identity.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the definition for a lane key.
func Lookup(key string) (Definition, bool) {
	for _, d := range catalog {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Keys returns all lane keys in presentation order.
func Keys() []string {
	out := make([]string, len(catalog))
	for i, d := range catalog {
		out[i] = d.Key
	}
	return out
}

// Count returns the number of lanes in the catalog.
func Count() int {
	return len(catalog)
}
