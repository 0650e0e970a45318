// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package generate

import (
	"context"
	"fmt"

	"github.com/dankeller/lanewise/internal/models"
)

// Fallback fills lanes from the profile's own recent highlights when both
// the remote and local paths came up empty. Rewatchable favorites are a
// weak lane, but a populated weak lane beats an empty catalog row while
// the upstreams recover.
type Fallback struct{}

// NewFallback creates the history-derived fallback generator.
func NewFallback() *Fallback { return &Fallback{} }

// Name identifies the generator in logs and metrics.
func (f *Fallback) Name() string { return "fallback" }

// Generate replays the profile's highlights of the lane's content type,
// oldest first when the lane reaches back in time. Highlights are exempt
// from the history exclusion (they ARE history) but still deduplicate
// against what other lanes claimed this cycle via the served set the
// orchestrator threads through.
//
// A profile with no highlights gets ErrNoDataAvailable; there is nothing
// further to fall back to.
func (f *Fallback) Generate(_ context.Context, req Request) ([]models.Candidate, error) {
	if req.Profile == nil || len(req.Profile.RecentHighlights) == 0 {
		return nil, fmt.Errorf("no highlights for profile: %w", models.ErrNoDataAvailable)
	}

	highlights := req.Profile.RecentHighlights
	out := make([]models.Candidate, 0, req.Count)
	seen := make(map[string]bool, req.Count)

	index := func(i int) models.Highlight {
		if req.Lane.OlderHistoryFirst {
			return highlights[len(highlights)-1-i]
		}
		return highlights[i]
	}

	for i := 0; i < len(highlights) && len(out) < req.Count; i++ {
		h := index(i)
		if h.ContentType != req.Lane.ContentType || h.Title == "" {
			continue
		}
		c := models.Candidate{
			Title:       h.Title,
			Year:        h.Year,
			ContentType: h.ContentType,
			Genres:      h.Genres,
			Source:      models.SourceFallback,
		}
		fp := primaryFingerprint(c)
		if fp == "" || seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no %s highlights for lane %s: %w",
			req.Lane.ContentType, req.Lane.Key, models.ErrNoDataAvailable)
	}
	return out, nil
}
