// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package lanes

import (
	"strings"
	"time"

	"github.com/dankeller/lanewise/internal/models"
)

// recencyWindowYears is the window over which release recency scores
// scale from 0 to 1.
const recencyWindowYears = 20

// ReleaseRecency scores how recent a release year is, scaled 0..1 over
// the last twenty years. Years outside a plausible range score zero.
func ReleaseRecency(year int) float64 {
	current := time.Now().UTC().Year()
	if year < 1900 || year > current+1 {
		return 0.0
	}
	delta := year - (current - recencyWindowYears)
	if delta < 0 {
		delta = 0
	}
	if delta > recencyWindowYears {
		delta = recencyWindowYears
	}
	return float64(delta) / float64(recencyWindowYears)
}

// Bonus returns the lane-specific score adjustment for a candidate.
// Base relevance scoring is lane-agnostic; this is where a lane's
// editorial slant lives. Negative values are allowed (the missed-titles
// lane penalizes recent releases).
func (d Definition) Bonus(c models.Candidate) float64 {
	bonus := 0.0
	switch d.Key {
	case "critics-love-youll-love":
		// Ratings arrive on a 0..10 scale
		r := c.Rating / 10.0
		if r < 0 {
			r = 0
		}
		if r > 1 {
			r = 1
		}
		bonus += r * 0.6

	case "visually-stunning-for-you":
		if c.ContentType == models.ContentTypeMovie && c.Runtime >= 110 {
			bonus += 0.25
		}

	case "background-watching":
		if c.ContentType == models.ContentTypeSeries {
			if c.Runtime > 0 && c.Runtime <= 30 {
				bonus += 0.2
			}
			if hasAnyGenre(c.Genres, "comedy", "animation", "reality", "talk-show", "game-show") {
				bonus += 0.12
			}
		}

	case "you-missed-these":
		bonus -= ReleaseRecency(c.Year) * 0.6

	case "independent-films":
		if c.ContentType == models.ContentTypeMovie && hasAnyGenre(c.Genres, "indie", "independent") {
			bonus += 0.25
		}

	case "starring-your-favorite-actors":
		if c.ContentType == models.ContentTypeMovie && c.Pool == "people" {
			bonus += 0.30
		}
	}
	return bonus
}

func hasAnyGenre(genres []string, wanted ...string) bool {
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		for _, w := range wanted {
			if g == w {
				return true
			}
		}
	}
	return false
}
