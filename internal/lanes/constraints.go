// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package lanes

import (
	"strings"
)

// IncludeGenres resolves the lane's genre constraint against a profile's
// ranked top genres. It returns nil when the lane has no genre constraint
// or when the resolution produces an empty set (a profile with two known
// genres has nothing for a lane targeting ranks three through six).
//
// topGenres is ordered most-watched first, already lowercased.
func (d Definition) IncludeGenres(topGenres []string) []string {
	if len(d.FixedGenres) > 0 {
		if !d.IntersectTopGenres {
			return append([]string(nil), d.FixedGenres...)
		}
		ranked := make(map[string]bool, len(topGenres))
		for _, g := range topGenres {
			ranked[g] = true
		}
		var out []string
		for _, g := range d.FixedGenres {
			if ranked[g] {
				out = append(out, g)
			}
		}
		return out
	}

	if d.GenreHigh <= d.GenreLow {
		return nil
	}
	low, high := d.GenreLow, d.GenreHigh
	if low >= len(topGenres) {
		return nil
	}
	if high > len(topGenres) {
		high = len(topGenres)
	}
	var out []string
	for _, g := range topGenres[low:high] {
		if g != "" {
			out = append(out, g)
		}
	}
	return out
}

// MatchesGenres reports whether a candidate's genres satisfy an include
// set. An empty include set matches everything.
func MatchesGenres(include []string, candidateGenres []string) bool {
	if len(include) == 0 {
		return true
	}
	for _, cg := range candidateGenres {
		cg = strings.ToLower(strings.TrimSpace(cg))
		for _, ig := range include {
			if cg == ig {
				return true
			}
		}
	}
	return false
}

// MatchesRuntime reports whether a candidate's runtime satisfies the
// lane's bounds. Unknown runtimes (zero) fail any bound.
func (d Definition) MatchesRuntime(runtime int) bool {
	if d.MinRuntime == 0 && d.MaxRuntime == 0 {
		return true
	}
	if runtime <= 0 {
		return false
	}
	if d.MinRuntime > 0 && runtime < d.MinRuntime {
		return false
	}
	if d.MaxRuntime > 0 && runtime > d.MaxRuntime {
		return false
	}
	return true
}

// MatchesLanguage reports whether a candidate's language satisfies the
// lane's language constraint.
func (d Definition) MatchesLanguage(language string) bool {
	if !d.NonEnglish {
		return true
	}
	lang := strings.ToLower(strings.TrimSpace(language))
	return lang != "" && lang != "en"
}

// Override adjusts a lane's presentation or sizing from configuration.
type Override struct {
	Title       string
	Description string
	ItemCount   int
	Disabled    bool
}

// Resolve produces the effective lane set for a refresh cycle: catalog
// order, disabled lanes removed, item targets and presentation overrides
// applied. Overrides for unknown lane keys are ignored.
func Resolve(itemTarget int, overrides map[string]Override) []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		d.ItemTarget = itemTarget
		if ov, ok := overrides[d.Key]; ok {
			if ov.Disabled {
				continue
			}
			if ov.Title != "" {
				d.Title = ov.Title
			}
			if ov.Description != "" {
				d.Description = ov.Description
			}
			if ov.ItemCount > 0 {
				d.ItemTarget = ov.ItemCount
			}
		}
		out = append(out, d)
	}
	return out
}
