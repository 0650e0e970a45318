// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package generate produces lane candidates. Three generators share one
// contract: the remote generator prompts a chat-completions backend, the
// local generator ranks listing pools heuristically, and the fallback
// generator replays history highlights when everything upstream is down.
//
// Generators are stateless between cycles; all per-cycle state (pools,
// exclusion sets, seeds) travels in the Request or in the pool set the
// orchestrator builds per cycle.
package generate

import (
	"context"
	"strings"

	"github.com/dankeller/lanewise/internal/lanes"
	"github.com/dankeller/lanewise/internal/models"
)

// Request describes one lane-fill attempt.
type Request struct {
	Lane    lanes.Definition
	Profile *models.TasteProfile

	// Exclusions maps fingerprint to true for every title this lane must
	// not produce: the profile's history plus whatever earlier lanes have
	// already claimed. Each lane gets its own copy; generators may extend
	// it while accumulating.
	Exclusions map[string]bool

	// Served holds fingerprints published in earlier cycles. Served
	// titles are penalized rather than excluded, and only a deterministic
	// fraction may reappear at all.
	Served map[string]bool

	// Seed is the cycle seed driving every stochastic choice.
	Seed string

	// Count is the number of items wanted. Generators return at most
	// Count candidates; fewer is a shortfall the orchestrator tops up.
	Count int
}

// Generator fills one lane with candidates.
//
// A short or empty result with a nil error is a valid degraded outcome;
// errors wrap the models sentinel taxonomy so callers can branch on
// errors.Is without knowing generator internals.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]models.Candidate, error)
}

// normalizeKey matches the lowercased keying the taste builder uses for
// its tally maps.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cloneSet copies a fingerprint set so a generator can extend it without
// mutating the caller's view.
func cloneSet(set map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for k, v := range set {
		if v {
			out[k] = true
		}
	}
	return out
}

// primaryFingerprint returns the candidate's strongest identity key, or
// "" when the candidate carries no identity at all (for instance a
// whitespace-only title with no external IDs).
func primaryFingerprint(c models.Candidate) string {
	fps := c.Fingerprints()
	if len(fps) == 0 {
		return ""
	}
	return fps[0]
}

// excluded reports whether any of the candidate's fingerprints is claimed.
func excluded(c models.Candidate, set map[string]bool) bool {
	for _, fp := range c.Fingerprints() {
		if set[fp] {
			return true
		}
	}
	return false
}

// claim marks all of the candidate's fingerprints in the set.
func claim(c models.Candidate, set map[string]bool) {
	for _, fp := range c.Fingerprints() {
		set[fp] = true
	}
}

// servedHit reports whether any fingerprint of the candidate was already
// published to the profile.
func servedHit(c models.Candidate, served map[string]bool) bool {
	if len(served) == 0 {
		return false
	}
	for _, fp := range c.Fingerprints() {
		if served[fp] {
			return true
		}
	}
	return false
}
