// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package taste reduces raw watch history into the compact TasteProfile
// that drives lane generation.
//
// Every tally is recency-weighted: a watch contributes its decay weight,
// which halves every configured half-life and never drops below the
// configured floor. The profile also carries the full fingerprint set of
// everything the user has watched, which seeds each cycle's exclusion
// set.
//
// Building never fails. Unreachable history produces an empty profile so
// the local generator and fallback paths can still run; an empty profile
// simply carries no signal.
package taste
