// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package lanes defines the fixed catalog of discovery lanes and the
// per-lane selection rules.
//
// The catalog is a stable set of twenty lanes in fixed presentation
// order. Lane keys, titles, and content types never change at runtime;
// configuration can override titles and item counts or disable a lane,
// but cannot add lanes. Stability matters because lane keys are the
// public contract with consuming clients and the presentation order
// doubles as the cross-lane deduplication priority.
//
// # Selection Rules
//
// Each Definition carries the constraints used when the lane is filled:
// a genre target (a window into the profile's ranked genres, or a fixed
// set), optional runtime and language bounds, and pool assembly hints.
// Constraints come in two strengths. Soft constraints are relaxed in
// stages when a lane cannot reach its item target. Strict constraints
// (StrictGenres, NonEnglish) define the lane's identity and are never
// relaxed; a short lane is preferable to an off-brand one.
//
// # Scoring Hooks
//
// Definition.Bonus adjusts a candidate's relevance score with the
// lane's editorial slant, e.g. the critics lane rewards high ratings
// and the missed-titles lane penalizes recent releases. Base relevance
// scoring is lane-agnostic and lives with the generator.
package lanes
