// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

/*
Package models defines the data structures shared across Lanewise.

It is the single source of truth for the discovery domain: candidates,
lane results, taste profiles, watch-history records, profile status, and
the standardized API envelope. Packages higher in the stack (generation,
storage, HTTP API) depend on models and never on each other's internals.

Key Components:

  - Candidate: one recommended title with provenance and catalog metadata
  - LaneResult: the committed content of one lane for one profile
  - TasteProfile: aggregated taste signal derived from watch history
  - HistoryItem: one normalized watch-history record from the media backend
  - ProfileStatus / ProfileMeta: lifecycle snapshot and persisted bookkeeping
  - APIResponse / APIError / Metadata: HTTP envelope shared by all endpoints

Identity And Deduplication:

Candidates and history records share one fingerprint scheme (see
Candidate.Fingerprints). Two titles are the same title when any fingerprint
collides, which lets ID-less generator output dedupe against fully
identified history records through slug and title keys.

Error Taxonomy:

The four pipeline sentinels (ErrTransientIO, ErrMalformedResponse,
ErrBackendExhausted, ErrNoDataAvailable) classify every failure crossing a
pipeline package boundary. Producers wrap them with %w; consumers branch
with errors.Is.

Thread Safety:

All models are plain data structures, safe for concurrent reads and
copied or swapped whole rather than mutated in place.
*/
package models
