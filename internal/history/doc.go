// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package history talks to the watch-history backend (Trakt v2 API
// dialect) and feeds the discovery pipeline two kinds of raw material:
// per-profile watch history for taste profiling, and account-scoped
// listing pools (recommended, trending, popular, related, filmographies)
// for local candidate generation.
//
// The package converts wire payloads into domain records at the boundary;
// nothing upstream of it sees backend JSON. Failures are classified into
// the pipeline's taxonomy: network trouble, 5xx and exhausted rate-limit
// retries wrap models.ErrTransientIO, undecodable payloads wrap
// models.ErrMalformedResponse, and credential problems stay plain errors.
// History being unreachable is an expected condition, not an emergency:
// callers respond with an empty taste profile or an empty pool.
//
// Production code should use NewBreakerClient, which adds circuit breaker
// protection around every call.
package history
