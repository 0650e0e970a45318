// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package models

import "errors"

// Pipeline error taxonomy.
//
// Every failure crossing a package boundary in the generation pipeline wraps
// exactly one of these sentinels so callers can branch with errors.Is rather
// than string matching. The taxonomy is deliberately small:
//
//   - ErrTransientIO: timeouts, connection resets, 5xx responses. Worth
//     retrying within the attempt budget.
//   - ErrMalformedResponse: the backend answered but the payload failed to
//     decode or failed validation. Retrying may still help because remote
//     generation is non-deterministic.
//   - ErrBackendExhausted: the attempt budget for a backend is spent, or its
//     circuit breaker is open. The caller moves to the next fallback stage.
//   - ErrNoDataAvailable: no backend produced anything usable and history
//     offers no material to fall back on. Terminal for the operation.
var (
	ErrTransientIO       = errors.New("transient io failure")
	ErrMalformedResponse = errors.New("malformed backend response")
	ErrBackendExhausted  = errors.New("backend attempts exhausted")
	ErrNoDataAvailable   = errors.New("no data available")
)
