// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package models

import (
	"time"
)

// APIResponse is the standardized wrapper returned by every HTTP endpoint.
// It gives success and error payloads the same outer shape so clients can
// branch on Status alone.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"lane_key": "movies-for-you", "items": [...]},
//	  "metadata": {"timestamp": "2026-08-21T12:00:00Z", "query_time_ms": 3}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "LANE_NOT_FOUND", "message": "unknown lane key"},
//	  "metadata": {"timestamp": "2026-08-21T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields. Cached is set when the
// payload was served from the lane cache rather than generated on demand.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is the structured error body inside an APIResponse.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - PROFILE_NOT_FOUND: profile has no cache entry and no history
//   - LANE_NOT_FOUND: lane key is not in the catalog
//   - LANE_NOT_READY: generation is still in flight for a degraded profile
//   - AUTHENTICATION_ERROR: invalid or missing credentials
//   - RATE_LIMIT_EXCEEDED: too many requests
//   - INTERNAL_ERROR: everything else
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LoginRequest is the credential payload for JWT authentication.
//
// Security:
//   - password travels in plaintext, HTTPS is required in front of Lanewise
//   - the configured admin password is stored as a bcrypt hash
//   - login attempts are rate limited per client IP
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse returns the signed token for subsequent requests. Clients
// send it back as "Authorization: Bearer <token>".
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}
