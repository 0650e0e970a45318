// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package api

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/models"
)

// respondJSON writes a success envelope with an ETag derived from the
// body, honoring If-None-Match with 304.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}, started time.Time) {
	response := models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	}

	body, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Encoding response failed")
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}

	etag := generateETag(body)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondError writes an error envelope with a machine-readable code.
func respondError(w http.ResponseWriter, status int, code, message string) {
	response := models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}

	body, err := json.Marshal(response)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// generateETag hashes the response body with FNV-1a. Weak by HTTP
// semantics but cheap, and identical bodies always produce identical
// tags, which is all conditional GET needs here.
func generateETag(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)
	return fmt.Sprintf(`"%x"`, h.Sum64())
}

// parseBoolParam reads a query flag: absent or anything but "true"/"1"
// is false.
func parseBoolParam(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "true", "1":
		return true
	default:
		return false
	}
}

// sanitizeLogValue strips newlines from request-derived values before
// they reach the logs, against log injection.
func sanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", "")
	value = strings.ReplaceAll(value, "\r", "")
	if len(value) > 128 {
		value = value[:128]
	}
	return value
}
