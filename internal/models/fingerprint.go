// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package models

import (
	"strconv"
	"strings"
)

// Fingerprints returns every identity key the candidate answers to.
//
// Key scheme, strongest first:
//
//	{type}:imdb:{id}
//	{type}:trakt:{id}
//	{type}:tmdb:{id}
//	{type}:slug:{slug}            and {type}:slug:{slug}:{year}
//	{type}:title:{lower-title}    and {type}:title:{lower-title}:{year}
//
// A title is considered a duplicate of another when any fingerprint collides,
// so ID-less candidates still dedupe against history via slug and title keys.
func (c Candidate) Fingerprints() []string {
	return fingerprintKeys(c.ContentType, c.IDs, c.Title, c.Year)
}

// Fingerprints returns the identity keys for a history record. The scheme is
// identical to Candidate.Fingerprints so history and candidates share one
// exclusion space.
func (h HistoryItem) Fingerprints() []string {
	return fingerprintKeys(h.ContentType, h.IDs, h.Title, h.Year)
}

func fingerprintKeys(ct ContentType, ids ExternalIDs, title string, year int) []string {
	prefix := string(ct)
	keys := make([]string, 0, 7)

	if v := strings.ToLower(strings.TrimSpace(ids.IMDB)); v != "" {
		keys = append(keys, prefix+":imdb:"+v)
	}
	if ids.Trakt > 0 {
		keys = append(keys, prefix+":trakt:"+strconv.FormatInt(ids.Trakt, 10))
	}
	if ids.TMDB > 0 {
		keys = append(keys, prefix+":tmdb:"+strconv.FormatInt(ids.TMDB, 10))
	}
	slugSource := ids.Slug
	if strings.TrimSpace(slugSource) == "" {
		slugSource = title
	}
	if slug := Slugify(slugSource); slug != "" {
		keys = append(keys, prefix+":slug:"+slug)
		if year > 0 {
			keys = append(keys, prefix+":slug:"+slug+":"+strconv.Itoa(year))
		}
	}
	if lowered := strings.ToLower(strings.TrimSpace(title)); lowered != "" {
		keys = append(keys, prefix+":title:"+lowered)
		if year > 0 {
			keys = append(keys, prefix+":title:"+lowered+":"+strconv.Itoa(year))
		}
	}
	return keys
}

// Slugify normalizes a string into a URL-friendly slug: ASCII letters and
// digits survive, every other run of characters collapses to a single
// hyphen. Returns "" for input with no usable characters.
func Slugify(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	lastHyphen := true // suppress leading hyphen
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
