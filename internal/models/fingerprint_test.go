// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package models

import (
	"reflect"
	"testing"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain title", "The Godfather", "the-godfather"},
		{"punctuation collapses", "WALL·E", "wall-e"},
		{"multiple separators collapse", "Spider-Man:  Into the  Spider-Verse", "spider-man-into-the-spider-verse"},
		{"leading separators trimmed", "...Rec", "rec"},
		{"trailing separators trimmed", "Akira!!!", "akira"},
		{"digits survive", "Blade Runner 2049", "blade-runner-2049"},
		{"already a slug", "the-wire", "the-wire"},
		{"nothing usable", "!!!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCandidateFingerprints(t *testing.T) {
	t.Parallel()

	c := Candidate{
		Title:       "The Godfather",
		Year:        1972,
		ContentType: ContentTypeMovie,
		IDs: ExternalIDs{
			IMDB:  "TT0068646",
			TMDB:  238,
			Trakt: 771,
			Slug:  "the-godfather-1972",
		},
	}

	want := []string{
		"movie:imdb:tt0068646",
		"movie:trakt:771",
		"movie:tmdb:238",
		"movie:slug:the-godfather-1972",
		"movie:slug:the-godfather-1972:1972",
		"movie:title:the godfather",
		"movie:title:the godfather:1972",
	}
	got := c.Fingerprints()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fingerprints() = %v, want %v", got, want)
	}
}

func TestFingerprintsSlugFallsBackToTitle(t *testing.T) {
	t.Parallel()

	c := Candidate{
		Title:       "Spirited Away",
		Year:        2001,
		ContentType: ContentTypeMovie,
	}

	want := []string{
		"movie:slug:spirited-away",
		"movie:slug:spirited-away:2001",
		"movie:title:spirited away",
		"movie:title:spirited away:2001",
	}
	got := c.Fingerprints()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fingerprints() = %v, want %v", got, want)
	}
}

func TestFingerprintsOmitYearVariantsWhenUnknown(t *testing.T) {
	t.Parallel()

	c := Candidate{
		Title:       "Dark",
		ContentType: ContentTypeSeries,
	}

	for _, fp := range c.Fingerprints() {
		switch fp {
		case "series:slug:dark", "series:title:dark":
		default:
			t.Errorf("unexpected fingerprint %q for year-less candidate", fp)
		}
	}
}

func TestFingerprintsEmptyCandidate(t *testing.T) {
	t.Parallel()

	if got := (Candidate{ContentType: ContentTypeMovie}).Fingerprints(); len(got) != 0 {
		t.Errorf("empty candidate produced fingerprints: %v", got)
	}
}

func TestHistoryAndCandidateShareScheme(t *testing.T) {
	t.Parallel()

	h := HistoryItem{
		Title:       "Oldboy",
		Year:        2003,
		ContentType: ContentTypeMovie,
		IDs:         ExternalIDs{IMDB: "tt0364569"},
	}
	c := Candidate{
		Title:       "Oldboy",
		Year:        2003,
		ContentType: ContentTypeMovie,
		IDs:         ExternalIDs{IMDB: "tt0364569"},
	}

	if !reflect.DeepEqual(h.Fingerprints(), c.Fingerprints()) {
		t.Errorf("history %v and candidate %v fingerprints diverge", h.Fingerprints(), c.Fingerprints())
	}
}

func TestFingerprintsContentTypeScoping(t *testing.T) {
	t.Parallel()

	movie := Candidate{Title: "Fargo", Year: 1996, ContentType: ContentTypeMovie}
	series := Candidate{Title: "Fargo", Year: 1996, ContentType: ContentTypeSeries}

	movieSet := make(map[string]bool)
	for _, fp := range movie.Fingerprints() {
		movieSet[fp] = true
	}
	for _, fp := range series.Fingerprints() {
		if movieSet[fp] {
			t.Errorf("fingerprint %q collides across content types", fp)
		}
	}
}
