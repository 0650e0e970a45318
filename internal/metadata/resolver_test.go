// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package metadata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/models"
)

func resolverForTest(t *testing.T, handler http.HandlerFunc) *Resolver {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewResolver(&config.MetadataConfig{
		URL:         server.URL,
		Concurrency: 4,
		Timeout:     5 * time.Second,
	})
}

const duneMetas = `{"metas":[
	{"id":"tt1160419","name":"Dune","releaseInfo":"2021","poster":"p2021","background":"b2021"},
	{"id":"tt0087182","name":"Dune","releaseInfo":"1984","poster":"p1984"},
	{"id":"tt0142032","name":"Dune World","releaseInfo":"1985","poster":"pworld"}]}`

func TestResolverDisabledWithoutURL(t *testing.T) {
	t.Parallel()

	if r := NewResolver(&config.MetadataConfig{}); r != nil {
		t.Error("NewResolver() without URL = non-nil, want nil")
	}

	// A nil resolver must be safe to enrich through.
	var r *Resolver
	items := []models.Candidate{{Title: "Heat"}}
	r.Enrich(context.Background(), items)
}

func TestResolveBestMatch(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		year   int
		wantID string
	}{
		{name: "exact slug and year", title: "Dune", year: 1984, wantID: "tt0087182"},
		{name: "slug with closest year", title: "Dune", year: 1990, wantID: "tt0087182"},
		{name: "slug match without year", title: "Dune", year: 0, wantID: "tt1160419"},
		{name: "closest year without slug match", title: "Doon", year: 1986, wantID: "tt0142032"},
		{name: "first result as last resort", title: "Doon", year: 0, wantID: "tt1160419"},
	}

	r := resolverForTest(t, func(w http.ResponseWriter, req *http.Request) {
		if !strings.Contains(req.URL.Path, "/catalog/movie/top/search=") {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		io.WriteString(w, duneMetas)
	})

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			match, err := r.Resolve(context.Background(), tt.title, tt.year, models.ContentTypeMovie)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if match.IMDBID != tt.wantID {
				t.Errorf("Resolve() = %s, want %s", match.IMDBID, tt.wantID)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	r := resolverForTest(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"metas":[]}`)
	})

	_, err := r.Resolve(context.Background(), "Nonexistent", 2000, models.ContentTypeMovie)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolveRetriesOnce(t *testing.T) {
	calls := 0
	r := resolverForTest(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		io.WriteString(w, duneMetas)
	})

	match, err := r.Resolve(context.Background(), "Dune", 2021, models.ContentTypeMovie)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("service called %d times, want 2", calls)
	}
	if match.IMDBID != "tt1160419" {
		t.Errorf("Resolve() = %s, want tt1160419", match.IMDBID)
	}
}

func TestEnrichKeepsUnmatched(t *testing.T) {
	r := resolverForTest(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "search=Dune") {
			io.WriteString(w, duneMetas)
			return
		}
		io.WriteString(w, `{"metas":[]}`)
	})

	items := []models.Candidate{
		{Title: "Dune", Year: 2021, ContentType: models.ContentTypeMovie},
		{Title: "Totally Unknown", Year: 2020, ContentType: models.ContentTypeMovie, Overview: "kept"},
	}
	r.Enrich(context.Background(), items)

	if items[0].IDs.IMDB != "tt1160419" || items[0].Poster != "p2021" {
		t.Errorf("matched candidate not enriched: %+v", items[0])
	}
	if items[1].Title != "Totally Unknown" || items[1].Overview != "kept" {
		t.Errorf("unmatched candidate was altered: %+v", items[1])
	}
}

func TestReleaseYear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		info string
		want int
	}{
		{"1995", 1995},
		{"2002-2008", 2002},
		{"2024-", 2024},
		{"", 0},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := releaseYear(tt.info); got != tt.want {
			t.Errorf("releaseYear(%q) = %d, want %d", tt.info, got, tt.want)
		}
	}
}
