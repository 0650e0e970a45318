// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package generate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/lanes"
	"github.com/dankeller/lanewise/internal/models"
)

func remoteForTest(t *testing.T, url string, retries int) *Remote {
	t.Helper()
	return NewRemote(&config.GenerationConfig{
		Mode:       "remote",
		URL:        url,
		APIKey:     "test-key",
		Model:      "test-model",
		Timeout:    5 * time.Second,
		RetryLimit: retries,
	})
}

func completionBody(t *testing.T, content string) string {
	t.Helper()
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshaling completion: %v", err)
	}
	return string(data)
}

func movieLane(count int) lanes.Definition {
	d, _ := lanes.Lookup("movies-for-you")
	d.ItemTarget = count
	return d
}

func TestRemoteGenerateFullLane(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		io.WriteString(w, completionBody(t,
			`{"items":[{"title":"Heat","type":"movie","year":1995},{"title":"Ronin","type":"movie","year":1998}]}`))
	}))
	defer server.Close()

	r := remoteForTest(t, server.URL, 3)
	got, err := r.Generate(context.Background(), Request{
		Lane:       movieLane(2),
		Exclusions: map[string]bool{},
		Seed:       "seed",
		Count:      2,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got) != 2 || got[0].Title != "Heat" || got[1].Title != "Ronin" {
		t.Errorf("Generate() = %v, want Heat and Ronin", got)
	}
	for _, c := range got {
		if c.Source != models.SourceRemote {
			t.Errorf("candidate %s source = %s, want remote", c.Title, c.Source)
		}
	}
}

func TestRemoteGenerateRetriesWithGrownExclusions(t *testing.T) {
	var prompts []string
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		prompts = append(prompts, req.Messages[len(req.Messages)-1].Content)

		call++
		switch call {
		case 1:
			// Three usable records, two malformed ones that must be
			// dropped without failing the call.
			io.WriteString(w, completionBody(t,
				`{"items":[
					{"title":"Heat","type":"movie","year":1995},
					{"title":"","type":"movie","year":2001},
					{"title":"Ronin","type":"movie","year":1998},
					{"title":"Ghost Year","type":"movie","year":1700},
					{"title":"Collateral","type":"movie","year":2004}]}`))
		default:
			io.WriteString(w, completionBody(t,
				`{"items":[
					{"title":"Thief","type":"movie","year":1981},
					{"title":"Manhunter","type":"movie","year":1986},
					{"title":"Drive","type":"movie","year":2011},
					{"title":"Nightcrawler","type":"movie","year":2014},
					{"title":"Sicario","type":"movie","year":2015}]}`))
		}
	}))
	defer server.Close()

	r := remoteForTest(t, server.URL, 3)
	got, err := r.Generate(context.Background(), Request{
		Lane:       movieLane(8),
		Exclusions: map[string]bool{},
		Seed:       "seed",
		Count:      8,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("Generate() returned %d items, want 8", len(got))
	}
	if call != 2 {
		t.Fatalf("backend called %d times, want 2", call)
	}

	second := prompts[1]
	if !strings.Contains(second, "exactly 5 movies") {
		t.Errorf("retry prompt does not ask for the 5 missing items:\n%s", second)
	}
	for _, title := range []string{"Heat", "Ronin", "Collateral"} {
		if !strings.Contains(second, title) {
			t.Errorf("retry prompt does not exclude already accepted %q:\n%s", title, second)
		}
	}
}

func TestRemoteGenerateSkipsExcludedAndDuplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, completionBody(t,
			`{"items":[
				{"title":"Heat","type":"movie","year":1995},
				{"title":"Heat","type":"movie","year":1995},
				{"title":"Ronin","type":"movie","year":1998}]}`))
	}))
	defer server.Close()

	heat := models.Candidate{Title: "Heat", Year: 1995, ContentType: models.ContentTypeMovie}
	exclusions := map[string]bool{}
	for _, fp := range heat.Fingerprints() {
		exclusions[fp] = true
	}

	r := remoteForTest(t, server.URL, 1)
	got, err := r.Generate(context.Background(), Request{
		Lane:       movieLane(1),
		Exclusions: exclusions,
		Seed:       "seed",
		Count:      1,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "Ronin" {
		t.Errorf("Generate() = %v, want only Ronin", got)
	}
}

func TestRemoteGenerateExhaustionKeepsPartial(t *testing.T) {
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 1 {
			io.WriteString(w, completionBody(t,
				`{"items":[{"title":"Heat","type":"movie","year":1995}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := remoteForTest(t, server.URL, 2)
	got, err := r.Generate(context.Background(), Request{
		Lane:       movieLane(3),
		Exclusions: map[string]bool{},
		Seed:       "seed",
		Count:      3,
	})
	if !errors.Is(err, models.ErrBackendExhausted) {
		t.Fatalf("Generate() error = %v, want ErrBackendExhausted", err)
	}
	if len(got) != 1 || got[0].Title != "Heat" {
		t.Errorf("Generate() = %v, want accumulated partial [Heat]", got)
	}
}

func TestParseGeneratedItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		content     string
		wantItems   int
		wantDropped int
		wantErr     error
	}{
		{
			name:      "plain object",
			content:   `{"items":[{"title":"Heat","type":"movie","year":1995}]}`,
			wantItems: 1,
		},
		{
			name:      "fenced object",
			content:   "Here you go:\n```json\n{\"items\":[{\"title\":\"Heat\",\"type\":\"movie\",\"year\":1995}]}\n```",
			wantItems: 1,
		},
		{
			name:        "wrong content type dropped",
			content:     `{"items":[{"title":"The Wire","type":"series","year":2002},{"title":"Heat","type":"movie","year":1995}]}`,
			wantItems:   1,
			wantDropped: 1,
		},
		{
			name:        "impossible year dropped",
			content:     `{"items":[{"title":"Heat","type":"movie","year":1700}]}`,
			wantDropped: 1,
		},
		{
			name:    "no object at all",
			content: "I cannot help with that.",
			wantErr: models.ErrMalformedResponse,
		},
		{
			name:    "items field missing",
			content: `{"recommendations":[]}`,
			wantErr: models.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			items, dropped, err := parseGeneratedItems(tt.content, models.ContentTypeMovie)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseGeneratedItems() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGeneratedItems() error = %v", err)
			}
			if len(items) != tt.wantItems {
				t.Errorf("parseGeneratedItems() returned %d items, want %d", len(items), tt.wantItems)
			}
			if dropped != tt.wantDropped {
				t.Errorf("parseGeneratedItems() dropped %d, want %d", dropped, tt.wantDropped)
			}
		})
	}
}
