// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package lanes

import (
	"math"
	"testing"
	"time"

	"github.com/dankeller/lanewise/internal/models"
)

const bonusEpsilon = 1e-9

func TestReleaseRecency(t *testing.T) {
	t.Parallel()

	current := time.Now().UTC().Year()

	tests := []struct {
		name string
		year int
		want float64
	}{
		{"current year scores full", current, 1.0},
		{"half window scores half", current - 10, 0.5},
		{"window edge scores zero", current - 20, 0.0},
		{"older than window scores zero", current - 40, 0.0},
		{"implausibly old scores zero", 1899, 0.0},
		{"far future scores zero", current + 2, 0.0},
		{"unknown year scores zero", 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ReleaseRecency(tt.year); math.Abs(got-tt.want) > bonusEpsilon {
				t.Errorf("ReleaseRecency(%d) = %v, want %v", tt.year, got, tt.want)
			}
		})
	}
}

func TestBonus(t *testing.T) {
	t.Parallel()

	current := time.Now().UTC().Year()

	tests := []struct {
		name      string
		laneKey   string
		candidate models.Candidate
		want      float64
	}{
		{
			name:    "critics lane rewards high ratings",
			laneKey: "critics-love-youll-love",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Rating:      8.0,
			},
			want: 0.48,
		},
		{
			name:    "critics lane clamps out-of-range ratings",
			laneKey: "critics-love-youll-love",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Rating:      14.0,
			},
			want: 0.6,
		},
		{
			name:    "critics lane ignores unrated titles",
			laneKey: "critics-love-youll-love",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
			},
			want: 0.0,
		},
		{
			name:    "visually stunning rewards long movies",
			laneKey: "visually-stunning-for-you",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Runtime:     115,
			},
			want: 0.25,
		},
		{
			name:    "visually stunning ignores standard runtimes",
			laneKey: "visually-stunning-for-you",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Runtime:     100,
			},
			want: 0.0,
		},
		{
			name:    "background watching stacks short episodes and light genres",
			laneKey: "background-watching",
			candidate: models.Candidate{
				ContentType: models.ContentTypeSeries,
				Runtime:     25,
				Genres:      []string{"Comedy"},
			},
			want: 0.32,
		},
		{
			name:    "background watching gives nothing to long heavy series",
			laneKey: "background-watching",
			candidate: models.Candidate{
				ContentType: models.ContentTypeSeries,
				Runtime:     45,
				Genres:      []string{"drama"},
			},
			want: 0.0,
		},
		{
			name:    "missed titles penalize recent releases",
			laneKey: "you-missed-these",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Year:        current,
			},
			want: -0.6,
		},
		{
			name:    "missed titles leave old releases alone",
			laneKey: "you-missed-these",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Year:        current - 30,
			},
			want: 0.0,
		},
		{
			name:    "indie lane rewards indie tags",
			laneKey: "independent-films",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Genres:      []string{"indie", "drama"},
			},
			want: 0.25,
		},
		{
			name:    "actors lane rewards filmography picks",
			laneKey: "starring-your-favorite-actors",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Pool:        "people",
			},
			want: 0.30,
		},
		{
			name:    "actors lane ignores shared pool picks",
			laneKey: "starring-your-favorite-actors",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Pool:        "trending",
			},
			want: 0.0,
		},
		{
			name:    "plain lane has no bonus",
			laneKey: "movies-for-you",
			candidate: models.Candidate{
				ContentType: models.ContentTypeMovie,
				Rating:      9.9,
				Runtime:     180,
			},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, ok := Lookup(tt.laneKey)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.laneKey)
			}
			if got := d.Bonus(tt.candidate); math.Abs(got-tt.want) > bonusEpsilon {
				t.Errorf("Bonus() = %v, want %v", got, tt.want)
			}
		})
	}
}
