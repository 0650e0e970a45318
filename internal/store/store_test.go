// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(&config.StoreConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestProfileMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetProfileMeta("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProfileMeta() before write: error = %v, want ErrNotFound", err)
	}

	meta := &models.ProfileMeta{
		ProfileID:     "alice",
		State:         models.StateIdle,
		LastRefreshAt: time.Now().UTC().Truncate(time.Second),
		LastCycleID:   "cycle-1",
	}
	if err := s.PutProfileMeta(meta); err != nil {
		t.Fatalf("PutProfileMeta() error = %v", err)
	}

	got, err := s.GetProfileMeta("alice")
	if err != nil {
		t.Fatalf("GetProfileMeta() error = %v", err)
	}
	if got.ProfileID != "alice" || got.State != models.StateIdle || got.LastCycleID != "cycle-1" {
		t.Errorf("GetProfileMeta() = %+v, want round-tripped meta", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("PutProfileMeta() did not stamp UpdatedAt")
	}
}

func TestLaneResultRoundTrip(t *testing.T) {
	s := openTestStore(t)

	result := &models.LaneResult{
		LaneKey:     "movies-for-you",
		Title:       "Movies For You",
		ContentType: models.ContentTypeMovie,
		Source:      models.SourceLocal,
		Items: []models.Candidate{
			{Title: "Heat", Year: 1995, ContentType: models.ContentTypeMovie, Source: models.SourceLocal},
		},
		GeneratedAt: time.Now().UTC(),
		CycleID:     "cycle-1",
	}
	if err := s.PutLaneResult("alice", result); err != nil {
		t.Fatalf("PutLaneResult() error = %v", err)
	}

	got, err := s.GetLaneResult("alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLaneResult() error = %v", err)
	}
	if got.LaneKey != "movies-for-you" || len(got.Items) != 1 || got.Items[0].Title != "Heat" {
		t.Errorf("GetLaneResult() = %+v, want stored result", got)
	}

	if _, err := s.GetLaneResult("alice", "series-for-you"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLaneResult() for missing lane: error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetLaneResult("bob", "movies-for-you"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLaneResult() for other profile: error = %v, want ErrNotFound", err)
	}
}

func TestPutLaneResultReplacesAtomically(t *testing.T) {
	s := openTestStore(t)

	first := &models.LaneResult{
		LaneKey: "movies-for-you",
		Items: []models.Candidate{
			{Title: "Heat", ContentType: models.ContentTypeMovie},
			{Title: "Ronin", ContentType: models.ContentTypeMovie},
		},
		CycleID: "cycle-1",
	}
	second := &models.LaneResult{
		LaneKey: "movies-for-you",
		Items: []models.Candidate{
			{Title: "Collateral", ContentType: models.ContentTypeMovie},
		},
		CycleID: "cycle-2",
	}

	if err := s.PutLaneResult("alice", first); err != nil {
		t.Fatalf("PutLaneResult() error = %v", err)
	}
	if err := s.PutLaneResult("alice", second); err != nil {
		t.Fatalf("PutLaneResult() error = %v", err)
	}

	got, err := s.GetLaneResult("alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLaneResult() error = %v", err)
	}
	if got.CycleID != "cycle-2" || len(got.Items) != 1 {
		t.Errorf("GetLaneResult() = cycle %s with %d items, want complete replacement from cycle-2",
			got.CycleID, len(got.Items))
	}
}

func TestListLaneResultsScopedToProfile(t *testing.T) {
	s := openTestStore(t)

	for _, lane := range []string{"movies-for-you", "series-for-you", "international-picks"} {
		err := s.PutLaneResult("alice", &models.LaneResult{LaneKey: lane})
		if err != nil {
			t.Fatalf("PutLaneResult(%s) error = %v", lane, err)
		}
	}
	if err := s.PutLaneResult("bob", &models.LaneResult{LaneKey: "movies-for-you"}); err != nil {
		t.Fatalf("PutLaneResult() error = %v", err)
	}

	results, err := s.ListLaneResults("alice")
	if err != nil {
		t.Fatalf("ListLaneResults() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("ListLaneResults() returned %d lanes, want 3", len(results))
	}
}

func TestListProfileIDs(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"alice", "bob"} {
		if err := s.PutProfileMeta(&models.ProfileMeta{ProfileID: id}); err != nil {
			t.Fatalf("PutProfileMeta(%s) error = %v", id, err)
		}
	}

	ids, err := s.ListProfileIDs()
	if err != nil {
		t.Fatalf("ListProfileIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Errorf("ListProfileIDs() = %v, want [alice bob]", ids)
	}
}

func TestServedIndexAppendAndCap(t *testing.T) {
	s := openTestStore(t)

	index, err := s.GetServedIndex("alice")
	if err != nil {
		t.Fatalf("GetServedIndex() error = %v", err)
	}
	if len(index.Fingerprints) != 0 {
		t.Fatalf("GetServedIndex() for new profile returned %d fingerprints, want 0", len(index.Fingerprints))
	}

	if err := s.AppendServed("alice", []string{"movie:imdb:tt1", "movie:imdb:tt2", "movie:imdb:tt1", ""}); err != nil {
		t.Fatalf("AppendServed() error = %v", err)
	}
	if err := s.AppendServed("alice", []string{"movie:imdb:tt2", "movie:imdb:tt3"}); err != nil {
		t.Fatalf("AppendServed() error = %v", err)
	}

	index, err = s.GetServedIndex("alice")
	if err != nil {
		t.Fatalf("GetServedIndex() error = %v", err)
	}
	want := []string{"movie:imdb:tt1", "movie:imdb:tt2", "movie:imdb:tt3"}
	if len(index.Fingerprints) != len(want) {
		t.Fatalf("served index = %v, want %v", index.Fingerprints, want)
	}
	for i, fp := range want {
		if index.Fingerprints[i] != fp {
			t.Errorf("served index[%d] = %s, want %s", i, index.Fingerprints[i], fp)
		}
	}

	set := index.Set()
	if !set["movie:imdb:tt1"] || set["movie:imdb:tt9"] {
		t.Error("Set() does not reflect stored fingerprints")
	}
}

func TestDeleteProfile(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutProfileMeta(&models.ProfileMeta{ProfileID: "alice"}); err != nil {
		t.Fatalf("PutProfileMeta() error = %v", err)
	}
	if err := s.PutLaneResult("alice", &models.LaneResult{LaneKey: "movies-for-you"}); err != nil {
		t.Fatalf("PutLaneResult() error = %v", err)
	}
	if err := s.AppendServed("alice", []string{"movie:imdb:tt1"}); err != nil {
		t.Fatalf("AppendServed() error = %v", err)
	}

	if err := s.DeleteProfile("alice"); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}

	if _, err := s.GetProfileMeta("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfileMeta() after delete: error = %v, want ErrNotFound", err)
	}
	results, err := s.ListLaneResults("alice")
	if err != nil {
		t.Fatalf("ListLaneResults() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("ListLaneResults() after delete returned %d lanes, want 0", len(results))
	}
}

func TestRunGCInMemory(t *testing.T) {
	s, err := Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.PutProfileMeta(&models.ProfileMeta{ProfileID: "alice"}); err != nil {
		t.Fatalf("PutProfileMeta() error = %v", err)
	}
	if err := s.RunGC(); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}
}
