// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/generate"
	"github.com/dankeller/lanewise/internal/history"
	"github.com/dankeller/lanewise/internal/lanes"
	"github.com/dankeller/lanewise/internal/models"
	"github.com/dankeller/lanewise/internal/store"
)

// fakeHistory is a canned history backend.
type fakeHistory struct {
	items    []models.HistoryItem
	listings map[string][]models.Candidate
	fetches  atomic.Int64
	fail     bool
}

func (f *fakeHistory) Ping(context.Context) error { return nil }

func (f *fakeHistory) FetchHistory(_ context.Context, _ string, ct models.ContentType, _ int) ([]models.HistoryItem, error) {
	f.fetches.Add(1)
	if f.fail {
		return nil, models.ErrTransientIO
	}
	var out []models.HistoryItem
	for _, item := range f.items {
		if item.ContentType == ct {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeHistory) FetchListings(ctx context.Context, category string, ct models.ContentType) ([]models.Candidate, error) {
	return f.FetchListingsFiltered(ctx, category, ct, nil, 0)
}

func (f *fakeHistory) FetchListingsFiltered(_ context.Context, category string, ct models.ContentType, _ []string, _ int) ([]models.Candidate, error) {
	if f.fail {
		return nil, models.ErrTransientIO
	}
	return f.listings[category+":"+string(ct)], nil
}

func (f *fakeHistory) FetchRelated(context.Context, models.ContentType, int64, int) ([]models.Candidate, error) {
	return nil, nil
}

func (f *fakeHistory) FetchCast(context.Context, models.ContentType, int64) ([]history.CastMember, error) {
	return nil, nil
}

func (f *fakeHistory) FetchPersonCredits(context.Context, int64, models.ContentType) ([]models.Candidate, error) {
	return nil, nil
}

// scriptedGen is an injectable generator with optional gating.
type scriptedGen struct {
	fn      func(req generate.Request) ([]models.Candidate, error)
	entered chan struct{} // closed once on first call, if set
	gate    chan struct{} // calls block until closed, if set

	mu        sync.Mutex
	calls     int
	enterOnce sync.Once
}

func (s *scriptedGen) Name() string { return "remote" }

func (s *scriptedGen) Generate(_ context.Context, req generate.Request) ([]models.Candidate, error) {
	if s.entered != nil {
		s.enterOnce.Do(func() { close(s.entered) })
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(req)
}

func (s *scriptedGen) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// testConfig keeps two lanes enabled so cycles stay small and predictable.
func testConfig() *config.Config {
	overrides := make(map[string]config.LaneOverride)
	for _, key := range lanes.Keys() {
		if key == "movies-for-you" || key == "series-for-you" {
			continue
		}
		overrides[key] = config.LaneOverride{Disabled: true}
	}

	return &config.Config{
		History:    config.HistoryConfig{Timeout: time.Second},
		Generation: config.GenerationConfig{Mode: "local", Timeout: 2 * time.Second, RetryLimit: 2, Fanout: 4},
		Lanes:      config.LanesConfig{ItemCount: 4, Overrides: overrides},
		Refresh: config.RefreshConfig{
			Interval:         12 * time.Hour,
			ResponseCacheTTL: 30 * time.Minute,
			PollInterval:     time.Minute,
		},
		Taste: config.TasteConfig{
			DecayHalfLife:   180 * 24 * time.Hour,
			DecayFloor:      0.1,
			Highlights:      12,
			RelaxationSteps: 4,
		},
		Store: config.StoreConfig{InMemory: true},
	}
}

func testEngine(t *testing.T, cfg *config.Config, hist history.ClientInterface) *Engine {
	t.Helper()

	st, err := store.Open(&cfg.Store)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return New(cfg, st, hist, nil)
}

func watchedMovies(n int) []models.HistoryItem {
	now := time.Now()
	out := make([]models.HistoryItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.HistoryItem{
			Title:       fmt.Sprintf("Watched %d", i),
			Year:        2010 + i%10,
			ContentType: models.ContentTypeMovie,
			Genres:      []string{"crime"},
			Language:    "en",
			WatchedAt:   now.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	return out
}

func poolOf(prefix string, ct models.ContentType, n int) []models.Candidate {
	out := make([]models.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Candidate{
			Title:       fmt.Sprintf("%s %d", prefix, i),
			Year:        2015 + i%8,
			ContentType: ct,
			Genres:      []string{"crime"},
			Language:    "en",
		})
	}
	return out
}

func defaultFake() *fakeHistory {
	return &fakeHistory{
		items: watchedMovies(10),
		listings: map[string][]models.Candidate{
			"trending:movie":  poolOf("Movie", models.ContentTypeMovie, 30),
			"popular:movie":   poolOf("Flick", models.ContentTypeMovie, 30),
			"trending:series": poolOf("Show", models.ContentTypeSeries, 30),
			"popular:series":  poolOf("Serial", models.ContentTypeSeries, 30),
		},
	}
}

func TestPrepareGeneratesLanes(t *testing.T) {
	e := testEngine(t, testConfig(), defaultFake())

	status, err := e.Prepare(context.Background(), "alice", false, true)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if status.State != models.StateIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
	if status.ReadyLanes != 2 {
		t.Errorf("ready lanes = %d, want 2", status.ReadyLanes)
	}
	if status.LastRefreshAt == nil || status.NextRefreshAt == nil {
		t.Error("refresh timestamps not set after a completed cycle")
	}

	lane, err := e.GetLane(context.Background(), "alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLane() error = %v", err)
	}
	if len(lane.Items) != 4 {
		t.Errorf("lane has %d items, want 4", len(lane.Items))
	}
}

func TestCycleExcludesWatchedTitles(t *testing.T) {
	fake := defaultFake()
	// Plant history titles inside the pools; they must never surface.
	fake.listings["trending:movie"] = append(
		[]models.Candidate{
			{Title: "Watched 0", Year: 2010, ContentType: models.ContentTypeMovie, Genres: []string{"crime"}, Language: "en"},
			{Title: "Watched 1", Year: 2011, ContentType: models.ContentTypeMovie, Genres: []string{"crime"}, Language: "en"},
		},
		fake.listings["trending:movie"]...,
	)

	e := testEngine(t, testConfig(), fake)
	if _, err := e.Prepare(context.Background(), "alice", false, true); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	lane, err := e.GetLane(context.Background(), "alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLane() error = %v", err)
	}
	watched := map[string]bool{"Watched 0": true, "Watched 1": true}
	for _, c := range lane.Items {
		if watched[c.Title] {
			t.Errorf("watched title %q surfaced in lane", c.Title)
		}
	}
}

func TestCrossLaneDedupKeepsEarlierLane(t *testing.T) {
	cfg := testConfig()
	fake := defaultFake()
	e := testEngine(t, cfg, fake)

	// Both movie lanes enabled now; the scripted generator returns the
	// same contested titles for every movie lane.
	for _, key := range []string{"your-comfort-zone"} {
		delete(cfg.Lanes.Overrides, key)
	}

	contested := poolOf("Contested", models.ContentTypeMovie, 8)
	e.remote = &scriptedGen{fn: func(req generate.Request) ([]models.Candidate, error) {
		if req.Lane.ContentType != models.ContentTypeMovie {
			return nil, nil
		}
		out := make([]models.Candidate, len(contested))
		copy(out, contested)
		for i := range out {
			out[i].Source = models.SourceRemote
		}
		return out[:req.Count], nil
	}}

	if _, err := e.Prepare(context.Background(), "alice", false, true); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	first, err := e.GetLane(context.Background(), "alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLane(movies-for-you) error = %v", err)
	}
	second, err := e.GetLane(context.Background(), "alice", "your-comfort-zone")
	if err != nil {
		t.Fatalf("GetLane(your-comfort-zone) error = %v", err)
	}

	seen := make(map[string]bool)
	for _, c := range first.Items {
		seen[c.Title] = true
	}
	for _, c := range second.Items {
		if seen[c.Title] {
			t.Errorf("title %q appears in both lanes; catalog-order lane should have kept it", c.Title)
		}
	}
	if len(first.Items) != 4 {
		t.Errorf("first lane has %d items, want its full 4", len(first.Items))
	}
}

func TestPrepareFreshnessGate(t *testing.T) {
	e := testEngine(t, testConfig(), defaultFake())

	first, err := e.Prepare(context.Background(), "alice", false, true)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	second, err := e.Prepare(context.Background(), "alice", false, true)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if first.LastCycleID != second.LastCycleID {
		t.Errorf("second Prepare inside the freshness window started cycle %s, want no-op keeping %s",
			second.LastCycleID, first.LastCycleID)
	}
	if !first.LastRefreshAt.Equal(*second.LastRefreshAt) {
		t.Error("second Prepare inside the freshness window changed last_refresh_at")
	}

	forced, err := e.Prepare(context.Background(), "alice", true, true)
	if err != nil {
		t.Fatalf("Prepare(force) error = %v", err)
	}
	if forced.LastCycleID == first.LastCycleID {
		t.Error("forced Prepare did not run a new cycle")
	}
}

func TestFailedCycleKeepsPreviousLanes(t *testing.T) {
	fake := defaultFake()
	e := testEngine(t, testConfig(), fake)

	first, err := e.Prepare(context.Background(), "alice", false, true)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if first.State != models.StateIdle {
		t.Fatalf("first cycle state = %s, want idle", first.State)
	}

	// Kill the upstream entirely: the next cycle can produce nothing.
	fake.fail = true
	second, err := e.Prepare(context.Background(), "alice", true, true)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	lane, err := e.GetLane(context.Background(), "alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLane() after failed cycle error = %v", err)
	}
	if lane.CycleID != first.LastCycleID {
		t.Errorf("failed cycle overwrote lane: cycle %s, want preserved %s", lane.CycleID, first.LastCycleID)
	}
	if len(lane.Items) == 0 {
		t.Error("previously good lane lost its items")
	}
	if second.State != models.StateDegraded {
		t.Errorf("empty cycle state = %s, want degraded", second.State)
	}
}

func TestEmptyHistoryStillBuildsCatalog(t *testing.T) {
	fake := defaultFake()
	fake.items = nil

	e := testEngine(t, testConfig(), fake)
	status, err := e.Prepare(context.Background(), "newcomer", false, true)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if status.State != models.StateIdle {
		t.Errorf("state = %s, want idle (crowd pools fill lanes without history)", status.State)
	}
	if status.ReadyLanes == 0 {
		t.Error("no ready lanes for a profile without history")
	}
}

func TestConcurrentForcedRefreshCoalesces(t *testing.T) {
	e := testEngine(t, testConfig(), defaultFake())

	gen := &scriptedGen{
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
		fn: func(req generate.Request) ([]models.Candidate, error) {
			return poolOf("Gen", req.Lane.ContentType, req.Count), nil
		},
	}
	e.remote = gen

	var wg sync.WaitGroup
	statuses := make([]models.ProfileStatus, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		statuses[0], errs[0] = e.Prepare(context.Background(), "alice", true, true)
	}()

	<-gen.entered // first cycle is now mid-flight

	wg.Add(1)
	go func() {
		defer wg.Done()
		statuses[1], errs[1] = e.Prepare(context.Background(), "alice", true, true)
	}()

	time.Sleep(50 * time.Millisecond)
	close(gen.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Prepare() #%d error = %v", i, err)
		}
	}
	if statuses[0].LastCycleID != statuses[1].LastCycleID {
		t.Errorf("concurrent forced refreshes ran separate cycles: %s vs %s",
			statuses[0].LastCycleID, statuses[1].LastCycleID)
	}
	// Two enabled lanes, one cycle: exactly two generator calls.
	if got := gen.callCount(); got != 2 {
		t.Errorf("generator called %d times, want 2 (one coalesced cycle)", got)
	}
}

func TestGetLaneUnknownKey(t *testing.T) {
	e := testEngine(t, testConfig(), defaultFake())

	if _, err := e.GetLane(context.Background(), "alice", "no-such-lane"); !errors.Is(err, ErrLaneNotFound) {
		t.Errorf("GetLane(unknown) error = %v, want ErrLaneNotFound", err)
	}
	// Disabled lanes are outside the effective catalog too.
	if _, err := e.GetLane(context.Background(), "alice", "international-picks"); !errors.Is(err, ErrLaneNotFound) {
		t.Errorf("GetLane(disabled) error = %v, want ErrLaneNotFound", err)
	}
}

func TestGetLaneFillsOnColdMiss(t *testing.T) {
	e := testEngine(t, testConfig(), defaultFake())

	lane, err := e.GetLane(context.Background(), "alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLane() on cold cache error = %v", err)
	}
	if len(lane.Items) == 0 {
		t.Error("cold-miss fill returned an empty lane")
	}

	// The synchronous fill committed: the next read is a cache hit.
	again, err := e.GetLane(context.Background(), "alice", "movies-for-you")
	if err != nil {
		t.Fatalf("GetLane() second read error = %v", err)
	}
	if !again.GeneratedAt.Equal(lane.GeneratedAt) {
		t.Error("second read regenerated instead of serving the cache")
	}
}

func TestStatusUnknownProfile(t *testing.T) {
	e := testEngine(t, testConfig(), defaultFake())

	if _, err := e.Status(context.Background(), "nobody"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Status(unknown) error = %v, want ErrProfileNotFound", err)
	}
}

func TestRefreshDue(t *testing.T) {
	cfg := testConfig()
	e := testEngine(t, cfg, defaultFake())

	if _, err := e.Prepare(context.Background(), "alice", false, true); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	// Fresh profile: nothing due.
	n, err := e.RefreshDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshDue() error = %v", err)
	}
	if n != 0 {
		t.Errorf("RefreshDue() refreshed %d fresh profiles, want 0", n)
	}

	// Age the profile past the interval.
	e.mu.Lock()
	e.entries["alice"].lastRefreshAt = time.Now().Add(-cfg.Refresh.Interval - time.Minute)
	e.mu.Unlock()

	n, err = e.RefreshDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshDue() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RefreshDue() refreshed %d profiles, want 1", n)
	}
}
