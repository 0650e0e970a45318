// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package discovery orchestrates the recommendation pipeline: taste
// profiling, concurrent lane generation, cross-lane deduplication,
// metadata enrichment, and the per-profile refresh lifecycle.
//
// Each profile moves through a small state machine (idle, refreshing,
// degraded). At most one refresh cycle runs per profile at a time;
// concurrent triggers coalesce onto the in-flight cycle. Reads always
// serve the cached lanes, however stale, and only generate synchronously
// when a lane has never been cached at all.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/generate"
	"github.com/dankeller/lanewise/internal/history"
	"github.com/dankeller/lanewise/internal/lanes"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metadata"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
	"github.com/dankeller/lanewise/internal/store"
	"github.com/dankeller/lanewise/internal/taste"
)

var (
	// ErrProfileNotFound is returned for profiles with no cache and no
	// refresh history.
	ErrProfileNotFound = errors.New("discovery: profile not found")

	// ErrLaneNotFound is returned for lane keys outside the effective
	// catalog (unknown or disabled by configuration).
	ErrLaneNotFound = errors.New("discovery: lane not found")

	// ErrLaneNotReady is returned when a lane has no cache and the
	// synchronous fill attempt produced nothing.
	ErrLaneNotReady = errors.New("discovery: lane not ready")
)

// Engine runs the discovery pipeline.
//
// Thread Safety: safe for concurrent use. The entries map and each
// entry's lifecycle fields are guarded by mu; cycles run outside the
// lock.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	history  history.ClientInterface
	resolver *metadata.Resolver
	builder  *taste.Builder

	// remote is non-nil only when remote generation is configured. Tests
	// inject fakes here.
	remote generate.Generator

	mu      sync.Mutex
	entries map[string]*profileEntry
}

// profileEntry is the in-memory refresh lifecycle of one profile.
type profileEntry struct {
	state         models.ProfileState
	inFlight      bool
	done          chan struct{}
	lastRefreshAt time.Time
	lastCycleID   string
	lastError     string
}

// New creates the engine. The remote generator is only constructed when
// remote mode is fully configured; otherwise every cycle is local-first.
func New(cfg *config.Config, st *store.Store, hist history.ClientInterface, resolver *metadata.Resolver) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    st,
		history:  hist,
		resolver: resolver,
		builder:  taste.NewBuilder(cfg.Taste.DecayHalfLife, cfg.Taste.DecayFloor, cfg.Taste.Highlights),
		entries:  make(map[string]*profileEntry),
	}
	if cfg.Generation.Mode == "remote" && cfg.Generation.URL != "" && cfg.Generation.APIKey != "" {
		e.remote = generate.NewRemote(&cfg.Generation)
	}
	return e
}

// Prepare triggers a refresh for the profile unless its cache is still
// fresh. force bypasses the freshness gate; wait blocks until the cycle
// (in-flight or newly admitted) completes. The returned status reflects
// the profile after whatever Prepare did.
func (e *Engine) Prepare(ctx context.Context, profileID string, force, wait bool) (models.ProfileStatus, error) {
	return e.prepare(ctx, profileID, force, wait, triggerFor(force))
}

func triggerFor(force bool) string {
	if force {
		return "forced"
	}
	return "manual"
}

func (e *Engine) prepare(ctx context.Context, profileID string, force, wait bool, trigger string) (models.ProfileStatus, error) {
	e.mu.Lock()
	entry := e.entryLocked(profileID)

	if entry.inFlight {
		done := entry.done
		e.mu.Unlock()
		if wait {
			select {
			case <-done:
			case <-ctx.Done():
				return models.ProfileStatus{}, ctx.Err()
			}
		}
		return e.Status(ctx, profileID)
	}

	fresh := !entry.lastRefreshAt.IsZero() &&
		time.Since(entry.lastRefreshAt) < e.cfg.Refresh.ResponseCacheTTL
	if !force && fresh {
		e.mu.Unlock()
		return e.Status(ctx, profileID)
	}

	entry.inFlight = true
	entry.state = models.StateRefreshing
	entry.done = make(chan struct{})
	done := entry.done
	e.mu.Unlock()

	go e.runCycle(profileID, trigger)

	if wait {
		select {
		case <-done:
		case <-ctx.Done():
			return models.ProfileStatus{}, ctx.Err()
		}
	}
	return e.Status(ctx, profileID)
}

// entryLocked returns the profile's lifecycle entry, creating it from
// persisted metadata on first touch. Caller holds mu.
func (e *Engine) entryLocked(profileID string) *profileEntry {
	if entry, ok := e.entries[profileID]; ok {
		return entry
	}

	entry := &profileEntry{state: models.StateIdle}
	if meta, err := e.store.GetProfileMeta(profileID); err == nil {
		entry.state = meta.State
		if entry.state == models.StateRefreshing {
			// A crash mid-cycle left the persisted state dangling; the
			// in-memory lifecycle is authoritative now.
			entry.state = models.StateIdle
		}
		entry.lastRefreshAt = meta.LastRefreshAt
		entry.lastCycleID = meta.LastCycleID
		entry.lastError = meta.LastError
	}
	e.entries[profileID] = entry
	return entry
}

// Status returns the profile's lifecycle snapshot plus per-lane summaries.
// Profiles with no cache and no refresh history are not found.
func (e *Engine) Status(_ context.Context, profileID string) (models.ProfileStatus, error) {
	e.mu.Lock()
	entry, known := e.entries[profileID]
	if !known {
		if _, err := e.store.GetProfileMeta(profileID); err == nil {
			entry = e.entryLocked(profileID)
			known = true
		}
	}
	var snapshot profileEntry
	if known {
		snapshot = *entry
	}
	e.mu.Unlock()

	results, err := e.store.ListLaneResults(profileID)
	if err != nil {
		return models.ProfileStatus{}, err
	}
	if !known && len(results) == 0 {
		return models.ProfileStatus{}, fmt.Errorf("%s: %w", profileID, ErrProfileNotFound)
	}

	byKey := make(map[string]models.LaneResult, len(results))
	for _, r := range results {
		byKey[r.LaneKey] = r
	}

	status := models.ProfileStatus{
		ProfileID:   profileID,
		State:       snapshot.state,
		LastCycleID: snapshot.lastCycleID,
		LastError:   snapshot.lastError,
	}
	if status.State == "" {
		status.State = models.StateIdle
	}
	if !snapshot.lastRefreshAt.IsZero() {
		at := snapshot.lastRefreshAt
		status.LastRefreshAt = &at
		next := at.Add(e.cfg.Refresh.Interval)
		status.NextRefreshAt = &next
	}

	for _, lane := range e.resolvedLanes() {
		summary := models.LaneSummary{
			LaneKey:     lane.Key,
			Title:       lane.Title,
			ContentType: lane.ContentType,
		}
		if r, ok := byKey[lane.Key]; ok {
			summary.Title = r.Title
			summary.Source = r.Source
			summary.ItemCount = len(r.Items)
			at := r.GeneratedAt
			summary.GeneratedAt = &at
			if len(r.Items) > 0 {
				status.ReadyLanes++
			}
		}
		status.Lanes = append(status.Lanes, summary)
	}
	status.LaneCount = len(status.Lanes)
	return status, nil
}

// GetLane returns the cached lane result, however stale. Only a lane that
// has never been cached triggers a synchronous single-lane fill; a profile
// mid-refresh keeps serving its previous results.
func (e *Engine) GetLane(ctx context.Context, profileID, laneKey string) (*models.LaneResult, error) {
	lane, ok := e.laneFor(laneKey)
	if !ok {
		return nil, fmt.Errorf("%s: %w", laneKey, ErrLaneNotFound)
	}

	result, err := e.store.GetLaneResult(profileID, laneKey)
	if err == nil {
		metrics.RecordCacheHit("lane")
		return result, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	metrics.RecordCacheMiss("lane")
	return e.fillSingleLane(ctx, profileID, lane)
}

// ListLanes returns every cached lane for the profile in catalog order.
func (e *Engine) ListLanes(_ context.Context, profileID string) ([]models.LaneResult, error) {
	results, err := e.store.ListLaneResults(profileID)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]models.LaneResult, len(results))
	for _, r := range results {
		byKey[r.LaneKey] = r
	}
	ordered := make([]models.LaneResult, 0, len(results))
	for _, lane := range e.resolvedLanes() {
		if r, ok := byKey[lane.Key]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// RefreshDue scans persisted profiles and refreshes, one at a time, every
// profile whose refresh interval has elapsed. Called by the background
// scheduler; returns how many profiles were refreshed.
func (e *Engine) RefreshDue(ctx context.Context) (int, error) {
	ids, err := e.store.ListProfileIDs()
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}

		e.mu.Lock()
		entry := e.entryLocked(id)
		due := !entry.inFlight &&
			(entry.lastRefreshAt.IsZero() || time.Since(entry.lastRefreshAt) >= e.cfg.Refresh.Interval)
		e.mu.Unlock()
		if !due {
			continue
		}

		if _, err := e.prepare(ctx, id, false, true, "scheduled"); err != nil {
			logging.Warn().Err(err).Str("profile_id", id).Msg("Scheduled refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// PingUpstream checks the history backend, for readiness probes.
func (e *Engine) PingUpstream(ctx context.Context) error {
	return e.history.Ping(ctx)
}

// resolvedLanes returns the effective lane catalog with configuration
// overrides applied.
func (e *Engine) resolvedLanes() []lanes.Definition {
	overrides := make(map[string]lanes.Override, len(e.cfg.Lanes.Overrides))
	for key, ov := range e.cfg.Lanes.Overrides {
		overrides[key] = lanes.Override{
			Title:       ov.Title,
			Description: ov.Description,
			ItemCount:   ov.ItemCount,
			Disabled:    ov.Disabled,
		}
	}
	return lanes.Resolve(e.cfg.Lanes.ItemCount, overrides)
}

func (e *Engine) laneFor(key string) (lanes.Definition, bool) {
	for _, lane := range e.resolvedLanes() {
		if lane.Key == key {
			return lane, true
		}
	}
	return lanes.Definition{}, false
}

// updateStateGauges publishes the state distribution of known profiles.
func (e *Engine) updateStateGauges() {
	e.mu.Lock()
	var idle, refreshing, degraded int
	for _, entry := range e.entries {
		switch {
		case entry.inFlight:
			refreshing++
		case entry.state == models.StateDegraded:
			degraded++
		default:
			idle++
		}
	}
	e.mu.Unlock()
	metrics.UpdateProfileStates(idle, refreshing, degraded)
}
