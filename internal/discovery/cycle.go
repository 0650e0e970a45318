// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dankeller/lanewise/internal/generate"
	"github.com/dankeller/lanewise/internal/lanes"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

// runCycle executes one full refresh for a profile. It always terminates
// the in-flight lifecycle: the entry leaves refreshing for idle or
// degraded and the done channel closes, no matter how the cycle went.
//
// Cycles run on a background context deliberately. A caller abandoning
// its wait must not abort work other callers coalesced onto.
func (e *Engine) runCycle(profileID, trigger string) {
	start := time.Now()
	cycleID := uuid.NewString()
	seed := e.cfg.Generation.SeedOverride
	if seed == "" {
		seed = generate.NewSeed(profileID, cycleID)
	}

	metrics.TrackActiveRefresh(true)
	defer metrics.TrackActiveRefresh(false)

	logging.Info().
		Str("profile_id", profileID).
		Str("cycle_id", cycleID).
		Str("trigger", trigger).
		Msg("Refresh cycle started")

	ctx := context.Background()
	committed, degradedLanes, err := e.executeCycle(ctx, profileID, cycleID, seed)

	now := time.Now().UTC()
	state := models.StateIdle
	lastError := ""
	if err != nil {
		state = models.StateDegraded
		lastError = err.Error()
	}

	meta := &models.ProfileMeta{
		ProfileID:     profileID,
		State:         state,
		LastRefreshAt: now,
		LastCycleID:   cycleID,
		LastSeed:      seed,
		LastError:     lastError,
	}
	if putErr := e.store.PutProfileMeta(meta); putErr != nil {
		logging.Error().Err(putErr).Str("profile_id", profileID).Msg("Persisting profile meta failed")
	}

	e.mu.Lock()
	entry := e.entryLocked(profileID)
	entry.state = state
	entry.inFlight = false
	entry.lastRefreshAt = now
	entry.lastCycleID = cycleID
	entry.lastError = lastError
	if entry.done != nil {
		close(entry.done)
		entry.done = nil
	}
	e.mu.Unlock()

	metrics.RecordRefreshCycle(trigger, time.Since(start), degradedLanes, err)
	e.updateStateGauges()

	event := logging.Info()
	if err != nil {
		event = logging.Warn().Err(err)
	}
	event.
		Str("profile_id", profileID).
		Str("cycle_id", cycleID).
		Str("state", string(state)).
		Int("committed_lanes", committed).
		Int("degraded_lanes", degradedLanes).
		Dur("duration", time.Since(start)).
		Msg("Refresh cycle finished")
}

// executeCycle is the pipeline body: history, taste, fan-out, dedup,
// top-up, enrichment, commit. Returns the committed lane count and how
// many lanes stayed on stale or empty results.
func (e *Engine) executeCycle(ctx context.Context, profileID, cycleID, seed string) (int, int, error) {
	items := e.fetchHistory(ctx, profileID)
	profile := e.builder.Build(profileID, items, time.Now())

	servedIndex, err := e.store.GetServedIndex(profileID)
	if err != nil {
		return 0, 0, fmt.Errorf("loading served index: %w", err)
	}
	served := servedIndex.Set()

	resolved := e.resolvedLanes()
	local := generate.NewLocal(
		generate.NewPoolSet(e.history, items, seed),
		e.cfg.Taste.RelaxationSteps,
	)
	primary := generate.Generator(local)
	if e.remote != nil {
		primary = e.remote
	}
	fallback := generate.NewFallback()

	outputs := e.fanOut(ctx, resolved, profile, served, seed, primary)

	// Cross-lane deduplication happens after all lanes return, walking
	// lanes in catalog order so earlier lanes keep contested titles.
	published := make(map[string]bool, len(resolved)*e.cfg.Lanes.ItemCount)
	results := make([][]models.Candidate, len(resolved))
	for i, lane := range resolved {
		results[i] = dedupLane(lane, outputs[i], profile.FingerprintSet, published)
	}

	// Top-up pass: lanes the dedup left short ask their generator again
	// with the published set excluded, then fall through the chain.
	for i, lane := range resolved {
		results[i] = e.topUp(ctx, lane, results[i], profile, served, seed, primary, local, fallback, published)
	}

	committed := 0
	degraded := 0
	now := time.Now().UTC()
	var publishedFPs []string

	for i, lane := range resolved {
		laneItems := results[i]
		if len(laneItems) == 0 {
			// Never overwrite a previously good lane with nothing.
			if _, getErr := e.store.GetLaneResult(profileID, lane.Key); getErr == nil {
				degraded++
				continue
			}
		}
		if e.resolver != nil {
			e.resolver.Enrich(ctx, laneItems)
		}

		result := &models.LaneResult{
			LaneKey:     lane.Key,
			Title:       lane.Title,
			Description: lane.Description,
			ContentType: lane.ContentType,
			Source:      laneSource(laneItems),
			Items:       laneItems,
			GeneratedAt: now,
			CycleID:     cycleID,
		}
		if err := e.store.PutLaneResult(profileID, result); err != nil {
			logging.Error().Err(err).Str("lane", lane.Key).Msg("Committing lane failed")
			degraded++
			continue
		}
		committed++
		for _, c := range laneItems {
			publishedFPs = append(publishedFPs, c.Fingerprints()...)
		}
	}

	if len(publishedFPs) > 0 {
		if err := e.store.AppendServed(profileID, publishedFPs); err != nil {
			logging.Warn().Err(err).Str("profile_id", profileID).Msg("Updating served index failed")
		}
	}

	if committed == 0 {
		return 0, degraded, fmt.Errorf("cycle %s produced no lanes: %w", cycleID, models.ErrNoDataAvailable)
	}
	return committed, degraded, nil
}

// fetchHistory pulls both content types, tolerating per-type failures.
// An unreachable backend yields an empty history, which routes the cycle
// through the fallback paths instead of failing it.
func (e *Engine) fetchHistory(ctx context.Context, profileID string) []models.HistoryItem {
	var items []models.HistoryItem
	for _, ct := range []models.ContentType{models.ContentTypeMovie, models.ContentTypeSeries} {
		fetched, err := e.history.FetchHistory(ctx, profileID, ct, e.cfg.History.Limit)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("profile_id", profileID).
				Str("content_type", string(ct)).
				Msg("History fetch failed, continuing without it")
			continue
		}
		items = append(items, fetched...)
	}
	return items
}

// fanOut generates every lane concurrently, bounded by the configured
// fan-out. Each lane gets its own exclusion copy so generators never race
// on shared sets; global consistency is restored by the dedup pass.
func (e *Engine) fanOut(ctx context.Context, resolved []lanes.Definition, profile *models.TasteProfile, served map[string]bool, seed string, gen generate.Generator) [][]models.Candidate {
	fanout := e.cfg.Generation.Fanout
	if fanout < 1 {
		fanout = 1
	}

	outputs := make([][]models.Candidate, len(resolved))
	sem := make(chan struct{}, fanout)
	var wg sync.WaitGroup

	for i, lane := range resolved {
		wg.Add(1)
		go func(i int, lane lanes.Definition) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			laneCtx, cancel := context.WithTimeout(ctx, e.laneBudget())
			defer cancel()

			start := time.Now()
			out, err := gen.Generate(laneCtx, generate.Request{
				Lane:       lane,
				Profile:    profile,
				Exclusions: copySet(profile.FingerprintSet),
				Served:     served,
				Seed:       seed,
				Count:      lane.ItemTarget,
			})
			metrics.RecordLaneGeneration(lane.Key, gen.Name(), time.Since(start), len(out))
			if err != nil {
				logging.Debug().
					Err(err).
					Str("lane", lane.Key).
					Int("items", len(out)).
					Msg("Lane generation degraded")
			}
			outputs[i] = out
		}(i, lane)
	}
	wg.Wait()
	return outputs
}

// laneBudget bounds one lane's generation time: the per-call timeout
// across the full retry budget.
func (e *Engine) laneBudget() time.Duration {
	retries := e.cfg.Generation.RetryLimit
	if retries < 1 {
		retries = 1
	}
	return e.cfg.Generation.Timeout*time.Duration(retries) + 5*time.Second
}

// dedupLane drops candidates already claimed by history or by an earlier
// lane this cycle, and claims the survivors.
func dedupLane(lane lanes.Definition, candidates []models.Candidate, historySet, published map[string]bool) []models.Candidate {
	kept := candidates[:0]
	historyDrops, crossDrops := 0, 0

	for _, c := range candidates {
		fps := c.Fingerprints()
		conflict := ""
		for _, fp := range fps {
			if published[fp] {
				conflict = "cross_lane"
				break
			}
			if historySet[fp] {
				conflict = "history"
				break
			}
		}
		switch conflict {
		case "cross_lane":
			crossDrops++
			continue
		case "history":
			historyDrops++
			continue
		}
		for _, fp := range fps {
			published[fp] = true
		}
		kept = append(kept, c)
	}

	metrics.RecordDedupDrops(lane.Key, "history", historyDrops)
	metrics.RecordDedupDrops(lane.Key, "cross_lane", crossDrops)
	return kept
}

// topUp refills a short lane: first the lane's own generator with the
// published set excluded, then the local generator when the primary was
// remote, then the history fallback. Fallback items skip the history
// exclusion (they are history) but still dedup against this cycle.
func (e *Engine) topUp(ctx context.Context, lane lanes.Definition, current []models.Candidate, profile *models.TasteProfile, served map[string]bool, seed string, primary, local, fallback generate.Generator, published map[string]bool) []models.Candidate {
	missing := lane.ItemTarget - len(current)
	if missing <= 0 {
		return current
	}

	exclusions := func() map[string]bool {
		set := copySet(profile.FingerprintSet)
		for fp := range published {
			set[fp] = true
		}
		return set
	}

	chain := []generate.Generator{primary}
	if primary != local {
		chain = append(chain, local)
	}
	chain = append(chain, fallback)

	for _, gen := range chain {
		missing = lane.ItemTarget - len(current)
		if missing <= 0 {
			break
		}

		laneCtx, cancel := context.WithTimeout(ctx, e.laneBudget())
		req := generate.Request{
			Lane:       lane,
			Profile:    profile,
			Exclusions: exclusions(),
			Served:     served,
			Seed:       seed + "-topup",
			Count:      missing,
		}
		if gen == fallback {
			// History fingerprints stay admissible on the last rung.
			req.Exclusions = copySet(published)
		}
		out, err := gen.Generate(laneCtx, req)
		cancel()
		if err != nil && len(out) == 0 {
			continue
		}

		for _, c := range out {
			if len(current) >= lane.ItemTarget {
				break
			}
			fps := c.Fingerprints()
			conflict := false
			for _, fp := range fps {
				if published[fp] {
					conflict = true
					break
				}
			}
			if conflict {
				continue
			}
			for _, fp := range fps {
				published[fp] = true
			}
			current = append(current, c)
		}
	}

	if len(current) < lane.ItemTarget {
		metrics.RecordLaneShortfall(lane.Key)
	}
	return current
}

// fillSingleLane generates one lane synchronously for a profile with no
// cache for it. Deliberately lighter than a full cycle: one lane, the
// normal generator chain, immediate commit.
func (e *Engine) fillSingleLane(ctx context.Context, profileID string, lane lanes.Definition) (*models.LaneResult, error) {
	items := e.fetchHistory(ctx, profileID)
	profile := e.builder.Build(profileID, items, time.Now())

	servedIndex, err := e.store.GetServedIndex(profileID)
	if err != nil {
		return nil, err
	}

	seed := e.cfg.Generation.SeedOverride
	if seed == "" {
		seed = generate.NewSeed(profileID, uuid.NewString())
	}

	local := generate.NewLocal(
		generate.NewPoolSet(e.history, items, seed),
		e.cfg.Taste.RelaxationSteps,
	)
	primary := generate.Generator(local)
	if e.remote != nil {
		primary = e.remote
	}

	published := make(map[string]bool)
	laneItems := dedupLane(lane, e.generateLane(ctx, lane, profile, servedIndex.Set(), seed, primary), profile.FingerprintSet, published)
	laneItems = e.topUp(ctx, lane, laneItems, profile, servedIndex.Set(), seed, primary, local, generate.NewFallback(), published)

	if len(laneItems) == 0 {
		return nil, fmt.Errorf("lane %s for %s: %w", lane.Key, profileID, ErrLaneNotReady)
	}
	if e.resolver != nil {
		e.resolver.Enrich(ctx, laneItems)
	}

	result := &models.LaneResult{
		LaneKey:     lane.Key,
		Title:       lane.Title,
		Description: lane.Description,
		ContentType: lane.ContentType,
		Source:      laneSource(laneItems),
		Items:       laneItems,
		GeneratedAt: time.Now().UTC(),
	}
	if err := e.store.PutLaneResult(profileID, result); err != nil {
		return nil, err
	}
	if err := e.store.AppendServed(profileID, fingerprintsOf(laneItems)); err != nil {
		logging.Warn().Err(err).Str("profile_id", profileID).Msg("Updating served index failed")
	}
	return result, nil
}

func (e *Engine) generateLane(ctx context.Context, lane lanes.Definition, profile *models.TasteProfile, served map[string]bool, seed string, gen generate.Generator) []models.Candidate {
	laneCtx, cancel := context.WithTimeout(ctx, e.laneBudget())
	defer cancel()

	start := time.Now()
	out, err := gen.Generate(laneCtx, generate.Request{
		Lane:       lane,
		Profile:    profile,
		Exclusions: copySet(profile.FingerprintSet),
		Served:     served,
		Seed:       seed,
		Count:      lane.ItemTarget,
	})
	metrics.RecordLaneGeneration(lane.Key, gen.Name(), time.Since(start), len(out))
	if err != nil {
		logging.Debug().Err(err).Str("lane", lane.Key).Msg("Lane generation degraded")
	}
	return out
}

// laneSource derives lane-level provenance from its items: the strongest
// path that contributed anything names the lane.
func laneSource(items []models.Candidate) models.CandidateSource {
	source := models.SourceFallback
	for _, c := range items {
		switch c.Source {
		case models.SourceRemote:
			return models.SourceRemote
		case models.SourceLocal:
			source = models.SourceLocal
		}
	}
	return source
}

func copySet(set map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for k, v := range set {
		if v {
			out[k] = true
		}
	}
	return out
}

func fingerprintsOf(items []models.Candidate) []string {
	var fps []string
	for _, c := range items {
		fps = append(fps, c.Fingerprints()...)
	}
	return fps
}
