// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package taste

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dankeller/lanewise/internal/models"
)

// Thresholds for the supplemental genre signals. Fatigue and curiosity
// are only computed once the history is large enough to carry signal;
// below the minimums every genre would qualify as rare.
const (
	fatigueMinRecords   = 10
	fatigueShare        = 0.30
	fatigueDecayedRatio = 0.6

	curiosityMinRecords = 20
	curiosityShare      = 0.05
	curiosityMax        = 5

	topPeopleMax = 25
)

// Builder reduces raw watch history into a TasteProfile. A Builder is
// immutable after construction and safe for concurrent use.
type Builder struct {
	halfLife   time.Duration
	decayFloor float64
	highlights int
}

// NewBuilder returns a Builder using the given recency decay half-life,
// decay floor, and highlight count.
func NewBuilder(halfLife time.Duration, decayFloor float64, highlights int) *Builder {
	if halfLife <= 0 {
		halfLife = 180 * 24 * time.Hour
	}
	if decayFloor < 0 {
		decayFloor = 0
	}
	if decayFloor > 1 {
		decayFloor = 1
	}
	if highlights <= 0 {
		highlights = 12
	}
	return &Builder{
		halfLife:   halfLife,
		decayFloor: decayFloor,
		highlights: highlights,
	}
}

// DecayWeight returns the recency weight for a watch that happened
// elapsed ago: 1.0 at zero elapsed, halving every halfLife, clamped at
// floor. Negative elapsed (clock skew, future timestamps) weighs 1.0.
func DecayWeight(elapsed, halfLife time.Duration, floor float64) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	w := math.Pow(0.5, float64(elapsed)/float64(halfLife))
	if w < floor {
		return floor
	}
	return w
}

// Build constructs a TasteProfile from history records. The records may
// mix content types. An empty or nil history produces a valid empty
// profile; Build never fails.
func (b *Builder) Build(profileID string, items []models.HistoryItem, now time.Time) *models.TasteProfile {
	profile := &models.TasteProfile{
		ProfileID: profileID,
		BuiltAt:   now,
	}
	if len(items) == 0 {
		return profile
	}

	profile.GenreCounts = make(map[string]float64)
	profile.PersonCounts = make(map[string]float64)
	profile.LanguageCounts = make(map[string]float64)
	profile.CountryCounts = make(map[string]float64)
	profile.DecadeCounts = make(map[string]int)
	profile.FingerprintSet = make(map[string]bool)

	rawGenres := make(map[string]int)
	runtimeSum, runtimeKnown := 0, 0

	for _, item := range items {
		switch item.ContentType {
		case models.ContentTypeMovie:
			profile.MovieCount++
		case models.ContentTypeSeries:
			profile.SeriesCount++
		}

		w := b.weightFor(item, now)

		for _, g := range item.Genres {
			g = strings.ToLower(strings.TrimSpace(g))
			if g == "" {
				continue
			}
			profile.GenreCounts[g] += w
			rawGenres[g]++
		}
		for _, p := range item.People {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			profile.PersonCounts[p] += w
		}
		if lang := strings.ToLower(strings.TrimSpace(item.Language)); lang != "" {
			profile.LanguageCounts[lang] += w
		}
		if country := strings.ToLower(strings.TrimSpace(item.Country)); country != "" {
			profile.CountryCounts[country] += w
		}
		if item.Year >= 1900 && item.Year <= 2100 {
			decade := strconv.Itoa((item.Year / 10) * 10)
			profile.DecadeCounts[decade]++
		}
		if item.Runtime > 0 {
			runtimeSum += item.Runtime
			runtimeKnown++
		}
		for _, fp := range item.Fingerprints() {
			profile.FingerprintSet[fp] = true
		}
	}

	if runtimeKnown > 0 {
		profile.AvgRuntime = runtimeSum / runtimeKnown
	}

	profile.TopGenres = rankedKeys(profile.GenreCounts, 0)
	profile.TopPeople = rankedKeys(profile.PersonCounts, topPeopleMax)
	profile.TopLanguages = rankedKeys(profile.LanguageCounts, 0)
	profile.FatiguedGenres = fatiguedGenres(rawGenres, profile.GenreCounts, len(items))
	profile.CuriosityGenres = curiosityGenres(rawGenres, profile.GenreCounts, len(items))
	profile.RecentHighlights = b.recentHighlights(items)

	return profile
}

func (b *Builder) weightFor(item models.HistoryItem, now time.Time) float64 {
	if item.WatchedAt.IsZero() {
		// Unknown recency carries the floor weight, not full weight
		if b.decayFloor > 0 {
			return b.decayFloor
		}
		return 0.0
	}
	return DecayWeight(now.Sub(item.WatchedAt), b.halfLife, b.decayFloor)
}

// rankedKeys orders map keys by weight descending, ties alphabetical so
// identical histories always rank identically. A limit of zero keeps
// all keys.
func rankedKeys(counts map[string]float64, limit int) []string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// fatiguedGenres finds genres that dominate the raw history but have
// faded from recent watching: their decayed share has collapsed
// relative to their raw share.
func fatiguedGenres(raw map[string]int, decayed map[string]float64, records int) []string {
	if records < fatigueMinRecords {
		return nil
	}
	totalRaw := 0
	for _, v := range raw {
		totalRaw += v
	}
	totalDecayed := 0.0
	for _, v := range decayed {
		totalDecayed += v
	}
	if totalRaw == 0 || totalDecayed == 0 {
		return nil
	}

	var out []string
	for g, count := range raw {
		rawShare := float64(count) / float64(totalRaw)
		if rawShare < fatigueShare {
			continue
		}
		decayedShare := decayed[g] / totalDecayed
		if decayedShare <= rawShare*fatigueDecayedRatio {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

// curiosityGenres finds genres sampled rarely, ranked by decayed weight
// so recent experiments surface first.
func curiosityGenres(raw map[string]int, decayed map[string]float64, records int) []string {
	if records < curiosityMinRecords {
		return nil
	}
	totalRaw := 0
	for _, v := range raw {
		totalRaw += v
	}
	if totalRaw == 0 {
		return nil
	}

	rare := make(map[string]float64)
	for g, count := range raw {
		share := float64(count) / float64(totalRaw)
		if share > 0 && share <= curiosityShare {
			rare[g] = decayed[g]
		}
	}
	return rankedKeys(rare, curiosityMax)
}

// recentHighlights returns the most recent distinct titles, newest
// first, bounded by the configured highlight count.
func (b *Builder) recentHighlights(items []models.HistoryItem) []models.Highlight {
	ordered := make([]models.HistoryItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].WatchedAt.After(ordered[j].WatchedAt)
	})

	seen := make(map[string]bool)
	var out []models.Highlight
	for _, item := range ordered {
		if len(out) >= b.highlights {
			break
		}
		if item.Title == "" {
			continue
		}
		key := string(item.ContentType) + ":" + strings.ToLower(item.Title) + ":" + strconv.Itoa(item.Year)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Highlight{
			Title:       item.Title,
			Year:        item.Year,
			ContentType: item.ContentType,
			Genres:      item.Genres,
			WatchedAt:   item.WatchedAt,
		})
	}
	return out
}
