// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package generate

import (
	"context"
	"sort"

	"github.com/dankeller/lanewise/internal/lanes"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

// Scoring weights. A candidate's relevance is genre affinity plus scaled
// language and recency terms, a prior for the pool it came from, the
// lane's own bonus, seeded noise, and a penalty if it was served before.
const (
	languageWeight = 0.6
	recencyWeight  = 0.4

	noiseWidth    = 0.08
	servedPenalty = -0.25

	fatiguePenalty = -0.15

	// overcollectFactor controls how many passing candidates are gathered
	// before ranking. Ranking a wider slate beats taking pools in order.
	overcollectFactor = 3
)

// sourcePriors weight the pool a candidate came from. Personalized pools
// outrank crowd pools by design: trending and popular are backstops, not
// recommendations.
var sourcePriors = map[string]float64{
	models.PoolRecommended:           0.35,
	models.PoolRelated:               0.30,
	models.PoolPeople:                0.28,
	string(lanes.PoolsUniverse):      0.30,
	string(lanes.PoolsDocumentary):   0.15,
	string(lanes.PoolsIndie):         0.15,
	string(lanes.PoolsInternational): 0.15,
	models.PoolTrending:              0.05,
	models.PoolPopular:               0.02,
}

// Local ranks listing pools heuristically to fill lanes without any
// remote backend. Constraints relax in phases when a lane cannot fill
// strictly: first runtime bounds go, then non-identity genre windows,
// and finally served titles are readmitted. Identity constraints
// (StrictGenres, NonEnglish) never relax.
//
// Thread Safety: safe for concurrent lane fills; per-cycle state lives in
// the shared PoolSet.
type Local struct {
	pools           *PoolSet
	relaxationSteps int
}

// NewLocal creates the local generator over the cycle's pool set.
func NewLocal(pools *PoolSet, relaxationSteps int) *Local {
	if relaxationSteps < 1 {
		relaxationSteps = 1
	}
	return &Local{pools: pools, relaxationSteps: relaxationSteps}
}

// Name identifies the generator in logs and metrics.
func (l *Local) Name() string { return "local" }

// phase is one relaxation level of the lane's fill predicate.
type phase struct {
	checkRuntime bool
	checkGenres  bool
	readmitAll   bool
}

// phases returns the relaxation ladder, strictest first, truncated or
// extended to the configured step count.
func (l *Local) phases(lane lanes.Definition) []phase {
	ladder := []phase{
		{checkRuntime: true, checkGenres: true},
		{checkRuntime: false, checkGenres: true},
		{checkRuntime: false, checkGenres: lane.StrictGenres},
		{checkRuntime: false, checkGenres: lane.StrictGenres, readmitAll: true},
	}
	if l.relaxationSteps < len(ladder) {
		return ladder[:l.relaxationSteps]
	}
	return ladder
}

// Generate fills the lane from the pools, relaxing constraints phase by
// phase until enough candidates pass, then ranks the slate and returns
// the top Count. It never returns an error: an empty result means the
// pools had nothing usable and the caller falls back.
func (l *Local) Generate(ctx context.Context, req Request) ([]models.Candidate, error) {
	include := req.Lane.IncludeGenres(topGenresFor(req.Profile))
	pools := l.pools.Ordered(ctx, req.Lane)

	type scored struct {
		candidate models.Candidate
		pool      string
		served    bool
	}

	collected := make([]scored, 0, req.Count*overcollectFactor)
	taken := cloneSet(req.Exclusions)
	target := req.Count * overcollectFactor

	for _, ph := range l.phases(req.Lane) {
		if len(collected) >= target {
			break
		}
		for _, pool := range pools {
			for _, c := range pool.Candidates {
				if len(collected) >= target {
					break
				}
				if c.Title == "" || !c.ContentType.Valid() {
					continue
				}
				fp := primaryFingerprint(c)
				if fp == "" {
					continue
				}
				if excluded(c, taken) {
					continue
				}
				if !req.Lane.MatchesLanguage(c.Language) {
					continue
				}
				if ph.checkGenres && !lanes.MatchesGenres(include, c.Genres) {
					continue
				}
				if ph.checkRuntime && !req.Lane.MatchesRuntime(c.Runtime) {
					continue
				}

				served := servedHit(c, req.Served)
				if served && !ph.readmitAll && !ServedAllowed(req.Seed, fp) {
					continue
				}

				claim(c, taken)
				collected = append(collected, scored{candidate: c, pool: pool.Name, served: served})
			}
		}
	}

	if len(collected) == 0 {
		logging.Debug().
			Str("lane", req.Lane.Key).
			Msg("Local pools produced no usable candidates")
		return nil, nil
	}

	scores := make([]float64, len(collected))
	for i, s := range collected {
		scores[i] = l.score(req, s.candidate, s.pool, s.served)
	}
	order := make([]int, len(collected))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	n := req.Count
	if n > len(order) {
		n = len(order)
	}
	out := make([]models.Candidate, 0, n)
	for _, idx := range order[:n] {
		c := collected[idx].candidate
		c.Source = models.SourceLocal
		out = append(out, c)
	}

	if len(out) < req.Count {
		metrics.RecordLaneShortfall(req.Lane.Key)
	}
	return out, nil
}

// score computes the relevance of one candidate for one lane.
func (l *Local) score(req Request, c models.Candidate, pool string, served bool) float64 {
	score := genreAffinity(req.Profile, c.Genres)
	score += languageWeight * languageAffinity(req.Profile, c.Language)
	score += recencyWeight * lanes.ReleaseRecency(c.Year)
	score += sourcePriors[pool]
	score += req.Lane.Bonus(c)
	score += Noise(req.Seed, noiseWidth, req.Lane.Key, primaryFingerprint(c))
	if served {
		score += servedPenalty
	}
	if hasFatiguedGenre(req.Profile, c.Genres) {
		score += fatiguePenalty
	}
	return score
}

// genreAffinity maps the candidate's genres onto the profile's decayed
// genre tallies, normalized so a candidate matching the profile's top
// genre scores near 1.
func genreAffinity(p *models.TasteProfile, genres []string) float64 {
	if p == nil || len(p.GenreCounts) == 0 || len(genres) == 0 {
		return 0
	}

	var max float64
	for _, count := range p.GenreCounts {
		if count > max {
			max = count
		}
	}
	if max == 0 {
		return 0
	}

	var best, sum float64
	for _, g := range genres {
		w := p.GenreCounts[normalizeKey(g)] / max
		sum += w
		if w > best {
			best = w
		}
	}
	// The strongest match dominates; extra matching genres pad a little.
	affinity := best + (sum-best)*0.15
	if affinity > 1 {
		affinity = 1
	}
	return affinity
}

func languageAffinity(p *models.TasteProfile, language string) float64 {
	if p == nil || language == "" || len(p.LanguageCounts) == 0 {
		return 0
	}
	var max float64
	for _, count := range p.LanguageCounts {
		if count > max {
			max = count
		}
	}
	if max == 0 {
		return 0
	}
	return p.LanguageCounts[normalizeKey(language)] / max
}

func hasFatiguedGenre(p *models.TasteProfile, genres []string) bool {
	if p == nil || len(p.FatiguedGenres) == 0 {
		return false
	}
	for _, g := range genres {
		g = normalizeKey(g)
		for _, fatigued := range p.FatiguedGenres {
			if g == fatigued {
				return true
			}
		}
	}
	return false
}

func topGenresFor(p *models.TasteProfile) []string {
	if p == nil {
		return nil
	}
	return p.TopGenres
}
