// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package generate

import (
	"context"
	"sync"

	"github.com/dankeller/lanewise/internal/history"
	"github.com/dankeller/lanewise/internal/lanes"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/models"
)

const (
	// sharedPoolDepth is the per-pool fetch depth for the shared pools.
	sharedPoolDepth = 100

	// relatedSeedCount is how many recent history titles seed the shared
	// related pool per content type.
	relatedSeedCount = 5

	relatedPerSeed = 30

	// castTallySeeds is how many recent titles have their cast tallied
	// when building the people pool.
	castTallySeeds = 6

	topActorCount    = 5
	creditsPerPerson = 25

	// internationalDepthFactor over-fetches for the international lanes,
	// which filter most of the shared pools away client-side.
	internationalDepthFactor = 3
)

// poolOrder is the fill order for shared pools: strongest personal signal
// first. PreferRelated lanes swap the first two.
var poolOrder = []string{
	models.PoolRecommended,
	models.PoolRelated,
	models.PoolTrending,
	models.PoolPopular,
}

// PoolSet assembles and caches candidate pools for one refresh cycle.
// Shared pools are fetched once per content type on first use; lane-local
// pools are fetched once per strategy. All fetch failures degrade to an
// empty pool so a flaky backend thins lanes instead of killing the cycle.
//
// Thread Safety: safe for concurrent lane fills within one cycle.
type PoolSet struct {
	client  history.ClientInterface
	history []models.HistoryItem
	seed    string

	mu     sync.Mutex
	shared map[models.ContentType]map[string][]models.Candidate
	local  map[string][]models.Candidate
}

// NewPoolSet creates the pool cache for one cycle. items is the profile's
// raw watch history, newest first, used to seed related and people pools.
func NewPoolSet(client history.ClientInterface, items []models.HistoryItem, seed string) *PoolSet {
	return &PoolSet{
		client:  client,
		history: items,
		seed:    seed,
		shared:  make(map[models.ContentType]map[string][]models.Candidate),
		local:   make(map[string][]models.Candidate),
	}
}

// Shared returns the shared pools for a content type, keyed by pool name
// and shuffled deterministically from the cycle seed.
func (p *PoolSet) Shared(ctx context.Context, ct models.ContentType) map[string][]models.Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pools, ok := p.shared[ct]; ok {
		return pools
	}

	pools := map[string][]models.Candidate{
		models.PoolRecommended: p.fetchListing(ctx, models.PoolRecommended, ct, nil, sharedPoolDepth),
		models.PoolTrending:    p.fetchListing(ctx, models.PoolTrending, ct, nil, sharedPoolDepth),
		models.PoolPopular:     p.fetchListing(ctx, models.PoolPopular, ct, nil, sharedPoolDepth),
		models.PoolRelated:     p.fetchRelated(ctx, ct, false),
	}
	// Copy before shuffling: the client owns the returned slices and a
	// shuffle in place would reorder them under the caller.
	for name, pool := range pools {
		pool = append([]models.Candidate(nil), pool...)
		Shuffle(pool, p.seed, string(ct), name)
		pools[name] = pool
	}

	p.shared[ct] = pools
	return pools
}

// Ordered returns the lane's pools as (name, candidates) pairs in fill
// order, honoring the lane's pool strategy and PreferRelated flag.
func (p *PoolSet) Ordered(ctx context.Context, lane lanes.Definition) []NamedPool {
	switch lane.Pools {
	case lanes.PoolsPeople:
		return []NamedPool{{models.PoolPeople, p.laneLocal(ctx, lane)}}
	case lanes.PoolsUniverse:
		return []NamedPool{{models.PoolRelated, p.laneLocal(ctx, lane)}}
	case lanes.PoolsDocumentary, lanes.PoolsIndie, lanes.PoolsInternational:
		local := p.laneLocal(ctx, lane)
		shared := p.orderedShared(ctx, lane)
		return append([]NamedPool{{string(lane.Pools), local}}, shared...)
	default:
		return p.orderedShared(ctx, lane)
	}
}

// NamedPool pairs a pool with the name the scorer weights it by.
type NamedPool struct {
	Name       string
	Candidates []models.Candidate
}

func (p *PoolSet) orderedShared(ctx context.Context, lane lanes.Definition) []NamedPool {
	pools := p.Shared(ctx, lane.ContentType)

	order := make([]string, len(poolOrder))
	copy(order, poolOrder)
	if lane.PreferRelated {
		order[0], order[1] = order[1], order[0]
	}

	out := make([]NamedPool, 0, len(order))
	for _, name := range order {
		out = append(out, NamedPool{name, pools[name]})
	}
	return out
}

// laneLocal builds (or returns the cached) lane-local pool for a pool
// strategy. Strategies are cached by strategy key, not lane key, so the
// three genre lanes sharing a strategy fetch once.
func (p *PoolSet) laneLocal(ctx context.Context, lane lanes.Definition) []models.Candidate {
	key := string(lane.Pools) + ":" + string(lane.ContentType)

	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.local[key]; ok {
		return pool
	}

	var pool []models.Candidate
	switch lane.Pools {
	case lanes.PoolsPeople:
		pool = p.fetchPeoplePool(ctx, lane.ContentType)
	case lanes.PoolsUniverse:
		pool = p.fetchRelated(ctx, lane.ContentType, lane.OlderHistoryFirst)
	case lanes.PoolsDocumentary:
		pool = p.fetchGenrePool(ctx, lane.ContentType, []string{"documentary"})
	case lanes.PoolsIndie:
		pool = p.fetchGenrePool(ctx, lane.ContentType, []string{"indie", "independent"})
	case lanes.PoolsInternational:
		pool = p.fetchInternationalPool(ctx, lane.ContentType)
	}
	pool = append([]models.Candidate(nil), pool...)
	Shuffle(pool, p.seed, key)

	p.local[key] = pool
	return pool
}

func (p *PoolSet) fetchListing(ctx context.Context, category string, ct models.ContentType, genres []string, total int) []models.Candidate {
	pool, err := p.client.FetchListingsFiltered(ctx, category, ct, genres, total)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("pool", category).
			Str("content_type", string(ct)).
			Msg("Listing pool unavailable, continuing without it")
		return nil
	}
	return pool
}

// fetchRelated seeds the related pool from the profile's own history.
// olderFirst walks history oldest first, for lanes that deliberately
// resurface what the profile started long ago.
func (p *PoolSet) fetchRelated(ctx context.Context, ct models.ContentType, olderFirst bool) []models.Candidate {
	seeds := p.historySeeds(ct, relatedSeedCount, olderFirst)

	var pool []models.Candidate
	for _, seed := range seeds {
		related, err := p.client.FetchRelated(ctx, ct, seed.IDs.Trakt, relatedPerSeed)
		if err != nil {
			logging.Debug().
				Err(err).
				Str("seed_title", seed.Title).
				Msg("Related fetch failed for seed")
			continue
		}
		pool = append(pool, related...)
	}
	return pool
}

// fetchPeoplePool tallies the cast of recently watched titles, then pulls
// the filmographies of the most recurring actors.
func (p *PoolSet) fetchPeoplePool(ctx context.Context, ct models.ContentType) []models.Candidate {
	type actor struct {
		id    int64
		count int
	}
	tally := make(map[int64]*actor)
	order := make([]int64, 0, castTallySeeds*8)

	for _, seed := range p.historySeeds(ct, castTallySeeds, false) {
		cast, err := p.client.FetchCast(ctx, ct, seed.IDs.Trakt)
		if err != nil {
			continue
		}
		for _, member := range cast {
			if member.TraktID == 0 {
				continue
			}
			if a, ok := tally[member.TraktID]; ok {
				a.count++
				continue
			}
			tally[member.TraktID] = &actor{id: member.TraktID, count: 1}
			order = append(order, member.TraktID)
		}
	}

	// Stable selection: tally count descending, first-seen order breaking
	// ties, so reruns of a cycle pick the same actors.
	top := make([]*actor, 0, len(order))
	for _, id := range order {
		top = append(top, tally[id])
	}
	for i := 0; i < len(top) && i < topActorCount; i++ {
		best := i
		for j := i + 1; j < len(top); j++ {
			if top[j].count > top[best].count {
				best = j
			}
		}
		top[i], top[best] = top[best], top[i]
	}
	if len(top) > topActorCount {
		top = top[:topActorCount]
	}

	var pool []models.Candidate
	for _, a := range top {
		credits, err := p.client.FetchPersonCredits(ctx, a.id, ct)
		if err != nil {
			continue
		}
		pool = append(pool, credits...)
	}
	return pool
}

func (p *PoolSet) fetchGenrePool(ctx context.Context, ct models.ContentType, genres []string) []models.Candidate {
	pool := p.fetchListing(ctx, models.PoolTrending, ct, genres, sharedPoolDepth)
	return append(pool, p.fetchListing(ctx, models.PoolPopular, ct, genres, sharedPoolDepth)...)
}

// fetchInternationalPool over-fetches trending and popular so enough
// non-English titles survive the language filter applied at fill time.
func (p *PoolSet) fetchInternationalPool(ctx context.Context, ct models.ContentType) []models.Candidate {
	depth := sharedPoolDepth * internationalDepthFactor
	pool := p.fetchListing(ctx, models.PoolTrending, ct, nil, depth)
	return append(pool, p.fetchListing(ctx, models.PoolPopular, ct, nil, depth)...)
}

// historySeeds picks up to n history items of the content type that carry
// a Trakt ID, newest first unless olderFirst.
func (p *PoolSet) historySeeds(ct models.ContentType, n int, olderFirst bool) []models.HistoryItem {
	seeds := make([]models.HistoryItem, 0, n)
	seen := make(map[int64]bool, n)

	pick := func(item models.HistoryItem) bool {
		if item.ContentType != ct || item.IDs.Trakt == 0 || seen[item.IDs.Trakt] {
			return false
		}
		seen[item.IDs.Trakt] = true
		seeds = append(seeds, item)
		return len(seeds) >= n
	}

	if olderFirst {
		for i := len(p.history) - 1; i >= 0; i-- {
			if pick(p.history[i]) {
				break
			}
		}
		return seeds
	}
	for _, item := range p.history {
		if pick(item) {
			break
		}
	}
	return seeds
}
