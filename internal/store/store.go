// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package store persists generated lane results, per-profile refresh
// bookkeeping, and the served-title index in an embedded Badger database.
//
// Key layout:
//
//	profile:{profileID}            -> models.ProfileMeta
//	lane:{profileID}:{laneKey}     -> models.LaneResult
//	served:{profileID}             -> ServedIndex
//
// Lane results are committed one key per transaction, so a crash mid-cycle
// leaves every lane either on its previous value or its new value, never a
// torn mix of items.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

const (
	profileKeyPrefix = "profile:"
	laneKeyPrefix    = "lane:"
	servedKeyPrefix  = "served:"

	// servedIndexCap bounds the served index per profile. The oldest
	// fingerprints roll off first, so long-running profiles eventually
	// see titles again.
	servedIndexCap = 4000

	gcDiscardRatio = 0.5
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("store: not found")

// ServedIndex tracks the fingerprints of every title published to a
// profile across past cycles. The local generator penalizes served titles
// and only readmits a deterministic fraction of them, which keeps lanes
// rotating instead of converging on the same safe picks every cycle.
type ServedIndex struct {
	ProfileID    string    `json:"profile_id"`
	Fingerprints []string  `json:"fingerprints,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Set returns the fingerprints as a lookup set.
func (s *ServedIndex) Set() map[string]bool {
	if s == nil {
		return map[string]bool{}
	}
	set := make(map[string]bool, len(s.Fingerprints))
	for _, fp := range s.Fingerprints {
		set[fp] = true
	}
	return set
}

// Store is the Badger-backed persistence layer.
//
// Thread Safety: safe for concurrent use. Badger transactions provide
// isolation; the store adds no locking of its own.
type Store struct {
	db       *badger.DB
	inMemory bool
}

// Open opens (or creates) the Badger database described by cfg.
func Open(cfg *config.StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithInMemory(cfg.InMemory)
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Store opened")

	return &Store{db: db, inMemory: cfg.InMemory}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProfileMeta returns the refresh bookkeeping for a profile, or
// ErrNotFound when the profile has never been refreshed.
func (s *Store) GetProfileMeta(profileID string) (*models.ProfileMeta, error) {
	var meta models.ProfileMeta
	err := s.getJSON("get_profile", profileKey(profileID), &meta)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// PutProfileMeta persists the refresh bookkeeping for a profile.
func (s *Store) PutProfileMeta(meta *models.ProfileMeta) error {
	meta.UpdatedAt = time.Now().UTC()
	return s.putJSON("put_profile", profileKey(meta.ProfileID), meta)
}

// ListProfileIDs returns the IDs of every profile with persisted metadata,
// in key order. The refresh scheduler scans this to find due profiles.
func (s *Store) ListProfileIDs() ([]string, error) {
	start := time.Now()
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(profileKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, profileKeyPrefix))
		}
		return nil
	})

	metrics.RecordStoreOperation("list_profiles", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return ids, nil
}

// GetLaneResult returns the cached result for one lane, or ErrNotFound.
func (s *Store) GetLaneResult(profileID, laneKey string) (*models.LaneResult, error) {
	var result models.LaneResult
	err := s.getJSON("get_lane", laneKeyFor(profileID, laneKey), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PutLaneResult commits one lane result in its own transaction. Lanes are
// committed independently so a partially failed cycle keeps every lane it
// did finish and loses nothing it did not.
func (s *Store) PutLaneResult(profileID string, result *models.LaneResult) error {
	return s.putJSON("put_lane", laneKeyFor(profileID, result.LaneKey), result)
}

// ListLaneResults returns every cached lane result for a profile, in key
// order. Presentation order is re-derived from the lane catalog by the
// caller.
func (s *Store) ListLaneResults(profileID string) ([]models.LaneResult, error) {
	start := time.Now()
	prefix := []byte(laneKeyPrefix + profileID + ":")
	var results []models.LaneResult

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var result models.LaneResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &result)
			})
			if err != nil {
				return fmt.Errorf("decoding lane %s: %w", it.Item().Key(), err)
			}
			results = append(results, result)
		}
		return nil
	})

	metrics.RecordStoreOperation("list_lanes", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("listing lanes for %s: %w", profileID, err)
	}
	return results, nil
}

// GetServedIndex returns the served-title index for a profile. A missing
// index is not an error; an empty index is returned instead.
func (s *Store) GetServedIndex(profileID string) (*ServedIndex, error) {
	var index ServedIndex
	err := s.getJSON("get_served", servedKey(profileID), &index)
	if errors.Is(err, ErrNotFound) {
		return &ServedIndex{ProfileID: profileID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &index, nil
}

// AppendServed merges newly published fingerprints into the served index,
// preserving first-seen order and trimming oldest entries past the cap.
func (s *Store) AppendServed(profileID string, fingerprints []string) error {
	index, err := s.GetServedIndex(profileID)
	if err != nil {
		return err
	}

	seen := index.Set()
	for _, fp := range fingerprints {
		if fp == "" || seen[fp] {
			continue
		}
		seen[fp] = true
		index.Fingerprints = append(index.Fingerprints, fp)
	}
	if over := len(index.Fingerprints) - servedIndexCap; over > 0 {
		index.Fingerprints = index.Fingerprints[over:]
	}

	index.ProfileID = profileID
	index.UpdatedAt = time.Now().UTC()
	return s.putJSON("put_served", servedKey(profileID), index)
}

// DeleteProfile removes a profile's metadata, lanes, and served index.
func (s *Store) DeleteProfile(profileID string) error {
	start := time.Now()

	keys := [][]byte{
		[]byte(profileKey(profileID)),
		[]byte(servedKey(profileID)),
	}

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(laneKeyPrefix + profileID + ":")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err == nil {
		err = s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
	}

	metrics.RecordStoreOperation("delete_profile", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("deleting profile %s: %w", profileID, err)
	}
	return nil
}

// RunGC runs one Badger value-log garbage collection pass and refreshes
// the size gauges. badger.ErrNoRewrite means there was nothing to reclaim
// and is reported as a skipped pass, not a failure. In-memory stores have
// no value log and only refresh the gauges.
func (s *Store) RunGC() error {
	if s.inMemory {
		lsm, vlog := s.db.Size()
		metrics.UpdateStoreSize(lsm, vlog)
		metrics.RecordStoreGC("skipped")
		return nil
	}

	err := s.db.RunValueLogGC(gcDiscardRatio)
	switch {
	case err == nil:
		metrics.RecordStoreGC("reclaimed")
	case errors.Is(err, badger.ErrNoRewrite):
		metrics.RecordStoreGC("skipped")
		err = nil
	default:
		metrics.RecordStoreGC("error")
	}

	lsm, vlog := s.db.Size()
	metrics.UpdateStoreSize(lsm, vlog)
	return err
}

func (s *Store) getJSON(operation, key string, out interface{}) error {
	start := time.Now()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})

	if errors.Is(err, ErrNotFound) {
		metrics.RecordStoreOperation(operation, time.Since(start), nil)
		return ErrNotFound
	}
	metrics.RecordStoreOperation(operation, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

func (s *Store) putJSON(operation, key string, value interface{}) error {
	start := time.Now()

	data, err := json.Marshal(value)
	if err == nil {
		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(key), data)
		})
	}

	metrics.RecordStoreOperation(operation, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func profileKey(profileID string) string {
	return profileKeyPrefix + profileID
}

func laneKeyFor(profileID, laneKey string) string {
	return laneKeyPrefix + profileID + ":" + laneKey
}

func servedKey(profileID string) string {
	return servedKeyPrefix + profileID
}
