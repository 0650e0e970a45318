// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package services

import (
	"context"
	"time"

	"github.com/dankeller/lanewise/internal/logging"
)

// Collector is the store surface the maintenance service drives.
type Collector interface {
	RunGC() error
}

// defaultGCInterval spaces value-log GC passes. Badger recommends
// periodic passes from exactly one goroutine.
const defaultGCInterval = 10 * time.Minute

// StoreGCService periodically runs the store's garbage collection and
// refreshes its size gauges.
type StoreGCService struct {
	store    Collector
	interval time.Duration
	name     string
}

// NewStoreGCService creates the maintenance service.
func NewStoreGCService(store Collector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = defaultGCInterval
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
		name:     "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Store GC pass failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *StoreGCService) String() string {
	return s.name
}
