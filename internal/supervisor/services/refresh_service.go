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

// Refresher is the engine surface the scheduler drives.
type Refresher interface {
	RefreshDue(ctx context.Context) (int, error)
}

// RefreshSchedulerService polls for profiles whose refresh interval has
// elapsed and refreshes them. The engine owns all the actual scheduling
// state (per-profile timestamps, in-flight coalescing); this service is
// just the clock.
type RefreshSchedulerService struct {
	engine       Refresher
	pollInterval time.Duration
	name         string
}

// NewRefreshSchedulerService creates the scheduler with the given poll
// cadence.
func NewRefreshSchedulerService(engine Refresher, pollInterval time.Duration) *RefreshSchedulerService {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &RefreshSchedulerService{
		engine:       engine,
		pollInterval: pollInterval,
		name:         "refresh-scheduler",
	}
}

// Serve implements suture.Service: scan on every tick until canceled.
func (s *RefreshSchedulerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	logging.Info().
		Dur("poll_interval", s.pollInterval).
		Msg("Refresh scheduler started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Refresh scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			refreshed, err := s.engine.RefreshDue(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logging.Warn().Err(err).Msg("Refresh scan failed")
				continue
			}
			if refreshed > 0 {
				logging.Info().Int("profiles", refreshed).Msg("Scheduled refreshes completed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *RefreshSchedulerService) String() string {
	return s.name
}
