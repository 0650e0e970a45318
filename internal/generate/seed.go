// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package generate

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand"
	"strings"
)

// Deterministic randomness. Every stochastic decision in a cycle (pool
// shuffles, score noise, served readmission) derives from the cycle seed
// plus a scope string, so re-running a cycle with the same seed and the
// same inputs reproduces the same lanes exactly.

// servedReadmitRatio is the fraction of served titles eligible to
// reappear in a cycle. Which titles qualify is decided per fingerprint
// from the seed, not sampled, so the choice is stable within a cycle.
const servedReadmitRatio = 0.30

// NewSeed derives a cycle seed from the profile and cycle identifiers.
func NewSeed(profileID, cycleID string) string {
	sum := sha256.Sum256([]byte(profileID + "|" + cycleID))
	return hex.EncodeToString(sum[:8])
}

// seedUint64 hashes the seed and scope parts into a stable 64-bit value.
func seedUint64(seed string, scope ...string) uint64 {
	sum := sha256.Sum256([]byte(seed + "|" + strings.Join(scope, "|")))
	return binary.BigEndian.Uint64(sum[:8])
}

// RNGFor returns a rand.Rand scoped to the given seed and scope parts.
// Separate scopes give independent streams from the same cycle seed.
func RNGFor(seed string, scope ...string) *rand.Rand {
	return rand.New(rand.NewSource(int64(seedUint64(seed, scope...)))) // #nosec G404 -- deterministic ranking noise, not security material
}

// Noise returns a stable per-scope score perturbation in
// [-width/2, +width/2). The jitter breaks score ties differently each
// cycle so lanes do not fossilize, while staying reproducible per seed.
func Noise(seed string, width float64, scope ...string) float64 {
	unit := float64(seedUint64(seed, scope...)%1_000_000) / 1_000_000
	return (unit - 0.5) * width
}

// ServedAllowed reports whether a served title may be readmitted this
// cycle. Roughly servedReadmitRatio of fingerprints qualify.
func ServedAllowed(seed, fingerprint string) bool {
	unit := float64(seedUint64(seed, "served", fingerprint)%1_000_000) / 1_000_000
	return unit < servedReadmitRatio
}

// Shuffle reorders items in place using the seed and scope.
func Shuffle[T any](items []T, seed string, scope ...string) {
	rng := RNGFor(seed, scope...)
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
