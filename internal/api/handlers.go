// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dankeller/lanewise/internal/auth"
	"github.com/dankeller/lanewise/internal/discovery"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

// DiscoveryEngine is the pipeline surface the handlers call. The
// concrete implementation is discovery.Engine; tests substitute a mock.
type DiscoveryEngine interface {
	Prepare(ctx context.Context, profileID string, force, wait bool) (models.ProfileStatus, error)
	Status(ctx context.Context, profileID string) (models.ProfileStatus, error)
	GetLane(ctx context.Context, profileID, laneKey string) (*models.LaneResult, error)
	ListLanes(ctx context.Context, profileID string) ([]models.LaneResult, error)
	PingUpstream(ctx context.Context) error
}

// Handlers holds the HTTP handler set and its dependencies.
type Handlers struct {
	engine    DiscoveryEngine
	jwt       *auth.JWTManager
	creds     *auth.CredentialChecker
	validate  *validator.Validate
	startedAt time.Time
	version   string
}

// NewHandlers wires the handler set. jwtManager and creds may be nil
// when auth_mode is "none"; the login endpoint then reports that auth
// is disabled.
func NewHandlers(engine DiscoveryEngine, jwtManager *auth.JWTManager, creds *auth.CredentialChecker, version string) *Handlers {
	return &Handlers{
		engine:    engine,
		jwt:       jwtManager,
		creds:     creds,
		validate:  validator.New(),
		startedAt: time.Now(),
		version:   version,
	}
}

// healthStatus is the body of the health endpoints.
type healthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Upstream      string  `json:"upstream,omitempty"`
}

// Health godoc
// @Summary Service health
// @Description Returns liveness plus version and uptime.
// @Tags health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondJSON(w, r, http.StatusOK, healthStatus{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}, started)
}

// Liveness godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /health/live [get]
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondJSON(w, r, http.StatusOK, healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}, started)
}

// Readiness godoc
// @Summary Readiness probe
// @Description Pings the history backend. Returns 503 while the
// @Description upstream is unreachable so orchestrators hold traffic.
// @Tags health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /health/ready [get]
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.engine.PingUpstream(ctx); err != nil {
		logging.Warn().Err(err).Msg("Readiness check failed")
		respondJSON(w, r, http.StatusServiceUnavailable, healthStatus{
			Status:        "degraded",
			UptimeSeconds: time.Since(h.startedAt).Seconds(),
			Upstream:      "unreachable",
		}, started)
		return
	}

	respondJSON(w, r, http.StatusOK, healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Upstream:      "ok",
	}, started)
}

// Login godoc
// @Summary Authenticate and obtain a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.APIResponse{data=models.LoginResponse}
// @Failure 400 {object} models.APIResponse
// @Failure 401 {object} models.APIResponse
// @Router /api/v1/auth/login [post]
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.jwt == nil || h.creds == nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "authentication is disabled")
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
		return
	}

	if err := h.creds.Verify(req.Username, req.Password); err != nil {
		metrics.RecordLoginAttempt(false)
		logging.Warn().
			Str("username", sanitizeLogValue(req.Username)).
			Str("remote_addr", r.RemoteAddr).
			Msg("Login failed")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(req.Username)
	if err != nil {
		metrics.RecordLoginAttempt(false)
		logging.Error().Err(err).Msg("Token generation failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not issue token")
		return
	}

	metrics.RecordLoginAttempt(true)
	respondJSON(w, r, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  req.Username,
	}, started)
}

// RefreshProfile godoc
// @Summary Trigger lane generation for a profile
// @Description Admits a refresh cycle. With wait=true the call blocks
// @Description until the cycle finishes; otherwise it returns the
// @Description current snapshot while generation continues in the
// @Description background. force=true bypasses the freshness gate.
// @Tags profiles
// @Produce json
// @Param profileID path string true "Profile identifier"
// @Param force query bool false "Bypass the freshness gate"
// @Param wait query bool false "Block until the cycle completes"
// @Success 200 {object} models.APIResponse{data=models.ProfileStatus}
// @Success 202 {object} models.APIResponse{data=models.ProfileStatus}
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/v1/profiles/{profileID}/refresh [post]
func (h *Handlers) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	profileID, ok := h.profileID(w, r)
	if !ok {
		return
	}

	force := parseBoolParam(r, "force")
	wait := parseBoolParam(r, "wait")

	status, err := h.engine.Prepare(r.Context(), profileID, force, wait)
	if err != nil {
		h.respondEngineError(w, profileID, err)
		return
	}

	code := http.StatusOK
	if status.State == models.StateRefreshing {
		code = http.StatusAccepted
	}
	respondJSON(w, r, code, status, started)
}

// ProfileStatus godoc
// @Summary Profile refresh status and lane summaries
// @Tags profiles
// @Produce json
// @Param profileID path string true "Profile identifier"
// @Success 200 {object} models.APIResponse{data=models.ProfileStatus}
// @Failure 404 {object} models.APIResponse
// @Router /api/v1/profiles/{profileID} [get]
func (h *Handlers) ProfileStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	profileID, ok := h.profileID(w, r)
	if !ok {
		return
	}

	status, err := h.engine.Status(r.Context(), profileID)
	if err != nil {
		h.respondEngineError(w, profileID, err)
		return
	}

	respondJSON(w, r, http.StatusOK, status, started)
}

// ListLanes godoc
// @Summary Lane index for a profile
// @Description Returns one summary per generated lane in catalog order.
// @Tags lanes
// @Produce json
// @Param profileID path string true "Profile identifier"
// @Success 200 {object} models.APIResponse{data=[]models.LaneSummary}
// @Failure 404 {object} models.APIResponse
// @Router /api/v1/profiles/{profileID}/lanes [get]
func (h *Handlers) ListLanes(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	profileID, ok := h.profileID(w, r)
	if !ok {
		return
	}

	results, err := h.engine.ListLanes(r.Context(), profileID)
	if err != nil {
		h.respondEngineError(w, profileID, err)
		return
	}

	summaries := make([]models.LaneSummary, 0, len(results))
	for i := range results {
		lane := &results[i]
		generatedAt := lane.GeneratedAt
		summaries = append(summaries, models.LaneSummary{
			LaneKey:     lane.LaneKey,
			Title:       lane.Title,
			ContentType: lane.ContentType,
			Source:      lane.Source,
			ItemCount:   len(lane.Items),
			GeneratedAt: &generatedAt,
		})
	}

	respondJSON(w, r, http.StatusOK, summaries, started)
}

// GetLane godoc
// @Summary Full lane contents
// @Description Returns the cached lane, generating it on demand when
// @Description the profile has no committed result for this key yet.
// @Tags lanes
// @Produce json
// @Param profileID path string true "Profile identifier"
// @Param laneKey path string true "Lane key"
// @Success 200 {object} models.APIResponse{data=models.LaneResult}
// @Failure 404 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /api/v1/profiles/{profileID}/lanes/{laneKey} [get]
func (h *Handlers) GetLane(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	profileID, ok := h.profileID(w, r)
	if !ok {
		return
	}

	laneKey := chi.URLParam(r, "laneKey")
	if err := h.validate.Var(laneKey, "required,max=64"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid lane key")
		return
	}

	lane, err := h.engine.GetLane(r.Context(), profileID, laneKey)
	if err != nil {
		h.respondEngineError(w, profileID, err)
		return
	}

	respondJSON(w, r, http.StatusOK, lane, started)
}

// profileID extracts and validates the path parameter, writing the
// error response itself on failure.
func (h *Handlers) profileID(w http.ResponseWriter, r *http.Request) (string, bool) {
	profileID := chi.URLParam(r, "profileID")
	if err := h.validate.Var(profileID, "required,max=128"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid profile id")
		return "", false
	}
	return profileID, true
}

// respondEngineError maps pipeline errors onto the API error codes.
func (h *Handlers) respondEngineError(w http.ResponseWriter, profileID string, err error) {
	switch {
	case errors.Is(err, discovery.ErrProfileNotFound):
		respondError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "profile has no lanes and no watch history")
	case errors.Is(err, discovery.ErrLaneNotFound):
		respondError(w, http.StatusNotFound, "LANE_NOT_FOUND", "unknown lane key")
	case errors.Is(err, discovery.ErrLaneNotReady):
		respondError(w, http.StatusServiceUnavailable, "LANE_NOT_READY", "lane generation has not produced a result yet")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "INTERNAL_ERROR", "request cancelled")
	default:
		logging.Error().Err(err).Str("profile_id", sanitizeLogValue(profileID)).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
