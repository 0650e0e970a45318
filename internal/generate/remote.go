// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package generate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/models"
)

const (
	// remoteTemperature is deliberately high. The backend is asked for
	// taste-adjacent discovery, not retrieval; variety beats precision.
	remoteTemperature = 0.95

	remoteMaxTokens = 4096

	// maxPromptExclusions caps how many titles the prompt lists as
	// already watched or already suggested. Past this the list stops
	// helping and only burns tokens.
	maxPromptExclusions = 150

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// Remote generates lane candidates by prompting a chat-completions
// backend. Each call asks for exactly the missing item count and lists
// everything already watched or already accepted, and each retry re-sends
// the grown exclusion list so the backend stops suggesting duplicates.
//
// Thread Safety: safe for concurrent use across lanes. The shared rate
// limiter serializes request admission; everything else is per-call.
type Remote struct {
	endpoint   string
	apiKey     string
	model      string
	retryLimit int
	timeout    time.Duration
	client     *http.Client
	limiter    *rate.Limiter
}

// NewRemote creates the remote generator from configuration. The caller
// is responsible for only constructing it when remote mode is configured.
func NewRemote(cfg *config.GenerationConfig) *Remote {
	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}

	retryLimit := cfg.RetryLimit
	if retryLimit < 1 {
		retryLimit = 1
	}

	return &Remote{
		endpoint:   strings.TrimSuffix(cfg.URL, "/") + "/chat/completions",
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		retryLimit: retryLimit,
		timeout:    cfg.Timeout,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
	}
}

// Name identifies the generator in logs and metrics.
func (r *Remote) Name() string { return "remote" }

// Generate fills the lane by prompting the backend, retrying with a grown
// exclusion list until the lane is full or the retry budget is spent.
//
// A timed-out or failed call consumes a retry like any other attempt.
// Exhausting the budget returns whatever usable candidates accumulated
// wrapped with models.ErrBackendExhausted when the lane is still short;
// the caller treats that as a degraded result, not a failure.
func (r *Remote) Generate(ctx context.Context, req Request) ([]models.Candidate, error) {
	exclusions := cloneSet(req.Exclusions)
	accepted := make([]models.Candidate, 0, req.Count)
	acceptedTitles := make([]string, 0, req.Count)

	var lastErr error
	for attempt := 1; attempt <= r.retryLimit; attempt++ {
		missing := req.Count - len(accepted)
		if missing <= 0 {
			return accepted, nil
		}
		if attempt > 1 {
			metrics.RecordGenerationRetry("remote")
		}

		batch, err := r.requestBatch(ctx, req, missing, acceptedTitles, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return accepted, fmt.Errorf("remote generation for %s: %w", req.Lane.Key, ctx.Err())
			}
			lastErr = err
			logging.Warn().
				Err(err).
				Str("lane", req.Lane.Key).
				Int("attempt", attempt).
				Int("accepted", len(accepted)).
				Msg("Remote generation attempt failed")
			continue
		}

		for _, c := range batch {
			if len(accepted) >= req.Count {
				break
			}
			if excluded(c, exclusions) {
				continue
			}
			claim(c, exclusions)
			accepted = append(accepted, c)
			acceptedTitles = append(acceptedTitles, c.Title)
		}
	}

	if len(accepted) < req.Count {
		return accepted, fmt.Errorf("lane %s short %d of %d after %d attempts (last: %v): %w",
			req.Lane.Key, req.Count-len(accepted), req.Count, r.retryLimit, lastErr, models.ErrBackendExhausted)
	}
	return accepted, nil
}

// requestBatch performs one backend call and returns the usable candidates
// it produced. Malformed individual records are dropped and counted; a
// response with no parsable payload at all is ErrMalformedResponse.
func (r *Remote) requestBatch(ctx context.Context, req Request, missing int, acceptedTitles []string, attempt int) ([]models.Candidate, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", models.ErrTransientIO)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload := chatRequest{
		Model:       r.model,
		Temperature: remoteTemperature,
		MaxTokens:   remoteMaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req, missing, acceptedTitles, attempt)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	start := time.Now()
	resp, err := r.client.Do(httpReq)
	if err != nil {
		metrics.RecordGenerationRequest("remote", "transient", time.Since(start))
		return nil, fmt.Errorf("calling generation backend: %v: %w", err, models.ErrTransientIO)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.RecordGenerationRequest("remote", "transient", time.Since(start))
		return nil, fmt.Errorf("reading response: %v: %w", err, models.ErrTransientIO)
	}

	if resp.StatusCode != http.StatusOK {
		outcome := "transient"
		wrapped := models.ErrTransientIO
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			outcome = "malformed"
			wrapped = models.ErrMalformedResponse
		}
		metrics.RecordGenerationRequest("remote", outcome, time.Since(start))
		return nil, fmt.Errorf("backend returned %d: %w", resp.StatusCode, wrapped)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		metrics.RecordGenerationRequest("remote", "malformed", time.Since(start))
		return nil, fmt.Errorf("decoding response envelope: %v: %w", err, models.ErrMalformedResponse)
	}
	if len(parsed.Choices) == 0 {
		metrics.RecordGenerationRequest("remote", "malformed", time.Since(start))
		return nil, fmt.Errorf("response has no choices: %w", models.ErrMalformedResponse)
	}

	batch, dropped, err := parseGeneratedItems(parsed.Choices[0].Message.Content, req.Lane.ContentType)
	if err != nil {
		metrics.RecordGenerationRequest("remote", "malformed", time.Since(start))
		return nil, err
	}
	if dropped > 0 {
		metrics.RecordDroppedRecords("malformed_record", dropped)
		logging.Debug().
			Str("lane", req.Lane.Key).
			Int("dropped", dropped).
			Msg("Dropped malformed generated records")
	}

	metrics.RecordGenerationRequest("remote", "ok", time.Since(start))
	return batch, nil
}

const systemPrompt = `You are a personal media curator. You recommend movies and series tuned to one viewer's demonstrated taste. Respond with a single JSON object of the form {"items": [{"title": "...", "type": "movie"|"series", "year": 2004, "description": "..."}]} and nothing else. Every item must be a real, released title. Never recommend anything from the exclusion lists.`

// buildUserPrompt renders the lane brief. Retries mention how many items
// are still missing and extend the exclusion list with everything already
// accepted, so the backend does not resend the same titles.
func buildUserPrompt(req Request, missing int, acceptedTitles []string, attempt int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Recommend exactly %d %ss for the lane %q", missing, req.Lane.ContentType, req.Lane.Title)
	if req.Lane.Description != "" {
		fmt.Fprintf(&b, " (%s)", req.Lane.Description)
	}
	b.WriteString(".\n")

	if p := req.Profile; p != nil && !p.Empty() {
		if len(p.TopGenres) > 0 {
			fmt.Fprintf(&b, "Viewer's top genres: %s.\n", strings.Join(capList(p.TopGenres, 8), ", "))
		}
		if len(p.TopLanguages) > 0 {
			fmt.Fprintf(&b, "Preferred languages: %s.\n", strings.Join(capList(p.TopLanguages, 4), ", "))
		}
		if len(p.CuriosityGenres) > 0 {
			fmt.Fprintf(&b, "Lightly explored genres worth stretching toward: %s.\n", strings.Join(capList(p.CuriosityGenres, 4), ", "))
		}
		if len(p.RecentHighlights) > 0 {
			titles := make([]string, 0, len(p.RecentHighlights))
			for _, h := range p.RecentHighlights {
				titles = append(titles, highlightLabel(h))
			}
			fmt.Fprintf(&b, "Recently watched and enjoyed: %s.\n", strings.Join(capList(titles, 12), "; "))
		}
	}

	watched := watchedTitles(req.Profile)
	if len(watched) > 0 {
		fmt.Fprintf(&b, "Already watched, never recommend: %s.\n", strings.Join(capList(watched, maxPromptExclusions), "; "))
	}
	if len(acceptedTitles) > 0 {
		fmt.Fprintf(&b, "Already suggested this cycle, never repeat: %s.\n", strings.Join(capList(acceptedTitles, maxPromptExclusions), "; "))
	}
	if attempt > 1 {
		fmt.Fprintf(&b, "Previous replies fell short; %d items are still missing. Suggest different titles.\n", missing)
	}
	fmt.Fprintf(&b, "Variation key: %s-%d.\n", req.Seed, attempt)

	return b.String()
}

// watchedTitles lists history titles for the prompt exclusion block. The
// fingerprint set handles enforcement; this list only steers the backend.
func watchedTitles(p *models.TasteProfile) []string {
	if p == nil {
		return nil
	}
	titles := make([]string, 0, len(p.RecentHighlights))
	for _, h := range p.RecentHighlights {
		titles = append(titles, h.Title)
	}
	return titles
}

func highlightLabel(h models.Highlight) string {
	if h.Year > 0 {
		return fmt.Sprintf("%s (%d)", h.Title, h.Year)
	}
	return h.Title
}

func capList(items []string, limit int) []string {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// generatedPayload is the JSON contract the backend is prompted to follow.
type generatedPayload struct {
	Items []generatedItem `json:"items"`
}

type generatedItem struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Year        int    `json:"year"`
	Description string `json:"description"`
}

// parseGeneratedItems extracts the items payload from the completion
// content and converts the usable records to candidates. Records missing
// a title, carrying an impossible year, or naming the wrong content type
// are dropped individually; a content with no parsable object at all is
// ErrMalformedResponse.
func parseGeneratedItems(content string, want models.ContentType) ([]models.Candidate, int, error) {
	raw, ok := extractJSONObject(content)
	if !ok {
		return nil, 0, fmt.Errorf("no JSON object in completion content: %w", models.ErrMalformedResponse)
	}

	var payload generatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, 0, fmt.Errorf("decoding items payload: %v: %w", err, models.ErrMalformedResponse)
	}
	if payload.Items == nil {
		return nil, 0, fmt.Errorf("items field missing: %w", models.ErrMalformedResponse)
	}

	maxYear := time.Now().Year() + 2
	candidates := make([]models.Candidate, 0, len(payload.Items))
	dropped := 0
	for _, item := range payload.Items {
		title := strings.TrimSpace(item.Title)
		ct := normalizeContentType(item.Type)
		switch {
		case title == "":
			dropped++
		case ct != want:
			dropped++
		case item.Year != 0 && (item.Year < 1880 || item.Year > maxYear):
			dropped++
		default:
			candidates = append(candidates, models.Candidate{
				Title:       title,
				Year:        item.Year,
				ContentType: ct,
				Source:      models.SourceRemote,
				Overview:    strings.TrimSpace(item.Description),
			})
		}
	}
	return candidates, dropped, nil
}

// normalizeContentType maps the loose type names backends use onto the
// two supported content types.
func normalizeContentType(raw string) models.ContentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "movie", "film":
		return models.ContentTypeMovie
	case "series", "show", "tv", "tv show":
		return models.ContentTypeSeries
	default:
		return ""
	}
}

// extractJSONObject finds the outermost JSON object in completion content,
// tolerating markdown fences and prose around it.
func extractJSONObject(content string) ([]byte, bool) {
	content = strings.TrimSpace(content)
	if fenced := strings.Index(content, "```"); fenced >= 0 {
		rest := content[fenced+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			content = rest[:end]
		} else {
			content = rest
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(content[start : end+1]), true
}
