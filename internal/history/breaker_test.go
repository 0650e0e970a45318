// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dankeller/lanewise/internal/models"
)

// TestBreakerClient_PassesThrough verifies successful calls flow through
// the breaker unchanged.
func TestBreakerClient_PassesThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, historyPage("Heat"))
	}))
	defer server.Close()

	client := NewBreakerClient(testConfig(server.URL))
	if got := client.State(); got != gobreaker.StateClosed {
		t.Fatalf("State() = %v, want closed", got)
	}

	items, err := client.FetchHistory(context.Background(), "alice", models.ContentTypeMovie, 0)
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if len(items) != 1 || items[0].Title != "Heat" {
		t.Errorf("items = %+v, want [Heat]", items)
	}
}

// TestBreakerClient_OpensAfterFailures verifies the circuit opens after
// sustained failures and then rejects without touching the backend,
// surfacing rejections as transient failures.
func TestBreakerClient_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewBreakerClient(testConfig(server.URL))

	// Trip threshold: 60% failure rate over at least 10 requests
	for i := 0; i < 10; i++ {
		if _, err := client.FetchHistory(context.Background(), "alice", models.ContentTypeMovie, 0); err == nil {
			t.Fatalf("FetchHistory() call %d error = nil, want error", i)
		}
	}
	if got := client.State(); got != gobreaker.StateOpen {
		t.Fatalf("State() after failures = %v, want open", got)
	}

	_, err := client.FetchHistory(context.Background(), "alice", models.ContentTypeMovie, 0)
	if err == nil {
		t.Fatal("FetchHistory() with open circuit error = nil, want error")
	}
	if !errors.Is(err, models.ErrTransientIO) {
		t.Errorf("open-circuit error = %v, want ErrTransientIO", err)
	}
	if calls != 10 {
		t.Errorf("backend calls = %d, want 10 (rejection must not reach the backend)", calls)
	}
}

// TestStateConversions verifies the metric and log representations of
// breaker states.
func TestStateConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state      gobreaker.State
		wantFloat  float64
		wantString string
	}{
		{gobreaker.StateClosed, 0, "closed"},
		{gobreaker.StateHalfOpen, 1, "half-open"},
		{gobreaker.StateOpen, 2, "open"},
	}

	for _, tt := range tests {
		if got := stateToFloat(tt.state); got != tt.wantFloat {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.wantFloat)
		}
		if got := stateToString(tt.state); got != tt.wantString {
			t.Errorf("stateToString(%v) = %v, want %v", tt.state, got, tt.wantString)
		}
	}
}

// TestCastSlice verifies the breaker result cast rejects mismatched types.
func TestCastSlice(t *testing.T) {
	t.Parallel()

	items, err := castSlice[models.HistoryItem]([]models.HistoryItem{{Title: "Heat"}}, nil)
	if err != nil {
		t.Fatalf("castSlice() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}

	if _, err := castSlice[models.HistoryItem]("not a slice", nil); err == nil {
		t.Error("castSlice() with wrong type error = nil, want error")
	}

	wantErr := errors.New("boom")
	if _, err := castSlice[models.HistoryItem](nil, wantErr); !errors.Is(err, wantErr) {
		t.Errorf("castSlice() error = %v, want boom passthrough", err)
	}
}
