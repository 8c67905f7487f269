package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-panel/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// maxQueryParamLen limits query parameter length.
	maxQueryParamLen = 100
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)
		r.Get("/history", s.handleHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.mqtt != nil && s.mqtt.IsConnected()
	status := "ok"
	if !connected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"version":        s.version,
		"mqtt_connected": connected,
	})
}

// handleState returns the loop's latest snapshot.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// handleHistory returns recent published states for one entity.
//
// Query parameters:
//   - entity: display, led or sensors (required)
//   - limit: 1..200, default 50
//   - since: RFC 3339 timestamp; only newer entries are returned
//
// Entries arrive newest first, so those newer than since are a prefix of
// the result and limit still counts up to limit of them.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	raw := q.Get("entity")
	if raw == "" || len(raw) > maxQueryParamLen {
		writeBadRequest(w, r, "entity is required")
		return
	}
	entity, ok := device.ParseEntity(raw)
	if !ok {
		writeBadRequest(w, r, "unknown entity")
		return
	}

	limit, err := parseHistoryLimit(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	since, err := parseSinceParam(q.Get("since"))
	if err != nil {
		writeBadRequest(w, r, "invalid since timestamp")
		return
	}

	if s.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history unavailable")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), entity, limit)
	if err != nil {
		s.logger.Error("loading state history failed", "entity", entity, "error", err)
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to load state history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.CreatedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []device.StateHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity":  entity,
		"history": entries,
		"count":   len(entries),
	})
}

func parseHistoryLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxHistoryLimit {
		return 0, errors.New("limit must be at most " + strconv.Itoa(maxHistoryLimit))
	}
	return limit, nil
}

func parseSinceParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if len(raw) > maxQueryParamLen {
		return time.Time{}, errors.New("since too long")
	}
	return time.Parse(time.RFC3339, raw)
}
