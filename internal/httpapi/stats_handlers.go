package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"turfwar.org/internal/authz"
	"turfwar.org/internal/stats"
)

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.recordStats(w, r)
	case http.MethodGet:
		a.statsComparison(w, r, false)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleStatsAdvanced(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.statsComparison(w, r, true)
}

func (a *API) recordStats(w http.ResponseWriter, r *http.Request) {
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var snap stats.Snapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// Snapshots are always recorded against the session user; the id and
	// timestamp are assigned by the store.
	snap.ID = ""
	snap.UserID = actor.ID
	if err := a.store.Stats().Record(r.Context(), &snap); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        snap.ID,
		"timestamp": snap.Timestamp,
	})
}

func (a *API) statsComparison(w http.ResponseWriter, r *http.Request, advanced bool) {
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if advanced {
		if err := a.authz.Decide(r.Context(), actor, authz.Request{Action: authz.ActionViewAdvancedStats}); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}
	cur, prev, err := a.store.Stats().LatestTwo(r.Context(), actor.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats.Compare(cur, prev),
		"as_of": cur.Timestamp,
	})
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{Action: authz.ActionViewLeaderboard}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = v
	}
	entries, err := a.store.Stats().Leaderboard(r.Context(), limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
