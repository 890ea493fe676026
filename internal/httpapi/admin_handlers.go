package httpapi

import (
	"net/http"
	"strings"

	"turfwar.org/internal/audit"
	"turfwar.org/internal/authz"
)

type grantRequest struct {
	UserID  string `json:"user_id"`
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

type adminUserView struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	IsAdmin   bool            `json:"is_admin"`
	FactionID *string         `json:"faction_id,omitempty"`
	Features  map[string]bool `json:"features"`
}

func (a *API) handleFeatureBulkUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{Action: authz.ActionBulkUpdateGrants}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var updates map[string]map[string]bool
	if err := decodeJSON(w, r, &updates); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(updates) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one user entry is required")
		return
	}
	res, err := a.store.Features().BulkUpdate(r.Context(), updates, actor.IsAdmin)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "feature.bulk_update", map[string]any{
		"applied":       res.Applied,
		"missing_users": res.MissingUsers,
		"denied_grants": res.DeniedGrants,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  res,
	})
}

func (a *API) handleFeatureGrant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Feature = strings.TrimSpace(req.Feature)
	if req.UserID == "" || req.Feature == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and feature are required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{
		Action:  authz.ActionGrantFeature,
		Feature: req.Feature,
	}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.store.Features().Set(r.Context(), req.UserID, req.Feature, req.Enabled); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "feature.grant", map[string]any{
		"target":  req.UserID,
		"feature": req.Feature,
		"enabled": req.Enabled,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{Action: authz.ActionListUsers}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	users, err := a.store.Users().List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	views := make([]adminUserView, 0, len(users))
	for _, u := range users {
		flags, err := a.store.Features().ListForUser(r.Context(), u.ID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		views = append(views, adminUserView{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			IsAdmin:   u.IsAdmin,
			FactionID: u.FactionID,
			Features:  flags,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (a *API) handleAdminUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	switch parts[1] {
	case "toggle_admin":
		a.toggleAdmin(w, r, userID)
	case "delete":
		a.deleteUser(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) toggleAdmin(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{
		Action:       authz.ActionToggleAdmin,
		TargetUserID: userID,
	}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	target, err := a.store.Users().FindByID(r.Context(), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	next := !target.IsAdmin
	if err := a.store.Users().SetAdmin(r.Context(), target.ID, next); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.toggle_admin", map[string]any{
		"target":   target.ID,
		"is_admin": next,
	})
	writeJSON(w, http.StatusOK, map[string]any{"is_admin": next})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{
		Action:       authz.ActionDeleteUser,
		TargetUserID: userID,
	}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.store.Users().Delete(r.Context(), userID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.delete_user", map[string]any{
		"target": userID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleAdminFactionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/faction/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "delete" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	factionID := parts[0]
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{Action: authz.ActionDeleteFaction}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.store.Factions().Delete(r.Context(), factionID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.delete_faction", map[string]any{
		"faction_id": factionID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
