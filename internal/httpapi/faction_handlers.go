package httpapi

import (
	"net/http"
	"strings"

	"turfwar.org/internal/audit"
	"turfwar.org/internal/authz"
	"turfwar.org/internal/faction"
	"turfwar.org/internal/identity"
)

type createFactionRequest struct {
	Name string `json:"name"`
}

type joinFactionRequest struct {
	InvitationCode string `json:"invitation_code"`
}

type transferFactionRequest struct {
	Username string `json:"username"`
}

func (a *API) handleFactionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authz.Decide(r.Context(), actor, authz.Request{Action: authz.ActionCreateFaction}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req createFactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Name) > 64 {
		writeError(w, r, http.StatusBadRequest, "name must be <=64 characters")
		return
	}
	f, err := a.store.Factions().Create(r.Context(), req.Name, actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "faction.create", map[string]any{
		"faction_id": f.ID,
		"name":       f.Name,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"faction_id":      f.ID,
		"invitation_code": f.InvitationCode,
	})
}

func (a *API) handleFactionJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req joinFactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	code := strings.TrimSpace(req.InvitationCode)
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "invitation_code is required")
		return
	}
	f, err := a.store.Factions().Join(r.Context(), code, actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "faction.join", map[string]any{
		"faction_id": f.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"faction_id": f.ID,
		"name":       f.Name,
	})
}

func (a *API) handleFactionLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.store.Factions().Leave(r.Context(), actor); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "faction.leave", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleFactionTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req transferFactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}
	f, err := a.store.Factions().Transfer(r.Context(), actor, username)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "faction.transfer", map[string]any{
		"faction_id": f.ID,
		"new_leader": f.LeaderUsername,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"leader":  f.LeaderUsername,
	})
}

func (a *API) handleFactionDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	f, err := a.actorFaction(r, actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	members, err := a.store.Factions().Members(r.Context(), f.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	// The invitation code is leader-only; the coordinator's verdict
	// decides whether this view carries it.
	includeCode := a.authz.Decide(r.Context(), actor, authz.Request{
		Action:          authz.ActionViewInvitation,
		FactionLeaderID: f.LeaderID,
	}) == nil
	writeJSON(w, http.StatusOK, faction.DetailsFor(f, len(members), includeCode))
}

func (a *API) handleFactionMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, err := a.currentUser(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	f, err := a.actorFaction(r, actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	members, err := a.store.Factions().Members(r.Context(), f.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// actorFaction resolves the faction the actor belongs to, or
// ErrNotInFaction when they have none.
func (a *API) actorFaction(r *http.Request, actor *identity.User) (*faction.Faction, error) {
	if actor.FactionID == nil {
		return nil, faction.ErrNotInFaction
	}
	return a.store.Factions().FindByID(r.Context(), *actor.FactionID)
}
