package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"turfwar.org/internal/auth"
	"turfwar.org/internal/authz"
	"turfwar.org/internal/identity"
	"turfwar.org/internal/store/memory"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("TURFWAR_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	st := memory.New()
	api := New(Config{
		Store:    st,
		Identity: identity.NewService(st.Users()),
		Authz:    authz.New(st.Features()),
		Version:  "test",
	})
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   st,
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// signup registers a user and returns an auth header plus the stored id.
func (c *apiClient) signup(username string) (map[string]string, string) {
	c.t.Helper()
	resp := c.post("/register", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	user := decode[identity.User](c.t, resp)

	resp = c.post("/login", map[string]any{
		"username": username,
		"password": "hunter22",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	payload := decode[loginResponse](c.t, resp)
	if payload.Token == "" {
		c.t.Fatal("empty token issued")
	}
	return map[string]string{"Authorization": "Bearer " + payload.Token}, user.ID
}

func (c *apiClient) makeAdmin(userID string) {
	c.t.Helper()
	if err := c.store.Users().SetAdmin(context.Background(), userID, true); err != nil {
		c.t.Fatalf("SetAdmin: %v", err)
	}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	c := newTestAPI(t)

	_, _ = c.signup("alice")

	// duplicate username conflicts
	resp := c.post("/register", map[string]any{
		"username": "alice",
		"email":    "other@example.com",
		"password": "hunter22",
	}, nil)
	wantStatus(t, resp, http.StatusBadRequest)

	// wrong password
	resp = c.post("/login", map[string]any{
		"username": "alice",
		"password": "wrong",
	}, nil)
	wantStatus(t, resp, http.StatusUnauthorized)

	// no token
	resp = c.post("/faction/create", map[string]any{"name": "Reds"}, nil)
	wantStatus(t, resp, http.StatusUnauthorized)
}

func TestFactionCreationRequiresGrant(t *testing.T) {
	c := newTestAPI(t)
	adminHdr, adminID := c.signup("root")
	c.makeAdmin(adminID)
	userHdr, userID := c.signup("bob")

	resp := c.post("/faction/create", map[string]any{"name": "Reds"}, userHdr)
	wantStatus(t, resp, http.StatusForbidden)

	// admin grants faction_creation via bulk update, then the retry lands
	resp = c.post("/admin/feature_access/update", map[string]map[string]bool{
		userID: {"faction_creation": true},
	}, adminHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.post("/faction/create", map[string]any{"name": "Reds"}, userHdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create after grant: status %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	if created["invitation_code"] == "" || created["faction_id"] == "" {
		t.Fatalf("unexpected create payload: %v", created)
	}

	// a second faction with the same name conflicts
	otherHdr, otherID := c.signup("carol")
	resp = c.post("/admin/feature_access/update", map[string]map[string]bool{
		otherID: {"faction_creation": true},
	}, adminHdr)
	wantStatus(t, resp, http.StatusOK)
	resp = c.post("/faction/create", map[string]any{"name": "Reds"}, otherHdr)
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestSelfTargetingGuards(t *testing.T) {
	c := newTestAPI(t)
	adminHdr, adminID := c.signup("root")
	c.makeAdmin(adminID)

	resp := c.post("/admin/users/"+adminID+"/toggle_admin", nil, adminHdr)
	wantStatus(t, resp, http.StatusForbidden)

	resp = c.post("/admin/users/"+adminID+"/delete", nil, adminHdr)
	wantStatus(t, resp, http.StatusForbidden)

	// another user is fair game
	_, targetID := c.signup("bob")
	resp = c.post("/admin/users/"+targetID+"/toggle_admin", nil, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle other: status %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["is_admin"] != true {
		t.Fatalf("expected is_admin true, got %v", payload)
	}
}

func TestInvitationCodeIsLeaderOnly(t *testing.T) {
	c := newTestAPI(t)
	leaderHdr, leaderID := c.signup("boss")
	c.makeAdmin(leaderID)
	memberHdr, _ := c.signup("runner")

	resp := c.post("/faction/create", map[string]any{"name": "Night Crew"}, leaderHdr)
	created := decode[map[string]string](t, resp)

	resp = c.post("/faction/join", map[string]any{"invitation_code": created["invitation_code"]}, memberHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.get("/faction/details", nil, leaderHdr)
	leaderView := decode[map[string]any](t, resp)
	if leaderView["invitation_code"] != created["invitation_code"] {
		t.Fatalf("leader should see the code: %v", leaderView)
	}
	if leaderView["member_count"] != float64(2) {
		t.Fatalf("member_count = %v, want 2", leaderView["member_count"])
	}

	resp = c.get("/faction/details", nil, memberHdr)
	memberView := decode[map[string]any](t, resp)
	if _, ok := memberView["invitation_code"]; ok {
		t.Fatalf("member must not see the code: %v", memberView)
	}
}

func TestLeaderCannotLeave(t *testing.T) {
	c := newTestAPI(t)
	leaderHdr, leaderID := c.signup("boss")
	c.makeAdmin(leaderID)
	memberHdr, _ := c.signup("runner")

	resp := c.post("/faction/create", map[string]any{"name": "Night Crew"}, leaderHdr)
	created := decode[map[string]string](t, resp)
	resp = c.post("/faction/join", map[string]any{"invitation_code": created["invitation_code"]}, memberHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.post("/faction/leave", nil, leaderHdr)
	wantStatus(t, resp, http.StatusBadRequest)

	resp = c.post("/faction/leave", nil, memberHdr)
	wantStatus(t, resp, http.StatusOK)

	// after a transfer the old leader may go
	resp = c.post("/faction/join", map[string]any{"invitation_code": created["invitation_code"]}, memberHdr)
	wantStatus(t, resp, http.StatusOK)
	resp = c.post("/faction/transfer", map[string]any{"username": "runner"}, leaderHdr)
	wantStatus(t, resp, http.StatusOK)
	resp = c.post("/faction/leave", nil, leaderHdr)
	wantStatus(t, resp, http.StatusOK)
}

func TestFactionDeleteClearsMembership(t *testing.T) {
	c := newTestAPI(t)
	adminHdr, adminID := c.signup("root")
	c.makeAdmin(adminID)
	memberHdr, _ := c.signup("runner")

	resp := c.post("/faction/create", map[string]any{"name": "Night Crew"}, adminHdr)
	created := decode[map[string]string](t, resp)
	resp = c.post("/faction/join", map[string]any{"invitation_code": created["invitation_code"]}, memberHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.post("/admin/faction/"+created["faction_id"]+"/delete", nil, adminHdr)
	wantStatus(t, resp, http.StatusOK)

	// every prior member is factionless now
	resp = c.get("/faction/details", nil, memberHdr)
	wantStatus(t, resp, http.StatusBadRequest)

	// deleting it again is a 404
	resp = c.post("/admin/faction/"+created["faction_id"]+"/delete", nil, adminHdr)
	wantStatus(t, resp, http.StatusNotFound)
}

func TestBulkUpdateSelfGrantSkipped(t *testing.T) {
	c := newTestAPI(t)
	userHdr, userID := c.signup("dave")

	// the call succeeds, the entry is skipped
	resp := c.post("/admin/feature_access/update", map[string]map[string]bool{
		userID: {"faction_creation": true},
	}, userHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk update: status %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["success"] != true {
		t.Fatalf("expected success payload, got %v", payload)
	}

	// the grant did not land
	resp = c.post("/faction/create", map[string]any{"name": "Sneaky"}, userHdr)
	wantStatus(t, resp, http.StatusForbidden)
}

func TestSingleGrantIsAdminOnly(t *testing.T) {
	c := newTestAPI(t)
	adminHdr, adminID := c.signup("root")
	c.makeAdmin(adminID)
	userHdr, userID := c.signup("bob")

	resp := c.post("/admin/feature_access/grant", map[string]any{
		"user_id": userID, "feature": "advanced_stats", "enabled": true,
	}, userHdr)
	wantStatus(t, resp, http.StatusForbidden)

	resp = c.post("/admin/feature_access/grant", map[string]any{
		"user_id": userID, "feature": "advanced_stats", "enabled": true,
	}, adminHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.post("/admin/feature_access/grant", map[string]any{
		"user_id": userID, "feature": "time_travel", "enabled": true,
	}, adminHdr)
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestStatsEndpoints(t *testing.T) {
	c := newTestAPI(t)
	adminHdr, adminID := c.signup("root")
	c.makeAdmin(adminID)
	userHdr, userID := c.signup("bob")

	// nothing recorded yet
	resp := c.get("/stats", nil, userHdr)
	wantStatus(t, resp, http.StatusNotFound)

	resp = c.post("/stats", map[string]any{"kills": 10, "total_wins": 3}, userHdr)
	wantStatus(t, resp, http.StatusCreated)
	resp = c.post("/stats", map[string]any{"kills": 25, "total_wins": 5}, userHdr)
	wantStatus(t, resp, http.StatusCreated)

	resp = c.get("/stats", nil, userHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get stats: status %d", resp.StatusCode)
	}
	payload := decode[struct {
		Stats map[string]struct {
			Current  int64 `json:"current"`
			Previous int64 `json:"previous"`
		} `json:"stats"`
	}](t, resp)
	kills := payload.Stats["kills"]
	if kills.Current != 25 || kills.Previous != 10 {
		t.Fatalf("kills delta = %+v", kills)
	}

	// gated views need the grant; admins pass
	resp = c.get("/stats/advanced", nil, userHdr)
	wantStatus(t, resp, http.StatusForbidden)
	resp = c.get("/leaderboard", nil, userHdr)
	wantStatus(t, resp, http.StatusForbidden)

	resp = c.post("/admin/feature_access/update", map[string]map[string]bool{
		userID: {"advanced_stats": true, "leaderboard": true},
	}, adminHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.get("/stats/advanced", nil, userHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.get("/leaderboard", nil, userHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: status %d", resp.StatusCode)
	}
	board := decode[struct {
		Entries []struct {
			Username string `json:"username"`
			Kills    int64  `json:"kills"`
		} `json:"entries"`
	}](t, resp)
	if len(board.Entries) != 1 || board.Entries[0].Username != "bob" || board.Entries[0].Kills != 25 {
		t.Fatalf("unexpected leaderboard: %+v", board.Entries)
	}
}

func TestAdminUserListing(t *testing.T) {
	c := newTestAPI(t)
	adminHdr, adminID := c.signup("root")
	c.makeAdmin(adminID)
	userHdr, _ := c.signup("bob")

	resp := c.get("/admin/users", nil, userHdr)
	wantStatus(t, resp, http.StatusForbidden)

	resp = c.get("/admin/users", nil, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin users: status %d", resp.StatusCode)
	}
	payload := decode[struct {
		Users []adminUserView `json:"users"`
	}](t, resp)
	if len(payload.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(payload.Users))
	}
	for _, u := range payload.Users {
		if len(u.Features) == 0 {
			t.Fatalf("user %s missing feature flags", u.Username)
		}
	}
}

func TestDeleteUserCascades(t *testing.T) {
	c := newTestAPI(t)
	adminHdr, adminID := c.signup("root")
	c.makeAdmin(adminID)
	leaderHdr, leaderID := c.signup("boss")
	memberHdr, _ := c.signup("runner")

	resp := c.post("/admin/feature_access/update", map[string]map[string]bool{
		leaderID: {"faction_creation": true},
	}, adminHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.post("/faction/create", map[string]any{"name": "Night Crew"}, leaderHdr)
	created := decode[map[string]string](t, resp)
	resp = c.post("/faction/join", map[string]any{"invitation_code": created["invitation_code"]}, memberHdr)
	wantStatus(t, resp, http.StatusOK)

	resp = c.post("/admin/users/"+leaderID+"/delete", nil, adminHdr)
	wantStatus(t, resp, http.StatusOK)

	// leadership passed to the remaining member
	resp = c.get("/faction/details", nil, memberHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("details after cascade: status %d", resp.StatusCode)
	}
	view := decode[map[string]any](t, resp)
	if view["leader"] != "runner" {
		t.Fatalf("leader = %v, want runner", view["leader"])
	}
}

func TestHealthAndReady(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil, nil)
	wantStatus(t, resp, http.StatusOK)
	resp = c.get("/readyz", nil, nil)
	wantStatus(t, resp, http.StatusOK)
}
