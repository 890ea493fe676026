package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"turfwar.org/internal/auth"
	"turfwar.org/internal/authz"
	"turfwar.org/internal/faction"
	"turfwar.org/internal/feature"
	"turfwar.org/internal/identity"
	"turfwar.org/internal/obs"
	"turfwar.org/internal/stats"
)

// Store bundles the per-domain store accessors. Both the PostgreSQL and
// the in-memory implementations satisfy it.
type Store interface {
	Users() identity.Store
	Factions() faction.Store
	Features() feature.Store
	Stats() stats.Store
}

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	store      Store
	identity   *identity.Service
	authz      *authz.Coordinator
	blacklist  *auth.Blacklist
	readyProbe ReadyProbe
	version    string
	rateBurst  int
	ratePerSec int
}

type Config struct {
	Store      Store
	Identity   *identity.Service
	Authz      *authz.Coordinator
	Blacklist  *auth.Blacklist
	ReadyProbe ReadyProbe
	Version    string
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      cfg.Store,
		identity:   cfg.Identity,
		authz:      cfg.Authz,
		blacklist:  cfg.Blacklist,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		rateBurst:  40,
		ratePerSec: 20,
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// accounts and sessions
	a.mux.HandleFunc("/register", a.handleRegister)
	a.mux.HandleFunc("/login", a.handleLogin)
	a.mux.HandleFunc("/logout", a.handleLogout)
	a.mux.HandleFunc("/password/change", a.handleChangePassword)

	// factions
	a.mux.HandleFunc("/faction/create", a.handleFactionCreate)
	a.mux.HandleFunc("/faction/join", a.handleFactionJoin)
	a.mux.HandleFunc("/faction/leave", a.handleFactionLeave)
	a.mux.HandleFunc("/faction/transfer", a.handleFactionTransfer)
	a.mux.HandleFunc("/faction/details", a.handleFactionDetails)
	a.mux.HandleFunc("/faction/members", a.handleFactionMembers)

	// admin console
	a.mux.HandleFunc("/admin/feature_access/update", a.handleFeatureBulkUpdate)
	a.mux.HandleFunc("/admin/feature_access/grant", a.handleFeatureGrant)
	a.mux.HandleFunc("/admin/users", a.handleAdminUsers)
	a.mux.HandleFunc("/admin/users/", a.handleAdminUserResource)
	a.mux.HandleFunc("/admin/faction/", a.handleAdminFactionResource)

	// gameplay stats
	a.mux.HandleFunc("/stats", a.handleStats)
	a.mux.HandleFunc("/stats/advanced", a.handleStatsAdvanced)
	a.mux.HandleFunc("/leaderboard", a.handleLeaderboard)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "turfwar-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
