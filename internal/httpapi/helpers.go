package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"turfwar.org/internal/authz"
	"turfwar.org/internal/faction"
	"turfwar.org/internal/feature"
	"turfwar.org/internal/identity"
	"turfwar.org/internal/stats"
)

var (
	errMissingBearer = errors.New("missing bearer token")
	errBadScheme     = errors.New("invalid authorization scheme")
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleDomainError maps sentinel errors to status codes: denials are
// 403, absent entities 404, state conflicts and malformed input 400,
// everything else a 500.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, identity.ErrNotFound),
		errors.Is(err, faction.ErrNotFound),
		errors.Is(err, feature.ErrNotFound),
		errors.Is(err, stats.ErrNoStats):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, identity.ErrConflict),
		errors.Is(err, feature.ErrUnknownFeature),
		errors.Is(err, faction.ErrNameTaken),
		errors.Is(err, faction.ErrAlreadyMember),
		errors.Is(err, faction.ErrNotInFaction),
		errors.Is(err, faction.ErrLeaderCannotLeave),
		errors.Is(err, faction.ErrInvalidCode),
		errors.Is(err, faction.ErrNotLeader),
		errors.Is(err, faction.ErrNotMember):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
