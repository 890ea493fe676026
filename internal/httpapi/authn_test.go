package httpapi

import (
	"net/http"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer", "", true},
		{"Bearer   ", "", true},
		{"Bearer tok123", "tok123", false},
		{"bearer tok123", "tok123", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.header)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %q, %v", tc.header, got, err)
		}
	}
}

func TestAuthRejectsGarbageTokens(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/faction/details", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	wantStatus(t, resp, http.StatusUnauthorized)

	resp = c.get("/faction/details", nil, map[string]string{"Authorization": "Token abc"})
	wantStatus(t, resp, http.StatusUnauthorized)
}

func TestPublicPathsSkipAuth(t *testing.T) {
	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		if !isPublicPath(p) {
			t.Fatalf("%s should be public", p)
		}
	}
	for _, p := range []string{"/faction/details", "/admin/users", "/stats"} {
		if isPublicPath(p) {
			t.Fatalf("%s should require auth", p)
		}
	}
}
