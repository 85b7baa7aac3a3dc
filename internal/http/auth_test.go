package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ncpharmacy/backend/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	user := domain.StaffUser{
		ID:          7,
		Username:    "clerk",
		Role:        domain.RoleStaff,
		Permissions: []string{domain.PermAddSale},
	}

	token, expires, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expires) < 55*time.Minute {
		t.Fatalf("expiry too soon: %v", expires)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "clerk" || claims.Role != domain.RoleStaff {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != domain.PermAddSale {
		t.Fatalf("permissions lost: %v", claims.Permissions)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	token, _, err := issuer.Issue(domain.StaffUser{ID: 1, Username: "old"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Parse(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("secret-a", time.Hour).Issue(domain.StaffUser{ID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenIssuer("secret-b", time.Hour).Parse(token); err == nil {
		t.Fatal("expected error for wrong signing secret")
	}
}

func guardedEndpoint(t *testing.T, issuer *TokenIssuer, permission string) http.Handler {
	t.Helper()
	h := NewHandler(nil, issuer)
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r.Context())
		if !ok {
			t.Error("actor missing from context inside guarded handler")
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": actor.Username})
	})
	return h.requireAuth(h.requirePermission(permission)(final))
}

func TestAuthMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	endpoint := guardedEndpoint(t, issuer, domain.PermAddSale)

	sellerToken, _, err := issuer.Issue(domain.StaffUser{
		ID: 2, Username: "seller", Role: domain.RoleStaff,
		Permissions: []string{domain.PermAddSale},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	viewerToken, _, err := issuer.Issue(domain.StaffUser{
		ID: 3, Username: "viewer", Role: domain.RoleStaff,
		Permissions: []string{domain.PermViewSale},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	adminToken, _, err := issuer.Issue(domain.StaffUser{
		ID: 1, Username: "boss", Role: domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"granted permission", "Bearer " + sellerToken, http.StatusOK},
		{"missing permission", "Bearer " + viewerToken, http.StatusForbidden},
		{"admin implies all", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			endpoint.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	h := NewHandler(nil, issuer)
	endpoint := h.requireAuth(h.requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	staffToken, _, err := issuer.Issue(domain.StaffUser{ID: 4, Username: "clerk", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	adminToken, _, err := issuer.Issue(domain.StaffUser{ID: 1, Username: "boss", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec := httptest.NewRecorder()
	endpoint.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	endpoint.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", rec.Code)
	}
}
