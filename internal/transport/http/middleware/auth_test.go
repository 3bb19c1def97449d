package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/kether-core/internal/core/domain"
)

type fakeSessions struct {
	sessions map[string]*domain.Session
}

func (f *fakeSessions) Restore(_ context.Context, token string) (*domain.Session, bool) {
	s, ok := f.sessions[token]
	return s, ok
}

type fakeAdminGate struct {
	admins       map[string]bool
	unauthorized []string
}

func (f *fakeAdminGate) IsAdmin(wallet string) bool {
	return f.admins[wallet]
}

func (f *fakeAdminGate) RecordUnauthorizedAdmin(_ context.Context, ip string) bool {
	f.unauthorized = append(f.unauthorized, ip)
	return false
}

func newSessionRouter(gate *fakeAdminGate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := &fakeSessions{sessions: map[string]*domain.Session{
		"user-token":  {IdentityID: "id-user", WalletAddress: "0xuser"},
		"admin-token": {IdentityID: "id-admin", WalletAddress: "0xadmin"},
	}}

	router := gin.New()
	router.Use(EnrichContext())
	authed := router.Group("/", RequireSession(sessions))
	authed.GET("/me", func(c *gin.Context) {
		session, _ := CurrentSession(c)
		c.String(http.StatusOK, session.IdentityID)
	})
	router.GET("/admin", RequireAdmin(sessions, gate), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func serve(router *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.10:5555"
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRequireSession(t *testing.T) {
	router := newSessionRouter(&fakeAdminGate{})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic dXNlcg==", http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "bearer user-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(router, "/me", tc.header)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}

	rr := serve(router, "/me", "Bearer user-token")
	if rr.Body.String() != "id-user" {
		t.Fatalf("expected session identity in handler, got %q", rr.Body.String())
	}

	rr = serve(router, "/me", "")
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "unauthorized" || body.TraceID == "" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestRequireAdmin(t *testing.T) {
	gate := &fakeAdminGate{admins: map[string]bool{"0xadmin": true}}
	router := newSessionRouter(gate)

	if rr := serve(router, "/admin", "Bearer admin-token"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected admin to pass, got %d", rr.Code)
	}
	if len(gate.unauthorized) != 0 {
		t.Fatalf("admin access must not be recorded, got %v", gate.unauthorized)
	}

	if rr := serve(router, "/admin", "Bearer user-token"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if len(gate.unauthorized) != 1 || gate.unauthorized[0] != "203.0.113.10" {
		t.Fatalf("expected unauthorized attempt from client ip, got %v", gate.unauthorized)
	}

	for _, header := range []string{"", "Bearer forged"} {
		if rr := serve(router, "/admin", header); rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %q, got %d", header, rr.Code)
		}
	}
	if len(gate.unauthorized) != 3 {
		t.Fatalf("expected unauthenticated attempts to be recorded, got %v", gate.unauthorized)
	}
}
