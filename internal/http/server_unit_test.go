package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/auth"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/cache"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/config"
)

// newUnitServer builds a server whose store is never reached: every test
// below exercises validation and auth paths that fail before storage.
func newUnitServer() *Server {
	cfg := config.Config{
		JWTSecret:      "unit-secret",
		JWTIssuer:      "unit-issuer",
		AccessTokenTTL: time.Minute,
		BcryptCost:     10,
	}
	return NewServer(cfg, nil, cache.New(nil, 0), nil)
}

func unitToken(t *testing.T, s *Server, userID, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, time.Minute, auth.Claims{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func TestRegisterValidation(t *testing.T) {
	app := httptest.NewServer(newUnitServer().Router())
	defer app.Close()

	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", map[string]interface{}{
		"name": "Alice",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/register", "", map[string]interface{}{
		"name":     "Alice",
		"email":    "a@x.com",
		"password": "pw123",
		"role":     "superuser",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid role, got %d", resp.StatusCode)
	}
}

func TestLoginValidation(t *testing.T) {
	app := httptest.NewServer(newUnitServer().Router())
	defer app.Close()

	resp := doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]interface{}{
		"email": "a@x.com",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", resp.StatusCode)
	}
}

func TestVerifyRequiresCertificateID(t *testing.T) {
	app := httptest.NewServer(newUnitServer().Router())
	defer app.Close()

	resp := doReq(t, http.MethodGet, app.URL+"/certificates/verify", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing certificateId, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	server := newUnitServer()
	app := httptest.NewServer(server.Router())
	defer app.Close()

	// No token.
	resp := doReq(t, http.MethodPost, app.URL+"/fingerprint/enroll", "", map[string]interface{}{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Garbage token.
	resp = doReq(t, http.MethodPost, app.URL+"/fingerprint/enroll", "garbage", map[string]interface{}{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}

	// Expired token.
	expired, err := auth.NewAccessToken(server.cfg.JWTSecret, server.cfg.JWTIssuer, -time.Minute, auth.Claims{
		UserID: "user-1",
		Role:   "admin",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	resp = doReq(t, http.MethodPost, app.URL+"/fingerprint/enroll", expired, map[string]interface{}{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.StatusCode)
	}
}

func TestRoleGateIsExactMatch(t *testing.T) {
	server := newUnitServer()
	app := httptest.NewServer(server.Router())
	defer app.Close()

	// Neither students nor verifiers pass the admin gate.
	for _, role := range []string{"student", "verifier"} {
		token := unitToken(t, server, "user-1", role)
		resp := doReq(t, http.MethodPost, app.URL+"/certificates/generate", token, map[string]interface{}{})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 for role %s, got %d", role, resp.StatusCode)
		}
	}

	// An admin passes the gate and reaches request validation.
	token := unitToken(t, server, "user-1", "admin")
	resp := doReq(t, http.MethodPost, app.URL+"/certificates/generate", token, map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for admin with empty body, got %d", resp.StatusCode)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"Bearer abc":       "abc",
		"bearer abc":       "abc",
		"Basic abc":        "",
		"Bearer":           "",
		"Bearer  spaced  ": "spaced",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("bearerToken(%q) = %q, expected %q", header, got, expect)
		}
	}
}
