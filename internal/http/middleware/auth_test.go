// README: Tests for the Firebase auth middleware and the rate limiter.
package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"geotag/internal/http/middleware"
	"geotag/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "guest": middleware.GuestKey(c)})
	})
	return r
}

// signedIn is the middleware chain of routes that need an account.
func signedIn(v infra.TokenVerifier) *gin.Engine {
	return newTestRouter(middleware.OptionalAuth(v), middleware.RequireUser())
}

func get(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireUser_MissingHeader(t *testing.T) {
	r := signedIn(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}})
	if w := get(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireUser_InvalidBearerPrefix(t *testing.T) {
	r := signedIn(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}})
	if w := get(r, "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireUser_VerifierError(t *testing.T) {
	r := signedIn(&stubVerifier{err: errors.New("bad token")})
	if w := get(r, "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireUser_FirebaseGuest(t *testing.T) {
	r := signedIn(&stubVerifier{token: &infra.FirebaseToken{UID: "g1", Anonymous: true}})
	if w := get(r, "Bearer guest"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireUser_ValidToken_UIDPopulated(t *testing.T) {
	r := signedIn(&stubVerifier{token: &infra.FirebaseToken{UID: "photographer123"}})
	w := get(r, "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "photographer123") {
		t.Errorf("expected uid photographer123 in body, got %s", w.Body.String())
	}
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name     string
		verifier infra.TokenVerifier
		header   string
		wantCode int
		wantUID  string
	}{
		{"anonymous", &stubVerifier{token: &infra.FirebaseToken{UID: "u"}}, "", http.StatusOK, `"guest":"ip:192.0.2.1","uid":""`},
		{"no verifier configured", nil, "", http.StatusOK, `"uid":""`},
		{"valid token", &stubVerifier{token: &infra.FirebaseToken{UID: "u42"}}, "Bearer ok", http.StatusOK, `"uid":"u42"`},
		{"firebase guest", &stubVerifier{token: &infra.FirebaseToken{UID: "g1", Anonymous: true}}, "Bearer guest", http.StatusOK, `"guest":"firebase:g1","uid":""`},
		{"invalid token", &stubVerifier{err: errors.New("expired")}, "Bearer old", http.StatusUnauthorized, ""},
		{"malformed header", &stubVerifier{token: &infra.FirebaseToken{UID: "u"}}, "Basic abc", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newTestRouter(middleware.OptionalAuth(tt.verifier)), tt.header)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantUID != "" && !strings.Contains(w.Body.String(), tt.wantUID) {
				t.Errorf("expected %s in body, got %s", tt.wantUID, w.Body.String())
			}
		})
	}
}

func TestRateLimiter_BlocksBurstOverflow(t *testing.T) {
	l := middleware.NewRateLimiter(0.001, 2, time.Minute, zerolog.Nop())
	r := newTestRouter(l.Middleware())

	for i := 0; i < 2; i++ {
		if w := get(r, ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := get(r, ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
