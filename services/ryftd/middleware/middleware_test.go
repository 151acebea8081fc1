package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"ryft/crypto"
)

const testSecret = "ledger-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func callerEcho(t *testing.T, want crypto.Address) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok || caller != want {
			t.Errorf("unexpected caller %s (bound=%v)", caller, ok)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorBindsSubject(t *testing.T) {
	alice := crypto.ModuleAddress("alice")
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "ryft", Audience: "ledger"}, nil)
	handler := auth.Middleware(callerEcho(t, alice))

	req := httptest.NewRequest(http.MethodPost, "/v1/stake", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
		"sub": alice.String(),
		"iss": "ryft",
		"aud": "ledger",
		"exp": time.Now().Add(time.Minute).Unix(),
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	alice := crypto.ModuleAddress("alice").String()
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "ryft"}, nil)
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run")
	}))

	cases := map[string]string{
		"missing":       "",
		"wrong scheme":  "Basic abc",
		"wrong issuer":  "Bearer " + signToken(t, jwt.MapClaims{"sub": alice, "iss": "other"}),
		"no subject":    "Bearer " + signToken(t, jwt.MapClaims{"iss": "ryft"}),
		"bad subject":   "Bearer " + signToken(t, jwt.MapClaims{"sub": "cosmos1xyz", "iss": "ryft"}),
		"expired":       "Bearer " + signToken(t, jwt.MapClaims{"sub": alice, "iss": "ryft", "exp": time.Now().Add(-time.Hour).Unix()}),
		"garbage token": "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", res.Code)
			}
		})
	}
}

func TestAuthenticatorOptionalPaths(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, OptionalPaths: []string{"/healthz"}}, nil)
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected optional path to bypass auth, got %d", res.Code)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"flash": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("flash")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/flash-loans", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesClientsAndRoutes(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"flash": {RequestsPerMinute: 1, Burst: 1},
		"stake": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	flash := limiter.Middleware("flash")(ok)
	stake := limiter.Middleware("stake")(ok)
	unlimited := limiter.Middleware("state")(ok)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/flash-loans", nil)
		req.Header.Set("X-Real-IP", ip)
		res := httptest.NewRecorder()
		flash.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected client %s to succeed, got %d", ip, res.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/stake", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	res := httptest.NewRecorder()
	stake.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected a separate budget per route, got %d", res.Code)
	}

	for i := 0; i < 3; i++ {
		res = httptest.NewRecorder()
		unlimited.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("expected unlimited route to pass, got %d", res.Code)
		}
	}
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	limiter.obtainLimiter("a", RateLimit{})
	now = now.Add(visitorTTL + time.Second)
	limiter.obtainLimiter("b", RateLimit{})
	if _, ok := limiter.visitors["a"]; ok {
		t.Fatalf("expected idle visitor to be pruned")
	}
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected one visitor, got %d", len(limiter.visitors))
	}
}
