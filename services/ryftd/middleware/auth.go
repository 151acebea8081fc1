package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"ryft/crypto"
	"ryft/observability/logging"
)

type AuthConfig struct {
	HMACSecret    string
	Issuer        string
	Audience      string
	OptionalPaths []string
	ClockSkew     time.Duration
}

type contextKey string

const (
	ContextKeyToken  contextKey = "ryftd.token"
	ContextKeyCaller contextKey = "ryftd.caller"
)

// Authenticator verifies HS256 bearer tokens and binds the caller address
// carried in the sub claim to the request context.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	secret []byte
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "auth")),
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isOptional(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := a.parseToken(tokenString)
		if err != nil {
			a.logger.Warn("token validation failed", slog.String("error", err.Error()), logging.MaskField("token", tokenString))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if err := validateClaims(claims, a.cfg.Issuer, a.cfg.Audience); err != nil {
			a.logger.Warn("claim validation failed", slog.String("error", err.Error()))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		caller, err := subjectAddress(claims)
		if err != nil {
			a.logger.Warn("subject rejected", slog.String("error", err.Error()))
			http.Error(w, "invalid token subject", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyToken, tokenString)
		ctx = context.WithValue(ctx, ContextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFromContext returns the authenticated caller of the request.
func CallerFromContext(ctx context.Context) (crypto.Address, bool) {
	caller, ok := ctx.Value(ContextKeyCaller).(crypto.Address)
	return caller, ok
}

func (a *Authenticator) isOptional(path string) bool {
	for _, prefix := range a.cfg.OptionalPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func validateClaims(claims jwt.MapClaims, issuer, audience string) error {
	if issuer != "" {
		if value, ok := claims["iss"].(string); !ok || value != issuer {
			return errors.New("issuer mismatch")
		}
	}
	if audience != "" {
		switch val := claims["aud"].(type) {
		case string:
			if val != audience {
				return errors.New("audience mismatch")
			}
		case []interface{}:
			matched := false
			for _, entry := range val {
				if s, ok := entry.(string); ok && s == audience {
					matched = true
					break
				}
			}
			if !matched {
				return errors.New("audience mismatch")
			}
		default:
			return errors.New("audience missing")
		}
	}
	return nil
}

func subjectAddress(claims jwt.MapClaims) (crypto.Address, error) {
	sub, _ := claims["sub"].(string)
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return crypto.Address{}, errors.New("subject missing")
	}
	return crypto.DecodeAddress(sub)
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
