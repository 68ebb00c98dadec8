package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carelink/care-coordination/pkg/config"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

type contextKey string

const claimsContextKey contextKey = "actor_claims"

// Claims carries the acting identity extracted from the bearer token: the
// canonical account id and the role the account is currently operating under.
type Claims struct {
	AccountID  string     `json:"account_id"`
	ActiveRole types.Role `json:"active_role"`
	jwt.RegisteredClaims
}

// Middleware validates bearer tokens and attaches actor claims to the request
// context. Health and metrics endpoints are exempt.
type Middleware struct {
	config *config.JWTConfig
	logger *logger.Logger
	skip   map[string]bool
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(cfg *config.JWTConfig, log *logger.Logger, skipPaths ...string) *Middleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &Middleware{config: cfg, logger: log, skip: skip}
}

// Handler wraps next with bearer-token validation
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.writeUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.writeUnauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.ValidateToken(parts[1])
		if err != nil {
			m.logger.WithError(err).Warn("Token validation failed")
			m.writeUnauthorized(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateToken parses and verifies a signed token
func (m *Middleware) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.AccountID == "" {
		return nil, fmt.Errorf("token missing account id")
	}
	if !claims.ActiveRole.Valid() {
		return nil, fmt.Errorf("token carries unknown role %q", claims.ActiveRole)
	}

	return claims, nil
}

func (m *Middleware) writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": http.StatusUnauthorized,
	})
}

// FromContext returns the actor claims attached by the middleware
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// WithClaims attaches claims to a context; used by tests and the sweep runner
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
