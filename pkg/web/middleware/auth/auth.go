// Package auth provides bearer-token (JWT) and API-key authentication
// middleware for the HTTP API (§6), plus role-based access checks layered
// on top of either.
package auth

import (
	"fmt"
	"strings"

	"github.com/fluxorio/orchestrator/pkg/web"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const claimsContextKey = "auth_claims"

// JWTConfig configures bearer-token authentication.
type JWTConfig struct {
	// SecretKey signs and verifies HS256 tokens.
	SecretKey string

	// HeaderName is the header carrying the bearer token.
	HeaderName string

	// Optional, unauthenticated paths.
	SkipPaths []string
}

// DefaultJWTConfig returns a JWTConfig for the given secret key.
func DefaultJWTConfig(secretKey string) JWTConfig {
	return JWTConfig{
		SecretKey:  secretKey,
		HeaderName: "Authorization",
	}
}

// JWTAuth validates a bearer token on every request and stores its claims
// for downstream RequireRole/RequireAnyRole/RequireAllRoles checks.
func JWTAuth(config JWTConfig) web.FastMiddleware {
	headerName := config.HeaderName
	if headerName == "" {
		headerName = "Authorization"
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			path := string(ctx.Path())
			for _, skip := range config.SkipPaths {
				if path == skip {
					return next(ctx)
				}
			}

			header := string(ctx.RequestCtx.Request.Header.Peek(headerName))
			if !strings.HasPrefix(header, "Bearer ") {
				return ctx.JSON(401, map[string]string{"error": "missing bearer token"})
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(config.SecretKey), nil
			})
			if err != nil {
				return ctx.JSON(401, map[string]string{"error": "invalid token: " + err.Error()})
			}

			ctx.Set(claimsContextKey, map[string]interface{}(claims))
			return next(ctx)
		}
	}
}

func claimsFromContext(ctx *web.FastRequestContext) map[string]interface{} {
	claims, _ := ctx.Get(claimsContextKey).(map[string]interface{})
	return claims
}

func rolesFromClaims(claims map[string]interface{}) map[string]bool {
	roleSet := make(map[string]bool)
	if claims == nil {
		return roleSet
	}
	switch roles := claims["roles"].(type) {
	case []string:
		for _, r := range roles {
			roleSet[r] = true
		}
	case []interface{}:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				roleSet[s] = true
			}
		}
	}
	return roleSet
}

func forbidden(ctx *web.FastRequestContext) error {
	return ctx.JSON(403, map[string]string{"error": "forbidden"})
}

// RequireRole rejects requests whose claims do not carry role.
func RequireRole(role string) web.FastMiddleware {
	return RequireAllRoles(role)
}

// RequireAnyRole rejects requests whose claims carry none of roles.
func RequireAnyRole(roles ...string) web.FastMiddleware {
	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			held := rolesFromClaims(claimsFromContext(ctx))
			for _, role := range roles {
				if held[role] {
					return next(ctx)
				}
			}
			return forbidden(ctx)
		}
	}
}

// RequireAllRoles rejects requests whose claims are missing any of roles.
func RequireAllRoles(roles ...string) web.FastMiddleware {
	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			held := rolesFromClaims(claimsFromContext(ctx))
			for _, role := range roles {
				if !held[role] {
					return forbidden(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// APIKeyValidator resolves an API key to its claims.
type APIKeyValidator func(key string) (map[string]interface{}, error)

// SimpleAPIKeyValidator builds an APIKeyValidator over a static, in-memory
// key-to-claims table, for bootstrapping and tests.
func SimpleAPIKeyValidator(validKeys map[string]map[string]interface{}) APIKeyValidator {
	return func(key string) (map[string]interface{}, error) {
		claims, ok := validKeys[key]
		if !ok {
			return nil, fmt.Errorf("invalid api key")
		}
		return claims, nil
	}
}

// HashedAPIKeyValidator builds an APIKeyValidator over a table of bcrypt
// hashes, so the raw keys never need to be stored or logged in plaintext.
func HashedAPIKeyValidator(hashedKeys map[string]map[string]interface{}) APIKeyValidator {
	return func(key string) (map[string]interface{}, error) {
		for hash, claims := range hashedKeys {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
				return claims, nil
			}
		}
		return nil, fmt.Errorf("invalid api key")
	}
}

// HashAPIKey bcrypt-hashes a raw API key for storage.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// APIKeyConfig configures API-key authentication.
type APIKeyConfig struct {
	HeaderName string
	Validator  APIKeyValidator
}

// DefaultAPIKeyConfig returns an APIKeyConfig using the given validator.
func DefaultAPIKeyConfig(validator APIKeyValidator) APIKeyConfig {
	return APIKeyConfig{HeaderName: "X-API-Key", Validator: validator}
}

// APIKeyAuth validates an API key on every request and stores its claims
// for downstream RequireRole/RequireAnyRole/RequireAllRoles checks.
func APIKeyAuth(config APIKeyConfig) web.FastMiddleware {
	headerName := config.HeaderName
	if headerName == "" {
		headerName = "X-API-Key"
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			key := string(ctx.RequestCtx.Request.Header.Peek(headerName))
			if key == "" {
				return ctx.JSON(401, map[string]string{"error": "missing api key"})
			}

			claims, err := config.Validator(key)
			if err != nil {
				return ctx.JSON(401, map[string]string{"error": err.Error()})
			}

			ctx.Set(claimsContextKey, claims)
			return next(ctx)
		}
	}
}
