package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AdminRole is the role claim required on admin tokens
const AdminRole = "admin"

// AdminUser represents an authenticated operator from JWT
type AdminUser struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// contextKey is used for storing the operator in context
type contextKey string

const (
	adminContextKey contextKey = "authenticated_admin"
)

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	// Secret is the HS256 signing key. When empty every request passes.
	Secret string
	Logger *zap.Logger
}

// AdminClaims are the claims accepted on admin tokens
type AdminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTMiddleware creates a middleware that only lets admin bearer tokens through
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Secret == "" {
				return next(c)
			}

			path := c.Request().URL.Path

			// Extract token from Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Authorization header required",
					"code":  "MISSING_AUTH_HEADER",
				})
			}

			// Check Bearer prefix
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid authorization header format. Expected: Bearer <token>",
					"code":  "INVALID_AUTH_FORMAT",
				})
			}

			// Parse and validate JWT token
			claims := &AdminClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				// Verify signing method
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(config.Secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid or expired token",
					"code":  "INVALID_TOKEN",
				})
			}

			if claims.Role != AdminRole {
				config.Logger.Warn("Token without admin role",
					zap.String("subject", claims.Subject),
					zap.String("role", claims.Role),
					zap.String("path", path))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "Admin role required",
					"code":  "FORBIDDEN",
				})
			}

			admin := &AdminUser{
				Subject: claims.Subject,
				Email:   claims.Email,
				Role:    claims.Role,
			}

			// Store operator in request context
			ctx := context.WithValue(c.Request().Context(), adminContextKey, admin)
			c.SetRequest(c.Request().WithContext(ctx))

			config.Logger.Debug("Admin authenticated successfully",
				zap.String("subject", admin.Subject),
				zap.String("path", path))

			return next(c)
		}
	}
}

// GetAdminFromContext extracts the authenticated operator from the request context
func GetAdminFromContext(c echo.Context) (*AdminUser, error) {
	admin, ok := c.Request().Context().Value(adminContextKey).(*AdminUser)
	if !ok || admin == nil {
		return nil, fmt.Errorf("no authenticated admin found in context")
	}
	return admin, nil
}
