package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/internal/auth"
)

const claimsContextKey = "claims"

// JWTAuth rejects requests without a valid client bearer token
func JWTAuth(issuer *auth.TokenIssuer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Extract JWT token from Authorization header only
			token, found := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			token = strings.TrimSpace(token)
			if !found || token == "" {
				logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := issuer.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			if claims.Role != auth.RoleClient {
				logger.Warn("Request rejected: invalid role",
					zap.String("role", claims.Role))
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_role",
					Message: "Only client tokens are allowed",
				})
			}

			if claims.ClientID == "" {
				logger.Warn("Request rejected: missing client ID in token")
				return c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "invalid_token_claims",
					Message: "Client ID not found in token",
				})
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// clientID returns the authenticated client ID set by JWTAuth
func clientID(c echo.Context) string {
	if claims, ok := c.Get(claimsContextKey).(*auth.JWTClaims); ok {
		return claims.ClientID
	}
	return ""
}
