package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cobardes/radia-fm-sub000/internal/auth"
	"github.com/cobardes/radia-fm-sub000/pkg/response"
)

// AuthMiddleware validates per-station listener tokens.
type AuthMiddleware struct {
	tokens *auth.TokenManager
}

func NewAuthMiddleware(tokens *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireStation validates the listener token and checks it was minted for
// the station in the route. Browser media elements and websocket upgrades
// cannot set headers, so the token is also accepted as a query parameter.
func (m *AuthMiddleware) RequireStation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return response.Unauthorized(c, "Missing station token")
		}

		stationID, err := m.tokens.Verify(tokenString)
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		if routeID := c.Params("id"); routeID != "" && routeID != stationID {
			return response.Forbidden(c, "Token not valid for this station")
		}

		c.Locals("stationId", stationID)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// GetStationID extracts the authenticated station id from context.
func GetStationID(c *fiber.Ctx) string {
	if id, ok := c.Locals("stationId").(string); ok {
		return id
	}
	return ""
}
