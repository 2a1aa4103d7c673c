package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"procureflow/auth"
	"procureflow/lifecycle"
)

const identityKey = "identity"

// requireAuth parses the bearer token and stores the verified identity on
// the request context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
		}

		identity, err := s.auth.VerifyToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		c.Set(identityKey, identity)
		return next(c)
	}
}

// requireAdmin gates a route on the admin role. Must run after requireAuth.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !identity(c).IsAdmin() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin only"})
		}
		return next(c)
	}
}

func identity(c echo.Context) auth.Identity {
	id, _ := c.Get(identityKey).(auth.Identity)
	return id
}

func actor(c echo.Context) lifecycle.Actor {
	id := identity(c)
	return lifecycle.Actor{ID: id.UserID, Admin: id.IsAdmin()}
}
