package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/matt-steen/task-dashboard/pkg/auth"
	"github.com/rs/zerolog/log"
)

// claimsKey is where bearer validates claims for the handlers.
const claimsKey = "claims"

// bearer rejects requests without a valid, unrevoked access token.
func bearer(identity Identity) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return fail(c, fiber.StatusUnauthorized, "authorization header is required")
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return fail(c, fiber.StatusUnauthorized, "invalid authorization header format, use: Bearer <token>")
		}

		claims, err := identity.Authenticate(c.UserContext(), strings.TrimSpace(token))
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			return fail(c, fiber.StatusUnauthorized, "token has expired")
		case errors.Is(err, auth.ErrRevokedToken), errors.Is(err, auth.ErrInvalidToken):
			return fail(c, fiber.StatusUnauthorized, "invalid or expired token")
		case err != nil:
			log.Error().Err(err).Msg("error authenticating request")

			return fail(c, fiber.StatusInternalServerError, "could not authenticate request")
		}

		c.Locals(claimsKey, claims)

		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)

	return claims
}
