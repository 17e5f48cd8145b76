package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"

	"parashasongs/internal/config"
)

// SessionModeratorEmail is the session key holding a signed-in moderator.
const SessionModeratorEmail = "moderator_email"

// LocalModerator is the fiber.Locals key set to true for moderator requests.
const LocalModerator = "moderator"

// ModeratorAuth identifies moderators by OIDC session or admin bearer token.
type ModeratorAuth struct {
	cfg *config.Config
}

// NewModeratorAuth creates a new moderator middleware instance.
func NewModeratorAuth(cfg *config.Config) *ModeratorAuth {
	return &ModeratorAuth{cfg: cfg}
}

// RequireModerator rejects requests that are not from a moderator.
func (m *ModeratorAuth) RequireModerator(c fiber.Ctx) error {
	if !m.isModerator(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "moderator access required",
		})
	}

	c.Locals(LocalModerator, true)
	return c.Next()
}

// OptionalModerator marks moderator requests but lets everyone through.
func (m *ModeratorAuth) OptionalModerator(c fiber.Ctx) error {
	c.Locals(LocalModerator, m.isModerator(c))
	return c.Next()
}

func (m *ModeratorAuth) isModerator(c fiber.Ctx) bool {
	if m.cfg.AdminToken != "" {
		if token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok {
			if subtle.ConstantTimeCompare([]byte(token), []byte(m.cfg.AdminToken)) == 1 {
				return true
			}
		}
	}

	sess := session.FromContext(c)
	if sess == nil {
		return false
	}
	email, _ := sess.Get(SessionModeratorEmail).(string)
	return m.cfg.IsModerator(email)
}
