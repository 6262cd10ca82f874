package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/makeasinger/mediajobs/pkg/response"
)

const (
	headerUserID        = "X-User-Id"
	headerUserEmail     = "X-User-Email"
	headerGatewaySecret = "X-Gateway-Secret"
)

// GatewayAuthMiddleware trusts the identity a ForwardAuth gateway copied from
// /auth/verify into X-User-* headers. When secret is set, requests without a
// matching X-Gateway-Secret header are rejected. Handlers see the same locals
// as with Authenticate.
func GatewayAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret != "" && subtle.ConstantTimeCompare([]byte(c.Get(headerGatewaySecret)), []byte(secret)) != 1 {
			return response.Unauthorized(c, "Request did not pass through the gateway")
		}

		userID := c.Get(headerUserID)
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		claims := &UserClaims{UserID: userID, Email: c.Get(headerUserEmail)}
		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("claims", claims)

		return c.Next()
	}
}
