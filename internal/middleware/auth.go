package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/makeasinger/mediajobs/pkg/response"
	"github.com/rs/zerolog/log"
)

const tokenIssuer = "makeasinger-mediajobs"

var errInvalidClaims = errors.New("invalid token claims")

type AuthMiddleware struct {
	jwtSecret  string
	expiration time.Duration
}

type UserClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewAuthMiddleware(jwtSecret string, expiration time.Duration) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret, expiration: expiration}
}

// Authenticate validates the bearer token from the Authorization header.
// Websocket upgrades may pass the token as ?token= instead.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, errMsg := bearerToken(c)
		if errMsg != "" {
			return response.Unauthorized(c, errMsg)
		}

		claims, parseErr := m.ParseToken(tokenString)
		if parseErr != nil {
			log.Debug().Err(parseErr).Str("path", c.Path()).Msg("token rejected")
			return response.Unauthorized(c, "Invalid or expired token")
		}

		// Store user info in context
		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// ParseToken validates a signed token and returns its claims
func (m *AuthMiddleware) ParseToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.jwtSecret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errInvalidClaims
	}
	return claims, nil
}

// Verify handles GET /auth/verify for a ForwardAuth gateway.
// It answers 200 with X-User-* headers or a bare 401.
func (m *AuthMiddleware) Verify(c *fiber.Ctx) error {
	tokenString, errMsg := bearerToken(c)
	if errMsg != "" {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	claims, err := m.ParseToken(tokenString)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	c.Set(headerUserID, claims.UserID)
	c.Set(headerUserEmail, claims.Email)
	return c.SendStatus(fiber.StatusOK)
}

func bearerToken(c *fiber.Ctx) (string, string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, ""
		}
		return "", "Missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GenerateToken creates a signed token for userID
func (m *AuthMiddleware) GenerateToken(userID, email string) (string, error) {
	now := time.Now()
	claims := UserClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   tokenIssuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.expiration > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.expiration))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.jwtSecret))
}
