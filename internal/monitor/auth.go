package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures bearer-token auth for the monitor's mutating
// endpoints. Generalized from the teacher's middleware.JWTConfig, minus
// the role list — this node has exactly one mutating capability
// (arbiter restart), so any valid token is sufficient.
type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	Issuer     string
}

func (c JWTConfig) withDefaults() JWTConfig {
	if c.Expiration == 0 {
		c.Expiration = time.Hour
	}
	if c.Issuer == "" {
		c.Issuer = "lccnode"
	}
	return c
}

// Claims is the JWT payload this node issues and verifies.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// jwtMiddleware guards a route group with bearer-token auth.
func jwtMiddleware(cfg JWTConfig) fiber.Handler {
	cfg = cfg.withDefaults()
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization header format"})
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.SecretKey), nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token: " + err.Error()})
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token claims"})
		}

		c.Locals("subject", claims.Subject)
		return c.Next()
	}
}

// GenerateToken issues a bearer token for subject, signed with cfg's
// secret. Intended for an operator's CLI, not exposed over HTTP.
func GenerateToken(subject string, cfg JWTConfig) (string, error) {
	cfg = cfg.withDefaults()
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.Expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.SecretKey))
}
