package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-exam-grader/internal/utils"
)

const bearerPrefix = "bearer "

// JWTProtected validates HMAC-signed bearer tokens and stores the subject and role in locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}
		if !strings.HasPrefix(strings.ToLower(authorization), bearerPrefix) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(strings.TrimSpace(authorization[len(bearerPrefix):]), claims, keyFunc)
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		userID, ok := subjectFromClaims(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token has no subject")
		}
		c.Locals("user_id", userID)
		if role := roleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func subjectFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, present := claims[key]
		if !present {
			continue
		}
		if id, err := parseSubject(value); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func parseSubject(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("negative subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

func roleFromClaims(claims jwt.MapClaims) string {
	if role := normalizeRoleValue(claims["role"]); role != "" {
		return role
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, item := range roles {
			if role := normalizeRoleValue(item); role != "" {
				return role
			}
		}
	}
	return ""
}
