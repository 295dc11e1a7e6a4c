package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-grader/internal/middleware"
	"github.com/noah-isme/gema-exam-grader/internal/service"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	switch id := c.Locals("user_id").(type) {
	case uint:
		return id
	case int:
		if id > 0 {
			return uint(id)
		}
	}
	return 0
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	role, _ := c.Locals("user_role").(string)
	return service.Actor{ID: userIDFromContext(c), Role: role}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) zerolog.Logger {
	if correlation := middleware.GetCorrelationID(c); correlation != "" {
		return base.With().Str("correlation_id", correlation).Logger()
	}
	return base
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
