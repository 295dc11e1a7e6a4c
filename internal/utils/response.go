package utils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// APIResponse is the JSON envelope returned by every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	// Error is a stable, machine readable code derived from the status, set on failures only.
	Error string `json:"error,omitempty"`
}

// SendSuccess sends a 200 envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success envelope with the given status, defaulting to 200.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: orDefault(message, "success"),
	})
}

// SendError sends a failure envelope.
func SendError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: orDefault(message, "error"),
		Error:   ErrorCode(status),
	})
}

// ErrorCode turns an HTTP status into a snake_case code, e.g. 409 becomes "conflict".
func ErrorCode(status int) string {
	text := fiberutils.StatusMessage(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
