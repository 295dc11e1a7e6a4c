package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/service"
	"github.com/noah-isme/gema-exam-grader/internal/utils"
)

// AdminGradingHandler wires grading endpoints for admins and teachers.
type AdminGradingHandler struct {
	service service.AdminGradingService
	sweeper service.RegradeService
	logger  zerolog.Logger
}

// NewAdminGradingHandler constructs the handler. sweeper may be nil when sweeps run out of band.
func NewAdminGradingHandler(service service.AdminGradingService, sweeper service.RegradeService, logger zerolog.Logger) *AdminGradingHandler {
	return &AdminGradingHandler{
		service: service,
		sweeper: sweeper,
		logger:  logger.With().Str("component", "admin_grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group.
func (h *AdminGradingHandler) Register(router fiber.Router) {
	router.Post("/submissions/:id/regrade", h.regrade)
	router.Patch("/submissions/:id/grade", h.override)
	if h.sweeper != nil {
		router.Post("/regrade-stuck", h.sweep)
	}
}

func (h *AdminGradingHandler) regrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	outcome, err := h.service.Regrade(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, id, err)
	}

	return utils.SendSuccess(c, "submission regraded", outcome)
}

func (h *AdminGradingHandler) override(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AdminGradeOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Override(c.UserContext(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, id, err)
	}

	return utils.SendSuccess(c, "grade updated", submission)
}

func (h *AdminGradingHandler) sweep(c *fiber.Ctx) error {
	report, err := h.sweeper.Sweep(c.UserContext())
	switch {
	case err == nil:
		return utils.SendSuccess(c, "regrade sweep completed", report)
	case errors.Is(err, service.ErrSweepInProgress):
		return utils.SendError(c, fiber.StatusConflict, "regrade sweep already in progress")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, service.ErrSweepLockLost):
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "regrade sweep interrupted", report)
	default:
		log := requestLogger(h.logger, c)
		log.Error().Err(err).Msg("regrade sweep failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "regrade sweep failed")
	}
}

func (h *AdminGradingHandler) handleError(c *fiber.Ctx, id uint, err error) error {
	switch {
	case errors.Is(err, service.ErrExamSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrGradingState):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrScoreExceedsMax), errors.Is(err, service.ErrQuestionNotGraded), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGradingFailed):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		log := requestLogger(h.logger, c)
		log.Error().Err(err).Uint("submission_id", id).Msg("grading request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
