package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/service"
	"github.com/noah-isme/gema-exam-grader/internal/utils"
)

// ExamSubmissionHandler accepts exam answers and serves graded results.
type ExamSubmissionHandler struct {
	service service.ExamSubmissionService
	logger  zerolog.Logger
}

// NewExamSubmissionHandler builds an exam submission handler instance.
func NewExamSubmissionHandler(service service.ExamSubmissionService, logger zerolog.Logger) *ExamSubmissionHandler {
	return &ExamSubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "exam_submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Extra handlers run before submit.
func (h *ExamSubmissionHandler) Register(router fiber.Router, submitGuards ...fiber.Handler) {
	submit := append(append([]fiber.Handler{}, submitGuards...), h.submit)
	router.Post("/:id/submissions", submit...)
	router.Get("/submissions/:id", h.get)
}

func (h *ExamSubmissionHandler) submit(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.ExamSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Submit(c.UserContext(), examID, actor, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

func (h *ExamSubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *ExamSubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrExamSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrSubmissionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		log := requestLogger(h.logger, c)
		log.Error().Err(err).Msg("exam submission request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
