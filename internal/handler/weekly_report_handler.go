package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-weekly-report/internal/dto"
	"github.com/noah-isme/gema-weekly-report/internal/middleware"
	"github.com/noah-isme/gema-weekly-report/internal/service"
	"github.com/noah-isme/gema-weekly-report/internal/utils"
	"github.com/noah-isme/gema-weekly-report/pkg/artifact"
)

// WeeklyReportHandler exposes weekly report generation and lookups.
type WeeklyReportHandler struct {
	service service.WeeklyReportService
	logger  zerolog.Logger
}

// NewWeeklyReportHandler constructs a weekly report handler.
func NewWeeklyReportHandler(service service.WeeklyReportService, logger zerolog.Logger) *WeeklyReportHandler {
	return &WeeklyReportHandler{
		service: service,
		logger:  logger.With().Str("component", "weekly_report_handler").Logger(),
	}
}

// Register wires the versioned report routes. generateGuard throttles
// generation; pass nil to leave it unthrottled.
func (h *WeeklyReportHandler) Register(router fiber.Router, generateGuard fiber.Handler) {
	reports := router.Group("/weekly-reports")
	if generateGuard != nil {
		reports.Post("", generateGuard, h.Generate)
	} else {
		reports.Post("", h.Generate)
	}
	reports.Get("/latest", h.Latest)
	reports.Get("/files/:name", h.Download)

	students := router.Group("/students")
	students.Get("", h.ListStudents)
	students.Get("/:id/preview", h.Preview)
}

var errInvalidPayload = errors.New("invalid payload")

// Generate builds the batch and returns the full result.
func (h *WeeklyReportHandler) Generate(c *fiber.Ctx) error {
	result, err := h.generate(c)
	if err != nil {
		return h.generateError(c, err)
	}
	return utils.SendSuccess(c, result.Message, result)
}

// GenerateLegacy serves the original route with its flat result body.
func (h *WeeklyReportHandler) GenerateLegacy(c *fiber.Ctx) error {
	result, err := h.generate(c)
	if err != nil {
		return h.generateError(c, err)
	}
	return utils.SendSuccess(c, result.Message, dto.NewLegacyWeeklyReportResponse(result))
}

func (h *WeeklyReportHandler) generate(c *fiber.Ctx) (dto.WeeklyReportResult, error) {
	var payload dto.WeeklyReportRequest
	if err := c.BodyParser(&payload); err != nil {
		return dto.WeeklyReportResult{}, errInvalidPayload
	}

	ctx := middleware.ContextWithCorrelation(c.UserContext(), middleware.GetCorrelationID(c))
	return h.service.Generate(ctx, payload)
}

func (h *WeeklyReportHandler) generateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidPayload):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	case isValidationError(err), errors.Is(err, artifact.ErrUnsupportedFormat):
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrNoStudentsFound):
		return utils.SendError(c, fiber.StatusNotFound, "No students found for this mobile number.")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to generate weekly reports")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to generate weekly reports")
	}
}

// ListStudents returns the students registered under a phone number.
func (h *WeeklyReportHandler) ListStudents(c *fiber.Ctx) error {
	students, err := h.service.ListStudents(c.UserContext(), c.Query("mobile_number"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNoStudentsFound):
			return utils.SendError(c, fiber.StatusNotFound, "No students found for this mobile number.")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to list students")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to list students")
		}
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

// Preview returns the digest and prompt for one student.
func (h *WeeklyReportHandler) Preview(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	preview, err := h.service.Preview(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint64("student_id", id).Msg("failed to build report preview")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build report preview")
	}

	return utils.SendSuccess(c, "report preview", preview)
}

// Latest returns the newest artifact recorded for a phone number.
func (h *WeeklyReportHandler) Latest(c *fiber.Ctx) error {
	record, err := h.service.Latest(c.UserContext(), c.Query("mobile_number"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrArtifactNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "no report generated for this mobile number")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to read latest artifact")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to read latest report")
		}
	}

	return utils.SendSuccess(c, "latest report", record)
}

// Download streams a generated artifact.
func (h *WeeklyReportHandler) Download(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	path, err := h.service.ArtifactPath(name)
	if err != nil {
		return utils.SendError(c, fiber.StatusNotFound, "report file not found")
	}

	return c.Download(path, name)
}

func validationMessage(err error) string {
	if errors.Is(err, artifact.ErrUnsupportedFormat) {
		return "format must be text or pdf"
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		field := validationErrors[0]
		switch field.Field() {
		case "MobileNumber":
			if field.Tag() == "max" {
				return "mobile_number is too long"
			}
			return "mobile_number is required"
		case "Format":
			return "format must be text or pdf"
		}
	}
	return "invalid payload"
}
