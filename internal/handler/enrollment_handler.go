package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, studentID, courseID int64) (*models.EnrollmentResult, error)
	Unenroll(ctx context.Context, studentID, courseID int64) error
	Get(ctx context.Context, id int64) (*models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error)
}

type rosterExporter interface {
	ExportRoster(ctx context.Context, tutorID, courseID int64, format string) (*service.ExportFile, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	service  enrollmentService
	exporter rosterExporter
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService, exporter rosterExporter) *EnrollmentHandler {
	return &EnrollmentHandler{service: service, exporter: exporter}
}

// Enroll godoc
// @Summary Enroll the calling student into a course
// @Description Creates a pending enrollment and an active contract in one step.
// @Tags Enrollments
// @Produce json
// @Param id path int true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope "SCHEDULE_CONFLICT, COURSE_FULL or DUPLICATE_ENROLLMENT"
// @Failure 423 {object} response.Envelope
// @Router /courses/{id}/enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Enroll(c.Request.Context(), claims.ProfileID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Unenroll godoc
// @Summary Withdraw the calling student from a course
// @Tags Enrollments
// @Param id path int true "Course ID"
// @Success 204
// @Failure 423 {object} response.Envelope
// @Router /courses/{id}/enrollments [delete]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Unenroll(c.Request.Context(), claims.ProfileID, courseID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role == models.RoleStudent && enrollment.StudentID != claims.ProfileID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found"))
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Roster godoc
// @Summary List the students enrolled in a course
// @Tags Enrollments
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [get]
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.service.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// ExportRoster godoc
// @Summary Download a course roster
// @Tags Enrollments
// @Produce octet-stream
// @Param id path int true "Course ID"
// @Param format query string false "csv (default), xlsx or pdf"
// @Success 200 {file} file
// @Router /courses/{id}/roster [get]
func (h *EnrollmentHandler) ExportRoster(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ExportRoster(c.Request.Context(), tutorScope(claims), courseID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Content)
}
