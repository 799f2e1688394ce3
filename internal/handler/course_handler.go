package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.Course, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]models.Course, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Course, error)
	Create(ctx context.Context, tutorID int64, req service.CourseRequest) (*models.Course, error)
	Update(ctx context.Context, tutorID, id int64, req service.CourseRequest) (*models.Course, error)
	Cancel(ctx context.Context, tutorID, id int64) (*models.Course, error)
	Delete(ctx context.Context, tutorID int64, req service.DeleteCoursesRequest) ([]int64, error)
	Touch(ctx context.Context, id int64) (*models.Course, error)
}

// CourseHandler exposes course management endpoints.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler builds a new handler.
func NewCourseHandler(service courseService) *CourseHandler {
	return &CourseHandler{service: service}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Match on name or subject"
// @Param subject query string false "Subject filter"
// @Param status query string false "coming, ongoing, completed or canceled"
// @Param tutor_id query int false "Tutor filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "name, fee, start_date or created_at"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	tutorID, _ := strconv.ParseInt(c.Query("tutor_id"), 10, 64)
	filter := models.CourseFilter{
		Search:    c.Query("search"),
		Subject:   c.Query("subject"),
		TutorID:   tutorID,
		Status:    models.CourseStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	courses, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get a course
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Mine godoc
// @Summary List the caller's courses
// @Description Tutors get the courses they teach, students the courses they are enrolled in.
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/courses [get]
func (h *CourseHandler) Mine(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var courses []models.Course
	switch claims.Role {
	case models.RoleTutor:
		courses, err = h.service.ListByTutor(c.Request.Context(), claims.ProfileID)
	case models.RoleStudent:
		courses, err = h.service.ListByStudent(c.Request.Context(), claims.ProfileID)
	default:
		err = appErrors.Clone(appErrors.ErrForbidden, "only tutors and students have own courses")
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), claims.ProfileID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body service.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
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
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid course payload"))
		return
	}
	course, err := h.service.Update(c.Request.Context(), tutorScope(claims), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Cancel godoc
// @Summary Cancel a course
// @Description Enrolled students are notified; schedules follow the course status.
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/cancel [post]
func (h *CourseHandler) Cancel(c *gin.Context) {
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
	course, err := h.service.Cancel(c.Request.Context(), tutorScope(claims), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Soft delete courses
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.DeleteCoursesRequest true "Course ids"
// @Success 200 {object} response.Envelope
// @Router /courses [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.DeleteCoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid delete payload"))
		return
	}
	deleted, err := h.service.Delete(c.Request.Context(), tutorScope(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

// Reconcile godoc
// @Summary Apply due lifecycle transitions to a course now
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/reconcile [post]
func (h *CourseHandler) Reconcile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.service.Touch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
