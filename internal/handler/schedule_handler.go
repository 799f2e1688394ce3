package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type scheduleService interface {
	Get(ctx context.Context, id int64) (*models.Schedule, error)
	List(ctx context.Context) ([]models.Schedule, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.Schedule, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]models.Schedule, error)
	Create(ctx context.Context, tutorID int64, req service.CreateScheduleRequest) (*models.Schedule, error)
	Update(ctx context.Context, tutorID, id int64, req service.UpdateScheduleRequest) (*models.Schedule, error)
	Delete(ctx context.Context, tutorID int64, req service.DeleteSchedulesRequest) (int, error)
}

// ScheduleHandler manages weekly schedule slots.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(service scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// List godoc
// @Summary List all schedules
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get a schedule
// @Tags Schedules
// @Produce json
// @Param id path int true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ListByCourse godoc
// @Summary List the schedules of a course
// @Tags Schedules
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/schedules [get]
func (h *ScheduleHandler) ListByCourse(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.ListByCourse(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListByTutor godoc
// @Summary List the schedules a tutor teaches
// @Tags Schedules
// @Produce json
// @Param id path int true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/schedules [get]
func (h *ScheduleHandler) ListByTutor(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.ListByTutor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Add a weekly slot to a course
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Overlaps another slot of the tutor"
// @Failure 423 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid schedule payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), claims.ProfileID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a weekly slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path int true "Schedule ID"
// @Param payload body service.UpdateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
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
	var req service.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid schedule payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), claims.ProfileID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete weekly slots
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.DeleteSchedulesRequest true "Schedule ids"
// @Success 200 {object} response.Envelope
// @Router /schedules [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.DeleteSchedulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid delete payload"))
		return
	}
	count, err := h.service.Delete(c.Request.Context(), tutorScope(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": count}, nil)
}
