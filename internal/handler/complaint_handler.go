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

type complaintService interface {
	File(ctx context.Context, userID int64, req service.FileComplaintRequest) (*models.Complaint, error)
	Get(ctx context.Context, id int64) (*models.Complaint, error)
	List(ctx context.Context, status models.ComplaintStatus) ([]models.Complaint, error)
	Process(ctx context.Context, id int64, action string) (*models.Complaint, error)
}

type processComplaintRequest struct {
	Action string `json:"action"`
}

// ComplaintHandler handles complaint filing and review.
type ComplaintHandler struct {
	service complaintService
}

// NewComplaintHandler constructs the handler.
func NewComplaintHandler(service complaintService) *ComplaintHandler {
	return &ComplaintHandler{service: service}
}

// File godoc
// @Summary File a complaint against a contract
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body service.FileComplaintRequest true "Complaint payload"
// @Success 201 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) File(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.FileComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid complaint payload"))
		return
	}
	complaint, err := h.service.File(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, complaint)
}

// List godoc
// @Summary List complaints
// @Tags Complaints
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), models.ComplaintStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get a complaint
// @Tags Complaints
// @Produce json
// @Param id path int true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
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
	complaint, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role != models.RoleAdmin && complaint.UserID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "complaint not found"))
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Process godoc
// @Summary Approve or reject a pending complaint
// @Description Approval cancels the contract and, unless it already finished, the course.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path int true "Complaint ID"
// @Param payload body processComplaintRequest true "approve or reject"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope "Complaint already processed"
// @Router /complaints/{id}/process [post]
func (h *ComplaintHandler) Process(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req processComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid process payload"))
		return
	}
	complaint, err := h.service.Process(c.Request.Context(), id, req.Action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}
