package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type paymentService interface {
	Confirm(ctx context.Context, enrollmentID int64, req service.ConfirmPaymentRequest) (*models.Payment, error)
	ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Payment, error)
}

// PaymentHandler receives confirmations from the payment subsystem.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Confirm godoc
// @Summary Record a payment confirmation
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path int true "Enrollment ID"
// @Param payload body service.ConfirmPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /enrollments/{id}/payments [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payment payload"))
		return
	}
	payment, err := h.service.Confirm(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// List godoc
// @Summary List payments of an enrollment
// @Tags Payments
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	payments, err := h.service.ListByEnrollment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
