package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type contractService interface {
	Get(ctx context.Context, id int64) (*models.Contract, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Contract, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]models.Contract, error)
	ExportPDF(ctx context.Context, id int64) ([]byte, *models.ContractDocument, error)
}

// ContractHandler exposes contracts to their parties.
type ContractHandler struct {
	service contractService
}

// NewContractHandler constructs the handler.
func NewContractHandler(service contractService) *ContractHandler {
	return &ContractHandler{service: service}
}

// Get godoc
// @Summary Get a contract
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *gin.Context) {
	contract, ok := h.load(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Mine godoc
// @Summary List the contracts of the caller
// @Tags Contracts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/contracts [get]
func (h *ContractHandler) Mine(c *gin.Context) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var contracts []models.Contract
	switch claims.Role {
	case models.RoleTutor:
		contracts, err = h.service.ListByTutor(c.Request.Context(), claims.ProfileID)
	case models.RoleStudent:
		contracts, err = h.service.ListByStudent(c.Request.Context(), claims.ProfileID)
	default:
		contracts = []models.Contract{}
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contracts, nil)
}

// ExportPDF godoc
// @Summary Download a contract as PDF
// @Tags Contracts
// @Produce application/pdf
// @Param id path int true "Contract ID"
// @Success 200 {file} file
// @Router /contracts/{id}/pdf [get]
func (h *ContractHandler) ExportPDF(c *gin.Context) {
	contract, ok := h.load(c)
	if !ok {
		return
	}
	data, _, err := h.service.ExportPDF(c.Request.Context(), contract.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, export.FormatPDF.ContentType(), contractFilename(contract.ID), data)
}

// load resolves the path contract and hides it from callers who are not a party.
func (h *ContractHandler) load(c *gin.Context) (*models.Contract, bool) {
	claims, err := requireClaims(c)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	contract, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !isContractParty(claims, contract) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "contract not found"))
		return nil, false
	}
	return contract, true
}

func isContractParty(claims *models.JWTClaims, contract *models.Contract) bool {
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTutor:
		return contract.TutorID == claims.ProfileID
	case models.RoleStudent:
		return contract.StudentID == claims.ProfileID
	}
	return false
}

func contractFilename(id int64) string {
	return fmt.Sprintf("contract-%d.pdf", id)
}
