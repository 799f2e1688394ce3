package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type complaintServiceMock struct {
	complaint  *models.Complaint
	err        error
	lastUserID int64
	lastReq    service.FileComplaintRequest
	lastStatus models.ComplaintStatus
	lastAction string
}

func (m *complaintServiceMock) File(ctx context.Context, userID int64, req service.FileComplaintRequest) (*models.Complaint, error) {
	m.lastUserID = userID
	m.lastReq = req
	return m.complaint, m.err
}

func (m *complaintServiceMock) Get(ctx context.Context, id int64) (*models.Complaint, error) {
	return m.complaint, m.err
}

func (m *complaintServiceMock) List(ctx context.Context, status models.ComplaintStatus) ([]models.Complaint, error) {
	m.lastStatus = status
	return []models.Complaint{}, m.err
}

func (m *complaintServiceMock) Process(ctx context.Context, id int64, action string) (*models.Complaint, error) {
	m.lastAction = action
	return m.complaint, m.err
}

func TestComplaintHandlerFileUsesAccount(t *testing.T) {
	svc := &complaintServiceMock{complaint: &models.Complaint{ID: 1, Status: models.ComplaintStatusPending}}
	handler := NewComplaintHandler(svc)

	claims := studentClaims(4)
	c, w := newTestContext(t, http.MethodPost, "/complaints", `{"contract_id":12,"description":"tutor never showed up"}`, claims, 0)
	handler.File(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, claims.UserID, svc.lastUserID)
	assert.Equal(t, int64(12), svc.lastReq.ContractID)
}

func TestComplaintHandlerGetHidesForeignComplaint(t *testing.T) {
	svc := &complaintServiceMock{complaint: &models.Complaint{ID: 1, UserID: 999}}
	handler := NewComplaintHandler(svc)

	c, w := newTestContext(t, http.MethodGet, "/complaints/1", "", studentClaims(4), 1)
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newTestContext(t, http.MethodGet, "/complaints/1", "", adminClaims(), 1)
	handler.Get(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestComplaintHandlerListFilter(t *testing.T) {
	svc := &complaintServiceMock{}
	handler := NewComplaintHandler(svc)

	c, w := newTestContext(t, http.MethodGet, "/complaints?status=pending", "", adminClaims(), 0)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ComplaintStatusPending, svc.lastStatus)
}

func TestComplaintHandlerProcess(t *testing.T) {
	svc := &complaintServiceMock{complaint: &models.Complaint{ID: 1, Status: models.ComplaintStatusApproved}}
	handler := NewComplaintHandler(svc)

	c, w := newTestContext(t, http.MethodPost, "/complaints/1/process", `{"action":"Approve"}`, adminClaims(), 1)
	handler.Process(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Approve", svc.lastAction)
}

func TestComplaintHandlerProcessAlreadyHandled(t *testing.T) {
	svc := &complaintServiceMock{err: appErrors.Clone(appErrors.ErrLocked, "complaint already processed")}
	handler := NewComplaintHandler(svc)

	c, w := newTestContext(t, http.MethodPost, "/complaints/1/process", `{"action":"reject"}`, adminClaims(), 1)
	handler.Process(c)

	assert.Equal(t, http.StatusLocked, w.Code)
}
