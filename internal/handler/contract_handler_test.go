package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

type contractServiceMock struct {
	contract   *models.Contract
	list       []models.Contract
	pdf        []byte
	err        error
	listedFor  string
	exportedID int64
}

func (m *contractServiceMock) Get(ctx context.Context, id int64) (*models.Contract, error) {
	return m.contract, m.err
}

func (m *contractServiceMock) ListByStudent(ctx context.Context, studentID int64) ([]models.Contract, error) {
	m.listedFor = "student"
	return m.list, m.err
}

func (m *contractServiceMock) ListByTutor(ctx context.Context, tutorID int64) ([]models.Contract, error) {
	m.listedFor = "tutor"
	return m.list, m.err
}

func (m *contractServiceMock) ExportPDF(ctx context.Context, id int64) ([]byte, *models.ContractDocument, error) {
	m.exportedID = id
	return m.pdf, nil, m.err
}

func TestContractHandlerGetVisibility(t *testing.T) {
	contract := &models.Contract{ID: 12, TutorID: 3, StudentID: 4}

	cases := []struct {
		name   string
		claims *models.JWTClaims
		status int
	}{
		{name: "admin", claims: adminClaims(), status: http.StatusOK},
		{name: "owning tutor", claims: tutorClaims(3), status: http.StatusOK},
		{name: "owning student", claims: studentClaims(4), status: http.StatusOK},
		{name: "other tutor", claims: tutorClaims(9), status: http.StatusNotFound},
		{name: "other student", claims: studentClaims(9), status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewContractHandler(&contractServiceMock{contract: contract})
			c, w := newTestContext(t, http.MethodGet, "/contracts/12", "", tc.claims, 12)
			handler.Get(c)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestContractHandlerExportPDF(t *testing.T) {
	svc := &contractServiceMock{
		contract: &models.Contract{ID: 12, TutorID: 3, StudentID: 4},
		pdf:      []byte("%PDF-1.3 test"),
	}
	handler := NewContractHandler(svc)

	c, w := newTestContext(t, http.MethodGet, "/contracts/12/pdf", "", studentClaims(4), 12)
	handler.ExportPDF(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(12), svc.exportedID)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "contract-12.pdf")
}

func TestContractHandlerExportPDFForStranger(t *testing.T) {
	svc := &contractServiceMock{contract: &models.Contract{ID: 12, TutorID: 3, StudentID: 4}}
	handler := NewContractHandler(svc)

	c, w := newTestContext(t, http.MethodGet, "/contracts/12/pdf", "", studentClaims(5), 12)
	handler.ExportPDF(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, svc.exportedID)
}

func TestContractHandlerMine(t *testing.T) {
	svc := &contractServiceMock{list: []models.Contract{{ID: 1}}}
	handler := NewContractHandler(svc)

	c, w := newTestContext(t, http.MethodGet, "/me/contracts", "", tutorClaims(3), 0)
	handler.Mine(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tutor", svc.listedFor)
}
