package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
)

func newTestContext(t *testing.T, method, target, body string, claims *models.JWTClaims, id int64) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if id > 0 {
		c.Params = gin.Params{{Key: "id", Value: strconv.FormatInt(id, 10)}}
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Pagination *models.Pagination          `json:"pagination"`
	Meta       map[string]json.RawMessage `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: 1, Role: models.RoleAdmin}
}

func tutorClaims(profileID int64) *models.JWTClaims {
	return &models.JWTClaims{UserID: 100 + profileID, ProfileID: profileID, Role: models.RoleTutor}
}

func studentClaims(profileID int64) *models.JWTClaims {
	return &models.JWTClaims{UserID: 200 + profileID, ProfileID: profileID, Role: models.RoleStudent}
}
