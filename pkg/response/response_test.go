package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorHidesInternalCause(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.Wrap(errors.New("pq: password authentication failed"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Len(t, c.Errors, 1)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorCarriesConflictDetail(t *testing.T) {
	c, w := newContext()
	detail := &models.ScheduleConflictError{
		Candidate: models.Schedule{DayOfWeek: 1, StartTime: models.NewClockTime(9, 0), EndTime: models.NewClockTime(10, 0)},
		Existing:  models.Schedule{ID: 4, DayOfWeek: 1, StartTime: models.NewClockTime(9, 30), EndTime: models.NewClockTime(11, 0)},
	}
	Error(c, appErrors.Wrap(detail, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, "overlap"))

	require.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Meta struct {
			Conflict struct {
				Existing struct {
					ID        int64  `json:"id"`
					StartTime string `json:"start_time"`
				} `json:"existing"`
			} `json:"conflict"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SCHEDULE_CONFLICT", body.Error.Code)
	assert.Equal(t, int64(4), body.Meta.Conflict.Existing.ID)
	assert.Equal(t, "09:30", body.Meta.Conflict.Existing.StartTime)
}

func TestUnknownErrorBecomesInternal(t *testing.T) {
	c, w := newContext()
	Error(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFileSetsAttachment(t *testing.T) {
	c, w := newContext()
	File(c, "text/csv", "course-1-roster.csv", []byte("a,b\n"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="course-1-roster.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}
