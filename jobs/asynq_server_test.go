package jobs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func healthRequest(h *Handler) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rec
}

func TestJobsHealthReportsQueue(t *testing.T) {
	rec := healthRequest(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"scheduled":0,"retry":1,"failed":0}`, rec.Body.String())
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	rec := healthRequest(NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"default"`)
}

func TestJobsHealthUnavailable(t *testing.T) {
	rec := healthRequest(NewHandler(stubInspector{err: errors.New("redis down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewPeriodLifecycleTask(t *testing.T) {
	task, err := NewPeriodLifecycleTask(parseDay(t, "2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, TaskPeriodLifecycle, task.Type())
	assert.JSONEq(t, `{"day":"2024-03-04"}`, string(task.Payload()))
}

func parseDay(t *testing.T, raw string) time.Time {
	t.Helper()
	day, err := time.Parse(time.DateOnly, raw)
	require.NoError(t, err)
	return day
}
