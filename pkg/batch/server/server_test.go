package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/job/joboperator"
)

type fakeOperator struct {
	joboperator.JobOperator
	executions []*core.JobExecution
	stopped    []string
}

func (f *fakeOperator) GetJobExecutions(ctx context.Context, jobName string, limit int) ([]*core.JobExecution, error) {
	if limit < len(f.executions) {
		return f.executions[:limit], nil
	}
	return f.executions, nil
}

func (f *fakeOperator) GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error) {
	for _, je := range f.executions {
		if je.ID == executionID {
			return je, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeOperator) Stop(ctx context.Context, executionID string) error {
	if executionID != f.executions[0].ID {
		return errors.New("not running")
	}
	f.stopped = append(f.stopped, executionID)
	return nil
}

func newFake() *fakeOperator {
	params := core.NewJobParameters()
	params.Put("year", 2019)
	je := core.NewJobExecution("instance-1", "flightWeatherJob", params)
	je.MarkAsStarted()
	se := core.NewStepExecution("enrich", je)
	se.ReadCount = 12
	se.MarkAsFailed(errors.New("batch 3 failed"))
	je.MarkAsFailed(errors.New("batch 3 failed"))

	other := core.NewJobExecution("instance-2", "flightWeatherJob", params)
	return &fakeOperator{executions: []*core.JobExecution{je, other}}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	h := New(newFake(), "flightWeatherJob", nil).Routes()
	rec := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics").Code)
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("flightweather_rows_total 1\n"))
	})
	h := New(newFake(), "flightWeatherJob", metrics).Routes()
	rec := do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flightweather_rows_total")
}

func TestServer_Executions(t *testing.T) {
	fake := newFake()
	h := New(fake, "flightWeatherJob", nil).Routes()

	rec := do(t, h, http.MethodGet, "/executions?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []ExecutionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "FAILED", list[0].Status)
	assert.Equal(t, float64(2019), list[0].Parameters["year"])

	rec = do(t, h, http.MethodGet, "/executions/"+fake.executions[0].ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var view ExecutionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Steps, 1)
	assert.Equal(t, "enrich", view.Steps[0].Name)
	assert.Equal(t, 12, view.Steps[0].ReadCount)
	assert.Equal(t, []string{"batch 3 failed"}, view.Failures)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/executions/unknown").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/executions?limit=abc").Code)
}

func TestServer_Stop(t *testing.T) {
	fake := newFake()
	h := New(fake, "flightWeatherJob", nil).Routes()

	rec := do(t, h, http.MethodPost, "/executions/"+fake.executions[0].ID+"/stop")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{fake.executions[0].ID}, fake.stopped)

	rec = do(t, h, http.MethodPost, "/executions/"+fake.executions[1].ID+"/stop")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
