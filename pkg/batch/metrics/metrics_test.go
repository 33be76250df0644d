package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "flightweather/pkg/batch/job/core"
)

func TestMetrics_Progress(t *testing.T) {
	m := New()
	m.OnBatchCompleted("enrich", 1, 4)
	m.OnBatchCompleted("enrich", 2, 4)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.batchesTotal.WithLabelValues("enrich")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchesCompleted.WithLabelValues("enrich")))
}

func TestMetrics_RowsAndLegs(t *testing.T) {
	m := New()
	m.AddRows(2019, "read", 10)
	m.AddRows(2019, "read", 5)
	m.AddLegs("departure", "matched", 7)
	m.AddLegs("departure", "no_observation", 0)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.rowsTotal.WithLabelValues("2019", "read")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.legsTotal.WithLabelValues("departure", "matched")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.legsTotal))
}

func TestMetrics_JobListener(t *testing.T) {
	m := New()
	ctx := context.Background()

	je := core.NewJobExecution("instance", "flightWeatherJob", core.NewJobParameters())
	je.MarkAsStarted()
	m.BeforeJob(ctx, je)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.currentJobs))

	je.MarkAsFailed(errors.New("boom"))
	m.AfterJob(ctx, je)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.currentJobs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("flightWeatherJob", "FAILED")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AddRows(2020, "written", 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `flightweather_rows_total{stage="written",year="2020"} 3`)
}
