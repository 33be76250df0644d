// Package metrics はバッチの進捗と処理件数を Prometheus 形式で公開します。
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/step/partition"
)

const namespace = "flightweather"

// Metrics はバッチのメトリクスを保持します。
// partition.ProgressListener と core.JobExecutionListener を実装し、ジョブとステップに登録して使います。
type Metrics struct {
	registry *prometheus.Registry

	batchesTotal     *prometheus.GaugeVec
	batchesCompleted *prometheus.GaugeVec
	rowsTotal        *prometheus.CounterVec
	legsTotal        *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	currentJobs      prometheus.Gauge
}

var (
	_ partition.ProgressListener = (*Metrics)(nil)
	_ core.JobExecutionListener  = (*Metrics)(nil)
)

// New は専用の Registry にコレクターを登録した Metrics を作成します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		batchesTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Number of batches dispatched by the current partitioned step",
		}, []string{"step"}),
		batchesCompleted: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_completed",
			Help:      "Number of completed batches of the current partitioned step",
		}, []string{"step"}),
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows handled per year by stage",
		}, []string{"year", "stage"}), // stage=read/enriched/written
		legsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legs_total",
			Help:      "Flight legs joined with weather by outcome",
		}, []string{"leg", "outcome"}),
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished job executions by status",
		}, []string{"job", "status"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job executions",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		}, []string{"job"}),
		currentJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_jobs",
			Help:      "Number of job executions currently running",
		}),
	}
}

// Registry は内部の Registry を返します。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用の http.Handler を返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// OnBatchCompleted はパーティションの進捗をゲージに反映します。
func (m *Metrics) OnBatchCompleted(name string, completed, total int) {
	m.batchesTotal.WithLabelValues(name).Set(float64(total))
	m.batchesCompleted.WithLabelValues(name).Set(float64(completed))
}

// AddRows は year の stage で処理した行数を加算します。
func (m *Metrics) AddRows(year int, stage string, n int) {
	m.rowsTotal.WithLabelValues(strconv.Itoa(year), stage).Add(float64(n))
}

// AddLegs は leg (departure/arrival) の結合結果ごとの件数を加算します。
func (m *Metrics) AddLegs(leg, outcome string, n int) {
	if n == 0 {
		return
	}
	m.legsTotal.WithLabelValues(leg, outcome).Add(float64(n))
}

func (m *Metrics) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	m.currentJobs.Inc()
}

func (m *Metrics) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	m.currentJobs.Dec()
	m.jobsTotal.WithLabelValues(jobExecution.JobName, string(jobExecution.Status)).Inc()
	if !jobExecution.StartTime.IsZero() && !jobExecution.EndTime.IsZero() {
		m.jobDuration.WithLabelValues(jobExecution.JobName).Observe(jobExecution.EndTime.Sub(jobExecution.StartTime).Seconds())
	}
}
