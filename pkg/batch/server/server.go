// Package server は実行中のバッチを観察するための HTTP エンドポイントを提供します。
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/job/joboperator"
	logger "flightweather/pkg/batch/util/logger"
)

const defaultListLimit = 20

// Server は /healthz, /metrics, /executions を提供します。
type Server struct {
	operator       joboperator.JobOperator
	jobName        string
	metricsHandler http.Handler
}

// New は新しい Server を作成します。metricsHandler が nil の場合 /metrics は登録されません。
func New(operator joboperator.JobOperator, jobName string, metricsHandler http.Handler) *Server {
	return &Server{
		operator:       operator,
		jobName:        jobName,
		metricsHandler: metricsHandler,
	}
}

// Routes はルーティングを設定した http.Handler を返します。
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
	r.Route("/executions", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/", s.listExecutions)
		r.Get("/{executionID}", s.getExecution)
		r.Post("/{executionID}/stop", s.stopExecution)
	})
	return r
}

// ListenAndServe は addr で待ち受け、ctx がキャンセルされるとシャットダウンします。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("運用エンドポイントを %s で開始します。", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Infof("運用エンドポイントを停止しました。")
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			renderError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	executions, err := s.operator.GetJobExecutions(r.Context(), s.jobName, limit)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]ExecutionView, 0, len(executions))
	for _, je := range executions {
		views = append(views, newExecutionView(je))
	}
	render.JSON(w, r, views)
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	je, err := s.operator.GetJobExecution(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		renderError(w, r, http.StatusNotFound, err.Error())
		return
	}
	render.JSON(w, r, newExecutionView(je))
}

func (s *Server) stopExecution(w http.ResponseWriter, r *http.Request) {
	if err := s.operator.Stop(r.Context(), chi.URLParam(r, "executionID")); err != nil {
		renderError(w, r, http.StatusConflict, err.Error())
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "stopping"})
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}

// ExecutionView は JobExecution の JSON 表現です。
type ExecutionView struct {
	ID         string         `json:"id"`
	InstanceID string         `json:"instance_id"`
	JobName    string         `json:"job_name"`
	Parameters map[string]any `json:"parameters"`
	Status     string         `json:"status"`
	ExitStatus string         `json:"exit_status"`
	StartTime  *time.Time     `json:"start_time,omitempty"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	Failures   []string       `json:"failures,omitempty"`
	Steps      []StepView     `json:"steps,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// StepView は StepExecution の JSON 表現です。
type StepView struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	ExitStatus  string   `json:"exit_status"`
	ReadCount   int      `json:"read_count"`
	WriteCount  int      `json:"write_count"`
	FilterCount int      `json:"filter_count"`
	SkipCount   int      `json:"skip_count"`
	Failures    []string `json:"failures,omitempty"`
}

func newExecutionView(je *core.JobExecution) ExecutionView {
	v := ExecutionView{
		ID:         je.ID,
		InstanceID: je.JobInstanceID,
		JobName:    je.JobName,
		Parameters: je.Parameters.Params,
		Status:     string(je.Status),
		ExitStatus: string(je.ExitStatus),
		StartTime:  timePtr(je.StartTime),
		EndTime:    timePtr(je.EndTime),
		Failures:   errorStrings(je.Failures),
		Context:    je.ExecutionContext,
	}
	for _, se := range je.StepExecutions {
		v.Steps = append(v.Steps, StepView{
			Name:        se.StepName,
			Status:      string(se.Status),
			ExitStatus:  string(se.ExitStatus),
			ReadCount:   se.ReadCount,
			WriteCount:  se.WriteCount,
			FilterCount: se.FilterCount,
			SkipCount:   se.SkipReadCount,
			Failures:    errorStrings(se.Failures),
		})
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
