package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ipmonitor/internal/api/response"
	"ipmonitor/internal/metrics"
	"ipmonitor/internal/types"
	"ipmonitor/internal/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxHistoryLimit = 1000

// StatusProvider exposes the monitor's current state
type StatusProvider interface {
	Status() types.MonitorStatus
}

// MetricsProvider exposes runtime counters
type MetricsProvider interface {
	GetSnapshot() (*metrics.Metrics, error)
}

// HistoryReader lists recorded changes
type HistoryReader interface {
	List(ctx context.Context, filter types.ChangeFilter) ([]types.ChangeRecord, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators served by the API. History may be nil.
type Deps struct {
	Status  StatusProvider
	Metrics MetricsProvider
	History HistoryReader
}

// API represents the API
type API struct {
	deps   Deps
	logger *zap.Logger
}

// NewAPI creates new API
func NewAPI(deps Deps, logger *zap.Logger) *API {
	return &API{
		deps:   deps,
		logger: logger,
	}
}

// RegisterRoutes registers API routes
func (api *API) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/status", api.getStatus)
	r.GET("/metrics", api.getMetrics)
	r.GET("/history", api.getHistory)
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	types.MonitorStatus
	Version version.Info `json:"version"`
}

// getStatus handles retrieving monitor status
func (api *API) getStatus(c *gin.Context) {
	response.New(c, api.logger).Success(StatusResponse{
		MonitorStatus: api.deps.Status.Status(),
		Version:       version.GetInfo(),
	})
}

// getMetrics handles retrieving runtime metrics
func (api *API) getMetrics(c *gin.Context) {
	resp := response.New(c, api.logger)

	snapshot, err := api.deps.Metrics.GetSnapshot()
	if err != nil {
		resp.InternalError(errors.New("failed to get metrics"))
		return
	}
	resp.Success(snapshot)
}

// getHistory handles listing recorded changes
func (api *API) getHistory(c *gin.Context) {
	resp := response.New(c, api.logger)

	if api.deps.History == nil {
		resp.NotFound(types.ErrHistoryDisabled)
		return
	}

	var filter types.ChangeFilter
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			resp.BadRequest(fmt.Errorf("invalid limit: %q", v))
			return
		}
		filter.Limit = min(limit, maxHistoryLimit)
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			resp.BadRequest(fmt.Errorf("invalid since, expected RFC3339: %q", v))
			return
		}
		filter.Since = since
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	records, err := api.deps.History.List(ctx, filter)
	if err != nil {
		api.logger.Error("Failed to list history", zap.Error(err))
		resp.InternalError(errors.New("failed to list history"))
		return
	}
	resp.Success(records)
}

// HealthCheck handles the liveness probe
func (api *API) HealthCheck(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := api.health(ctx)
	if !status.Healthy {
		resp.ErrorWithData(http.StatusServiceUnavailable, errors.New("service unhealthy"), status)
		return
	}
	resp.Success(status)
}

func (api *API) health(ctx context.Context) types.HealthStatus {
	now := time.Now()
	st := api.deps.Status.Status()

	monitor := types.ComponentStatus{Name: "monitor", Status: "ok", LastCheck: st.LastCycleAt}
	switch {
	case st.Cycles == 0:
		monitor.Status = "starting"
	case st.LastError != "":
		monitor.Status = "degraded"
		monitor.Error = st.LastError
	}

	status := types.HealthStatus{
		Healthy:   true,
		Timestamp: now,
		Version:   version.Version,
		StartTime: st.StartedAt,
		Details:   []types.ComponentStatus{monitor},
	}
	if !st.StartedAt.IsZero() {
		status.Uptime = now.Sub(st.StartedAt).Round(time.Second).String()
	}

	if api.deps.History != nil {
		history := types.ComponentStatus{Name: "history", Status: "ok", LastCheck: now}
		if err := api.deps.History.Ping(ctx); err != nil {
			history.Status = "error"
			history.Error = err.Error()
			status.Healthy = false
		}
		status.Details = append(status.Details, history)
	}
	return status
}
