package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CachePinger reports whether the optional cache answers. A nil func means
// the cache is disabled.
type CachePinger func(ctx context.Context) error

type HealthChecker struct {
	db    Pinger
	cache CachePinger
}

type HealthStatus struct {
	Status   string           `json:"status"`
	Database ComponentHealth  `json:"database"`
	Cache    *ComponentHealth `json:"cache,omitempty"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
}

func NewHealthChecker(db Pinger, cache CachePinger) *HealthChecker {
	return &HealthChecker{db: db, cache: cache}
}

// CheckBasic pings the database only. Readiness must not depend on the cache,
// which the engine runs without.
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	dbHealth := check(ctx, h.db.Ping)

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:   status,
		Database: dbHealth,
	}
}

// CheckDetailed adds the cache. A failing cache degrades the status rather
// than failing it.
func (h *HealthChecker) CheckDetailed(ctx context.Context) HealthStatus {
	status := h.CheckBasic(ctx)
	if h.cache == nil {
		return status
	}
	cacheHealth := check(ctx, h.cache)
	status.Cache = &cacheHealth
	if status.Status == "healthy" && cacheHealth.Status != "healthy" {
		status.Status = "degraded"
	}
	return status
}

func check(ctx context.Context, ping func(context.Context) error) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}
