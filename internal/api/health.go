package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/audience-segments/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker pings the database and Redis. Either may be nil.
type HealthChecker struct {
	db        *sql.DB
	redis     *redis.Client
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, startTime: time.Now()}
}

// HandleHealth reports component status. The database is critical; Redis
// only degrades the service since counts and rate limits fall back.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]ComponentCheck{
		"database": hc.check(ctx, hc.db != nil, func(ctx context.Context) error { return hc.db.PingContext(ctx) }),
		"redis":    hc.check(ctx, hc.redis != nil, func(ctx context.Context) error { return hc.redis.Ping(ctx).Err() }),
	}

	status := "healthy"
	switch {
	case checks["database"].Status == "down":
		status = "unhealthy"
	case checks["redis"].Status == "down":
		status = "degraded"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, HealthStatus{
		Status: status,
		Uptime: time.Since(hc.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}

func (hc *HealthChecker) check(ctx context.Context, configured bool, ping func(context.Context) error) ComponentCheck {
	if !configured {
		return ComponentCheck{Status: "not_configured"}
	}
	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentCheck{Status: "down", Message: "ping failed"}
	}
	return ComponentCheck{Status: "up", Latency: time.Since(start).String()}
}
