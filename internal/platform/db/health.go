package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const (
	HealthOK        = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// PoolStats is a snapshot of the pgx pool backing the catalogs.
type PoolStats struct {
	Total       int32   `json:"total"`
	Idle        int32   `json:"idle"`
	Acquired    int32   `json:"acquired"`
	Max         int32   `json:"max"`
	Utilization float64 `json:"utilization"`
	AcquireWait string  `json:"acquireWait"`
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	s := &PoolStats{
		Total:       stat.TotalConns(),
		Idle:        stat.IdleConns(),
		Acquired:    stat.AcquiredConns(),
		Max:         stat.MaxConns(),
		AcquireWait: stat.AcquireDuration().String(),
	}
	if s.Max > 0 {
		s.Utilization = float64(s.Acquired) / float64(s.Max)
	}
	return s
}

// SchemaInfo is the migration state of the portal schema.
type SchemaInfo struct {
	Version int `json:"version"`
	Pending int `json:"pending"`
}

func schemaInfo(statuses []MigrationStatus) SchemaInfo {
	var info SchemaInfo
	for _, s := range statuses {
		if !s.Applied {
			info.Pending++
			continue
		}
		if s.Version > info.Version {
			info.Version = s.Version
		}
	}
	return info
}

// Health is the /health/db body of the Postgres store.
type Health struct {
	Status string      `json:"status"`
	Store  string      `json:"store"`
	Error  string      `json:"error,omitempty"`
	Schema *SchemaInfo `json:"schema,omitempty"`
	Pool   *PoolStats  `json:"pool,omitempty"`
}

// assessHealth is unhealthy when the store is unreachable or its schema
// unreadable, and degraded while migrations are pending.
func assessHealth(pingErr error, statuses []MigrationStatus, schemaErr error, pool *PoolStats) (int, Health) {
	h := Health{Status: HealthOK, Store: "postgres", Pool: pool}
	switch {
	case pingErr != nil:
		h.Status, h.Error = HealthUnhealthy, pingErr.Error()
		return http.StatusServiceUnavailable, h
	case schemaErr != nil:
		h.Status, h.Error = HealthUnhealthy, schemaErr.Error()
		return http.StatusServiceUnavailable, h
	}
	info := schemaInfo(statuses)
	h.Schema = &info
	if info.Pending > 0 {
		h.Status = HealthDegraded
	}
	return http.StatusOK, h
}

// HealthHandler reports reachability, schema state and pool usage for /health/db.
func HealthHandler(pool *pgxpool.Pool, migrator *Migrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		var statuses []MigrationStatus
		pingErr := pool.Ping(ctx)
		var schemaErr error
		if pingErr == nil {
			statuses, schemaErr = migrator.Status(ctx)
		}
		code, h := assessHealth(pingErr, statuses, schemaErr, poolStats(pool))
		return c.JSON(code, h)
	}
}
