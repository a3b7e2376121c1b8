package postgres

import "context"

// HealthCheck implements ports.HealthChecker for PostgreSQL.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks PostgreSQL connectivity and that the ledger table is reachable.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var n int64
	return h.pool.QueryRow(ctx, "SELECT count(*) FROM ledger_blocks").Scan(&n)
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
