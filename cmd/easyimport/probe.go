package main

import (
	"context"
	"database/sql"
	"time"
)

// probeExecutionsTable returns sql.ErrNoRows when the job_executions table
// has not been created yet.
func probeExecutionsTable(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var name string
	return db.QueryRowContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = 'job_executions'`,
	).Scan(&name)
}
