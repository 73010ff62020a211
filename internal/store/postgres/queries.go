package postgres

const queryGetLastExecution = `
SELECT id, job_name, instance_key, parameters, status, exit_message, created_at, started_at, ended_at
FROM job_executions
WHERE job_name = $1 AND instance_key = $2
ORDER BY created_at DESC
LIMIT 1
`

const queryInsertExecution = `
INSERT INTO job_executions (id, job_name, instance_key, parameters, status, exit_message, created_at, started_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// Only a running execution takes a final status; an abandoned one keeps it.
const queryUpdateExecution = `
UPDATE job_executions
SET status = $2, exit_message = $3, ended_at = $4
WHERE id = $1 AND status IN ('STARTING', 'STARTED')
`

const queryListExecutions = `
SELECT id, job_name, instance_key, parameters, status, exit_message, created_at, started_at, ended_at
FROM job_executions
WHERE job_name = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryGetStaleExecutions = `
SELECT id, job_name, instance_key, parameters, status, exit_message, created_at, started_at, ended_at
FROM job_executions
WHERE status IN ('STARTING', 'STARTED') AND started_at < $1
ORDER BY started_at ASC
LIMIT $2
`

// The status guard makes abandoning idempotent and keeps a finishing run's
// final status from being overwritten.
const queryMarkAbandoned = `
UPDATE job_executions
SET status = 'ABANDONED', ended_at = $2, exit_message = $3
WHERE id = $1 AND status IN ('STARTING', 'STARTED')
`
