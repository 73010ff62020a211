// Package importjob delegates the actual import to an HTTP endpoint.
//
// Each execution POSTs its run parameters as JSON, signed with HMAC-SHA256.
// Any 2xx response completes the execution; everything else fails it.
package importjob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/djlord-it/easy-import/internal/domain"
	"github.com/djlord-it/easy-import/internal/metrics"
)

// DefaultName matches the job referenced by the daily trigger.
const DefaultName = "importPeopleJob"

// Headers sent with every request.
const (
	HeaderExecutionID = "X-EasyImport-Execution-ID"
	HeaderSignature   = "X-EasyImport-Signature"
)

// MetricsSink defines the interface for recording import request metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	ImportRequestCompleted(statusClass string, duration time.Duration)
}

// ErrMissingParameter is returned by Validate when a required parameter is absent.
var ErrMissingParameter = errors.New("missing required parameter")

type Config struct {
	Name     string
	URL      string
	Secret   string
	Timeout  time.Duration
	Required []string // LONG parameters that must be present
}

type Payload struct {
	Job         string            `json:"job"`
	ExecutionID string            `json:"execution_id"`
	Parameters  map[string]string `json:"parameters"`
	StartedAt   string            `json:"started_at"`
}

// Job implements launcher.Job.
type Job struct {
	config  Config
	client  *http.Client
	metrics MetricsSink // optional, nil = disabled
}

func New(config Config) *Job {
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Minute
	}
	return &Job{
		config: config,
		client: &http.Client{},
	}
}

// WithMetrics attaches a metrics sink to the job.
func (j *Job) WithMetrics(sink MetricsSink) *Job {
	j.metrics = sink
	return j
}

func (j *Job) Name() string { return j.config.Name }

// Restartable allows a FAILED instance to be retried with the same parameters.
func (j *Job) Restartable() bool { return true }

func (j *Job) Validate(params domain.JobParameters) error {
	for _, name := range j.config.Required {
		if _, ok := params.Long(name); !ok {
			return fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
	}
	return nil
}

// Execute posts the payload and waits for the endpoint to answer.
func (j *Job) Execute(ctx context.Context, exec domain.JobExecution) error {
	start := time.Now()

	payload := Payload{
		Job:         j.config.Name,
		ExecutionID: exec.ID.String(),
		Parameters:  exec.Parameters.Values(),
		StartedAt:   exec.StartedAt.UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, j.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderExecutionID, payload.ExecutionID)
	req.Header.Set(HeaderSignature, computeSignature(j.config.Secret, body))

	resp, err := j.client.Do(req)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
		defer resp.Body.Close()
	}
	if j.metrics != nil {
		j.metrics.ImportRequestCompleted(metrics.ClassifyStatus(statusCode, err), time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("import endpoint returned %d", statusCode)
	}

	log.Printf("importjob: execution=%s accepted by endpoint (status=%d, took=%s)",
		payload.ExecutionID, statusCode, time.Since(start).Round(time.Millisecond))
	return nil
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for import endpoints to verify incoming requests.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
