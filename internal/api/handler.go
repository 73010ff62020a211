package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/djlord-it/easy-import/internal/domain"
	"github.com/djlord-it/easy-import/internal/leaderelection"
	"github.com/djlord-it/easy-import/internal/trigger"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Store interface {
	ListExecutions(ctx context.Context, jobName string, limit, offset int) ([]domain.JobExecution, error)
}

// Runner performs one manual invocation. *trigger.Trigger satisfies it.
type Runner interface {
	OnSchedule(ctx context.Context) trigger.Result
	Rerun(ctx context.Context, userJob int64) trigger.Result
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// StatsReader returns per-outcome run counts for one day.
type StatsReader interface {
	DailyCounts(ctx context.Context, jobName string, day time.Time) (map[string]int64, error)
}

// LeaderChecker reports whether this replica currently runs the schedule.
// *leaderelection.Elector satisfies it.
type LeaderChecker interface {
	Status() leaderelection.Status
}

type Handler struct {
	store   Store
	jobName string
	runner  Runner        // optional, nil = POST /runs disabled
	db      HealthChecker // optional
	stats   StatsReader   // optional, nil = GET /stats disabled
	leader  LeaderChecker // optional
	now     func() time.Time

	runs sync.WaitGroup // manual runs in flight
}

func NewHandler(store Store, jobName string) *Handler {
	return &Handler{store: store, jobName: jobName, now: time.Now}
}

// WithRunner enables the manual trigger endpoint.
func (h *Handler) WithRunner(runner Runner) *Handler {
	h.runner = runner
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) WithStats(stats StatsReader) *Handler {
	h.stats = stats
	return h
}

func (h *Handler) WithLeader(leader LeaderChecker) *Handler {
	h.leader = leader
	return h
}

// WaitRuns blocks until in-flight manual runs finish or timeout elapses.
// Returns false on timeout.
func (h *Handler) WaitRuns(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		h.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/executions" && r.Method == http.MethodGet:
		h.listExecutions(w, r)

	case path == "/runs" && r.Method == http.MethodPost:
		h.createRun(w, r)

	case path == "/stats" && r.Method == http.MethodGet:
		h.dailyStats(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["database"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["database"] = "healthy"
		}
	}

	if h.leader != nil {
		st := h.leader.Status()
		if st.Leader {
			resp.Components["scheduler"] = "leader"
		} else {
			resp.Components["scheduler"] = "standby"
		}
		resp.Components["leader_lock"] = st.JobName + "/" + strconv.FormatInt(st.LockKey, 10)
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	executions, err := h.store.ListExecutions(r.Context(), h.jobName, limit, offset)
	if err != nil {
		log.Printf("api: list executions error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	resp := ListExecutionsResponse{Executions: make([]ExecutionResponse, len(executions))}
	for i, exec := range executions {
		resp.Executions[i] = toExecutionResponse(exec)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusNotFound, "manual runs are disabled")
		return
	}

	req, err := decodeRunRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.runs.Add(1)
	defer h.runs.Done()

	// The run outlives a disconnecting client; the launcher still records it.
	ctx := context.WithoutCancel(r.Context())
	var result trigger.Result
	if req.UserJob != nil {
		result = h.runner.Rerun(ctx, *req.UserJob)
	} else {
		result = h.runner.OnSchedule(ctx)
	}

	userJob, _ := result.Params.Long(trigger.ParamUserJob)
	resp := RunResponse{
		Job:            h.jobName,
		Outcome:        result.Outcome(),
		UserJob:        userJob,
		ElapsedSeconds: result.Elapsed.Seconds(),
	}
	if result.Execution != nil {
		exec := toExecutionResponse(*result.Execution)
		resp.Execution = &exec
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeRunRequest accepts an empty body as a fresh run.
func decodeRunRequest(body io.Reader) (RunRequest, error) {
	var req RunRequest
	if body == nil {
		return req, nil
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return RunRequest{}, nil
		}
		return RunRequest{}, errors.New("invalid JSON body")
	}
	if req.UserJob != nil && *req.UserJob <= 0 {
		return RunRequest{}, errors.New("user_job must be a positive epoch-millisecond value")
	}
	return req, nil
}

func (h *Handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "analytics disabled")
		return
	}

	day, err := parseDay(r.URL.Query().Get("day"), h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := h.stats.DailyCounts(r.Context(), h.jobName, day)
	if err != nil {
		log.Printf("api: daily stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	if counts == nil {
		counts = map[string]int64{}
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Job:    h.jobName,
		Day:    day.Format(dayLayout),
		Counts: counts,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
