// Command import-receiver is a development stand-in for the import endpoint.
// It verifies the request signature, records each payload, and answers with
// a configurable status after a configurable delay.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/djlord-it/easy-import/internal/importjob"
)

type received struct {
	At          string            `json:"at"`
	ExecutionID string            `json:"execution_id"`
	Job         string            `json:"job"`
	Parameters  map[string]string `json:"parameters"`
	Verified    bool              `json:"verified"`
}

type stats struct {
	Count        int64      `json:"count"`
	LastRequests []received `json:"last_requests"`
	Since        string     `json:"since"`
}

type receiver struct {
	secret string
	status int
	delay  time.Duration

	mu           sync.Mutex
	count        int64
	lastRequests []received
	since        time.Time
	maxStored    int
}

func newReceiver(secret string, status int, delay time.Duration) *receiver {
	return &receiver{
		secret:    secret,
		status:    status,
		delay:     delay,
		since:     time.Now().UTC(),
		maxStored: 50,
	}
}

func main() {
	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	status := http.StatusOK
	if v := os.Getenv("RESPONSE_STATUS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 599 {
			log.Fatalf("import-receiver: invalid RESPONSE_STATUS %q", v)
		}
		status = n
	}

	var delay time.Duration
	if v := os.Getenv("RESPONSE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("import-receiver: invalid RESPONSE_DELAY %q: %v", v, err)
		}
		delay = d
	}

	r := newReceiver(os.Getenv("IMPORT_SECRET"), status, delay)

	log.Printf("import-receiver: listening on %s (status=%d, delay=%s)", addr, status, delay)
	log.Fatal(http.ListenAndServe(addr, r.routes()))
}

func (r *receiver) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/import", r.handleImport)
	mux.HandleFunc("/stats", r.handleStats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		r.mu.Lock()
		r.count = 0
		r.lastRequests = nil
		r.since = time.Now().UTC()
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})
	return mux
}

func (r *receiver) handleImport(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(req.Body)
	defer req.Body.Close()
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	verified := importjob.VerifySignature(r.secret, body, req.Header.Get(importjob.HeaderSignature))
	if !verified {
		log.Printf("import-receiver: rejected request with bad signature (execution=%s)",
			req.Header.Get(importjob.HeaderExecutionID))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload importjob.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.count++
	r.lastRequests = append(r.lastRequests, received{
		At:          time.Now().UTC().Format(time.RFC3339Nano),
		ExecutionID: payload.ExecutionID,
		Job:         payload.Job,
		Parameters:  payload.Parameters,
		Verified:    verified,
	})
	if len(r.lastRequests) > r.maxStored {
		r.lastRequests = r.lastRequests[len(r.lastRequests)-r.maxStored:]
	}
	current := r.count
	r.mu.Unlock()

	log.Printf("import-receiver: #%d job=%s execution=%s userJob=%s",
		current, payload.Job, payload.ExecutionID, payload.Parameters["userJob"])

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-req.Context().Done():
			return
		}
	}

	w.WriteHeader(r.status)
	fmt.Fprintf(w, `{"received":%d}`, current)
}

func (r *receiver) handleStats(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	s := stats{
		Count:        r.count,
		LastRequests: append([]received(nil), r.lastRequests...),
		Since:        r.since.Format(time.RFC3339),
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
