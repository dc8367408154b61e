// Package httpapi exposes the producer-facing HTTP surface of
// SPEC_FULL.md §6: submit a task, read one back, cancel it, and inspect a
// queue's depth/dedup-set size, plus the ambient /healthz and /metrics
// endpoints. Grounded on the teacher's internal/api/server.go chi router
// and handler shape, generalized from a Postgres-backed job store to the
// broker-mirrored task:<id> record and the in-process producer/worker
// types this module builds on top of the broker.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"telemetryhub/internal/broker"
	"telemetryhub/internal/priority"
	"telemetryhub/internal/producer"
	"telemetryhub/internal/ratelimit"
	"telemetryhub/internal/task"
	"telemetryhub/internal/telemetry"
)

// defaultDLQPeekLimit caps how many dead-letter entries a single peek
// returns when the caller doesn't specify one.
const defaultDLQPeekLimit = 20

// Canceller is the subset of *worker.Worker the API needs, declared as an
// interface so tests can stub it without standing up a real worker loop.
type Canceller interface {
	Cancel(ctx context.Context, taskID string) bool
}

// Server wires the HTTP handlers for one queue's producer API.
type Server struct {
	client      broker.Client
	prod        *producer.Producer
	wrk         Canceller
	name        string
	limiter     *ratelimit.LocalLimiter
	distributed *ratelimit.TokenBucket
	log         *logrus.Entry
}

// New constructs an API server bound to one named queue. limiter may be
// nil to skip per-process local throttling; distributed may be nil to
// skip the cross-process token bucket check (it requires a real Redis
// broker, unlike limiter).
func New(client broker.Client, name string, prod *producer.Producer, wrk Canceller, limiter *ratelimit.LocalLimiter, distributed *ratelimit.TokenBucket) *Server {
	return &Server{
		client:      client,
		prod:        prod,
		wrk:         wrk,
		name:        name,
		limiter:     limiter,
		distributed: distributed,
		log:         logrus.WithField("component", "httpapi").WithField("queue", name),
	}
}

// Router builds the HTTP router, mirroring the teacher's flat route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/v1/tasks", s.handleSubmit)
	r.Get("/v1/tasks/{id}", s.handleGetTask)
	r.Post("/v1/tasks/{id}/cancel", s.handleCancel)
	r.Get("/v1/queues/{name}/stats", s.handleQueueStats)
	r.Get("/v1/queues/{name}/dlq", s.handleDLQPeek)

	return r
}

type submitRequest struct {
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Priority    string          `json:"priority"`
	MaxRetries  int             `json:"max_retries"`
	Fingerprint string          `json:"fingerprint"`
}

type submitResponse struct {
	Task       taskView `json:"task"`
	Idempotent bool     `json:"idempotent"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.client.Ping(r.Context()) {
		http.Error(w, `{"status":"broker unreachable"}`, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage(task.EmptyPayload)
	}

	tenant := tenantFromRequest(r)
	if s.limiter != nil && !s.limiter.Allow(tenant) {
		telemetry.RateLimitReject.Inc()
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	if s.distributed != nil {
		allowed, tokensLeft, err := s.distributed.Allow(r.Context(), tenant)
		if err != nil {
			s.log.WithError(err).WithField("tenant", tenant).Debug("distributed rate limiter unreachable, allowing request")
		} else if !allowed {
			telemetry.RateLimitReject.Inc()
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", s.distributed.RetryAfter(tokensLeft).Seconds()))
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	sub := producer.Submission{
		Type:        req.Type,
		Payload:     task.Payload(req.Payload),
		Priority:    priority.Parse(req.Priority),
		MaxRetries:  req.MaxRetries,
		Fingerprint: req.Fingerprint,
	}

	t, err := s.prod.Submit(r.Context(), sub)
	if err != nil {
		writeJSON(w, http.StatusOK, submitResponse{Task: toView(t), Idempotent: true})
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{Task: toView(t), Idempotent: false})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, ok := s.client.Get(r.Context(), "task:"+id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	t, err := task.FromJSON([]byte(body))
	if err != nil {
		http.Error(w, "corrupt task record", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toView(t))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.wrk.Cancel(r.Context(), id) {
		http.Error(w, "task not found or not cancellable", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type queueStats struct {
	Name          string `json:"name"`
	ListDepth     int64  `json:"list_depth"`
	PriorityDepth int64  `json:"priority_depth"`
	DedupSetSize  int64  `json:"dedup_set_size"`
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx := r.Context()

	listDepth := s.client.LLen(ctx, "queue:"+name)
	priDepth := s.client.ZCard(ctx, "priq:"+name)
	dedupSize := s.client.SCard(ctx, "dedup:"+name)

	telemetry.QueueDepth.WithLabelValues(name).Set(float64(listDepth + priDepth))
	telemetry.DedupSetSize.WithLabelValues(name).Set(float64(dedupSize))

	writeJSON(w, http.StatusOK, queueStats{
		Name:          name,
		ListDepth:     listDepth,
		PriorityDepth: priDepth,
		DedupSetSize:  dedupSize,
	})
}

// handleDLQPeek returns up to limit envelopes from the named queue's
// dead-letter list without removing them, the read-only inspection
// surface for tasks that exhausted their retries.
func (s *Server) handleDLQPeek(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := int64(defaultDLQPeekLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	bodies := s.client.LRange(r.Context(), "dlq:"+name, 0, limit-1)
	entries := make([]taskView, 0, len(bodies))
	for _, body := range bodies {
		t, err := task.FromJSON([]byte(body))
		if err != nil {
			continue
		}
		entries = append(entries, toView(t))
	}
	writeJSON(w, http.StatusOK, entries)
}

// taskView is the wire shape returned to clients; it exposes the
// envelope's fields except the payload, read through task.Task's
// accessors rather than its private struct fields.
type taskView struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	WorkerID   string    `json:"worker_id,omitempty"`
}

func toView(t task.Task) taskView {
	return taskView{
		ID:         t.ID(),
		Type:       t.Type(),
		Priority:   t.Priority().String(),
		Status:     t.Status().String(),
		RetryCount: t.RetryCount(),
		MaxRetries: t.MaxRetries(),
		CreatedAt:  t.CreatedAt(),
		UpdatedAt:  t.UpdatedAt(),
		WorkerID:   t.WorkerID(),
	}
}

func tenantFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Tenant-ID"); v != "" {
		return v
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
