// Package http exposes the expense ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notaspese/internal/audit"
	"notaspese/internal/core"
	"notaspese/internal/middleware/ratelimit"
	"notaspese/internal/middleware/security"
	"notaspese/internal/middleware/trace"
)

// Repository is the persistence surface the API consumes.
type Repository interface {
	CreateEmployee(ctx context.Context, e core.Employee) (core.Employee, error)
	GetEmployee(ctx context.Context, id string) (core.Employee, error)
	ListEmployees(ctx context.Context) ([]core.Employee, error)
	UpdateEmployee(ctx context.Context, e core.Employee) (core.Employee, error)
	DeleteEmployee(ctx context.Context, id string) error

	CreateProject(ctx context.Context, p core.Project) (core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	ListProjects(ctx context.Context) ([]core.Project, error)
	UpdateProject(ctx context.Context, p core.Project) (core.Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error)
	GetReceipt(ctx context.Context, id string) (core.Receipt, error)
	ListReceipts(ctx context.Context) ([]core.Receipt, error)
	UpdateReceipt(ctx context.Context, r core.Receipt) (core.Receipt, error)
	DeleteReceipt(ctx context.Context, id string) error

	CreateExpenseItem(ctx context.Context, it core.ExpenseItem) (core.ExpenseItem, error)
	GetExpenseItem(ctx context.Context, id string) (core.ExpenseItem, error)
	ListExpenseItems(ctx context.Context) ([]core.ExpenseItem, error)
	UpdateExpenseItem(ctx context.Context, it core.ExpenseItem) (core.ExpenseItem, error)
	DeleteExpenseItem(ctx context.Context, id string) error
}

type Server struct {
	http.Server

	repo    Repository
	limiter *ratelimit.Limiter
}

// NewServer wires routes, rate limiting and request tracing. The prometheus
// registry may be nil when metrics are not wanted (tests).
func NewServer(addr string, repo Repository, limiter *ratelimit.Limiter, reg *prometheus.Registry) *Server {
	s := &Server{
		repo:    repo,
		limiter: limiter,
	}

	mux := http.NewServeMux()
	s.routes(mux, reg)

	handler := http.Handler(mux)
	handler = actorMiddleware(handler)
	if limiter != nil {
		handler = limiter.Middleware(clientIP, writeRateLimited)(handler)
	}
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(clientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, reg *prometheus.Registry) {
	mux.HandleFunc("GET /ping/", s.handlePing)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	if reg != nil {
		if s.limiter != nil {
			s.limiter.Register(reg)
		}
		reg.MustRegister(collectors.NewGoCollector())
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /employees/", s.handleListEmployees)
	mux.HandleFunc("POST /employees/", s.handleCreateEmployee)
	mux.HandleFunc("GET /employees/{id}/", s.handleGetEmployee)
	mux.HandleFunc("PUT /employees/{id}/", s.handleUpdateEmployee)
	mux.HandleFunc("PATCH /employees/{id}/", s.handlePatchEmployee)
	mux.HandleFunc("DELETE /employees/{id}/", s.handleDeleteEmployee)

	mux.HandleFunc("GET /projects/", s.handleListProjects)
	mux.HandleFunc("POST /projects/", s.handleCreateProject)
	mux.HandleFunc("GET /projects/{id}/", s.handleGetProject)
	mux.HandleFunc("PUT /projects/{id}/", s.handleUpdateProject)
	mux.HandleFunc("PATCH /projects/{id}/", s.handlePatchProject)
	mux.HandleFunc("DELETE /projects/{id}/", s.handleDeleteProject)

	mux.HandleFunc("GET /receipts/", s.handleListReceipts)
	mux.HandleFunc("POST /receipts/", s.handleCreateReceipt)
	mux.HandleFunc("GET /receipts/{id}/", s.handleGetReceipt)
	mux.HandleFunc("PUT /receipts/{id}/", s.handleUpdateReceipt)
	mux.HandleFunc("PATCH /receipts/{id}/", s.handlePatchReceipt)
	mux.HandleFunc("DELETE /receipts/{id}/", s.handleDeleteReceipt)

	mux.HandleFunc("GET /expenses/", s.handleListExpenses)
	mux.HandleFunc("POST /expenses/", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses/{id}/", s.handleGetExpense)
	mux.HandleFunc("PUT /expenses/{id}/", s.handleUpdateExpense)
	mux.HandleFunc("PATCH /expenses/{id}/", s.handlePatchExpense)
	mux.HandleFunc("DELETE /expenses/{id}/", s.handleDeleteExpense)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"pong": http.StatusOK})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actorMiddleware attributes mutations to the caller named in the X-Actor
// header; unauthenticated callers are recorded as anonymous.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get("X-Actor")
		if actor == "" {
			actor = audit.DefaultActor
		}
		next.ServeHTTP(w, r.WithContext(audit.WithActor(r.Context(), actor)))
	})
}

// Shutdown stops the rate limiter's cleanup goroutine along with the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.Server.Shutdown(ctx)
}
