package http

import (
	"context"
	"net/http"
	"time"

	"budgettracker/internal/log"
)

type healthBody struct {
	Status             string `json:"status"`
	TotalRequests      int64  `json:"totalRequests"`
	LastResponseMicros int64  `json:"lastResponseMicros"`
	SuspiciousRequests int64  `json:"suspiciousRequests"`
}

type routeDoc struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Public      bool     `json:"public"`
	Roles       []string `json:"roles,omitempty"`
	Description string   `json:"description"`
}

type apiDocs struct {
	Title   string     `json:"title"`
	Version string     `json:"version"`
	Auth    string     `json:"auth"`
	Routes  []routeDoc `json:"routes"`
}

var docs = apiDocs{
	Title:   "Budget tracker API",
	Version: "1.0",
	Auth:    "Authorization: Bearer <token from POST /users/login>",
	Routes: []routeDoc{
		{Method: "GET", Path: "/status", Public: true, Description: "liveness message"},
		{Method: "GET", Path: "/healthz", Public: true, Description: "process health and request counters"},
		{Method: "GET", Path: "/readyz", Public: true, Description: "database reachability"},
		{Method: "GET", Path: "/api-docs", Public: true, Description: "this catalogue"},
		{Method: "POST", Path: "/users/login", Public: true, Description: "exchange username and password for a token"},
		{Method: "POST", Path: "/users/signup", Public: true, Description: "self-register with role user"},
		{Method: "GET", Path: "/users", Description: "list users with budgets"},
		{Method: "GET", Path: "/users/{id}", Description: "one user with budgets"},
		{Method: "PUT", Path: "/users", Roles: []string{"admin"}, Description: "create a user with any role"},
		{Method: "PUT", Path: "/users/{id}", Roles: []string{"admin"}, Description: "update name and email"},
		{Method: "DELETE", Path: "/users/{id}", Roles: []string{"admin", "manager"}, Description: "delete a user and their budgets"},
		{Method: "POST", Path: "/users/income", Description: "record income {userId, amount, description}"},
		{Method: "POST", Path: "/users/expense", Description: "record expense {userId, amount, description}"},
	},
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Message("Back-end is running...").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	NewJSONResponse().Body(healthBody{
		Status:             "ok",
		TotalRequests:      tm.TotalRequests,
		LastResponseMicros: tm.LastResponseTime,
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		NewJSONResponse().Body(healthBody{Status: "ready"}).Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		NewJSONResponse().Status(http.StatusServiceUnavailable).
			Body(ErrorEnvelope{Status: StatusApplicationError, Message: "database unavailable"}).Write(w)
		return
	}
	NewJSONResponse().Body(healthBody{Status: "ready"}).Write(w)
}

func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(docs).Write(w)
}
