// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/okian/eventmatch/internal/adapters/repository"
	service "github.com/okian/eventmatch/internal/app"
	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/internal/domain/predict"
	"github.com/okian/eventmatch/internal/domain/ranking"
	"github.com/okian/eventmatch/internal/domain/textvec"
	"github.com/okian/eventmatch/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	UserDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	eventsHandler *EventsHandler
	usersHandler  *UsersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler: NewHealthHandler(deps),
		statsHandler:  NewStatsHandler(deps),
		eventsHandler: NewEventsHandler(deps),
		usersHandler:  NewUsersHandler(deps),
	}
}

// Register attaches all API routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Get("/events", MetricsMiddleware(s.eventsHandler.HandleListEvents, "events"))
	r.Post("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	r.Post("/rebuild", MetricsMiddleware(s.eventsHandler.HandleRebuild, "rebuild"))

	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/recommendation", MetricsMiddleware(s.usersHandler.HandleRecommendation, "recommendation"))
		r.Get("/prediction", MetricsMiddleware(s.usersHandler.HandlePrediction, "prediction"))
	})
}

// NewRouter returns a chi router with the shared middleware stack.
func NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))
	return r
}

const requestTimeout = 30 * time.Second

var validate = validator.New()

// submitRequest mirrors the OpenAPI schema for POST /events.
type submitRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (req submitRequest) date() time.Time {
	if req.Date == "" {
		return time.Time{}
	}
	d, err := time.Parse(model.DateLayout, req.Date)
	if err != nil {
		return time.Time{}
	}
	return d
}

type submitResponse struct {
	Event      model.Event       `json:"event"`
	Notified   int               `json:"notified"`
	Portfolios []types.Portfolio `json:"portfolios"`
	Warning    string            `json:"warning,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an upstream error onto a status code and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, repository.ErrInvalidRow):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, predict.ErrDomain):
		return http.StatusUnprocessableEntity, "domain_error"
	case errors.Is(err, service.ErrNotReady),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, textvec.ErrConfiguration),
		errors.Is(err, ranking.ErrNoSpace):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
