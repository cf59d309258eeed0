package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/internal/domain/types"
)

// EventDependencies defines the catalogue operations used by event handlers.
type EventDependencies interface {
	Events(ctx context.Context) ([]model.Event, error)
	SubmitEvent(ctx context.Context, name, description string, date time.Time) (model.Event, []types.Portfolio, error)
	Rebuild(ctx context.Context) error
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleListEvents handles GET /events requests.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.Events(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandlePostEvent handles POST /events requests. The event is stored, the
// vector space rebuilt and matching users notified before the response.
// When the event was stored but the rebuild or broadcast failed, the stored
// event comes back with 202 and a warning so the client does not resubmit it.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	e, rows, err := h.deps.SubmitEvent(r.Context(), req.Name, req.Description, req.date())
	if err != nil && e.ID == 0 {
		writeFailure(w, err)
		return
	}
	if rows == nil {
		rows = []types.Portfolio{}
	}
	if err != nil {
		writeJSON(w, http.StatusAccepted, submitResponse{Event: e, Portfolios: rows, Warning: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Event: e, Notified: queued(rows), Portfolios: rows})
}

// HandleRebuild handles POST /rebuild requests.
func (h *EventsHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Rebuild(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func queued(rows []types.Portfolio) int {
	n := 0
	for _, r := range rows {
		if r.Queued {
			n++
		}
	}
	return n
}
