// Package site serves the HTML event submission page.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/eventmatch/internal/adapters/repository"
	service "github.com/okian/eventmatch/internal/app"
	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/internal/domain/types"
	"github.com/okian/eventmatch/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("site render failed")
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("site").Funcs(template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(model.DateLayout)
	},
	"ids": func(ids []int64) string {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return strings.Join(parts, ", ")
	},
}).ParseFS(templateFS, "templates/*.html"))

// Dependencies are the catalogue operations the page needs.
type Dependencies interface {
	Events(ctx context.Context) ([]model.Event, error)
	SubmitEvent(ctx context.Context, name, description string, date time.Time) (model.Event, []types.Portfolio, error)
}

// Handler renders the submission form and the broadcast results.
type Handler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewHandler creates a page handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, logger: logger.Named("site")}
}

// Register attaches the page routes to r.
func Register(_ context.Context, r chi.Router, deps Dependencies) {
	if r == nil {
		panic("router is nil")
	}
	h := NewHandler(deps)
	r.Get("/", h.HandleIndex)
	r.Post("/submit", h.HandleSubmit)
}

type indexPage struct {
	Events []model.Event
	Error  string
}

type resultsPage struct {
	Event      model.Event
	Portfolios []types.Portfolio
}

// HandleIndex handles GET / requests.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.index(w, r, http.StatusOK, "")
}

// HandleSubmit handles POST /submit form posts.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.index(w, r, http.StatusBadRequest, "could not read the form")
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		h.index(w, r, http.StatusBadRequest, "an event needs a name")
		return
	}
	var date time.Time
	if raw := strings.TrimSpace(r.PostFormValue("date")); raw != "" {
		d, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			h.index(w, r, http.StatusBadRequest, "dates use the YYYY-MM-DD format")
			return
		}
		date = d
	}

	e, rows, err := h.deps.SubmitEvent(r.Context(), name, strings.TrimSpace(r.PostFormValue("description")), date)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidEvent) || errors.Is(err, repository.ErrInvalidRow) {
			status = http.StatusBadRequest
		}
		msg := err.Error()
		if e.ID != 0 {
			msg = fmt.Sprintf("event %d was stored but not broadcast: %v", e.ID, err)
		}
		h.logger.Error(r.Context(), "submit failed", logger.Int64("event_id", e.ID), logger.Error(err))
		h.index(w, r, status, msg)
		return
	}
	h.render(w, r, http.StatusOK, "results.html", resultsPage{Event: e, Portfolios: rows})
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request, status int, msg string) {
	events, err := h.deps.Events(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "list events failed", logger.Error(err))
		status = http.StatusInternalServerError
		msg = "the catalogue is unavailable"
	}
	h.render(w, r, status, "index.html", indexPage{Events: events, Error: msg})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error(r.Context(), "render failed", logger.Error(fmt.Errorf("%w: %s: %w", ErrRender, name, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
