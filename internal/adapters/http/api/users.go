package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/eventmatch/internal/domain/types"
)

// UserDependencies defines the per-user read operations.
type UserDependencies interface {
	Recommend(ctx context.Context, userID int64) (types.Recommendation, error)
	Predict(ctx context.Context, userID int64) (types.Prediction, error)
}

// UsersHandler handles recommendation and prediction requests.
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

// HandleRecommendation handles GET /users/{id}/recommendation requests.
func (h *UsersHandler) HandleRecommendation(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r, "api.recommendation")
	if !ok {
		return
	}
	rec, err := h.deps.Recommend(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandlePrediction handles GET /users/{id}/prediction requests.
func (h *UsersHandler) HandlePrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r, "api.prediction")
	if !ok {
		return
	}
	p, err := h.deps.Predict(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func userID(w http.ResponseWriter, r *http.Request, op string) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return 0, false
	}
	return id, true
}
