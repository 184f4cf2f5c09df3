package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

// AnalyticsService defines the aggregation operations required by the
// analytics handler.
type AnalyticsService interface {
	Summary(ctx context.Context, rangeDays int) (*models.AnalyticsSnapshot, error)
	LogVisit(ctx context.Context, visitorID string) error
}

// AnalyticsHandler handles dashboard summary and visit logging routes.
type AnalyticsHandler struct {
	Analytics   AnalyticsService
	Permissions PermissionService
}

// VisitRequest is the JSON payload for logging a visit.
type VisitRequest struct {
	VisitorID string `json:"visitorId"`
}

// Summary handles GET /api/analytics?range=7|30|90.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermAnalyticsView)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, service.ErrForbidden)
		return
	}

	rangeDays := 7
	if raw := r.URL.Query().Get("range"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, service.ErrInvalid)
			return
		}
		rangeDays = parsed
	}

	snapshot, err := h.Analytics.Summary(r.Context(), rangeDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// LogVisit handles POST /api/analytics. Visits come from anonymous
// visitors, so this route is public.
func (h *AnalyticsHandler) LogVisit(w http.ResponseWriter, r *http.Request) {
	var req VisitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Analytics.LogVisit(r.Context(), req.VisitorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}
