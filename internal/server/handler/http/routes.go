package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/telemetry"
)

// Handlers bundles the route handlers mounted by NewRouter.
type Handlers struct {
	Auth      *AuthHandler
	Users     *UsersHandler
	Projects  *ProjectsHandler
	Tasks     *TasksHandler
	Analytics *AnalyticsHandler
	Visitors  *VisitorsHandler
	Updates   *UpdatesHandler
	Upload    *UploadHandler
}

// NewRouter constructs the HTTP handler serving the Driver Tasks Hub API.
//
// Public endpoints (no token): login, visit logging, active daily
// updates, visitor lookup and registration, health, and metrics. Every
// other /api route requires a valid bearer token; handlers then apply
// per-capability permission checks.
func NewRouter(
	h Handlers,
	parser middleware.TokenParser,
	logger *zap.Logger,
	metrics *telemetry.Metrics,
	gatherer prometheus.Gatherer,
	uploadsDir string,
) http.Handler {
	r := chi.NewRouter()

	// Reject bodies that are neither JSON nor multipart uploads.
	r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))

	// Log each request and its metadata.
	r.Use(middleware.WithRequestLogging(logger, metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if uploadsDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/login", h.Auth.Login)
		r.Post("/analytics", h.Analytics.LogVisit)
		r.Get("/daily-updates", h.Updates.ListActive)
		r.Get("/visitors/{id}", h.Visitors.Get)
		r.Post("/visitors", h.Visitors.Register)

		// Protected group: requires valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(parser))

			r.Get("/analytics", h.Analytics.Summary)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.Users.List)
				r.Post("/", h.Users.Create)
				r.Get("/{id}", h.Users.Get)
				r.Put("/{id}", h.Users.Update)
				r.Delete("/{id}", h.Users.Delete)
				r.Get("/{id}/permissions", h.Users.GetPermissions)
				r.Put("/{id}/permissions", h.Users.PutPermissions)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.Projects.List)
				r.Post("/", h.Projects.Create)
				r.Get("/{id}", h.Projects.Get)
				r.Put("/{id}", h.Projects.Update)
				r.Delete("/{id}", h.Projects.Delete)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.Tasks.List)
				r.Post("/", h.Tasks.Create)
				r.Get("/{id}", h.Tasks.Get)
				r.Put("/{id}", h.Tasks.Update)
				r.Delete("/{id}", h.Tasks.Delete)
				r.Get("/{id}/subtasks", h.Tasks.ListSubtasks)
				r.Post("/{id}/subtasks", h.Tasks.CreateSubtask)
			})
			r.Put("/subtasks/{id}", h.Tasks.UpdateSubtask)
			r.Delete("/subtasks/{id}", h.Tasks.DeleteSubtask)

			r.Get("/visitors", h.Visitors.List)
			r.Delete("/visitors/{id}/name", h.Visitors.ClearName)

			r.Route("/daily-updates", func(r chi.Router) {
				r.Post("/", h.Updates.Create)
				r.Get("/{id}", h.Updates.Get)
				r.Put("/{id}", h.Updates.Update)
				r.Delete("/{id}", h.Updates.Delete)
			})

			r.Post("/upload", h.Upload.Upload)
		})
	})

	return r
}
