/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request logging, tagged with the request ID
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the editor frontend

ROUTE GROUPS:
  /api/sections/*   Section management
  /api/students/*   Roster
  /api/trash/*      Soft-deleted students
  /api/backup/*     Full backup and legacy migration
  /api/layout/*     Overlay field placement
  /api/sync/*       Cloud sync

SECURITY NOTE:
  No authentication middleware. The server is meant to run on the
  user's own machine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.exclusive)

		r.Get("/state", h.GetState)
		r.Put("/grade", h.SetGrade)

		// Section routes
		r.Route("/sections", func(r chi.Router) {
			r.Get("/", h.ListSections)
			r.Post("/", h.CreateSection)
			r.Put("/current", h.SwitchSection)
			r.Post("/current/clear", h.ClearSection)
			r.Delete("/{id}", h.DeleteSection)
		})

		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.AddStudent)
			r.Delete("/", h.DeleteAllStudents)
			r.Put("/current", h.SelectStudent)
			r.Post("/navigate", h.NavigateStudents)
			r.Delete("/{name}", h.TrashStudent)
			r.Delete("/{name}/permanent", h.DeleteStudent)
		})
		r.Post("/roster/import", h.ImportRoster)

		// Record field routes
		r.Put("/grades", h.UpdateGrade)
		r.Put("/observations", h.UpdateObservation)
		r.Put("/attendance", h.UpdateAttendance)
		r.Put("/status", h.UpdateStatus)
		r.Put("/final-condition", h.UpdateFinalCondition)
		r.Put("/student-info", h.UpdateStudentInfo)
		r.Put("/school-data", h.UpdateSchoolData)
		r.Patch("/settings", h.UpdateSettings)

		// Trash routes
		r.Route("/trash", func(r chi.Router) {
			r.Get("/", h.ListTrash)
			r.Delete("/", h.EmptyTrash)
			r.Post("/{deletedAt}/restore", h.RestoreTrash)
		})

		// Backup routes
		r.Route("/backup", func(r chi.Router) {
			r.Get("/", h.ExportBackup)
			r.Post("/", h.ImportBackup)
			r.Post("/legacy", h.MigrateLegacy)
		})

		// Layout routes
		r.Route("/layout", func(r chi.Router) {
			r.Get("/", h.GetLayout)
			r.Post("/pointer/{phase}", h.PointerEvent)
			r.Post("/key", h.KeyEvent)
			r.Put("/fields/{id}", h.SetFieldRect)
			r.Post("/undo", h.Undo)
			r.Post("/redo", h.Redo)
			r.Post("/reset", h.ResetLayout)
		})

		r.Get("/overlay", h.GetOverlay)
		r.Get("/grid", h.GetGrid)
		r.Get("/export", h.Export)

		// Cloud routes
		r.Route("/sync", func(r chi.Router) {
			r.Get("/", h.SyncStatus)
			r.Post("/", h.Sync)
			r.Post("/save", h.SaveToCloud)
		})

		r.Post("/reset", h.FactoryReset)
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
