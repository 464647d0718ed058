package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/planwise/planwise-api/internal/api"
	apiMiddleware "github.com/planwise/planwise-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	// Create API handlers using the application's services
	approvalHandler := api.NewApprovalHandler(app.pipelineService, app.logger)
	jobHandler := api.NewJobHandler(app.pipelineService, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	adminHandler := api.NewAdminHandler(app.pipelineService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	// Register routes; everything under /api requires a valid token
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// Plan approval and job polling
		r.Post("/plans/approve", approvalHandler.ApprovePlan)
		r.Get("/plans/{planID}/tasks", taskHandler.ListPlanTasks)
		r.Get("/jobs/{jobID}", jobHandler.GetJobStatus)

		// Task lifecycle endpoints
		r.Get("/tasks/{taskID}", taskHandler.GetTask)
		r.Post("/tasks/{taskID}/approve", taskHandler.ApproveTask)
		r.Post("/tasks/{taskID}/reject", taskHandler.RejectTask)
		r.Post("/tasks/{taskID}/assign", taskHandler.AssignTask)
		r.Post("/tasks/{taskID}/complete", taskHandler.CompleteTask)

		// Dead-letter administration
		r.Get("/admin/dead-letters", adminHandler.ListDeadLetters)
		r.Post("/admin/dead-letters/{jobID}/replay", adminHandler.ReplayDeadLetter)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
