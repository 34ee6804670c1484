package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skysift/shiftwatch/internal/analysis"
	"github.com/skysift/shiftwatch/internal/config"
	"github.com/skysift/shiftwatch/internal/storage/sqlite"
	"github.com/skysift/shiftwatch/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(orchestrator *analysis.Orchestrator, shifts *sqlite.ShiftStorage, reports *sqlite.ReportStorage, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(orchestrator, shifts, reports, cfg, log),
		middleware: NewMiddleware(log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Shift ingest and lookup
		router.Post("/shifts", r.handler.IngestShift)
		router.Get("/shifts", r.handler.ListShifts)
		router.Get("/shifts/{shiftID}", r.handler.GetShift)
		router.Get("/shifts/{shiftID}/transcript", r.handler.GetTranscript)

		// Analysis runs
		router.Post("/analyses/{shiftID}", r.handler.StartAnalysis)
		router.Get("/analyses/{shiftID}", r.handler.GetAnalysisStatus)

		// Reports
		router.Get("/reports", r.handler.ListReports)
		router.Get("/reports/{shiftID}", r.handler.GetReport)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	return router
}
