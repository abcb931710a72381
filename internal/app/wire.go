package app

import (
	"log/slog"
	"time"

	"github.com/examguard/platform/internal/aggregate"
	"github.com/examguard/platform/internal/auth"
	"github.com/examguard/platform/internal/guard"
	"github.com/examguard/platform/internal/handler"
	"github.com/examguard/platform/internal/infra"
	"github.com/examguard/platform/internal/ingest"
	"github.com/examguard/platform/internal/policy"
	"github.com/examguard/platform/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool              *pgxpool.Pool
	JWTMgr            *auth.JWTManager
	Logger            *slog.Logger
	TerminationPolicy policy.TerminationPolicy
	IngestRateLimit   int
	Hub               *infra.WSHub
}

// NewRouter assembles the chi.Router with all routes and middleware. The
// gateway is returned alongside so callers can attach consumers or inspect
// state in tests.
func NewRouter(deps RouterDeps) (chi.Router, *ingest.Gateway) {
	pool := deps.Pool
	jwtMgr := deps.JWTMgr
	logger := deps.Logger

	// Repositories
	sessionRepo := repository.NewSessionRepository()
	eventRepo := repository.NewEventRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Ingestion pipeline and read side
	gateway := ingest.NewGateway(sessionRepo, eventRepo, outboxRepo, pool, deps.TerminationPolicy, logger)
	if deps.Hub != nil {
		gateway.SetNotifier(deps.Hub)
	}
	aggregator := aggregate.NewService(gateway)

	// Handlers
	sessionHandler := handler.NewSessionHandler(gateway, jwtMgr)
	dashboardHandler := handler.NewDashboardHandler(aggregator)
	exportHandler := handler.NewExportHandler(gateway)

	rateLimit := deps.IngestRateLimit
	if rateLimit <= 0 {
		rateLimit = 120
	}

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS)
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(pool))

	// Session registration (no auth; the exam platform calls this server to
	// server and relays the minted candidate token to the browser monitor)
	r.Post("/sessions", sessionHandler.StartSession)

	// Candidate-authenticated routes, scoped to the token's session
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateCandidate(jwtMgr))
		r.Use(auth.RequireSessionOwnership())
		r.Use(handler.RateLimitBySession(guard.NewRateLimiter(rateLimit, time.Minute)))

		r.Post("/sessions/{sessionID}/events", sessionHandler.IngestEvent)
		r.Post("/sessions/{sessionID}/end", sessionHandler.EndSession)
	})

	// Proctor-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateProctor(jwtMgr))

		r.Get("/exams/{examID}/dashboard", dashboardHandler.GetExamDashboard)
		r.Get("/sessions/{sessionID}/summary", dashboardHandler.GetStudentSummary)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.ReviewRoles()...))
			r.Get("/exams/{examID}/export", exportHandler.ExportExam)
		})
	})

	return r, gateway
}
