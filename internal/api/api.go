package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"charteye/internal/auth"
	"charteye/internal/storage"
	"charteye/pkg/charteye"
)

const (
	defaultMaxJSONBytes   = 1 << 20
	defaultMaxUploadBytes = 12 << 20
)

// Options carries the collaborators of the router besides the core.
type Options struct {
	Logger      *slog.Logger
	Verifier    *auth.Verifier
	Uploads     http.Handler
	Environment string
	StartedAt   time.Time
	// MaxJSONBytes bounds JSON request bodies.
	MaxJSONBytes int64
	// MaxUploadBytes bounds multipart request bodies.
	MaxUploadBytes int64
}

// NewRouter builds the HTTP API router.
func NewRouter(core *charteye.Core, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{
		core:           core,
		logger:         logger,
		verifier:       opts.Verifier,
		environment:    opts.Environment,
		startedAt:      opts.StartedAt,
		maxJSONBytes:   opts.MaxJSONBytes,
		maxUploadBytes: opts.MaxUploadBytes,
	}
	if h.startedAt.IsZero() {
		h.startedAt = time.Now()
	}
	if h.environment == "" {
		h.environment = "development"
	}
	if h.maxJSONBytes <= 0 {
		h.maxJSONBytes = defaultMaxJSONBytes
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = defaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(recoveryLoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/api/health", h.health)

	// Chart analysis
	r.With(h.optionalUser).Post("/api/analysis", h.analyzeChart)
	r.With(h.requireUser).Get("/api/analysis/{id}", h.getAnalysis)
	r.Get("/api/analysis/{id}/public", h.getPublicAnalysis)
	r.Post("/api/pattern-recognition", h.recognizePatterns)

	// Trading tools
	r.Post("/api/portfolio-analysis", h.analyzePortfolio)
	r.Post("/api/risk-analysis", h.analyzeRisk)
	r.Post("/api/economic-news", h.analyzeEconomicNews)
	r.Post("/api/trading-journal", h.analyzeJournal)
	r.Post("/api/trading-insights", h.tradingInsights)
	r.With(h.optionalUser).Post("/api/indicators", h.generateIndicator)
	r.With(h.requireUser).Get("/api/indicators", h.listIndicators)

	// News
	r.Get("/api/live-news", h.liveNews)
	r.Post("/api/news-chat", h.newsChat)

	// Payments
	r.Post("/api/payment", h.createPaymentLink)
	r.Put("/api/payment", h.verifyPayment)
	r.Post("/api/payment/test-upgrade", h.testUpgrade)

	// User
	r.With(h.requireUser).Get("/api/user/analyses", h.userAnalyses)
	r.With(h.requireUser).Get("/api/user/profile", h.userProfile)

	if opts.Uploads != nil {
		r.Handle(storage.LocalPrefix+"*", opts.Uploads)
	}
	return r
}

type handler struct {
	core           *charteye.Core
	logger         *slog.Logger
	verifier       *auth.Verifier
	environment    string
	startedAt      time.Time
	maxJSONBytes   int64
	maxUploadBytes int64
}
