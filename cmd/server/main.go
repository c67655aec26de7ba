package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"charteye/internal/ai"
	"charteye/internal/api"
	"charteye/internal/auth"
	"charteye/internal/config"
	"charteye/internal/logging"
	"charteye/internal/news"
	"charteye/internal/payments"
	"charteye/internal/storage"
	"charteye/pkg/charteye"
)

var getppid = os.Getppid
var sleep = time.Sleep
var exit = os.Exit

func main() {
	var dataDir string
	var port int
	var host string
	var webDir string
	var envFile string

	flag.StringVar(&dataDir, "data-dir", "", "Directory for storing database and application data")
	flag.IntVar(&port, "port", -1, "Port to run the server on (default from CHARTEYE_PORT or 8000)")
	flag.StringVar(&host, "host", "", "Host to bind the server to (default from CHARTEYE_HOST or 127.0.0.1)")
	flag.StringVar(&webDir, "web-dir", "", "Directory for SPA static files (optional)")
	flag.StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading settings")
	flag.Parse()

	if err := config.LoadEnvFile(envFile); err != nil {
		slog.Error("failed to load env file", "path", envFile, "err", err)
		os.Exit(1)
	}
	settings := config.Load()
	if port >= 0 {
		settings.Port = port
	}
	if host != "" {
		settings.Host = host
	}

	if dataDir != "" {
		config.SetRuntimeDataDir(dataDir)
	}
	config.SetRuntimePort(settings.Port)

	resolvedDataDir, err := config.GetDataDir()
	if err != nil {
		slog.Error("failed to resolve data directory", "err", err)
		os.Exit(1)
	}
	logger, writer, err := logging.NewLogger(logging.Options{
		Dir:   filepath.Join(resolvedDataDir, "logs"),
		Level: defaultLogLevel(settings.Environment),
	})
	if err != nil {
		slog.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close log writer", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, settings, resolvedDataDir, logger)
	if err != nil {
		logger.Error("failed to initialize server", "err", err)
		_ = writer.Close()
		os.Exit(1)
	}
	defer app.close()

	if os.Getenv("CHARTEYE_PARENT_WATCH") == "1" {
		go watchParent(logger)
	}

	handler := app.router
	if resolvedWebDir := resolveWebDir(webDir); resolvedWebDir != "" {
		logger.Info("serving SPA", "web_dir", resolvedWebDir)
		handler = api.WithSPA(handler, resolvedWebDir)
	}
	handler = middleware.Compress(5)(handler)

	addr := net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      settings.AITimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting",
		"addr", addr,
		"environment", settings.Environment,
		"ai_enabled", app.core.AIEnabled(),
		"payments_enabled", app.core.PaymentsEnabled(),
	)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

// app holds the wired collaborators of one server process.
type app struct {
	core      *charteye.Core
	router    http.Handler
	scheduler *news.Scheduler
	logger    *slog.Logger
}

func newApp(ctx context.Context, settings config.Settings, dataDir string, logger *slog.Logger) (*app, error) {
	dbPath, err := config.GetDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	var gateway charteye.AIGateway
	if settings.AIAPIKey != "" {
		client, err := ai.New(ctx, ai.Config{
			Provider:       ai.Provider(strings.ToLower(settings.AIProvider)),
			APIKey:         settings.AIAPIKey,
			BaseURL:        settings.AIBaseURL,
			Model:          settings.AIModel,
			VisionModel:    settings.AIVisionModel,
			EmbeddingModel: settings.AIEmbeddingModel,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init ai client: %w", err)
		}
		logger.Info("ai gateway configured", "provider", string(client.Provider()), "model", client.Model())
		gateway = client
	} else {
		logger.Warn("no ai api key configured; analysis endpoints return synthetic results")
	}

	objects, uploads, err := newObjectStore(ctx, settings, dataDir)
	if err != nil {
		return nil, err
	}

	var provider charteye.PaymentProvider
	if settings.PaymentsEnabled() {
		square, err := payments.NewSquare(payments.Config{
			AccessToken: settings.SquareAccessToken,
			LocationID:  settings.SquareLocationID,
			BaseURL:     settings.SquareBaseURL,
			AppURL:      settings.AppURL,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init square: %w", err)
		}
		provider = square
	}

	newsDir, err := config.GetNewsDir(settings)
	if err != nil {
		return nil, fmt.Errorf("resolve news dir: %w", err)
	}
	newsStore := news.NewStore(newsDir)

	core, err := charteye.OpenWithOptions(charteye.Options{
		DBPath:          dbPath,
		Logger:          logger,
		AI:              gateway,
		ObjectStore:     objects,
		Payments:        provider,
		News:            newsStore,
		FreeUploadLimit: settings.FreeUploadLimit,
		AITimeout:       settings.AITimeout,
		TestUpgradeKey:  settings.TestUpgradeKey,
	})
	if err != nil {
		return nil, fmt.Errorf("init core: %w", err)
	}

	verifier := auth.NewVerifier(settings.JWTSecret)
	if !verifier.Enabled() {
		logger.Warn("JWT_SECRET not set; authenticated endpoints will reject all requests")
	}

	a := &app{
		core:   core,
		logger: logger,
		router: api.NewRouter(core, api.Options{
			Logger:      logger,
			Verifier:    verifier,
			Uploads:     uploads,
			Environment: settings.Environment,
		}),
	}

	scheduler, err := startNewsCollector(settings, newsStore, logger)
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	a.scheduler = scheduler
	return a, nil
}

func (a *app) close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if err := a.core.Close(); err != nil {
		a.logger.Error("failed to close core", "err", err)
	}
}

// newObjectStore returns the S3 bucket when configured and a local upload directory otherwise.
// The returned handler serves local uploads and is nil for S3.
func newObjectStore(ctx context.Context, settings config.Settings, dataDir string) (charteye.ObjectStore, http.Handler, error) {
	if settings.Storage.Enabled() {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          settings.Storage.Bucket,
			Endpoint:        settings.Storage.Endpoint,
			Region:          settings.Storage.Region,
			AccessKeyID:     settings.Storage.AccessKeyID,
			SecretAccessKey: settings.Storage.SecretAccessKey,
			PublicURL:       settings.Storage.PublicURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return store, nil, nil
	}
	store, err := storage.NewLocalStore(filepath.Join(dataDir, "uploads"), "")
	if err != nil {
		return nil, nil, err
	}
	return store, store.Handler(), nil
}

// startNewsCollector schedules the news scraper. An empty or "off" schedule disables it.
func startNewsCollector(settings config.Settings, store *news.Store, logger *slog.Logger) (*news.Scheduler, error) {
	schedule := strings.TrimSpace(settings.NewsSchedule)
	if schedule == "" || strings.EqualFold(schedule, "off") {
		logger.Info("news collector disabled")
		return nil, nil
	}

	sources := news.DefaultSources
	if settings.NewsSourcesFile != "" {
		loaded, err := news.LoadSources(settings.NewsSourcesFile)
		if err != nil {
			return nil, fmt.Errorf("load news sources: %w", err)
		}
		sources = loaded
	}

	collector := news.NewCollector(store, sources, news.WithLogger(logger))
	scheduler := news.NewScheduler(logger)
	if err := scheduler.AddJob(schedule, collector); err != nil {
		return nil, fmt.Errorf("schedule news collector: %w", err)
	}
	scheduler.Start()

	if meta, err := store.ReadMetadata(); err != nil || meta == nil {
		go func() {
			if err := scheduler.RunNow(collector); err != nil {
				logger.Warn("initial news collection failed", "err", err)
			}
		}()
	}
	return scheduler, nil
}

func defaultLogLevel(environment string) slog.Level {
	if strings.EqualFold(environment, "development") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func watchParent(logger *slog.Logger) {
	for {
		sleep(1 * time.Second)
		if getppid() == 1 {
			logger.Info("parent process exited; shutting down")
			exit(0)
		}
	}
}

func resolveWebDir(input string) string {
	if input != "" {
		if dirExists(input) {
			return input
		}
		return ""
	}

	candidates := []string{"static", "../static"}
	for _, candidate := range candidates {
		if dirExists(candidate) {
			return candidate
		}
	}
	if exe, err := os.Executable(); err == nil {
		base := filepath.Dir(exe)
		for _, candidate := range candidates {
			path := filepath.Join(base, candidate)
			if dirExists(path) {
				return path
			}
		}
	}
	return ""
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
