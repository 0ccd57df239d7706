package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/drivesync"
	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/infrastructure"
	"sitepulse/internal/jobs"
	customMiddleware "sitepulse/internal/middleware"
	"sitepulse/internal/services"
	"sitepulse/internal/store"
	handlers "sitepulse/internal/transport/http"
	ws "sitepulse/internal/websocket"
	"sitepulse/pkg/contracts"
	"sitepulse/pkg/contracts/domain"
)

const (
	jobWorkers         = 4
	jobStopTimeout     = 30 * time.Second
	jobRetention       = 24 * time.Hour
	sessionPurgePeriod = 15 * time.Minute
)

// Application is the main dependency container.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         *store.Store
	AuthManager   *auth.Manager
	Hub           *ws.Hub
	JobQueue      *jobs.Queue
	Drive         *drivesync.Syncer
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	Logger        *slog.Logger

	errorHandler *apierrors.ErrorHandler
	validation   *customMiddleware.ValidationMiddleware
	queryParams  *customMiddleware.QueryParamValidator
	metrics      *infrastructure.BusinessMetrics
	otel         *customMiddleware.OTelMiddleware

	purgeStop chan struct{}
}

// ServiceContainer holds the application services.
type ServiceContainer struct {
	Inspection *services.InspectionService
	Defect     *services.DefectService
	Report     *services.ReportService
	Mapping    *services.MappingService
	User       *services.UserService
	Hierarchy  *services.HierarchyService
	Health     *services.HealthService
}

// NewApplication builds the full application from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	paths.LogPathResolution()

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		purgeStop:     make(chan struct{}),
	}

	if err := app.initializeServices(paths); err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initializeServices(paths *config.Paths) error {
	st, err := store.Open(a.Config.Database.Path, a.Config.Database.BusyTimeout, a.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.Store = st

	if err := a.ensureAdminAccount(context.Background()); err != nil {
		return err
	}
	if err := a.ensureDefaultMappings(context.Background()); err != nil {
		return err
	}

	a.AuthManager = auth.NewManager(st, a.Logger, a.Config.Security.SessionTTL)
	a.errorHandler = apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	a.validation = customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler)
	a.queryParams = customMiddleware.NewQueryParamValidator(a.Logger, a.errorHandler)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("create otel middleware: %w", err)
	}
	a.otel = otelMiddleware
	a.metrics = otelMiddleware.Metrics()

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.Hub = hub

	drive, err := drivesync.New(context.Background(), a.Config.Drive, a.Logger)
	if err != nil {
		// The platform works without the mirror; report generation
		// simply skips the upload.
		a.Logger.Warn("drive mirror unavailable", slog.String("error", err.Error()))
	}
	a.Drive = drive

	inspection := services.NewInspectionService(st, paths, a.metrics, a.Logger)
	queue := jobs.NewQueue(jobWorkers, inspection.Executor(), hub, a.Logger)
	inspection.SetQueue(queue)
	queue.Start(context.Background())
	a.JobQueue = queue

	a.Services = &ServiceContainer{
		Inspection: inspection,
		Defect:     services.NewDefectService(st, hub, a.Logger),
		Report:     services.NewReportService(st, paths, drive, hub, a.metrics, a.Logger),
		Mapping:    services.NewMappingService(st, a.Logger),
		User:       services.NewUserService(st, a.Logger),
		Hierarchy:  services.NewHierarchyService(st, a.Logger),
		Health:     services.NewHealthService(st, hub, paths, a.Logger),
	}
	return nil
}

// ensureAdminAccount seeds the initial administrator when the user
// table is empty. The password comes from SITEPULSE_ADMIN_PASSWORD or
// is generated and logged once.
func (a *Application) ensureAdminAccount(ctx context.Context) error {
	users, err := a.Store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	password := os.Getenv("SITEPULSE_ADMIN_PASSWORD")
	generated := false
	if password == "" {
		buf := make([]byte, 12)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate admin password: %w", err)
		}
		password = hex.EncodeToString(buf)
		generated = true
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	err = a.Store.CreateUser(ctx, domain.User{
		Username: "admin",
		FullName: "Administrator",
		Email:    "admin@localhost",
		Role:     domain.RoleAdmin,
		IsActive: true,
	}, hash)
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}

	if generated {
		// Printed to stdout, not the structured log, so it does not end
		// up in shipped log files.
		fmt.Printf("Initial admin account created.\n  username: admin\n  password: %s\nChange it after first login.\n", password)
	}
	a.Logger.Info("seeded initial admin account", slog.Bool("generated_password", generated))
	return nil
}

// defaultMappings is the built-in starter trade-mapping set, loaded on
// first start so uploads classify to trades before anyone maintains the
// mapping table.
var defaultMappings = []domain.TradeMapping{
	{Room: "Apartment Entry Door", Component: "Door Handle", Trade: "Doors"},
	{Room: "Apartment Entry Door", Component: "Door Locks and Keys", Trade: "Doors"},
	{Room: "Apartment Entry Door", Component: "Paint", Trade: "Painting"},
	{Room: "Balcony", Component: "Balustrade", Trade: "Carpentry & Joinery"},
	{Room: "Balcony", Component: "Drainage Point", Trade: "Plumbing"},
	{Room: "Bathroom", Component: "Bathtub (if applicable)", Trade: "Plumbing"},
	{Room: "Bathroom", Component: "Ceiling", Trade: "Painting"},
	{Room: "Bathroom", Component: "Exhaust Fan", Trade: "Electrical"},
	{Room: "Bathroom", Component: "Tiles", Trade: "Flooring - Tiles"},
	{Room: "Kitchen Area", Component: "Cabinets", Trade: "Carpentry & Joinery"},
	{Room: "Kitchen Area", Component: "Kitchen Sink", Trade: "Plumbing"},
	{Room: "Kitchen Area", Component: "Stovetop and Oven", Trade: "Appliances"},
	{Room: "Bedroom", Component: "Carpets", Trade: "Flooring - Carpets"},
	{Room: "Bedroom", Component: "Windows", Trade: "Windows"},
	{Room: "Bedroom", Component: "Light Fixtures", Trade: "Electrical"},
}

// ensureDefaultMappings seeds the starter mapping set when the table
// has no active rows.
func (a *Application) ensureDefaultMappings(ctx context.Context) error {
	existing, err := a.Store.ActiveMappings(ctx)
	if err != nil {
		return fmt.Errorf("list trade mappings: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	if err := a.Store.ReplaceMappings(ctx, defaultMappings, "system"); err != nil {
		return fmt.Errorf("seed trade mappings: %w", err)
	}
	a.Logger.Info("seeded default trade mappings", slog.Int("count", len(defaultMappings)))
	return nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// Health endpoints stay outside the heavy middleware so probes are
	// cheap and never rate limited.
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger, a.errorHandler)
	r.Get("/healthz", healthHandler.Health)
	r.Get("/readyz", healthHandler.Ready)
	r.Get("/version", healthHandler.Version)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	// The WebSocket route must not run behind middleware that wraps the
	// ResponseWriter, or the upgrade hijack fails.
	wsHandler := handlers.NewWSHandler(a.Hub, a.Config.Security.AllowedOrigins, a.Config.WebSocket, a.Logger)
	r.With(
		customMiddleware.WebSocketTrace(a.Logger),
		customMiddleware.Authenticate(a.AuthManager, a.Logger),
	).Get("/ws", wsHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(a.otel.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.StripSlashes)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.corsConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	authHandler := handlers.NewAuthHandler(a.AuthManager, a.validation, a.Config.Security.SecureCookies, a.Logger, a.errorHandler)
	inspectionHandler := handlers.NewInspectionHandler(a.Services.Inspection, a.queryParams, a.Logger, a.errorHandler)
	defectHandler := handlers.NewDefectHandler(a.Services.Defect, a.validation, a.Logger, a.errorHandler)
	reportHandler := handlers.NewReportHandler(a.Services.Report, a.Logger, a.errorHandler)
	mappingHandler := handlers.NewMappingHandler(a.Services.Mapping, a.validation, a.Logger, a.errorHandler)
	userHandler := handlers.NewUserHandler(a.Services.User, a.validation, a.queryParams, a.Logger, a.errorHandler)
	hierarchyHandler := handlers.NewHierarchyHandler(a.Services.Hierarchy, a.validation, a.Logger, a.errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(a.validation.ValidateRequest)

		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Authenticate(a.AuthManager, a.Logger))

			r.Get("/auth/me", authHandler.Me)
			r.Mount("/inspections", inspectionHandler.Routes())
			r.Mount("/defects", defectHandler.Routes())
			r.Mount("/reports", reportHandler.Routes())
			r.Mount("/mappings", mappingHandler.Routes())
			r.Mount("/users", userHandler.Routes())

			r.Mount("/", hierarchyHandler.Routes())
			r.With(customMiddleware.RequireAnyPermission(a.Logger,
				auth.PermBuildingsEditAll, auth.PermBuildingsEditAssigned)).
				Mount("/admin", hierarchyHandler.AdminRoutes())
		})
	})
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the HTTP server and background tickers.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("version", contracts.Version))

	go a.sessionPurgeLoop()
	go a.jobPruneLoop()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop shuts the application down gracefully.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	close(a.purgeStop)

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := a.JobQueue.Stop(jobStopTimeout); err != nil {
		a.Logger.ErrorContext(ctx, "job queue stop timed out", slog.String("error", err.Error()))
	}
	a.Hub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "otel shutdown failed", slog.String("error", err.Error()))
		}
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "store close failed", slog.String("error", err.Error()))
	}
	infrastructure.CloseLogFile()

	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

// sessionPurgeLoop deletes expired sessions on a fixed cadence.
func (a *Application) sessionPurgeLoop() {
	ticker := time.NewTicker(sessionPurgePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.AuthManager.PurgeExpired(context.Background())
		case <-a.purgeStop:
			return
		}
	}
}

// jobPruneLoop drops finished jobs older than the retention window.
func (a *Application) jobPruneLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := a.JobQueue.Prune(jobRetention); n > 0 {
				a.Logger.Debug("pruned finished jobs", slog.Int("count", n))
			}
		case <-a.purgeStop:
			return
		}
	}
}
