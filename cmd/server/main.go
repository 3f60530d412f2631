package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"authzd/internal/authz/audit"
	"authzd/internal/authz/catalog"
	"authzd/internal/authz/clock"
	"authzd/internal/authz/config"
	"authzd/internal/authz/handler"
	"authzd/internal/authz/manager"
	"authzd/internal/authz/policy"
	"authzd/internal/authz/repository"
	"authzd/internal/authz/router"
	"authzd/internal/authz/util"
)

func main() {
	// 0. Init Logger
	util.InitLogger()
	logger := util.GetLogger()

	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Init MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}

	// 3. Init Layers
	db := client.Database(cfg.DBName)
	roleRepo := repository.NewMongoRoleRepository(db, cfg.RoleAssignmentsCollection)
	historyRepo := repository.NewMongoHistoryRepository(db, cfg.PermissionHistoryCollection)
	tempRepo := repository.NewMongoTemporaryRepository(db, cfg.TemporaryPermissionsCollection)
	requestRepo := repository.NewMongoRequestRepository(db, cfg.PermissionRequestsCollection)
	auditRepo := repository.NewMongoAuditRepository(db, cfg.AuditEventsCollection)

	// Ensure Indexes (non-fatal: the engine works without them, slower)
	indexCtx := context.Background()
	if err := roleRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure role assignment indexes", "error", err)
	}
	if err := historyRepo.EnsureHistoryIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure history indexes", "error", err)
	}
	if err := tempRepo.EnsureTemporaryIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure temporary permission indexes", "error", err)
	}
	if err := requestRepo.EnsureRequestIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure permission request indexes", "error", err)
	}
	if err := auditRepo.EnsureAuditIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure audit indexes", "error", err)
	}

	cat, err := catalog.New()
	if err != nil {
		logger.Error("Failed to load role catalog", "error", err)
		os.Exit(1)
	}

	clk := clock.Real{}
	auditLogger := audit.NewLogger(auditRepo, clk, logger)
	store := policy.NewStore(cat, roleRepo, historyRepo, auditLogger, clk, logger)
	temp := policy.NewTemporaryManager(tempRepo, historyRepo, auditLogger, clk, logger)
	mgr := manager.New(cat, store, temp, requestRepo, auditLogger, clk, logger, cfg.PendingRequestTTL)

	h := handler.NewAuthzHandler(mgr, auditLogger)

	// 4. Init Echo & Routes
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	router.RegisterRoutes(e, h, mgr)

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("shutting down the server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server Shutdown Failed", "error", err)
	}

	if err := client.Disconnect(ctx); err != nil {
		logger.Error("Failed to disconnect DB", "error", err)
	}

	logger.Info("Server exited properly")
}
