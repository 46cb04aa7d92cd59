package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lab-asset-api/api/swagger"
	"github.com/noah-isme/lab-asset-api/internal/handler"
	"github.com/noah-isme/lab-asset-api/internal/identity"
	internalmiddleware "github.com/noah-isme/lab-asset-api/internal/middleware"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/internal/repository"
	"github.com/noah-isme/lab-asset-api/internal/service"
	"github.com/noah-isme/lab-asset-api/pkg/cache"
	"github.com/noah-isme/lab-asset-api/pkg/config"
	"github.com/noah-isme/lab-asset-api/pkg/database"
	"github.com/noah-isme/lab-asset-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lab-asset-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lab-asset-api/pkg/middleware/requestid"
)

// @title Lab Asset API
// @version 1.0.0
// @description Laboratory equipment ledger: registration, transfers, maintenance and depreciation.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type handlers struct {
	devices      *handler.DeviceHandler
	transfers    *handler.TransferHandler
	maintenance  *handler.MaintenanceHandler
	depreciation *handler.DepreciationHandler
	audit        *handler.AuditHandler
	hierarchy    *handler.HierarchyHandler
	metrics      *handler.MetricsHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc, closeCache := newCacheService(cfg, metricsSvc, logr)
	defer closeCache()

	h := buildHandlers(cfg, db, cacheSvc, metricsSvc, logr)
	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	registerRoutes(r, cfg, h, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// newCacheService returns a disabled cache when Redis is off or unreachable;
// the API keeps serving straight from Postgres in that case.
func newCacheService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, func()) {
	noop := func() {}
	if !cfg.Redis.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Redis.PublicCacheTTL, logr, false), noop
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Redis.PublicCacheTTL, logr, false), noop
	}
	repo := repository.NewCacheRepository(client, logr)
	closeRepo := func() {
		if err := repo.Close(); err != nil {
			logr.Warn("closing redis failed", zap.Error(err))
		}
	}
	return service.NewCacheService(repo, metrics, cfg.Redis.PublicCacheTTL, logr, true), closeRepo
}

func buildHandlers(cfg *config.Config, db *sqlx.DB, cacheSvc *service.CacheService, metricsSvc *service.MetricsService, logr *zap.Logger) handlers {
	validate := validator.New()

	deviceRepo := repository.NewDeviceRepository(db)
	hierarchyRepo := repository.NewHierarchyRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)
	depreciationRepo := repository.NewDepreciationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	ids := identity.NewGenerator(cfg.Identity.MaxAttempts)
	codes := identity.NewCodeCache(cfg.Identity.FacultyCacheSize, cfg.Identity.FacultyCacheTTL)
	metricsSvc.ObserveCodeCache(codes.Stats)

	deviceSvc := service.NewDeviceService(db, deviceRepo, hierarchyRepo, maintenanceRepo, depreciationRepo, auditRepo,
		ids, codes, cacheSvc, metricsSvc, validate, logr, service.DeviceServiceConfig{PublicCacheTTL: cfg.Redis.PublicCacheTTL})
	transferSvc := service.NewTransferService(db, transferRepo, deviceRepo, hierarchyRepo, auditRepo, cacheSvc, metricsSvc, validate, logr)
	maintenanceSvc := service.NewMaintenanceService(db, maintenanceRepo, deviceRepo, userRepo, auditRepo, cacheSvc, metricsSvc, validate, logr)
	depreciationSvc := service.NewDepreciationService(db, depreciationRepo, deviceRepo, auditRepo, metricsSvc, logr, cfg.Depreciation.EndOfLifeWindow)

	return handlers{
		devices:      handler.NewDeviceHandler(deviceSvc),
		transfers:    handler.NewTransferHandler(transferSvc),
		maintenance:  handler.NewMaintenanceHandler(maintenanceSvc),
		depreciation: handler.NewDepreciationHandler(depreciationSvc),
		audit:        handler.NewAuditHandler(service.NewAuditService(auditRepo)),
		hierarchy:    handler.NewHierarchyHandler(service.NewHierarchyService(hierarchyRepo)),
		metrics:      handler.NewMetricsHandler(metricsSvc, db),
	}
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h handlers, auth internalmiddleware.TokenValidator) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/public/devices/:token", h.devices.Public)

	hierarchy := api.Group("/hierarchy")
	hierarchy.GET("/faculties", h.hierarchy.Faculties)
	hierarchy.GET("/faculties/:id/departments", h.hierarchy.Departments)
	hierarchy.GET("/departments/:id/laboratories", h.hierarchy.Laboratories)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(auth))

	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	managers := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleUnitManager)
	technicians := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleUnitManager, models.RoleTechnician)

	devices := secured.Group("/devices")
	devices.POST("", admin, h.devices.Create)
	devices.GET("", h.devices.List)
	devices.GET("/stats", h.devices.Stats)
	devices.GET("/code/:deviceId", h.devices.GetByCode)
	devices.GET("/:id", h.devices.Get)
	devices.PATCH("/:id", admin, h.devices.Update)
	devices.GET("/:id/transfers", h.transfers.ListByDevice)
	devices.GET("/:id/maintenance-history", h.maintenance.History)
	devices.GET("/:id/depreciation", h.depreciation.Latest)
	devices.GET("/:id/depreciation/history", h.depreciation.History)
	devices.POST("/:id/depreciation", admin, h.depreciation.Calculate)

	transfers := secured.Group("/transfers")
	transfers.POST("", managers, h.transfers.Create)
	transfers.GET("", h.transfers.List)
	transfers.GET("/:id", h.transfers.Get)
	transfers.POST("/:id/approve", managers, h.transfers.Approve)

	maintenance := secured.Group("/maintenance")
	maintenance.POST("", h.maintenance.Create)
	maintenance.GET("", h.maintenance.List)
	maintenance.GET("/:id", h.maintenance.Get)
	maintenance.POST("/:id/approve", managers, h.maintenance.Approve)
	maintenance.POST("/:id/start", technicians, h.maintenance.Start)
	maintenance.POST("/:id/complete", technicians, h.maintenance.Complete)
	maintenance.POST("/:id/cancel", managers, h.maintenance.Cancel)

	secured.GET("/depreciation/end-of-life", managers, h.depreciation.EndOfLife)
	secured.GET("/audit-logs", admin, h.audit.List)
}
