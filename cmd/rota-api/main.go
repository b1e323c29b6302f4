package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/medrota/rota-api/api/swagger"
	"github.com/medrota/rota-api/internal/handler"
	"github.com/medrota/rota-api/internal/middleware"
	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/internal/repository"
	"github.com/medrota/rota-api/internal/service"
	"github.com/medrota/rota-api/pkg/cache"
	"github.com/medrota/rota-api/pkg/config"
	"github.com/medrota/rota-api/pkg/database"
	"github.com/medrota/rota-api/pkg/logger"
	corsmiddleware "github.com/medrota/rota-api/pkg/middleware/cors"
	reqidmiddleware "github.com/medrota/rota-api/pkg/middleware/requestid"
)

// @title MedRota API
// @version 1.0.0
// @description Residency rotation scheduling: duty-hour validation, swap workflow, calendar feeds
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, calendar feeds render uncached", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	residentRepo := repository.NewResidentRepository(db)
	rotationRepo := repository.NewRotationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	swapRepo := repository.NewSwapRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	dayOffRepo := repository.NewDayOffRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	callRepo := repository.NewCallRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	rules := service.RulesFromConfig(cfg.Program)
	dutyHourSvc := service.NewDutyHourService(assignmentRepo, rotationRepo, rules, logr)
	scheduleSvc := service.NewScheduleService(assignmentRepo, residentRepo, rotationRepo, dutyHourSvc, auditRepo, logr)
	swapSvc := service.NewSwapService(swapRepo, residentRepo, assignmentRepo, rotationRepo, auditRepo, logr)
	importSvc := service.NewImportService(assignmentRepo, residentRepo, rotationRepo, dutyHourSvc, auditRepo, cfg.Imports, logr)
	calendarSvc := service.NewCalendarService(residentRepo, assignmentRepo, callRepo, dayOffRepo, rotationRepo, redisClient, metricsSvc, cfg.Calendar, logr)
	dayOffSvc := service.NewDayOffService(dayOffRepo, residentRepo, logr)
	authSvc := service.NewAuthService(adminRepo, auditRepo, cfg.JWT, logr)
	residentSvc := service.NewResidentService(residentRepo, validate, logr)
	rotationSvc := service.NewRotationService(rotationRepo, logr)
	exportSvc := service.NewExportService(residentRepo, assignmentRepo, rotationRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	swapHandler := handler.NewSwapHandler(swapSvc, metricsSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, importSvc, exportSvc, metricsSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	dayOffHandler := handler.NewDayOffHandler(dayOffSvc)
	residentHandler := handler.NewResidentHandler(residentSvc)
	rotationHandler := handler.NewRotationHandler(rotationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	adminOnly := []gin.HandlerFunc{middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin)}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		if cfg.Calendar.Enabled {
			api.GET("/calendar/:token", calendarHandler.Feed)
		}

		api.GET("/residents", residentHandler.List)
		api.GET("/residents/:id", residentHandler.Get)
		api.POST("/residents", append(adminOnly, residentHandler.Create)...)

		api.GET("/rotations", rotationHandler.List)
		api.GET("/rotations/:id", rotationHandler.Get)
		api.POST("/rotations", append(adminOnly, rotationHandler.Create)...)

		api.GET("/schedule", scheduleHandler.List)
		api.POST("/schedule/validate", scheduleHandler.Validate)
		api.PUT("/schedule/assignments", append(adminOnly, scheduleHandler.Upsert)...)
		api.DELETE("/schedule/assignments/:id", append(adminOnly, scheduleHandler.Delete)...)
		if cfg.Imports.Enabled {
			api.POST("/schedule/import", append(adminOnly, scheduleHandler.Import)...)
		}
		api.GET("/schedule/export", append(adminOnly, scheduleHandler.Export)...)

		if cfg.Swaps.Enabled {
			api.POST("/swaps", swapHandler.Create)
			api.GET("/swaps", swapHandler.List)
			api.GET("/swaps/eligible-targets", swapHandler.EligibleTargets)
			api.GET("/swaps/:id", swapHandler.Get)
			api.POST("/swaps/:id/confirm", swapHandler.Confirm)
			api.POST("/swaps/:id/decline", swapHandler.Decline)
			api.POST("/swaps/:id/cancel", swapHandler.Cancel)
			api.POST("/swaps/:id/approve", append(adminOnly, swapHandler.Approve)...)
			api.POST("/swaps/:id/reject", append(adminOnly, swapHandler.Reject)...)
		}

		api.GET("/days-off", dayOffHandler.List)
		api.GET("/days-off/types", dayOffHandler.ListTypes)
		api.POST("/days-off", dayOffHandler.Create)
		api.POST("/days-off/:id/approve", append(adminOnly, dayOffHandler.Approve)...)
		api.DELETE("/days-off/:id", append(adminOnly, dayOffHandler.Delete)...)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
