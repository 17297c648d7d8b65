package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/aozora-juku/lesson-match-api/api/swagger"
	"github.com/aozora-juku/lesson-match-api/internal/handler"
	"github.com/aozora-juku/lesson-match-api/internal/middleware"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	"github.com/aozora-juku/lesson-match-api/internal/repository"
	"github.com/aozora-juku/lesson-match-api/internal/service"
	"github.com/aozora-juku/lesson-match-api/pkg/cache"
	"github.com/aozora-juku/lesson-match-api/pkg/config"
	"github.com/aozora-juku/lesson-match-api/pkg/database"
	"github.com/aozora-juku/lesson-match-api/pkg/logger"
	"github.com/aozora-juku/lesson-match-api/pkg/mail"
	corsmiddleware "github.com/aozora-juku/lesson-match-api/pkg/middleware/cors"
	reqidmiddleware "github.com/aozora-juku/lesson-match-api/pkg/middleware/requestid"
)

// @title Lesson Match API
// @version 0.1.0
// @description Time-window slot matching and scheduling proposals for course lessons
// @BasePath /api/v1
// @schemes http

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, window caching disabled", "error", err)
		redisClient = nil
	}

	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	windowRepo := repository.NewWindowRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var sender mail.Sender
	if cfg.Mail.Enabled {
		sender = mail.NewSendGrid(cfg.Mail, logr)
	} else {
		sender = mail.NewLogSender(logr)
	}
	notifier := service.NewNotifier(sender, cfg.Mail, logr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier.Start(ctx)
	defer notifier.Stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	windowSvc := service.NewWindowService(windowRepo, courseRepo, cacheRepo, validate, logr,
		cfg.Matching.WindowCacheTTL, cfg.Matching.SlotHorizonDays)
	proposalSvc := service.NewProposalService(courseRepo, windowRepo, applicationRepo, metrics, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, courseRepo, studentRepo, notifier, validate, logr)
	matchSvc := service.NewMatchService(matchRepo, applicationRepo, courseRepo, studentRepo, db, notifier, metrics, validate, logr)
	autoMatchSvc := service.NewAutoMatchService(matchRepo, applicationRepo, availabilityRepo, courseRepo, db, metrics, validate, logr,
		cfg.Matching.AutoMatchCapacity)

	windowHandler := handler.NewWindowHandler(windowSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	proposalHandler := handler.NewProposalHandler(proposalSvc)
	matchHandler := handler.NewMatchHandler(matchSvc)
	autoMatchHandler := handler.NewAutoMatchHandler(autoMatchSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api.GET("/courses/:id/windows", windowHandler.List)
	api.GET("/courses/:id/slots", windowHandler.Slots)
	api.POST("/courses/:id/windows", staffOnly, windowHandler.Create)
	api.DELETE("/windows/:id", staffOnly, windowHandler.Delete)

	api.POST("/courses/:id/applications", applicationHandler.Apply)
	api.DELETE("/applications/:id", applicationHandler.Cancel)

	api.POST("/courses/:id/proposals", adminOnly, proposalHandler.Generate)

	api.GET("/courses/:id/matches", staffOnly, matchHandler.List)
	api.POST("/courses/:id/matches", adminOnly, matchHandler.Confirm)
	api.POST("/matches/:id/students", adminOnly, matchHandler.AddStudent)
	api.DELETE("/matches/:id/students/:studentId", adminOnly, matchHandler.RemoveStudent)
	api.DELETE("/matches/:id", adminOnly, matchHandler.Delete)
	api.PATCH("/matches/:id/time", adminOnly, matchHandler.UpdateTime)

	api.POST("/courses/:id/auto-match", adminOnly, autoMatchHandler.Run)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
