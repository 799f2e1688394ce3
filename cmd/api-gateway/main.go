package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutorhub-api/api/swagger"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	internalmiddleware "github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/requestid"
)

// @title TutorHub API
// @version 1.0.0
// @description Course scheduling, enrollment and contract management for a tutoring marketplace.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cache disabled", zap.Error(err))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	app := wire(cfg, db, redisClient, metrics, logr)
	app.notifications.Start(ctx)
	defer app.notifications.Stop()

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), app)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type application struct {
	tokens        *service.TokenService
	notifications *service.NotificationService
	courses       *handler.CourseHandler
	schedules     *handler.ScheduleHandler
	enrollments   *handler.EnrollmentHandler
	payments      *handler.PaymentHandler
	contracts     *handler.ContractHandler
	complaints    *handler.ComplaintHandler
	notifyHandler *handler.NotificationHandler
}

func wire(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, metrics *service.MetricsService, logr *zap.Logger) *application {
	loc := cfg.Location()
	validate := validator.New()

	courseRepo := repository.NewCourseRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	contractRepo := repository.NewContractRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	tutorRepo := repository.NewTutorRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr.Named("notifications"))

	courseSvc := service.NewCourseService(db, courseRepo, scheduleRepo, contractRepo, studentRepo, notificationSvc, cacheSvc, loc, validate, logr.Named("courses"))
	scheduleSvc := service.NewScheduleService(scheduleRepo, courseRepo, cacheSvc, metrics, loc, validate, logr.Named("schedules"))
	enrollmentSvc := service.NewEnrollmentService(db, enrollmentRepo, studentRepo, tutorRepo, courseRepo, scheduleRepo, contractRepo, notificationSvc, cacheSvc, metrics, logr.Named("enrollments"), service.EnrollmentConfig{
		ContractTerms: cfg.Enrollment.ContractTerms,
		Location:      loc,
	})
	paymentSvc := service.NewPaymentService(db, paymentRepo, enrollmentRepo, validate, logr.Named("payments"))
	contractSvc := service.NewContractService(contractRepo, nil, loc, logr.Named("contracts"))
	complaintSvc := service.NewComplaintService(db, complaintRepo, contractRepo, courseRepo, scheduleRepo, studentRepo, notificationSvc, cacheSvc, loc, validate, logr.Named("complaints"))
	exportSvc := service.NewExportService(courseRepo, enrollmentRepo, logr.Named("export"), nil, nil, nil)

	return &application{
		tokens:        service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
		notifications: notificationSvc,
		courses:       handler.NewCourseHandler(courseSvc),
		schedules:     handler.NewScheduleHandler(scheduleSvc),
		enrollments:   handler.NewEnrollmentHandler(enrollmentSvc, exportSvc),
		payments:      handler.NewPaymentHandler(paymentSvc),
		contracts:     handler.NewContractHandler(contractSvc),
		complaints:    handler.NewComplaintHandler(complaintSvc),
		notifyHandler: handler.NewNotificationHandler(notificationSvc),
	}
}

func registerRoutes(api *gin.RouterGroup, app *application) {
	tutor := internalmiddleware.RequireRoles(models.RoleTutor)
	tutorOrAdmin := internalmiddleware.RequireRoles(models.RoleTutor, models.RoleAdmin)
	student := internalmiddleware.RequireRoles(models.RoleStudent)
	admin := internalmiddleware.RequireRoles(models.RoleAdmin)

	secured := api.Group("", internalmiddleware.JWT(app.tokens))

	secured.GET("/courses", app.courses.List)
	secured.GET("/courses/:id", app.courses.Get)
	secured.POST("/courses", tutor, app.courses.Create)
	secured.PUT("/courses/:id", tutorOrAdmin, app.courses.Update)
	secured.POST("/courses/:id/cancel", tutorOrAdmin, app.courses.Cancel)
	secured.POST("/courses/:id/reconcile", admin, app.courses.Reconcile)
	secured.DELETE("/courses", tutorOrAdmin, app.courses.Delete)
	secured.GET("/me/courses", app.courses.Mine)

	secured.GET("/schedules", app.schedules.List)
	secured.GET("/schedules/:id", app.schedules.Get)
	secured.GET("/courses/:id/schedules", app.schedules.ListByCourse)
	secured.GET("/tutors/:id/schedules", app.schedules.ListByTutor)
	secured.POST("/schedules", tutor, app.schedules.Create)
	secured.PUT("/schedules/:id", tutor, app.schedules.Update)
	secured.DELETE("/schedules", tutorOrAdmin, app.schedules.Delete)

	secured.POST("/courses/:id/enrollments", student, app.enrollments.Enroll)
	secured.DELETE("/courses/:id/enrollments", student, app.enrollments.Unenroll)
	secured.GET("/courses/:id/enrollments", tutorOrAdmin, app.enrollments.Roster)
	secured.GET("/courses/:id/roster", tutorOrAdmin, app.enrollments.ExportRoster)
	secured.GET("/enrollments/:id", app.enrollments.Get)

	secured.POST("/enrollments/:id/payments", admin, app.payments.Confirm)
	secured.GET("/enrollments/:id/payments", tutorOrAdmin, app.payments.List)

	secured.GET("/me/contracts", app.contracts.Mine)
	secured.GET("/contracts/:id", app.contracts.Get)
	secured.GET("/contracts/:id/pdf", app.contracts.ExportPDF)

	secured.POST("/complaints", app.complaints.File)
	secured.GET("/complaints", admin, app.complaints.List)
	secured.GET("/complaints/:id", app.complaints.Get)
	secured.POST("/complaints/:id/process", admin, app.complaints.Process)

	secured.GET("/notifications", app.notifyHandler.List)
	secured.POST("/notifications/:id/read", app.notifyHandler.MarkRead)
}
