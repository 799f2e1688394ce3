package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
)

// lifecycle-sweeper periodically touches courses whose start or end date has
// been reached so that idle courses converge without a request.
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
	logr = logr.Named("sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var cacheRepo service.CacheRepository
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, cache invalidation skipped", zap.Error(err))
	} else {
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, nil, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	courseRepo := repository.NewCourseRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	courses := service.NewCourseService(
		db,
		courseRepo,
		scheduleRepo,
		repository.NewContractRepository(db),
		repository.NewStudentRepository(db),
		notifications,
		cacheSvc,
		cfg.Location(),
		nil,
		logr,
	)

	batch := cfg.Lifecycle.BatchSize
	runner := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.Recover(cronLogger{logr.Sugar()}), cron.SkipIfStillRunning(cronLogger{logr.Sugar()})),
	)
	if _, err := runner.AddFunc(cfg.Lifecycle.SweepSchedule, func() {
		sweep(ctx, courses, batch, logr)
	}); err != nil {
		logr.Fatal("invalid sweep schedule", zap.String("schedule", cfg.Lifecycle.SweepSchedule), zap.Error(err))
	}

	logr.Info("sweeper started", zap.String("schedule", cfg.Lifecycle.SweepSchedule), zap.Int("batch", batch))
	sweep(ctx, courses, batch, logr)
	runner.Start()

	<-ctx.Done()
	<-runner.Stop().Done()
	logr.Info("sweeper stopped")
}

type sweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

func sweep(ctx context.Context, courses sweeper, batch int, logr *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	processed, err := courses.Sweep(runCtx, batch)
	if err != nil {
		logr.Error("sweep failed", zap.Int("processed", processed), zap.Error(err))
		return
	}
	logr.Info("sweep finished", zap.Int("processed", processed), zap.Duration("took", time.Since(start)))
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
