package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"readquest/internal/config"
	"readquest/internal/database"
	"readquest/internal/handlers"
	"readquest/internal/repository"
	"readquest/internal/security"
	"readquest/internal/service"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Debug)
	defer logger.Sync()
	handlers.SetLogger(logger)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("database connection established", zap.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("migrations completed")

	// Repositories
	studentRepo := repository.NewStudentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	programRepo := repository.NewProgramRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// Services
	authService := service.NewAuthService(operatorRepo, cfg.JWTSecret, cfg.TokenDuration, logger)
	maintenanceService := service.NewBattleMaintenanceService(familyRepo, studentRepo, cfg.RepairConcurrency, logger)
	streakService := service.NewStreakService(studentRepo, sessionRepo, location, cfg.CompletionThreshold, cfg.RepairConcurrency, logger)
	programService := service.NewProgramService(programRepo, studentRepo, cfg.ActiveStartDate, location, cfg.RepairConcurrency, logger)
	mailer, err := service.NewReportMailer(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.ReportRecipients, logger)
	if err != nil {
		logger.Fatal("failed to initialize report mailer", zap.Error(err))
	}

	// Bootstrap state
	if created, err := programRepo.EnsureInitialized(defaultAcademicYear(time.Now().In(location))); err != nil {
		logger.Fatal("failed to initialize program config", zap.Error(err))
	} else if created {
		logger.Info("program config bootstrapped")
	}
	if err := authService.EnsureBootstrapOperator(cfg.BootstrapEmail, cfg.BootstrapPassword, "Bootstrap Operator"); err != nil {
		logger.Fatal("failed to seed bootstrap operator", zap.Error(err))
	}

	// Handlers
	loginLimiter := security.NewRateLimiter(5, time.Minute)
	middleware := handlers.NewMiddleware(authService, loginLimiter, logger)
	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(maintenanceService, streakService, programService, mailer)

	// Routes
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", middleware.RateLimitLogin(authHandler.Login))

	mux.HandleFunc("POST /api/admin/battles/scan", middleware.RequireOperator(adminHandler.ScanBattles))
	mux.HandleFunc("POST /api/admin/battles/repair", middleware.RequireOperator(adminHandler.RepairBattles))
	mux.HandleFunc("POST /api/admin/battles/repair-script", middleware.RequireOperator(adminHandler.RepairScript))

	mux.HandleFunc("POST /api/admin/students/{id}/sessions", middleware.RequireOperator(adminHandler.LogSession))
	mux.HandleFunc("POST /api/admin/students/{id}/recompute-streak", middleware.RequireOperator(adminHandler.RecomputeStreak))
	mux.HandleFunc("POST /api/admin/students/migrate-streaks", middleware.RequireOperator(adminHandler.MigrateStreaks))

	mux.HandleFunc("GET /api/admin/phase", middleware.RequireOperator(adminHandler.GetPhase))
	mux.HandleFunc("POST /api/admin/phase/transition", middleware.RequireOperator(adminHandler.TransitionPhase))
	mux.HandleFunc("POST /api/admin/year/rollover", middleware.RequireOperator(adminHandler.RolloverYear))

	handler := middleware.LogRequests(mux)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Daily check for the scheduled TEACHER_SELECTION -> ACTIVE move
	scheduler := cron.New(cron.WithLocation(location))
	if _, err := scheduler.AddFunc("5 0 * * *", func() {
		if err := programService.CheckScheduledTransition(time.Now()); err != nil {
			logger.Error("scheduled phase check failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("failed to register phase schedule", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

// defaultAcademicYear derives the "YYYY-YY" school year for a fresh
// install; the year rolls in August
func defaultAcademicYear(now time.Time) string {
	start := now.Year()
	if now.Month() < time.August {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}
