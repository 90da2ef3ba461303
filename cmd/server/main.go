package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/database"
	"github.com/stemsi/codexam/internal/examclock"
	"github.com/stemsi/codexam/internal/handler"
	"github.com/stemsi/codexam/internal/judge"
	"github.com/stemsi/codexam/internal/logger"
	"github.com/stemsi/codexam/internal/metrics"
	"github.com/stemsi/codexam/internal/middleware"
	"github.com/stemsi/codexam/internal/repository"
	"github.com/stemsi/codexam/internal/router"
	"github.com/stemsi/codexam/internal/service"
	"github.com/stemsi/codexam/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("exam_timezone", cfg.ExamTimezone.String()).
		Msg("Starting codexam server")

	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewCachedExamRepository(repository.NewExamRepository(pool), rdb, cfg.ExamCacheTTL, log)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	submitLocker := repository.NewSubmitLocker(rdb, cfg.SubmitLockTTL)

	judgeClient := judge.NewClient(cfg.Judge0, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	sessionService := service.NewExamSessionService(service.ExamSessionDeps{
		Students:  studentRepo,
		Exams:     examRepo,
		Questions: questionRepo,
		Attempts:  attemptRepo,
		Answers:   answerRepo,
		Results:   resultRepo,
		Locker:    submitLocker,
		Runner:    judgeClient,
		Clock:     examclock.SystemClock{},
		Location:  cfg.ExamTimezone,
	}, log)
	questionService := service.NewExamQuestionService(sessionService, questionRepo, answerRepo)
	adminService := service.NewExamAdminService(examRepo, questionRepo, resultRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentExam:  handler.NewStudentExamHandler(sessionService),
		ExamQuestion: handler.NewExamQuestionHandler(questionService),
		AdminExam:    handler.NewAdminExamHandler(adminService),
		System:       handler.NewSystemHandler(pool, rdb, log),
	}

	sandboxLimiter := middleware.NewRateLimiter(cfg.RunCodeRatePerMinute, cfg.RunCodeBurst)
	stopCleanup := make(chan struct{})
	go sandboxLimiter.RunCleanup(stopCleanup)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, sandboxLimiter, cfg)

	// WriteTimeout must exceed the judge timeout. The system metrics stream
	// moves its own write deadline forward on every event.
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Judge0.Timeout + 15*time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	close(stopCleanup)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Judge0.Timeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
