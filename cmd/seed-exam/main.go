package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/database"
	"github.com/stemsi/codexam/internal/logger"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/repository"
	"github.com/stemsi/codexam/internal/service"
)

func main() {
	var (
		migrationDir string
		orgName      string
		branch       string
		semester     int
		count        int
	)
	flag.StringVar(&migrationDir, "migrations", "", "Apply migrations from this directory first")
	flag.StringVar(&orgName, "org", "Demo University", "Organization name")
	flag.StringVar(&branch, "branch", "CSE", "Student and exam branch")
	flag.IntVar(&semester, "semester", 5, "Student and exam semester")
	flag.IntVar(&count, "students", 20, "Number of students to seed")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if migrationDir != "" {
		if err := database.MigrateUp(migrationDir, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	adminService := service.NewExamAdminService(
		repository.NewCachedExamRepository(examRepo, rdb, cfg.ExamCacheTTL, log),
		questionRepo,
		repository.NewResultRepository(pool),
		log,
	)
	authService := service.NewAuthService(cfg)

	orgID, err := studentRepo.EnsureOrganization(ctx, orgName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure organization")
	}
	fmt.Printf("=== Organization %q (id %d) ===\n", orgName, orgID)

	// ─── Students ─────────────────────────────────────────────────────
	var emails []string
	created := 0
	for i := 1; i <= count; i++ {
		s := &model.Student{
			Email:          fmt.Sprintf("student%02d@example.com", i),
			Name:           fmt.Sprintf("Student %02d", i),
			Branch:         branch,
			Semester:       semester,
			OrganizationID: orgID,
		}
		if err := studentRepo.Create(ctx, s); err != nil {
			if !errors.Is(err, repository.ErrDuplicateEmail) {
				log.Fatal().Err(err).Str("email", s.Email).Msg("Failed to create student")
			}
		} else {
			created++
		}
		emails = append(emails, s.Email)
	}
	fmt.Printf("Students: %d created, %d already present\n", created, count-created)

	// ─── Question bank ────────────────────────────────────────────────
	var mcqIDs []uuid.UUID
	for _, q := range sampleMCQs() {
		if err := questionRepo.CreateMCQ(ctx, q); err != nil {
			log.Fatal().Err(err).Msg("Failed to create MCQ question")
		}
		mcqIDs = append(mcqIDs, q.ID)
	}
	var codingIDs []uuid.UUID
	for _, q := range sampleCoding() {
		if err := questionRepo.CreateCoding(ctx, q); err != nil {
			log.Fatal().Err(err).Msg("Failed to create coding question")
		}
		codingIDs = append(codingIDs, q.ID)
	}

	// ─── Exam ─────────────────────────────────────────────────────────
	today := time.Now().In(cfg.ExamTimezone)
	exam := &model.Exam{
		Name:            "Programming Fundamentals " + today.Format("2006-01-02"),
		Status:          model.ExamStatusStarted,
		Enabled:         true,
		Duration:        "60",
		ScheduleDate:    time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
		Branch:          branch,
		Semester:        semester,
		PassingMarks:    25,
		DifficultyLevel: "Medium",
		OrganizationIDs: []int{orgID},
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	if _, err := adminService.AssignQuestions(ctx, exam.ID, model.QuestionKindMCQ, mcqIDs); err != nil {
		log.Fatal().Err(err).Msg("Failed to assign MCQ questions")
	}
	if _, err := adminService.AssignQuestions(ctx, exam.ID, model.QuestionKindCoding, codingIDs); err != nil {
		log.Fatal().Err(err).Msg("Failed to assign coding questions")
	}
	fmt.Printf("Exam %s created and started\n", exam.ID)

	// ─── Development tokens ───────────────────────────────────────────
	studentToken, err := authService.IssueToken(service.TokenTypeStudent, emails[0], nil, 12*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue student token")
	}
	adminToken, err := authService.IssueToken(service.TokenTypeAdmin, "admin@example.com",
		[]string{string(model.PermissionExamsRead), string(model.PermissionExamsWrite)}, 12*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue admin token")
	}

	fmt.Printf("\nStudent token (%s):\n%s\n", emails[0], studentToken)
	fmt.Printf("\nAdmin token:\n%s\n", adminToken)
}

func sampleMCQs() []*model.MCQQuestion {
	return []*model.MCQQuestion{
		{
			QuestionText:    "Which keyword declares a constant in Go?",
			Category:        "Go",
			DifficultyLevel: "Easy",
			Options: []model.MCQOption{
				{Text: "const", IsCorrect: true},
				{Text: "let"},
				{Text: "final"},
				{Text: "static"},
			},
		},
		{
			QuestionText:    "What is the worst-case time complexity of quicksort?",
			Category:        "Algorithms",
			DifficultyLevel: "Medium",
			Options: []model.MCQOption{
				{Text: "O(n log n)"},
				{Text: "O(n^2)", IsCorrect: true},
				{Text: "O(n)"},
			},
		},
		{
			QuestionText:    "Which data structure backs a breadth-first search?",
			Category:        "Algorithms",
			DifficultyLevel: "Hard",
			Options: []model.MCQOption{
				{Text: "Stack"},
				{Text: "Queue", IsCorrect: true},
			},
		},
	}
}

func sampleCoding() []*model.CodingQuestion {
	return []*model.CodingQuestion{
		{
			Title:             "Sum of two numbers",
			QuestionText:      "Read T test cases. Each line holds two integers; print their sum on its own line.",
			Category:          "Basics",
			DifficultyLevel:   "Easy",
			FunctionSignature: "def add(a: int, b: int) -> int",
			TestCases: []model.CodingTestCase{
				{InputData: "2 3", ExpectedOutput: "5"},
				{InputData: "-4 10", ExpectedOutput: "6"},
			},
		},
		{
			Title:             "Reverse a string",
			QuestionText:      "Read T test cases. Each line holds a word; print it reversed on its own line.",
			Category:          "Strings",
			DifficultyLevel:   "Medium",
			FunctionSignature: "def reverse(s: str) -> str",
			TestCases: []model.CodingTestCase{
				{InputData: "exam", ExpectedOutput: "maxe"},
				{InputData: "go", ExpectedOutput: "og"},
			},
		},
	}
}
