package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/codexam/internal/middleware"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/response"
	"github.com/stemsi/codexam/internal/service"
	"github.com/stemsi/codexam/internal/validator"
)

// StudentExamHandler handles the exam-taking endpoints.
type StudentExamHandler struct {
	sessionService *service.ExamSessionService
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(sessionService *service.ExamSessionService) *StudentExamHandler {
	return &StudentExamHandler{sessionService: sessionService}
}

// FindExams godoc
// GET /api/v1/student-exam/find-exam/:email
// Lists the exams the student can still take.
func (h *StudentExamHandler) FindExams(c *gin.Context) {
	exams, err := h.sessionService.FindEligibleExams(c.Request.Context(), pathEmail(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// CreateExam godoc
// POST /api/v1/student-exam/create-exam/:email/:exam_id
// Starts the attempt, or returns the existing one (idempotent).
func (h *StudentExamHandler) CreateExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, created, err := h.sessionService.StartOrResumeAttempt(c.Request.Context(), pathEmail(c), examID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"attempt": attempt})
}

// SubmitExam godoc
// PUT /api/v1/student-exam/submit-exam/:id
// Completes the attempt and returns the score. Repeated calls return the stored result.
func (h *StudentExamHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.VerifyAttemptOwner(c.Request.Context(), attemptID, claims.Email); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), attemptID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// AutoSave godoc
// POST /api/v1/student-exam/auto-save/:exam_id
// Upserts the answers of a running attempt.
func (h *StudentExamHandler) AutoSave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AutoSaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.VerifyAttemptOwner(c.Request.Context(), req.StudentExamID, claims.Email); err != nil {
		respondError(c, err)
		return
	}

	if err := h.sessionService.AutoSave(c.Request.Context(), examID, req.StudentExamID, req.Answers); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Answers saved",
		"saved":   len(req.Answers),
	})
}

// RunCode godoc
// POST /api/v1/student-exam/run-code
// Runs code in the sandbox and passes its output through.
func (h *StudentExamHandler) RunCode(c *gin.Context) {
	var req model.RunCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.RunCode(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SubmitCode godoc
// POST /api/v1/student-exam/submit-code/:email/:exam_id
// Grades a coding answer against the question's test cases.
func (h *StudentExamHandler) SubmitCode(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	verdict, err := h.sessionService.SubmitCode(c.Request.Context(), pathEmail(c), examID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, verdict)
}

func pathEmail(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("email")))
}
