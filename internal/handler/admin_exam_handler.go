package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/response"
	"github.com/stemsi/codexam/internal/service"
	"github.com/stemsi/codexam/internal/validator"
)

// AdminExamHandler handles exam administration endpoints.
type AdminExamHandler struct {
	adminService *service.ExamAdminService
}

// NewAdminExamHandler creates a new AdminExamHandler.
func NewAdminExamHandler(adminService *service.ExamAdminService) *AdminExamHandler {
	return &AdminExamHandler{adminService: adminService}
}

// UpdateStatus godoc
// PATCH /api/v1/admin/exams/:exam_id/status
func (h *AdminExamHandler) UpdateStatus(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateExamStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.adminService.UpdateStatus(c.Request.Context(), examID, model.ExamStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam.Summary()})
}

// AssignQuestions godoc
// POST /api/v1/admin/exams/:exam_id/questions
// Attaches bank questions to the exam; marks come from the difficulty table.
func (h *AdminExamHandler) AssignQuestions(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AssignQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	added, err := h.adminService.AssignQuestions(c.Request.Context(), examID, model.QuestionKind(req.Kind), req.QuestionIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"added": added})
}

// ListResults godoc
// GET /api/v1/admin/exams/:exam_id/results?page=&per_page=
func (h *AdminExamHandler) ListResults(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	results, pagination, err := h.adminService.ListResults(c.Request.Context(), examID, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}
