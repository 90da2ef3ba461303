package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/codexam/internal/model"
	"github.com/stemsi/codexam/internal/response"
	"github.com/stemsi/codexam/internal/service"
)

// ExamQuestionHandler serves paginated exam questions to students.
type ExamQuestionHandler struct {
	questionService *service.ExamQuestionService
}

// NewExamQuestionHandler creates a new ExamQuestionHandler.
func NewExamQuestionHandler(questionService *service.ExamQuestionService) *ExamQuestionHandler {
	return &ExamQuestionHandler{questionService: questionService}
}

// ListMCQ godoc
// GET /api/v1/exam-questions/:exam_id/mcq/:email?page=&size=
func (h *ExamQuestionHandler) ListMCQ(c *gin.Context) {
	h.list(c, model.QuestionKindMCQ)
}

// ListCoding godoc
// GET /api/v1/exam-questions/:exam_id/code/:email?page=&size=
func (h *ExamQuestionHandler) ListCoding(c *gin.Context) {
	h.list(c, model.QuestionKindCoding)
}

func (h *ExamQuestionHandler) list(c *gin.Context, kind model.QuestionKind) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(service.DefaultPageSize)))

	questions, pagination, err := h.questionService.GetQuestions(c.Request.Context(), examID, pathEmail(c), kind, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions}, pagination)
}
