package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/codexam/internal/response"
	"github.com/stemsi/codexam/internal/service"
)

// respondError maps a service error kind to a status code and error code.
// Classified errors carry their own message; anything else is an internal error.
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		response.Fail(c, status, code)
		return
	}
	response.FailWithMessage(c, status, code, service.Message(err))
}

func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, response.ErrInvalidArgument
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest, response.ErrInvalidState
	case errors.Is(err, service.ErrTimeExpired):
		return http.StatusBadRequest, response.ErrExamTimeOver
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusBadRequest, response.ErrAttemptNotStarted
	case errors.Is(err, service.ErrExternalService):
		return http.StatusBadGateway, response.ErrSandboxUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
