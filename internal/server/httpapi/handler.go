package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	submittedMessage  = "Background removal task started"
	notStartedMessage = "Background removal task could not be started"
)

type submitRequest struct {
	FileID string `json:"fileId"`
}

type submitResponse struct {
	TaskID  string           `json:"taskId"`
	Status  models.TaskState `json:"status"`
	Message string           `json:"message"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) submitRemoveBackground(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			s.abort(c, http.StatusBadRequest, "Request body required")
			return
		}
		s.abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileID == "" {
		s.abort(c, http.StatusBadRequest, "fileId is required")
		return
	}

	task, err := s.tasks.Submit(c.Request.Context(), c.GetString(userIDKey), req.FileID, models.KindRemoveBackground)
	if err != nil {
		s.handleError(c, err)
		return
	}

	resp := submitResponse{TaskID: task.ID, Status: task.State(), Message: submittedMessage}
	if task.State() != models.StateProcessing {
		resp.Message = notStartedMessage
		resp.Error, _ = task.Outcome.FailureMessage()
	}
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) removeBackgroundStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		s.abort(c, http.StatusBadRequest, "taskId is required")
		return
	}

	view, err := s.tasks.Status(c.Request.Context(), c.GetString(userIDKey), taskID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) notImplemented(kind models.TaskKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.abort(c, http.StatusNotImplemented, string(kind)+" is not implemented yet")
	}
}

// handleError maps service errors to HTTP statuses. Unexpected errors are
// logged and reported without detail.
func (s *Server) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		s.abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		s.abort(c, http.StatusNotFound, "Task not found")
	case errors.Is(err, common.ErrorForbidden):
		s.abort(c, http.StatusForbidden, "Access denied")
	case errors.Is(err, common.ErrNotImplemented):
		s.abort(c, http.StatusNotImplemented, err.Error())
	default:
		s.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
		s.abort(c, http.StatusInternalServerError, "Internal server error")
	}
}
