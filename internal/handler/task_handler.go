package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/response"
)

type taskService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateTaskRequest) (*models.Task, error)
	ListEligible(ctx context.Context, actor *models.JWTClaims) ([]models.TaskView, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Task, error)
}

// TaskHandler exposes the task catalog.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler builds a new handler.
func NewTaskHandler(service taskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// Create godoc
// @Summary Create a task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body dto.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid task payload"))
		return
	}
	task, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// ListEligible godoc
// @Summary List tasks the student can accept
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/eligible [get]
func (h *TaskHandler) ListEligible(c *gin.Context) {
	views, err := h.service.ListEligible(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, views)
}

// ListMine godoc
// @Summary List tasks created by the faculty member
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/mine [get]
func (h *TaskHandler) ListMine(c *gin.Context) {
	tasks, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, tasks)
}
